package dose

import "errors"

// Errors returned by the Dose Ledger. Guard-violation errors map directly
// onto spec.md §7's unfinalizedBolus/unfinalizedTempBasal taxonomy.
// pkg/delivery checks its guards itself and reports pkg/pcerr's errors;
// it discards the errors the ledger's record methods return.
var (
	// ErrUnfinalizedBolus is returned when recording a bolus while one is
	// already in flight (invariant N5).
	ErrUnfinalizedBolus = errors.New("dose: a bolus is already unfinalized")

	// ErrUnfinalizedTempBasal is returned when recording a temp basal
	// while one is already in flight (invariant N5).
	ErrUnfinalizedTempBasal = errors.New("dose: a temp basal is already unfinalized")

	// ErrUnfinalizedSuspend is returned when recording a suspend while one
	// is already in flight.
	ErrUnfinalizedSuspend = errors.New("dose: a suspend is already unfinalized")

	// ErrUnfinalizedResume is returned when recording a resume while one is
	// already in flight.
	ErrUnfinalizedResume = errors.New("dose: a resume is already unfinalized")

	// ErrNoUnfinalizedBolus is returned when cancelling a bolus that isn't recorded.
	ErrNoUnfinalizedBolus = errors.New("dose: no unfinalized bolus to cancel")

	// ErrNoUnfinalizedTempBasal is returned when cancelling a temp basal that isn't recorded.
	ErrNoUnfinalizedTempBasal = errors.New("dose: no unfinalized temp basal to cancel")
)
