package dose

import (
	"time"

	"github.com/dosewise/podcomms/pkg/config"
)

// Ledger holds at most one unfinalized dose of each kind plus the ordered
// sequence of finalized doses awaiting export (spec.md §3 PodState fields,
// §4.2 Dose Ledger operations).
type Ledger struct {
	unfinalizedBolus     *Dose
	unfinalizedTempBasal *Dose
	unfinalizedSuspend   *Dose
	unfinalizedResume    *Dose

	finalizedDoses []Dose
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// UnfinalizedBolus returns the in-flight bolus record, or nil.
func (l *Ledger) UnfinalizedBolus() *Dose { return l.unfinalizedBolus }

// UnfinalizedTempBasal returns the in-flight temp basal record, or nil.
func (l *Ledger) UnfinalizedTempBasal() *Dose { return l.unfinalizedTempBasal }

// UnfinalizedSuspend returns the in-flight suspend record, or nil.
func (l *Ledger) UnfinalizedSuspend() *Dose { return l.unfinalizedSuspend }

// UnfinalizedResume returns the in-flight resume record, or nil.
func (l *Ledger) UnfinalizedResume() *Dose { return l.unfinalizedResume }

// FinalizedDoses returns the doses pending export. The returned slice must
// not be mutated by the caller.
func (l *Ledger) FinalizedDoses() []Dose { return l.finalizedDoses }

// RecordBolus records a new in-flight bolus. Rejects with
// ErrUnfinalizedBolus if one is already recorded (invariant N5). The
// bolus's programmed duration is derived from the default pulse size and
// pacing in pkg/config.
func (l *Ledger) RecordBolus(units float64, start time.Time, certainty Certainty) error {
	if l.unfinalizedBolus != nil {
		return ErrUnfinalizedBolus
	}
	cfg := config.Default()
	l.unfinalizedBolus = &Dose{
		Kind:               Bolus,
		StartTime:          start,
		ProgrammedAmount:   units,
		ProgrammedDuration: time.Duration(units / cfg.BolusPulseUnits * float64(cfg.SecondsPerBolusPulse)),
		Certainty:          certainty,
	}
	return nil
}

// RecordTempBasal records a new in-flight temp basal. Rejects with
// ErrUnfinalizedTempBasal if one is already recorded (invariant N5).
func (l *Ledger) RecordTempBasal(rate float64, start time.Time, duration time.Duration, certainty Certainty) error {
	if l.unfinalizedTempBasal != nil {
		return ErrUnfinalizedTempBasal
	}
	l.unfinalizedTempBasal = &Dose{
		Kind:               TempBasal,
		StartTime:          start,
		ProgrammedAmount:   rate,
		ProgrammedDuration: duration,
		Certainty:          certainty,
	}
	return nil
}

// RecordSuspend records a new in-flight suspend. Suspend/resume coexist with
// whatever bolus/temp-basal they interrupt (spec.md §4.2), so this only
// guards against a second concurrent suspend.
func (l *Ledger) RecordSuspend(at time.Time, certainty Certainty) error {
	if l.unfinalizedSuspend != nil {
		return ErrUnfinalizedSuspend
	}
	l.unfinalizedSuspend = &Dose{Kind: Suspend, StartTime: at, Certainty: certainty}
	return nil
}

// RecordResume records a new in-flight resume.
func (l *Ledger) RecordResume(at time.Time, certainty Certainty) error {
	if l.unfinalizedResume != nil {
		return ErrUnfinalizedResume
	}
	l.unfinalizedResume = &Dose{Kind: Resume, StartTime: at, Certainty: certainty}
	return nil
}

// CancelBolus marks the in-flight bolus's finish time and undelivered
// remainder, then finalizes it immediately — cancellation is a definitive
// terminal event, unlike the time-based finalization finalizeFinishedDoses
// performs for doses that simply run to completion.
func (l *Ledger) CancelBolus(at time.Time, remaining float64) error {
	if l.unfinalizedBolus == nil {
		return ErrNoUnfinalizedBolus
	}
	d := *l.unfinalizedBolus
	d.FinishTime = &at
	d.CancelledAt = &at
	d.UnitsNotDelivered = &remaining
	l.finalizedDoses = append(l.finalizedDoses, d)
	l.unfinalizedBolus = nil
	return nil
}

// CancelTempBasal truncates the in-flight temp basal's duration to end at
// `at` and finalizes it immediately.
func (l *Ledger) CancelTempBasal(at time.Time) error {
	if l.unfinalizedTempBasal == nil {
		return ErrNoUnfinalizedTempBasal
	}
	d := *l.unfinalizedTempBasal
	d.ProgrammedDuration = at.Sub(d.StartTime)
	d.FinishTime = &at
	d.CancelledAt = &at
	l.finalizedDoses = append(l.finalizedDoses, d)
	l.unfinalizedTempBasal = nil
	return nil
}

// FinalizeFinishedDoses moves any bolus/temp-basal whose scheduled end has
// passed into finalizedDoses, and applies invariant N7: a resume whose
// start time follows a pending suspend's start time finalizes both, in
// [suspend, resume] order.
func (l *Ledger) FinalizeFinishedDoses(now time.Time) {
	if l.unfinalizedBolus != nil && l.unfinalizedBolus.isFinished(now) {
		l.finalizedDoses = append(l.finalizedDoses, *l.unfinalizedBolus)
		l.unfinalizedBolus = nil
	}
	if l.unfinalizedTempBasal != nil && l.unfinalizedTempBasal.isFinished(now) {
		l.finalizedDoses = append(l.finalizedDoses, *l.unfinalizedTempBasal)
		l.unfinalizedTempBasal = nil
	}
	l.finalizeSuspendResumePair()
}

// finalizeSuspendResumePair implements invariant N7.
func (l *Ledger) finalizeSuspendResumePair() {
	if l.unfinalizedSuspend == nil || l.unfinalizedResume == nil {
		return
	}
	if !l.unfinalizedResume.StartTime.After(l.unfinalizedSuspend.StartTime) {
		return
	}
	l.finalizedDoses = append(l.finalizedDoses, *l.unfinalizedSuspend, *l.unfinalizedResume)
	l.unfinalizedSuspend = nil
	l.unfinalizedResume = nil
}

// UpgradeBolus marks the in-flight bolus certain. No-op if none is recorded.
func (l *Ledger) UpgradeBolus() {
	if l.unfinalizedBolus != nil {
		l.unfinalizedBolus.Certainty = Certain
	}
}

// DropBolus discards the in-flight bolus record entirely (it never happened).
func (l *Ledger) DropBolus() { l.unfinalizedBolus = nil }

// UpgradeTempBasal marks the in-flight temp basal certain.
func (l *Ledger) UpgradeTempBasal() {
	if l.unfinalizedTempBasal != nil {
		l.unfinalizedTempBasal.Certainty = Certain
	}
}

// DropTempBasal discards the in-flight temp basal record.
func (l *Ledger) DropTempBasal() { l.unfinalizedTempBasal = nil }

// UpgradeSuspend marks the in-flight suspend certain.
func (l *Ledger) UpgradeSuspend() {
	if l.unfinalizedSuspend != nil {
		l.unfinalizedSuspend.Certainty = Certain
	}
}

// DropSuspend discards the in-flight suspend record.
func (l *Ledger) DropSuspend() { l.unfinalizedSuspend = nil }

// UpgradeResume marks the in-flight resume certain.
func (l *Ledger) UpgradeResume() {
	if l.unfinalizedResume != nil {
		l.unfinalizedResume.Certainty = Certain
	}
}

// DropResume discards the in-flight resume record.
func (l *Ledger) DropResume() { l.unfinalizedResume = nil }

// Snapshot is the serializable form of a Ledger, used by pkg/podstate's
// persisted blob round-trip.
type Snapshot struct {
	UnfinalizedBolus     *Dose `yaml:"unfinalizedBolus,omitempty"`
	UnfinalizedTempBasal *Dose `yaml:"unfinalizedTempBasal,omitempty"`
	UnfinalizedSuspend   *Dose `yaml:"unfinalizedSuspend,omitempty"`
	UnfinalizedResume    *Dose `yaml:"unfinalizedResume,omitempty"`
	FinalizedDoses       []Dose `yaml:"finalizedDoses,omitempty"`
}

// Snapshot captures the ledger's full state for persistence.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		UnfinalizedBolus:     l.unfinalizedBolus,
		UnfinalizedTempBasal: l.unfinalizedTempBasal,
		UnfinalizedSuspend:   l.unfinalizedSuspend,
		UnfinalizedResume:    l.unfinalizedResume,
		FinalizedDoses:       l.finalizedDoses,
	}
}

// FromSnapshot restores a Ledger previously captured with Snapshot.
func FromSnapshot(s Snapshot) *Ledger {
	return &Ledger{
		unfinalizedBolus:     s.UnfinalizedBolus,
		unfinalizedTempBasal: s.UnfinalizedTempBasal,
		unfinalizedSuspend:   s.UnfinalizedSuspend,
		unfinalizedResume:    s.UnfinalizedResume,
		finalizedDoses:       s.FinalizedDoses,
	}
}

// Drain hands handler every finalized dose plus the still-live ones (for
// visibility only), and clears the finalized buffer iff handler reports the
// doses were durably stored. Live doses are never cleared by Drain.
func (l *Ledger) Drain(handler func(doses []Dose) bool) {
	all := make([]Dose, 0, len(l.finalizedDoses)+4)
	all = append(all, l.finalizedDoses...)
	for _, live := range []*Dose{l.unfinalizedBolus, l.unfinalizedTempBasal, l.unfinalizedSuspend, l.unfinalizedResume} {
		if live != nil {
			all = append(all, *live)
		}
	}

	if handler(all) {
		l.finalizedDoses = nil
	}
}
