package podstate

import (
	"time"

	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/nonce"
)

// InsulinSnapshot is the cumulative delivered-units/reservoir-level reading
// captured at ValidAt, spec.md §3's lastInsulinMeasurements.
type InsulinSnapshot struct {
	DeliveredUnits float64
	ReservoirLevel float64
	ValidAt        time.Time
}

// TransportState is the packet/message counters spec.md §3 calls
// messageTransportState, persisted so a resumed session keeps issuing
// strictly increasing sequence numbers.
type TransportState struct {
	PacketNumber  uint32
	MessageSeqNum uint8
}

// PodState is the single unit of persisted state (spec.md §3). It is
// mutated exclusively on a session's serial queue; pkg/podsession enforces
// that externally via Session.Mutate.
type PodState struct {
	Address   uint32
	PiVersion string
	PmVersion string
	Lot       uint32
	Tid       uint32

	Nonce *nonce.Generator

	ActivatedAt *time.Time
	ExpiresAt   *time.Time

	SetupProgress SetupProgress
	Suspend       SuspendState

	Ledger *dose.Ledger

	Fault *message.DetailedStatus

	ConfiguredAlerts map[message.AlertSlot]PodAlert
	ActiveAlertSlots message.AlertSet

	LastInsulinMeasurements *InsulinSnapshot

	Transport TransportState

	PrimeFinishTime     *time.Time
	SetupUnitsDelivered float64
}

// New builds a freshly paired PodState: setupProgress = addressAssigned,
// suspend state resumed(now), and a nonce generator seeded from lot/tid.
func New(address, lot, tid uint32, piVersion, pmVersion string, seed uint16, now time.Time) *PodState {
	return &PodState{
		Address:          address,
		PiVersion:        piVersion,
		PmVersion:        pmVersion,
		Lot:              lot,
		Tid:              tid,
		Nonce:            nonce.NewGenerator(lot, tid, seed),
		SetupProgress:    AddressAssigned,
		Suspend:          Resumed(now),
		Ledger:           dose.NewLedger(),
		ConfiguredAlerts: make(map[message.AlertSlot]PodAlert),
	}
}

// ValidateAddress enforces invariant N1: a non-setup response's address
// must match. Callers must check this before applying any other mutation
// from the response — a mismatch never mutates state.
func (s *PodState) ValidateAddress(got uint32) error {
	if got != s.Address {
		return ErrInvalidAddress
	}
	return nil
}

// AdvanceSetupProgress applies invariant N2.
func (s *PodState) AdvanceSetupProgress(next SetupProgress) {
	s.SetupProgress = s.SetupProgress.Advance(next)
}

// SetExpiresAt applies invariant N3: the new value is only accepted if it is
// strictly earlier than the current one, or later by more than driftMargin
// (config.Config.ExpiryDriftMargin). Returns whether the value was applied.
func (s *PodState) SetExpiresAt(newExpiry time.Time, driftMargin time.Duration) bool {
	if s.ExpiresAt == nil {
		s.ExpiresAt = &newExpiry
		return true
	}
	switch {
	case newExpiry.Before(*s.ExpiresAt):
		s.ExpiresAt = &newExpiry
		return true
	case newExpiry.Sub(*s.ExpiresAt) > driftMargin:
		s.ExpiresAt = &newExpiry
		return true
	default:
		return false
	}
}

// SetFault applies invariant N4: fault is captured at most once. Returns
// true iff this call was the one that set it (i.e. it was previously nil).
func (s *PodState) SetFault(f *message.DetailedStatus) bool {
	if s.Fault != nil {
		return false
	}
	s.Fault = f
	return true
}

// IsFaulted reports whether a fault has been captured.
func (s *PodState) IsFaulted() bool { return s.Fault != nil }
