// Package podstate holds PodState, the single unit of persisted state
// spec.md §3 describes, and the integration logic (§4.3) that folds status
// and detailed-status responses into it.
package podstate

import "time"

// SetupProgress is the ordered enum spec.md §3 defines for pairing/setup
// progress. Invariant N2: advances only to equal or higher ordinal values,
// except the terminal ActivationTimeout transition.
type SetupProgress uint8

const (
	AddressAssigned SetupProgress = iota
	PodConfigured
	StartingPrime
	Priming
	SettingInitialBasalSchedule
	InitialBasalScheduleSet
	StartingInsertCannula
	CannulaInserting
	Completed
	ActivationTimeout
)

func (p SetupProgress) String() string {
	switch p {
	case AddressAssigned:
		return "addressAssigned"
	case PodConfigured:
		return "podConfigured"
	case StartingPrime:
		return "startingPrime"
	case Priming:
		return "priming"
	case SettingInitialBasalSchedule:
		return "settingInitialBasalSchedule"
	case InitialBasalScheduleSet:
		return "initialBasalScheduleSet"
	case StartingInsertCannula:
		return "startingInsertCannula"
	case CannulaInserting:
		return "cannulaInserting"
	case Completed:
		return "completed"
	case ActivationTimeout:
		return "activationTimeout"
	default:
		return "unknown"
	}
}

// Advance moves p to next, enforcing invariant N2: the new value must be
// equal-or-higher ordinal, unless next is the terminal ActivationTimeout
// (which may be reached from anywhere).
func (p SetupProgress) Advance(next SetupProgress) SetupProgress {
	if next == ActivationTimeout || next >= p {
		return next
	}
	return p
}

// SuspendTag discriminates the two SuspendState variants.
type SuspendTag uint8

const (
	SuspendTagSuspended SuspendTag = iota
	SuspendTagResumed
)

// SuspendState is the tagged {suspended(at), resumed(at)} union spec.md §3
// defines.
type SuspendState struct {
	Tag SuspendTag
	At  time.Time
}

// Suspended builds a SuspendState in the suspended variant.
func Suspended(at time.Time) SuspendState {
	return SuspendState{Tag: SuspendTagSuspended, At: at}
}

// Resumed builds a SuspendState in the resumed variant.
func Resumed(at time.Time) SuspendState { return SuspendState{Tag: SuspendTagResumed, At: at} }

// IsSuspended reports whether the pod is currently suspended.
func (s SuspendState) IsSuspended() bool { return s.Tag == SuspendTagSuspended }
