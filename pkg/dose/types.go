// Package dose implements the Dose Ledger (spec.md §4.2): the record of
// in-flight and completed insulin deliveries, with the three-valued
// certainty tracking that the rest of this module depends on to avoid
// over- or under-reporting delivered insulin.
package dose

import "time"

// Kind identifies which of the four dose record types a Dose is.
type Kind int

const (
	Bolus Kind = iota
	TempBasal
	Suspend
	Resume
)

// String implements fmt.Stringer for log/debug output.
func (k Kind) String() string {
	switch k {
	case Bolus:
		return "bolus"
	case TempBasal:
		return "tempBasal"
	case Suspend:
		return "suspend"
	case Resume:
		return "resume"
	default:
		return "unknown"
	}
}

// Certainty records whether the controller knows a commanded dose actually
// began on the pod, per spec.md's Certainty glossary entry.
type Certainty int

const (
	// Certain means a status response confirmed the dose took effect.
	Certain Certainty = iota
	// Uncertain means the command's outcome is ambiguous (e.g. the
	// transport failed after the command may have reached the pod).
	Uncertain
)

func (c Certainty) String() string {
	if c == Certain {
		return "certain"
	}
	return "uncertain"
}

// Dose is one unfinalized-or-finalized dose record. Fields not applicable
// to a Kind are left zero (e.g. ProgrammedAmount is unused for Suspend).
type Dose struct {
	Kind Kind `yaml:"kind"`

	StartTime  time.Time  `yaml:"startTime"`
	FinishTime *time.Time `yaml:"finishTime,omitempty"`

	// ProgrammedAmount is the bolus volume in units, or the temp basal
	// rate in units/hour. Unused for Suspend/Resume.
	ProgrammedAmount float64 `yaml:"programmedAmount,omitempty"`
	// ProgrammedDuration is the temp basal duration, or the time a bolus
	// takes to deliver at the default pulse pacing. Unused for
	// Suspend/Resume.
	ProgrammedDuration time.Duration `yaml:"programmedDuration,omitempty"`

	Certainty Certainty `yaml:"certainty"`

	CancelledAt       *time.Time `yaml:"cancelledAt,omitempty"`
	UnitsNotDelivered *float64   `yaml:"unitsNotDelivered,omitempty"`
}

// scheduledFinish returns when this dose would finish on its own, absent
// cancellation — StartTime + ProgrammedDuration.
func (d Dose) scheduledFinish() time.Time {
	return d.StartTime.Add(d.ProgrammedDuration)
}

// isFinished reports whether the dose's scheduled end has passed as of now.
// Only meaningful for Bolus/TempBasal; spec.md §4.2.
func (d Dose) isFinished(now time.Time) bool {
	return !d.scheduledFinish().After(now)
}
