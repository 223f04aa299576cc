// Package fault implements the Fault Handler (spec.md §4.7): the single
// path by which a captured pod fault is folded into PodState and the Dose
// Ledger exactly once, regardless of how many times the exchange layer
// observes it on retries.
package fault

import (
	"context"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/pcerr"
	"github.com/dosewise/podcomms/pkg/podstate"
)

// PulseLogReader is the best-effort postmortem collaborator Capture calls
// the first time a fault is observed (SPEC_FULL.md §6): reading it
// immediately avoids losing the diagnostic buffer if the pod isn't
// deactivated until much later. Implemented by *delivery.Operations, which
// already holds the Transport/Config a read needs; fault deliberately
// doesn't import delivery to avoid a cycle, so the collaborator is injected
// instead.
type PulseLogReader interface {
	ReadPulseLog(ctx context.Context, now time.Time) (*message.DetailedStatus, error)
}

// Capture stores detailed into s.Fault (sticky per N4) and, the first time
// this pod's fault is observed, finalizes any in-flight doses with the
// pod-reported undelivered units, folds the rest of detailed's fields into
// s, and best-effort invokes reader for the postmortem read. reader may be
// nil (no collaborator wired at this call site); its error, if any, is
// swallowed since the read is diagnostic only and must never fail the
// caller's own operation. Returns true iff this call captured the fault
// for the first time.
func Capture(ctx context.Context, s *podstate.PodState, detailed *message.DetailedStatus, cfg config.Config, now time.Time, reader PulseLogReader) bool {
	wasNew := s.SetFault(detailed)
	if wasNew {
		s.HandleCancelDosing(message.DeliveryAll, detailed.BolusNotDelivered, now)
		s.UpdateFromDetailedStatusResponse(detailed, cfg, now)
		if reader != nil {
			_, _ = reader.ReadPulseLog(ctx, now)
		}
	}
	return wasNew
}

// Error builds the error a caller should propagate for a captured fault,
// specializing activationTimeExceeded (spec.md §4.6: "translate
// fault.podProgressStatus == activationTimeExceeded into the distinct
// activationTimeExceeded error") rather than a generic podFault.
func Error(detailed *message.DetailedStatus) error {
	if detailed.PodProgress == message.PodProgressActivationTimeExceeded {
		return pcerr.ErrActivationTimeExceeded
	}
	return &pcerr.PodFaultError{Detailed: detailed}
}
