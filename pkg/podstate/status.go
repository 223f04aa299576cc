package podstate

import (
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/message"
)

// UpdateFromStatusResponse folds a routine StatusResponse into s, per
// spec.md §4.3: (a) update wall-clock times per N3, (b) reconcile
// delivery-status bits against uncertain doses, (c) overwrite the cumulative
// insulin/reservoir snapshot, (d) overwrite activeAlertSlots. It then
// finalizes finished doses, which applies N7.
func (s *PodState) UpdateFromStatusResponse(sr *message.StatusResponseBlock, cfg config.Config, now time.Time) {
	s.updateExpiry(sr.TimeActive, cfg, now)
	s.reconcileDeliveryStatus(sr.DeliveryStatus)
	s.LastInsulinMeasurements = &InsulinSnapshot{
		DeliveredUnits: sr.InsulinDelivered,
		ReservoirLevel: sr.ReservoirLevel,
		ValidAt:        now,
	}
	s.ActiveAlertSlots = sr.ActiveAlertSlots
	s.Ledger.FinalizeFinishedDoses(now)
}

// UpdateFromDetailedStatusResponse folds a DetailedStatus into s, applying
// the same four-effect ordering as UpdateFromStatusResponse.
func (s *PodState) UpdateFromDetailedStatusResponse(ds *message.DetailedStatus, cfg config.Config, now time.Time) {
	s.updateExpiry(ds.TimeActive, cfg, now)
	s.reconcileDeliveryStatus(ds.DeliveryStatus)
	s.LastInsulinMeasurements = &InsulinSnapshot{
		DeliveredUnits: ds.InsulinDelivered,
		ReservoirLevel: ds.ReservoirLevel,
		ValidAt:        now,
	}
	s.ActiveAlertSlots = ds.UnacknowledgedAlerts
	s.Ledger.FinalizeFinishedDoses(now)
}

// updateExpiry re-derives expiresAt from the pod's self-reported
// time-active, applying the N3 drift guard. activatedAt is derived the same
// way but only set when it is still nil.
func (s *PodState) updateExpiry(timeActive time.Duration, cfg config.Config, now time.Time) {
	activatedAt := now.Add(-timeActive)
	if s.ActivatedAt == nil {
		s.ActivatedAt = &activatedAt
	}
	newExpiry := activatedAt.Add(cfg.NominalPodLife)
	s.SetExpiresAt(newExpiry, cfg.ExpiryDriftMargin)
}

// reconcileDeliveryStatus applies spec.md §4.3's reconciliation table and
// mirrors the suspended bit into s.Suspend; N7 (pairing a resume that
// follows a suspend) is left to the caller's FinalizeFinishedDoses. The
// table's left column is
// "Uncertain record" — a record the pod has already confirmed (Certainty ==
// dose.Certain) is left alone here; it finalizes on its own schedule via
// FinalizeFinishedDoses/finalizeSuspendResumePair instead.
func (s *PodState) reconcileDeliveryStatus(ds message.DeliveryStatus) {
	l := s.Ledger

	if b := l.UnfinalizedBolus(); b != nil && b.Certainty == dose.Uncertain {
		if ds.Bolus {
			l.UpgradeBolus()
		} else {
			l.DropBolus()
		}
	}
	if tb := l.UnfinalizedTempBasal(); tb != nil && tb.Certainty == dose.Uncertain {
		if ds.TempBasal {
			l.UpgradeTempBasal()
		} else {
			l.DropTempBasal()
		}
	}
	if r := l.UnfinalizedResume(); r != nil && r.Certainty == dose.Uncertain {
		if !ds.Suspended {
			l.UpgradeResume()
		} else {
			l.DropResume()
		}
	}
	if sp := l.UnfinalizedSuspend(); sp != nil && sp.Certainty == dose.Uncertain {
		if ds.Suspended {
			l.UpgradeSuspend()
		} else {
			l.DropSuspend()
		}
	}

	if ds.Suspended {
		s.Suspend = Suspended(s.Suspend.At)
	} else {
		s.Suspend = Resumed(s.Suspend.At)
	}
}
