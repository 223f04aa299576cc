package podstate

import (
	"time"

	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/message"
)

// HandleCancelDosing folds the effect of a successful cancelDelivery (or a
// captured fault) into the ledger and suspend state, per spec.md §4.6/§4.7:
// "for each bit in deliveryType that matches a live dose with finish time
// in the future, cancel that ledger entry; if basal was cancelled, also
// record a certain suspend; if only tempBasal was cancelled (not basal),
// record a resume."
func (s *PodState) HandleCancelDosing(delivery message.DeliveryType, bolusNotDelivered float64, now time.Time) {
	l := s.Ledger

	if b := l.UnfinalizedBolus(); delivery.Has(message.DeliveryBolus) && b != nil && b.StartTime.Add(b.ProgrammedDuration).After(now) {
		_ = l.CancelBolus(now, bolusNotDelivered)
	}
	if tb := l.UnfinalizedTempBasal(); delivery.Has(message.DeliveryTempBasal) && tb != nil && tb.StartTime.Add(tb.ProgrammedDuration).After(now) {
		_ = l.CancelTempBasal(now)
	}

	switch {
	case delivery.Has(message.DeliveryBasal):
		if l.UnfinalizedSuspend() == nil {
			_ = l.RecordSuspend(now, dose.Certain)
		}
		s.Suspend = Suspended(now)
	case delivery.Has(message.DeliveryTempBasal):
		if l.UnfinalizedResume() == nil {
			_ = l.RecordResume(now, dose.Certain)
		}
		s.Suspend = Resumed(now)
	}
}
