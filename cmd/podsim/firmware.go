package main

import (
	"sync"
	"time"

	"github.com/dosewise/podcomms/pkg/message"
)

// firmware is a minimal in-memory stand-in for a pod's own firmware state
// machine, just enough of spec.md's podProgressStatus/deliveryStatus
// transitions to drive a session through a full pair/dose/deactivate cycle
// against cmd/podsim's fake radio link.
type firmware struct {
	mu sync.Mutex

	progress    message.PodProgressStatus
	delivery    message.DeliveryStatus
	delivered   float64
	reservoir   float64
	activatedAt time.Time
}

func newFirmware(now time.Time, reservoir float64) *firmware {
	return &firmware{
		progress:    message.PodProgressPairingSuccess,
		reservoir:   reservoir,
		activatedAt: now,
	}
}

// handle implements transport.Handler, playing the part of the pod's radio
// responder: it folds the incoming command blocks into its own progress and
// delivery state, then reports that state back in a StatusResponse (or a
// PodInfoResponse, for a detailed status request).
func (f *firmware) handle(m *message.Message) (*message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	detailed := false
	for _, blk := range m.Blocks {
		switch b := blk.(type) {
		case *message.SetInsulinScheduleBlock:
			f.delivered += b.Schedule.Amount
			switch f.progress {
			case message.PodProgressPairingSuccess:
				f.progress = message.PodProgressPrimingCompleted
			case message.PodProgressBasalInitialized:
				f.progress = message.PodProgressReadyForDelivery
			default:
				f.delivery.Bolus = true
			}
		case *message.BasalScheduleExtraBlock:
			if f.progress < message.PodProgressBasalInitialized {
				f.progress = message.PodProgressBasalInitialized
			}
			f.delivery.Basal = true
		case *message.CancelDeliveryBlock:
			if b.Delivery.Has(message.DeliveryBolus) {
				f.delivery.Bolus = false
			}
			if b.Delivery.Has(message.DeliveryTempBasal) {
				f.delivery.TempBasal = false
			}
			if b.Delivery.Has(message.DeliveryBasal) {
				f.delivery.Basal = false
				f.delivery.Suspended = true
			}
		case *message.DeactivatePodBlock:
			f.progress = message.PodProgressInactive
		case *message.GetStatusBlock:
			detailed = b.Detailed
		}
	}

	remaining := f.reservoir - f.delivered
	timeActive := time.Since(f.activatedAt)

	if detailed {
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.PodInfoResponseBlock{
			Detailed: &message.DetailedStatus{
				PodProgress:       f.progress,
				DeliveryStatus:    f.delivery,
				InsulinDelivered:  f.delivered,
				ReservoirLevel:    remaining,
				TimeActive:        timeActive,
			},
		}}}, nil
	}

	return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{
		DeliveryStatus:   f.delivery,
		PodProgress:      f.progress,
		InsulinDelivered: f.delivered,
		ReservoirLevel:   remaining,
		TimeActive:       timeActive,
	}}}, nil
}
