package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/exchange"
	"github.com/dosewise/podcomms/pkg/fault"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/pcerr"
	"github.com/dosewise/podcomms/pkg/podstate"
	"github.com/dosewise/podcomms/pkg/transport"
)

// Operations bundles the dependencies every delivery command needs: the
// pod's state, the transport to reach it over, and the timing constants
// that shape command bodies (pulse pacing, comms offset).
type Operations struct {
	State     *podstate.PodState
	Transport transport.MessageTransport
	Config    config.Config
}

// New builds an Operations bound to state and tr, filling cfg's zero
// fields with spec defaults.
func New(state *podstate.PodState, tr transport.MessageTransport, cfg config.Config) *Operations {
	return &Operations{State: state, Transport: tr, Config: cfg.WithDefaults()}
}

// Bolus issues a bolus of units, per spec.md §4.6. commsOffset compensates
// for radio/firmware latency by timestamping the dose 1.5s before this call
// returns. On transport failure it polls status once to attempt to resolve
// the ambiguity before falling back to uncertainFailure.
func (o *Operations) Bolus(ctx context.Context, units float64, beep message.BeepType, reminderInterval time.Duration, now time.Time) DeliveryCommandResult {
	if o.State.Ledger.UnfinalizedBolus() != nil {
		return CertainFailureResult(pcerr.ErrUnfinalizedBolus)
	}

	startTime := now.Add(o.Config.CommsOffset)
	blocks := []message.Block{
		&message.SetInsulinScheduleBlock{
			Schedule: message.InsulinPulse{Amount: units, Interval: o.Config.SecondsPerBolusPulse},
		},
		&message.BolusExtraBlock{Units: units, Beep: beep, ReminderInterval: reminderInterval},
	}

	resp, err := exchange.Send[*message.StatusResponseBlock](ctx, o.State, o.Transport, o.Config, blocks, false, now)
	if err == nil {
		_ = o.State.Ledger.RecordBolus(units, startTime, dose.Certain)
		return SuccessResult(resp)
	}

	status, pollErr := o.getStatusBlock(ctx, now)
	if pollErr != nil {
		_ = o.State.Ledger.RecordBolus(units, now, dose.Uncertain)
		return UncertainFailureResult(pollErr)
	}
	if status.DeliveryStatus.Bolus {
		_ = o.State.Ledger.RecordBolus(units, startTime, dose.Certain)
		return SuccessResult(status)
	}
	return CertainFailureResult(err)
}

// SetTempBasal issues a temp basal, per spec.md §4.6. Unlike Bolus it never
// auto-verifies on transport failure — a temp basal is less safety-critical
// than a bolus, so the extra status round trip isn't worth the latency.
func (o *Operations) SetTempBasal(ctx context.Context, rate float64, duration time.Duration, beep message.BeepType, now time.Time) DeliveryCommandResult {
	if b := o.State.Ledger.UnfinalizedBolus(); b != nil {
		return CertainFailureResult(pcerr.ErrUnfinalizedBolus)
	}
	if o.State.Ledger.UnfinalizedTempBasal() != nil {
		return CertainFailureResult(pcerr.ErrUnfinalizedTempBasal)
	}

	blocks := []message.Block{
		&message.SetInsulinScheduleBlock{
			Schedule: message.InsulinPulse{Amount: rate, Interval: time.Minute / 2},
		},
		&message.TempBasalExtraBlock{Rate: rate, Duration: duration, Beep: beep},
	}

	resp, err := exchange.Send[*message.StatusResponseBlock](ctx, o.State, o.Transport, o.Config, blocks, false, now)
	var rejected *pcerr.RejectedMessageError
	if errors.As(err, &rejected) || errors.Is(err, pcerr.ErrNonceResyncFailed) {
		return CertainFailureResult(err)
	}
	if err != nil {
		_ = o.State.Ledger.RecordTempBasal(rate, now, duration, dose.Uncertain)
		return UncertainFailureResult(err)
	}
	_ = o.State.Ledger.RecordTempBasal(rate, now, duration, dose.Certain)
	return SuccessResult(resp)
}

// CancelDelivery cancels the given deliveries, per spec.md §4.6. When
// cancelling everything with a non-silent beep, it emits two commands in
// one message (a silent allButBasal cancel followed by a beeping basal
// cancel) so the pod produces a single beep sequence instead of three.
func (o *Operations) CancelDelivery(ctx context.Context, delivery message.DeliveryType, beep message.BeepType, now time.Time) CancelDeliveryResult {
	var blocks []message.Block
	if beep != message.NoBeep && delivery == message.DeliveryAll {
		blocks = []message.Block{
			&message.CancelDeliveryBlock{Delivery: message.DeliveryAllButBasal, Beep: message.NoBeep},
			&message.CancelDeliveryBlock{Delivery: message.DeliveryBasal, Beep: beep},
		}
	} else {
		blocks = []message.Block{&message.CancelDeliveryBlock{Delivery: delivery, Beep: beep}}
	}

	resp, err := exchange.Send[*message.StatusResponseBlock](ctx, o.State, o.Transport, o.Config, blocks, false, now)
	var rejected *pcerr.RejectedMessageError
	if errors.As(err, &rejected) || errors.Is(err, pcerr.ErrNonceResyncFailed) {
		return CancelCertainFailureResult(err)
	}
	if err != nil {
		return CancelUncertainFailureResult(err)
	}

	o.State.HandleCancelDosing(delivery, resp.BolusNotDelivered, now)
	ds := resp.DeliveryStatus
	return CancelSuccessResult(&ds)
}

// CancelNone sends a cancel with deliveryType = none, used both as a status
// read and as a nonce-validation probe (spec.md §4.6, §6 supplement).
func (o *Operations) CancelNone(ctx context.Context, now time.Time) CancelDeliveryResult {
	return o.CancelDelivery(ctx, message.DeliveryNone, message.NoBeep, now)
}

// SetBasalSchedule programs the standing basal schedule, per spec.md §4.6.
// On success it records a certain resume and marks the pod resumed; on
// transport failure it records an uncertain resume and returns the error
// (setup and status operations throw rather than returning a three-valued
// result — spec.md §7's propagation policy).
func (o *Operations) SetBasalSchedule(ctx context.Context, schedule []float64, utcOffset time.Duration, beep message.BeepType, now time.Time) error {
	blocks := []message.Block{
		&message.BasalScheduleExtraBlock{Schedule: schedule, UTCOffset: utcOffset, Beep: beep},
	}
	_, err := exchange.Send[*message.StatusResponseBlock](ctx, o.State, o.Transport, o.Config, blocks, false, now)
	if err != nil {
		_ = o.State.Ledger.RecordResume(now, dose.Uncertain)
		return err
	}
	_ = o.State.Ledger.RecordResume(now, dose.Certain)
	o.State.Suspend = podstate.Resumed(now)
	return nil
}

// GetStatus sends GetStatusCommand and returns the pod's StatusResponse.
func (o *Operations) GetStatus(ctx context.Context, now time.Time) (*message.StatusResponseBlock, error) {
	return o.getStatusBlock(ctx, now)
}

func (o *Operations) getStatusBlock(ctx context.Context, now time.Time) (*message.StatusResponseBlock, error) {
	sr, err := exchange.Send[*message.StatusResponseBlock](ctx, o.State, o.Transport, o.Config, []message.Block{&message.GetStatusBlock{}}, false, now)
	if err != nil {
		return nil, err
	}
	o.State.UpdateFromStatusResponse(sr, o.Config, now)
	return sr, nil
}

// GetDetailedStatus sends the detailedStatus sub-type of GetStatus and
// validates the returned PodInfoResponse unwraps to a DetailedStatus. If
// the detailed status reports a fault and none is recorded yet, the fault
// handler is invoked without translating it into an error — this call
// intentionally reports the fault to the caller rather than throwing.
func (o *Operations) GetDetailedStatus(ctx context.Context, now time.Time) (*message.DetailedStatus, error) {
	pi, err := exchange.Send[*message.PodInfoResponseBlock](ctx, o.State, o.Transport, o.Config, []message.Block{&message.GetStatusBlock{Detailed: true}}, false, now)
	if err != nil {
		return nil, err
	}
	detailed, ok := pi.AsDetailedStatus()
	if !ok {
		return nil, pcerr.ErrUnknownResponseType
	}

	o.State.UpdateFromDetailedStatusResponse(detailed, o.Config, now)
	if detailed.IsFaulted() && !o.State.IsFaulted() {
		fault.Capture(ctx, o.State, detailed, o.Config, now, o)
	}
	return detailed, nil
}

// ReadPulseLog performs a best-effort detailed-status read for postmortem
// diagnostics, implementing fault.PulseLogReader. Neither the teacher nor
// the rest of the pack defines a wire sub-type distinct from detailedStatus
// for a pulse log, so this reuses the same primitive GetDetailedStatus does
// rather than inventing one: the fault event code and undelivered units a
// postmortem needs are already carried on DetailedStatus.
func (o *Operations) ReadPulseLog(ctx context.Context, now time.Time) (*message.DetailedStatus, error) {
	pi, err := exchange.Send[*message.PodInfoResponseBlock](ctx, o.State, o.Transport, o.Config, []message.Block{&message.GetStatusBlock{Detailed: true}}, false, now)
	if err != nil {
		return nil, err
	}
	detailed, ok := pi.AsDetailedStatus()
	if !ok {
		return nil, pcerr.ErrUnknownResponseType
	}
	return detailed, nil
}

// SetTime cancels all delivery, then reprograms the basal schedule with the
// new time zone's offset. Cancellation failure throws; the schedule write
// follows normal SetBasalSchedule semantics.
func (o *Operations) SetTime(ctx context.Context, utcOffset time.Duration, schedule []float64, beep message.BeepType, now time.Time) error {
	res := o.CancelDelivery(ctx, message.DeliveryAll, message.NoBeep, now)
	if !res.IsSuccess() {
		return res.Err
	}
	return o.SetBasalSchedule(ctx, schedule, utcOffset, beep, now)
}

// DeactivatePod deactivates the pod, per spec.md §4.6. If setup is complete,
// not faulted, and not suspended, it first cancels all delivery (a failure
// here throws). If faulted, it makes a best-effort attempt to read the
// pulse log for postmortem purposes before proceeding regardless of the
// outcome. The final deactivate send swallows podFault and
// unexpectedResponse errors, since the pod may self-terminate mid-command.
func (o *Operations) DeactivatePod(ctx context.Context, now time.Time) error {
	if o.State.SetupProgress == podstate.Completed && !o.State.IsFaulted() && !o.State.Suspend.IsSuspended() {
		res := o.CancelDelivery(ctx, message.DeliveryAll, message.NoBeep, now)
		if !res.IsSuccess() {
			return res.Err
		}
	}

	if o.State.IsFaulted() {
		_, _ = exchange.Send[*message.PodInfoResponseBlock](ctx, o.State, o.Transport, o.Config, []message.Block{&message.GetStatusBlock{Detailed: true}}, false, now)
	}

	_, err := exchange.Send[*message.StatusResponseBlock](ctx, o.State, o.Transport, o.Config, []message.Block{&message.DeactivatePodBlock{}}, false, now)
	if err != nil {
		var pf *pcerr.PodFaultError
		var ur *pcerr.UnexpectedResponseError
		if errors.As(err, &pf) || errors.As(err, &ur) || errors.Is(err, pcerr.ErrActivationTimeExceeded) {
			return nil
		}
		return err
	}
	return nil
}

// AcknowledgeAlerts clears the given alert slots and returns the resulting
// active-alerts bitset.
func (o *Operations) AcknowledgeAlerts(ctx context.Context, alerts message.AlertSet, now time.Time) (message.AlertSet, error) {
	sr, err := exchange.Send[*message.StatusResponseBlock](ctx, o.State, o.Transport, o.Config, []message.Block{&message.AcknowledgeAlertBlock{Alerts: alerts}}, false, now)
	if err != nil {
		return 0, err
	}
	o.State.UpdateFromStatusResponse(sr, o.Config, now)
	return o.State.ActiveAlertSlots, nil
}
