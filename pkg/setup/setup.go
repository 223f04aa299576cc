// Package setup implements the Setup Sequencer (spec.md §4.5): the
// pairing-time operations that prime the pod, program its initial basal
// schedule, and insert the cannula. Every entry point is idempotent and
// keyed off podstate.SetupProgress, so re-invoking the same call after a
// lost confirmation resumes rather than re-issuing a command the pod may
// have already accepted.
package setup

import (
	"context"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/delivery"
	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/exchange"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/pcerr"
	"github.com/dosewise/podcomms/pkg/podstate"
	"github.com/dosewise/podcomms/pkg/transport"
)

// Sequencer bundles the dependencies pairing operations need.
type Sequencer struct {
	State     *podstate.PodState
	Transport transport.MessageTransport
	Config    config.Config
	Delivery  *delivery.Operations
}

// New builds a Sequencer bound to state and tr.
func New(state *podstate.PodState, tr transport.MessageTransport, cfg config.Config) *Sequencer {
	cfg = cfg.WithDefaults()
	return &Sequencer{
		State:     state,
		Transport: tr,
		Config:    cfg,
		Delivery:  delivery.New(state, tr, cfg),
	}
}

// Prime starts (or resumes) priming and returns the estimated remaining
// time until prime finishes.
func (s *Sequencer) Prime(ctx context.Context, now time.Time) (time.Duration, error) {
	if s.State.SetupProgress < podstate.StartingPrime {
		if _, err := exchange.Send[*message.StatusResponseBlock](ctx, s.State, s.Transport, s.Config,
			[]message.Block{&message.FaultConfigBlock{Tab5Sub16: 0, Tab5Sub17: 0}}, false, now); err != nil {
			return 0, err
		}
		if _, err := exchange.Send[*message.StatusResponseBlock](ctx, s.State, s.Transport, s.Config,
			[]message.Block{&message.ConfigureAlertsBlock{Alerts: []message.PodAlertConfig{finishSetupReminder()}}}, false, now); err != nil {
			return 0, err
		}
	}

	if s.State.SetupProgress == podstate.StartingPrime {
		sr, err := s.Delivery.GetStatus(ctx, now)
		if err != nil {
			return 0, err
		}
		if sr.PodProgress == message.PodProgressPriming || sr.PodProgress == message.PodProgressPrimingCompleted {
			s.State.AdvanceSetupProgress(podstate.Priming)
			if s.State.PrimeFinishTime != nil {
				return remaining(*s.State.PrimeFinishTime, now), nil
			}
			return 0, nil
		}
	}

	finish := now.Add(s.Config.PrimeDuration)
	s.State.PrimeFinishTime = &finish
	s.State.AdvanceSetupProgress(podstate.StartingPrime)

	blocks := []message.Block{
		&message.SetInsulinScheduleBlock{
			Schedule: message.InsulinPulse{Amount: s.Config.PrimeUnits, Interval: s.Config.SecondsPerPrimePulse},
		},
		&message.BolusExtraBlock{Units: s.Config.PrimeUnits},
	}
	if _, err := exchange.Send[*message.StatusResponseBlock](ctx, s.State, s.Transport, s.Config, blocks, false, now); err != nil {
		return 0, err
	}
	s.State.AdvanceSetupProgress(podstate.Priming)
	return remaining(finish, now), nil
}

// ProgramInitialBasalSchedule installs the pod's first basal schedule.
// Idempotent: if a prior attempt left progress at
// settingInitialBasalSchedule, it polls status and skips the write if the
// pod already reports basalInitialized.
func (s *Sequencer) ProgramInitialBasalSchedule(ctx context.Context, schedule []float64, utcOffset time.Duration, now time.Time) error {
	if s.State.SetupProgress == podstate.SettingInitialBasalSchedule {
		sr, err := s.Delivery.GetStatus(ctx, now)
		if err != nil {
			return err
		}
		if sr.PodProgress == message.PodProgressBasalInitialized {
			s.State.AdvanceSetupProgress(podstate.InitialBasalScheduleSet)
			return nil
		}
	}

	s.State.AdvanceSetupProgress(podstate.SettingInitialBasalSchedule)
	if err := s.Delivery.SetBasalSchedule(ctx, schedule, utcOffset, message.NoBeep, now); err != nil {
		return err
	}
	_ = s.State.Ledger.RecordResume(now, dose.Certain)
	s.State.AdvanceSetupProgress(podstate.InitialBasalScheduleSet)
	return nil
}

// InsertCannula begins (or resumes) cannula insertion and returns the
// estimated remaining wait time.
func (s *Sequencer) InsertCannula(ctx context.Context, now time.Time) (time.Duration, error) {
	if s.State.ActivatedAt == nil {
		return 0, pcerr.ErrNoPodPaired
	}

	if s.State.SetupProgress == podstate.StartingInsertCannula || s.State.SetupProgress == podstate.CannulaInserting {
		sr, err := s.Delivery.GetStatus(ctx, now)
		if err != nil {
			return 0, err
		}
		switch sr.PodProgress {
		case message.PodProgressReadyForDelivery:
			s.State.AdvanceSetupProgress(podstate.Completed)
			return 0, nil
		case message.PodProgressInsertingCannula:
			return time.Duration(s.Config.CannulaInsertionUnits/0.05) * s.Config.SecondsPerCannulaPulse, nil
		}
	}

	expirationAdvisory := s.State.ActivatedAt.Add(s.Config.NominalPodLife - s.Config.ExpirationAdvisoryWindow)
	shutdownImminent := s.State.ActivatedAt.Add(s.Config.ServiceDuration - s.Config.EndOfServiceImminentWindow)
	alerts := []message.PodAlertConfig{
		{Slot: 0, ActivateAt: remaining(expirationAdvisory, now), Kind: message.AlertRelativeToNow},
		{Slot: 1, ActivateAt: remaining(shutdownImminent, now), Kind: message.AlertRelativeToNow},
	}
	if _, err := exchange.Send[*message.StatusResponseBlock](ctx, s.State, s.Transport, s.Config,
		[]message.Block{&message.ConfigureAlertsBlock{Alerts: alerts}}, false, now); err != nil {
		return 0, err
	}

	s.State.AdvanceSetupProgress(podstate.StartingInsertCannula)
	blocks := []message.Block{
		&message.SetInsulinScheduleBlock{
			Schedule: message.InsulinPulse{Amount: s.Config.CannulaInsertionUnits, Interval: s.Config.SecondsPerCannulaPulse},
		},
		&message.BolusExtraBlock{Units: s.Config.CannulaInsertionUnits},
	}
	if _, err := exchange.Send[*message.StatusResponseBlock](ctx, s.State, s.Transport, s.Config, blocks, false, now); err != nil {
		return 0, err
	}
	s.State.AdvanceSetupProgress(podstate.CannulaInserting)
	return time.Duration(s.Config.CannulaInsertionUnits/0.05) * s.Config.SecondsPerCannulaPulse, nil
}

// CheckInsertionCompleted polls status; if the pod reports readyForDelivery,
// setup is marked complete and the setupUnitsDelivered baseline is stashed.
func (s *Sequencer) CheckInsertionCompleted(ctx context.Context, now time.Time) (bool, error) {
	sr, err := s.Delivery.GetStatus(ctx, now)
	if err != nil {
		return false, err
	}
	if sr.PodProgress != message.PodProgressReadyForDelivery {
		return false, nil
	}
	s.State.AdvanceSetupProgress(podstate.Completed)
	s.State.SetupUnitsDelivered = sr.InsulinDelivered
	return true, nil
}

func finishSetupReminder() message.PodAlertConfig {
	return message.PodAlertConfig{Slot: 7, ActivateAt: 5 * time.Minute, Kind: message.AlertRelativeToNow}
}

func remaining(target, now time.Time) time.Duration {
	if d := target.Sub(now); d > 0 {
		return d
	}
	return 0
}
