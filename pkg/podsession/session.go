// Package podsession implements the concurrency model spec.md §5 describes:
// a session owns one pod's state exclusively and serializes every mutation
// onto a single worker goroutine (the "session queue"). Every public
// operation blocks its caller until it has run on that queue, so from the
// caller's point of view operations are synchronous even though multiple
// goroutines may submit work concurrently.
package podsession

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/delivery"
	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/exchange"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/podlog"
	"github.com/dosewise/podcomms/pkg/podstate"
	"github.com/dosewise/podcomms/pkg/setup"
	"github.com/dosewise/podcomms/pkg/transport"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// Delegate is notified synchronously from the session queue after every
// PodState mutation (spec.md §6's "Session delegate interface").
type Delegate interface {
	PodCommsSessionDidChange(session *Session, state *podstate.PodState)
}

// Session owns one pod's PodState exclusively and drives every operation
// against it through Delivery and Setup. ID is a correlation identifier
// stamped once at construction, useful for tying together the log lines of
// one pairing across a host application's own logging.
type Session struct {
	ID uuid.UUID

	state *podstate.PodState
	tr    transport.MessageTransport
	cfg   config.Config

	Delivery *delivery.Operations
	Setup    *setup.Sequencer

	mu       sync.Mutex
	delegate Delegate

	jobs    chan func()
	done    chan struct{}
	onQueue atomic.Bool

	log logging.LeveledLogger
}

// New builds a Session around an already-paired PodState and binds it
// exclusively to tr for the Session's lifetime (spec.md §5's
// shared-resource policy: "the PodState is owned exclusively by one session
// at a time"). factory may be nil, in which case logging is disabled.
func New(state *podstate.PodState, tr transport.MessageTransport, cfg config.Config, factory logging.LoggerFactory) *Session {
	cfg = cfg.WithDefaults()
	exchange.SetLoggerFactory(factory)

	s := &Session{
		ID:       uuid.New(),
		state:    state,
		tr:       tr,
		cfg:      cfg,
		Delivery: delivery.New(state, tr, cfg),
		Setup:    setup.New(state, tr, cfg),
		jobs:     make(chan func()),
		done:     make(chan struct{}),
		log:      podlog.New(factory, "session"),
	}
	tr.SetDelegate(s)
	go s.run()
	return s
}

// SetDelegate registers the callback fired on every PodState mutation.
// Passing nil clears it.
func (s *Session) SetDelegate(d Delegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = d
}

// AssertOnSessionQueue panics unless a job is currently running on the
// session queue, the programmer-error guard spec.md §5 requires of every
// public operation. It checks a session-wide flag, not the calling
// goroutine's identity.
func (s *Session) AssertOnSessionQueue() {
	if !s.onQueue.Load() {
		panic("podsession: operation invoked off the session queue")
	}
}

// ForgetPod stops the session's worker goroutine, releasing the pod. The
// Session must not be used afterward (spec.md §3: "destroyed by forgetPod").
func (s *Session) ForgetPod() {
	close(s.done)
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.jobs:
			s.onQueue.Store(true)
			fn()
			s.onQueue.Store(false)
		case <-s.done:
			return
		}
	}
}

// execute submits fn to the session queue and blocks until it has run,
// serializing it against every other call made through Session.
func (s *Session) execute(fn func()) {
	done := make(chan struct{})
	s.jobs <- func() {
		fn()
		close(done)
	}
	<-done
}

func (s *Session) notifyDelegate() {
	s.mu.Lock()
	d := s.delegate
	s.mu.Unlock()
	if d != nil {
		d.PodCommsSessionDidChange(s, s.state)
	}
}

// MessageTransportStateDidChange implements transport.StateDelegate, folding
// the transport's packet/message counters into PodState and notifying the
// session delegate in turn.
func (s *Session) MessageTransportStateDidChange(ts transport.MessageTransportState) {
	update := func() {
		s.state.Transport = podstate.TransportState{PacketNumber: ts.PacketNumber, MessageSeqNum: ts.MessageSeqNum}
		s.notifyDelegate()
	}
	// The transport reports from inside SendMessage, which already runs on
	// the session queue; submitting another job from there would deadlock.
	if s.onQueue.Load() {
		update()
		return
	}
	s.execute(update)
}

// Mutate runs fn against the session's PodState on the session queue, then
// notifies the delegate exactly once. Use this for mutations that don't
// correspond to a pod I/O operation (e.g. applying an out-of-band pairing
// result).
func (s *Session) Mutate(fn func(*podstate.PodState)) {
	s.execute(func() {
		fn(s.state)
		s.notifyDelegate()
	})
}

// State returns the session's PodState. The returned pointer must only be
// read or mutated from within a Mutate/operation callback — reading it
// concurrently with an in-flight operation races with the session queue.
func (s *Session) State() *podstate.PodState { return s.state }

// Drain hands every finalized dose (plus the still-live ones, for
// visibility) to handler; if handler reports the doses were durably stored,
// the finalized buffer is cleared (spec.md §6's "Dose export interface").
func (s *Session) Drain(handler func(doses []dose.Dose) bool) {
	s.execute(func() {
		s.state.Ledger.Drain(handler)
		s.notifyDelegate()
	})
}

// Bolus issues a bolus. See delivery.Operations.Bolus.
func (s *Session) Bolus(ctx context.Context, units float64, beep message.BeepType, reminderInterval time.Duration, now time.Time) delivery.DeliveryCommandResult {
	var res delivery.DeliveryCommandResult
	s.execute(func() {
		res = s.Delivery.Bolus(ctx, units, beep, reminderInterval, now)
		s.notifyDelegate()
	})
	return res
}

// SetTempBasal issues a temp basal. See delivery.Operations.SetTempBasal.
func (s *Session) SetTempBasal(ctx context.Context, rate float64, duration time.Duration, beep message.BeepType, now time.Time) delivery.DeliveryCommandResult {
	var res delivery.DeliveryCommandResult
	s.execute(func() {
		res = s.Delivery.SetTempBasal(ctx, rate, duration, beep, now)
		s.notifyDelegate()
	})
	return res
}

// CancelDelivery cancels in-progress deliveries. See delivery.Operations.CancelDelivery.
func (s *Session) CancelDelivery(ctx context.Context, dt message.DeliveryType, beep message.BeepType, now time.Time) delivery.CancelDeliveryResult {
	var res delivery.CancelDeliveryResult
	s.execute(func() {
		res = s.Delivery.CancelDelivery(ctx, dt, beep, now)
		s.notifyDelegate()
	})
	return res
}

// SetBasalSchedule programs the standing basal schedule. See delivery.Operations.SetBasalSchedule.
func (s *Session) SetBasalSchedule(ctx context.Context, schedule []float64, utcOffset time.Duration, beep message.BeepType, now time.Time) error {
	var err error
	s.execute(func() {
		err = s.Delivery.SetBasalSchedule(ctx, schedule, utcOffset, beep, now)
		s.notifyDelegate()
	})
	return err
}

// GetStatus reads the pod's routine status. See delivery.Operations.GetStatus.
func (s *Session) GetStatus(ctx context.Context, now time.Time) (*message.StatusResponseBlock, error) {
	var resp *message.StatusResponseBlock
	var err error
	s.execute(func() {
		resp, err = s.Delivery.GetStatus(ctx, now)
		s.notifyDelegate()
	})
	return resp, err
}

// GetDetailedStatus reads the pod's detailed status. See delivery.Operations.GetDetailedStatus.
func (s *Session) GetDetailedStatus(ctx context.Context, now time.Time) (*message.DetailedStatus, error) {
	var resp *message.DetailedStatus
	var err error
	s.execute(func() {
		resp, err = s.Delivery.GetDetailedStatus(ctx, now)
		s.notifyDelegate()
	})
	return resp, err
}

// SetTime cancels all delivery and reprograms the basal schedule under a new
// UTC offset. See delivery.Operations.SetTime.
func (s *Session) SetTime(ctx context.Context, utcOffset time.Duration, schedule []float64, beep message.BeepType, now time.Time) error {
	var err error
	s.execute(func() {
		err = s.Delivery.SetTime(ctx, utcOffset, schedule, beep, now)
		s.notifyDelegate()
	})
	return err
}

// DeactivatePod deactivates the pod. See delivery.Operations.DeactivatePod.
func (s *Session) DeactivatePod(ctx context.Context, now time.Time) error {
	var err error
	s.execute(func() {
		err = s.Delivery.DeactivatePod(ctx, now)
		s.notifyDelegate()
	})
	return err
}

// AcknowledgeAlerts clears alert slots. See delivery.Operations.AcknowledgeAlerts.
func (s *Session) AcknowledgeAlerts(ctx context.Context, alerts message.AlertSet, now time.Time) (message.AlertSet, error) {
	var active message.AlertSet
	var err error
	s.execute(func() {
		active, err = s.Delivery.AcknowledgeAlerts(ctx, alerts, now)
		s.notifyDelegate()
	})
	return active, err
}

// Prime starts (or resumes) priming. See setup.Sequencer.Prime.
func (s *Session) Prime(ctx context.Context, now time.Time) (time.Duration, error) {
	var remaining time.Duration
	var err error
	s.execute(func() {
		remaining, err = s.Setup.Prime(ctx, now)
		s.notifyDelegate()
	})
	return remaining, err
}

// ProgramInitialBasalSchedule installs the pod's first basal schedule. See
// setup.Sequencer.ProgramInitialBasalSchedule.
func (s *Session) ProgramInitialBasalSchedule(ctx context.Context, schedule []float64, utcOffset time.Duration, now time.Time) error {
	var err error
	s.execute(func() {
		err = s.Setup.ProgramInitialBasalSchedule(ctx, schedule, utcOffset, now)
		s.notifyDelegate()
	})
	return err
}

// InsertCannula begins (or resumes) cannula insertion. See setup.Sequencer.InsertCannula.
func (s *Session) InsertCannula(ctx context.Context, now time.Time) (time.Duration, error) {
	var remaining time.Duration
	var err error
	s.execute(func() {
		remaining, err = s.Setup.InsertCannula(ctx, now)
		s.notifyDelegate()
	})
	return remaining, err
}

// CheckInsertionCompleted polls for cannula-insertion completion. See
// setup.Sequencer.CheckInsertionCompleted.
func (s *Session) CheckInsertionCompleted(ctx context.Context, now time.Time) (bool, error) {
	var done bool
	var err error
	s.execute(func() {
		done, err = s.Setup.CheckInsertionCompleted(ctx, now)
		s.notifyDelegate()
	})
	return done, err
}

// Marshal serializes the session's PodState to its persisted blob form.
func (s *Session) Marshal() ([]byte, error) {
	var data []byte
	var err error
	s.execute(func() {
		data, err = s.state.Marshal()
	})
	return data, err
}
