package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/podstate"
	"github.com/dosewise/podcomms/pkg/transport"
)

func newOps(handler transport.Handler) (*Operations, *podstate.PodState) {
	now := time.Now()
	s := podstate.New(0x1234, 43620, 0, "1.0", "1.0", 0, now)
	pod := transport.NewSimulatedPod(handler, nil)
	pod.EnterSessionQueue()
	return New(s, pod, config.Default()), s
}

func TestBolusSuccess(t *testing.T) {
	ops, s := newOps(func(m *message.Message) (*message.Message, error) {
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	})

	res := ops.Bolus(context.Background(), 1.5, message.BeepBipBip, 0, time.Now())
	if !res.IsSuccess() {
		t.Fatalf("result = %+v, want success", res)
	}
	if s.Ledger.UnfinalizedBolus() == nil {
		t.Fatal("bolus not recorded")
	}
	if s.Ledger.UnfinalizedBolus().Certainty != dose.Certain {
		t.Error("bolus should be certain on send success")
	}
}

func TestBolusGuardsAgainstDuplicate(t *testing.T) {
	ops, s := newOps(nil)
	now := time.Now()
	if err := s.Ledger.RecordBolus(1.0, now, dose.Certain); err != nil {
		t.Fatalf("RecordBolus: %v", err)
	}

	res := ops.Bolus(context.Background(), 1.5, message.NoBeep, 0, now)
	if res.Kind != CertainFailure {
		t.Fatalf("kind = %v, want CertainFailure", res.Kind)
	}
}

// Scenario 3: uncertain bolus reconciled to success via a delivery-layer poll.
func TestBolusUncertainReconciledToSuccessViaPoll(t *testing.T) {
	calls := 0
	ops, s := newOps(func(m *message.Message) (*message.Message, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("no response")
		}
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{DeliveryStatus: message.DeliveryStatus{Bolus: true}}}}, nil
	})

	res := ops.Bolus(context.Background(), 1.5, message.NoBeep, 0, time.Now())
	if !res.IsSuccess() {
		t.Fatalf("result = %+v, want success", res)
	}
	if s.Ledger.UnfinalizedBolus() == nil || s.Ledger.UnfinalizedBolus().Certainty != dose.Certain {
		t.Error("bolus should be recorded certain after poll confirms bolusing")
	}
}

// Scenario 4: uncertain bolus reconciled to failure.
func TestBolusUncertainReconciledToFailure(t *testing.T) {
	calls := 0
	ops, s := newOps(func(m *message.Message) (*message.Message, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("no response")
		}
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{DeliveryStatus: message.DeliveryStatus{Bolus: false}}}}, nil
	})

	res := ops.Bolus(context.Background(), 1.5, message.NoBeep, 0, time.Now())
	if res.Kind != CertainFailure {
		t.Fatalf("kind = %v, want CertainFailure", res.Kind)
	}
	if s.Ledger.UnfinalizedBolus() != nil {
		t.Error("bolus should not be recorded on confirmed non-delivery")
	}
}

func TestBolusUncertainWhenPollAlsoFails(t *testing.T) {
	ops, s := newOps(func(m *message.Message) (*message.Message, error) {
		return nil, errors.New("no response")
	})

	res := ops.Bolus(context.Background(), 1.5, message.NoBeep, 0, time.Now())
	if res.Kind != UncertainFailure {
		t.Fatalf("kind = %v, want UncertainFailure", res.Kind)
	}
	if s.Ledger.UnfinalizedBolus() == nil || s.Ledger.UnfinalizedBolus().Certainty != dose.Uncertain {
		t.Error("bolus should be recorded uncertain when the poll itself fails")
	}
}

// Scenario 5: cancel-all with beep emits two commands.
func TestCancelAllWithBeepEmitsTwoCommands(t *testing.T) {
	var seenBlocks []message.Block
	ops, _ := newOps(func(m *message.Message) (*message.Message, error) {
		seenBlocks = m.Blocks
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	})

	res := ops.CancelDelivery(context.Background(), message.DeliveryAll, message.BeepBipBip, time.Now())
	if !res.IsSuccess() {
		t.Fatalf("result = %+v, want success", res)
	}
	if len(seenBlocks) != 2 {
		t.Fatalf("blocks sent = %d, want 2", len(seenBlocks))
	}
	first, ok := seenBlocks[0].(*message.CancelDeliveryBlock)
	if !ok || first.Delivery != message.DeliveryAllButBasal || first.Beep != message.NoBeep {
		t.Errorf("first block = %+v, want {allButBasal, noBeep}", first)
	}
	second, ok := seenBlocks[1].(*message.CancelDeliveryBlock)
	if !ok || second.Delivery != message.DeliveryBasal || second.Beep != message.BeepBipBip {
		t.Errorf("second block = %+v, want {basal, bipBip}", second)
	}
}

func TestCancelDeliverySingleCommandWithoutBeep(t *testing.T) {
	var seenBlocks []message.Block
	ops, _ := newOps(func(m *message.Message) (*message.Message, error) {
		seenBlocks = m.Blocks
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	})

	ops.CancelDelivery(context.Background(), message.DeliveryAll, message.NoBeep, time.Now())
	if len(seenBlocks) != 1 {
		t.Fatalf("blocks sent = %d, want 1", len(seenBlocks))
	}
}

func TestDeactivatePodSwallowsPodFault(t *testing.T) {
	ops, s := newOps(func(m *message.Message) (*message.Message, error) {
		if _, ok := m.Blocks[0].(*message.DeactivatePodBlock); !ok {
			return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
		}
		return &message.Message{Address: m.Address, Fault: &message.DetailedStatus{FaultEventCode: 0x14}}, nil
	})
	s.SetupProgress = podstate.Completed

	if err := ops.DeactivatePod(context.Background(), time.Now()); err != nil {
		t.Fatalf("DeactivatePod: %v, want nil (fault swallowed)", err)
	}
}
