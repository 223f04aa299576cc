package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/pcerr"
	"github.com/dosewise/podcomms/pkg/podstate"
	"github.com/dosewise/podcomms/pkg/transport"
)

func newTestPod(now time.Time) *podstate.PodState {
	return podstate.New(0x1234, 43620, 0, "1.0", "1.0", 0, now)
}

func TestSendSuccess(t *testing.T) {
	now := time.Now()
	s := newTestPod(now)
	pod := transport.NewSimulatedPod(func(m *message.Message) (*message.Message, error) {
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	}, nil)
	pod.EnterSessionQueue()

	resp, err := Send[*message.StatusResponseBlock](context.Background(), s, pod, config.Default(), []message.Block{&message.GetStatusBlock{}}, false, now)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp == nil {
		t.Fatal("nil response")
	}
}

// Scenario 2: bad-nonce resync round trip.
func TestSendBadNonceResyncRetries(t *testing.T) {
	now := time.Now()
	s := newTestPod(now)

	var capturedNonces []uint32
	calls := 0
	pod := transport.NewSimulatedPod(func(m *message.Message) (*message.Message, error) {
		calls++
		nb := m.NonceBearingBlocks()
		capturedNonces = append(capturedNonces, nb[0].Nonce())
		if calls == 1 {
			return &message.Message{
				Address: m.Address,
				Blocks:  []message.Block{&message.ErrorResponseBlock{Kind: message.ErrorBadNonce, SyncWord: 0x3A5C}},
			}, nil
		}
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	}, nil)
	pod.EnterSessionQueue()

	cmd := &message.SetInsulinScheduleBlock{Schedule: message.InsulinPulse{Amount: 1.0}}
	_, err := Send[*message.StatusResponseBlock](context.Background(), s, pod, config.Default(), []message.Block{cmd}, false, now)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if capturedNonces[1] != s.Nonce.CurrentNonce() {
		t.Errorf("retried nonce = %#x, want current nonce %#x after resync", capturedNonces[1], s.Nonce.CurrentNonce())
	}
	if cmd.NonceValue != capturedNonces[1] {
		t.Errorf("block's stored nonce = %#x, want %#x", cmd.NonceValue, capturedNonces[1])
	}
}

func TestSendNonretryableReturnsCertainFailure(t *testing.T) {
	now := time.Now()
	s := newTestPod(now)
	pod := transport.NewSimulatedPod(func(m *message.Message) (*message.Message, error) {
		return &message.Message{
			Address: m.Address,
			Blocks:  []message.Block{&message.ErrorResponseBlock{Kind: message.ErrorNonretryable, ErrorCode: 9}},
		}, nil
	}, nil)
	pod.EnterSessionQueue()

	_, err := Send[*message.StatusResponseBlock](context.Background(), s, pod, config.Default(), []message.Block{&message.GetStatusBlock{}}, false, now)
	var re *pcerr.RejectedMessageError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RejectedMessageError", err)
	}
	if re.ErrorCode != 9 {
		t.Errorf("errorCode = %d, want 9", re.ErrorCode)
	}
}

func TestSendFaultCapturesAndReturnsPodFaultError(t *testing.T) {
	now := time.Now()
	s := newTestPod(now)
	detailed := &message.DetailedStatus{FaultEventCode: 0x14}
	pod := transport.NewSimulatedPod(func(m *message.Message) (*message.Message, error) {
		return &message.Message{Address: m.Address, Fault: detailed}, nil
	}, nil)
	pod.EnterSessionQueue()

	_, err := Send[*message.StatusResponseBlock](context.Background(), s, pod, config.Default(), []message.Block{&message.GetStatusBlock{}}, false, now)
	var pf *pcerr.PodFaultError
	if !errors.As(err, &pf) {
		t.Fatalf("err = %v, want *PodFaultError", err)
	}
	if !s.IsFaulted() {
		t.Error("expected podstate to capture the fault")
	}
}

func TestSendUnexpectedResponseType(t *testing.T) {
	now := time.Now()
	s := newTestPod(now)
	pod := transport.NewSimulatedPod(func(m *message.Message) (*message.Message, error) {
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	}, nil)
	pod.EnterSessionQueue()

	_, err := Send[*message.PodInfoResponseBlock](context.Background(), s, pod, config.Default(), []message.Block{&message.GetStatusBlock{}}, false, now)
	var ur *pcerr.UnexpectedResponseError
	if !errors.As(err, &ur) {
		t.Fatalf("err = %v, want *UnexpectedResponseError", err)
	}
}
