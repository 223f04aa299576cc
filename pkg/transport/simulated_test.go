package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/dosewise/podcomms/pkg/message"
)

func TestSimulatedPodRoundTrip(t *testing.T) {
	pod := NewSimulatedPod(func(m *message.Message) (*message.Message, error) {
		return &message.Message{
			Address: m.Address,
			Blocks:  []message.Block{&message.StatusResponseBlock{}},
		}, nil
	}, nil)
	pod.EnterSessionQueue()

	resp, err := pod.SendMessage(context.Background(), &message.Message{Address: 1})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, ok := resp.StatusResponse(); !ok {
		t.Fatal("expected a StatusResponse block")
	}
	if pod.MessageNumber() != 1 {
		t.Errorf("messageNumber = %d, want 1", pod.MessageNumber())
	}
}

func TestSimulatedPodAssertOnSessionQueue(t *testing.T) {
	pod := NewSimulatedPod(nil, nil)
	defer func() {
		if recover() == nil {
			t.Error("expected panic when not on session queue")
		}
	}()
	pod.AssertOnSessionQueue()
}

func TestFlakyLinkRetriesThenSucceeds(t *testing.T) {
	pod := NewSimulatedPod(func(m *message.Message) (*message.Message, error) {
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	}, nil)
	pod.EnterSessionQueue()

	attempts := 0
	link := NewFlakyLink(pod, func(attempt int) bool {
		attempts++
		return attempt < 2
	}, nil)

	resp, err := link.SendMessage(context.Background(), &message.Message{Address: 1})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, ok := resp.StatusResponse(); !ok {
		t.Fatal("expected a StatusResponse block")
	}
	if attempts < 2 {
		t.Errorf("attempts = %d, want at least 2", attempts)
	}
}

func TestSimulatedPodHandlerError(t *testing.T) {
	wantErr := errors.New("radio silence")
	pod := NewSimulatedPod(func(m *message.Message) (*message.Message, error) {
		return nil, wantErr
	}, nil)
	pod.EnterSessionQueue()

	_, err := pod.SendMessage(context.Background(), &message.Message{Address: 1})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
