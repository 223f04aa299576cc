package transport

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dosewise/podcomms/pkg/message"
)

func TestPipeLinkRoundTrip(t *testing.T) {
	link := NewPipeLink(func(m *message.Message) (*message.Message, error) {
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	}, nil)
	defer link.Close()
	link.EnterSessionQueue()

	resp, err := link.SendMessage(context.Background(), &message.Message{Address: 1})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, ok := resp.StatusResponse(); !ok {
		t.Fatal("expected a StatusResponse block")
	}
}

func TestPipeLinkDropRateTimesOut(t *testing.T) {
	link := NewPipeLink(func(m *message.Message) (*message.Message, error) {
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	}, nil)
	defer link.Close()
	link.SetCondition(NetworkCondition{DropRate: 1.0})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := link.SendMessage(ctx, &message.Message{Address: 1}); err == nil {
		t.Fatal("expected a timeout error with DropRate 1.0, got nil")
	}
}

func TestPipeLinkDuplicateRateInvokesHandlerTwice(t *testing.T) {
	var invocations atomic.Int32
	responded := make(chan struct{}, 2)
	link := NewPipeLink(func(m *message.Message) (*message.Message, error) {
		invocations.Add(1)
		responded <- struct{}{}
		return &message.Message{Address: m.Address, Blocks: []message.Block{&message.StatusResponseBlock{}}}, nil
	}, nil)
	defer link.Close()
	link.SetCondition(NetworkCondition{DuplicateRate: 1.0})

	if _, err := link.SendMessage(context.Background(), &message.Message{Address: 1}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	<-responded // the first delivery, already answered
	select {
	case <-responded:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for the duplicate delivery to reach the firmware handler")
	}
	if got := invocations.Load(); got != 2 {
		t.Errorf("handler invocations = %d, want 2 (the pod firmware sees the duplicated command too)", got)
	}
}
