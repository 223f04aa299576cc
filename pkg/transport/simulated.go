package transport

import (
	"context"
	"sync"

	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/podlog"
	"github.com/pion/logging"
)

// Handler processes one outbound Message and produces the pod's response,
// or an error if the simulated radio link itself failed (as opposed to a
// protocol-level ErrorResponse, which is a successful transport round trip
// carrying a negative payload).
type Handler func(m *message.Message) (*message.Message, error)

// SimulatedPod is an in-memory MessageTransport double standing in for the
// radio bridge and pod firmware. Test code and cmd/podsim install a Handler
// to script specific response sequences (bad nonce, faults, timeouts).
type SimulatedPod struct {
	mu       sync.Mutex
	handler  Handler
	seqNum   uint8
	delegate StateDelegate
	state    MessageTransportState
	onQueue  bool
	log      logging.LeveledLogger
}

// NewSimulatedPod builds a SimulatedPod driven by handler.
func NewSimulatedPod(handler Handler, factory logging.LoggerFactory) *SimulatedPod {
	return &SimulatedPod{
		handler: handler,
		log:     podlog.New(factory, "transport.simulated"),
	}
}

// SetHandler swaps the response handler, letting a test script a sequence
// of scenarios against the same transport instance.
func (p *SimulatedPod) SetHandler(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// EnterSessionQueue marks the simulated pod as executing on the session
// queue, satisfying AssertOnSessionQueue for tests that call it directly
// rather than through pkg/podsession.
func (p *SimulatedPod) EnterSessionQueue() { p.onQueue = true }

func (p *SimulatedPod) SendMessage(ctx context.Context, m *message.Message) (*message.Message, error) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()

	p.log.Debugf("sendMessage: address=%#x seq=%d blocks=%d", m.Address, m.SequenceNum, len(m.Blocks))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := h(m)
	if err != nil {
		p.log.Warnf("sendMessage failed: %v", err)
		return nil, err
	}

	p.mu.Lock()
	p.seqNum++
	p.state.MessageSeqNum = p.seqNum
	p.state.PacketNumber++
	state := p.state
	delegate := p.delegate
	p.mu.Unlock()

	if delegate != nil {
		delegate.MessageTransportStateDidChange(state)
	}

	return resp, nil
}

func (p *SimulatedPod) MessageNumber() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seqNum
}

func (p *SimulatedPod) AssertOnSessionQueue() {
	if !p.onQueue {
		panic("transport: AssertOnSessionQueue called off the session queue")
	}
}

func (p *SimulatedPod) SetDelegate(d StateDelegate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delegate = d
}
