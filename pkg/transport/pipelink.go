package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/podlog"
	"github.com/pion/logging"
)

// PipeLink is a MessageTransport that carries wire-encoded messages (the
// same pkg/message.Encode/Decode framing a real radio link would) across a
// Pipe, so NetworkCondition's drop/delay/duplicate behavior exercises the
// codec and pkg/exchange's retry/resync logic exactly as a flaky real link
// would, rather than the message-level pass/fail SimulatedPod/FlakyLink
// apply. A background goroutine plays the pod firmware's side, decoding
// each frame and handing it to handler the same way SimulatedPod does. A
// frame that carries a block type pkg/message cannot decode never reaches
// handler: the firmware side skips it and the caller's read waits until its
// context deadline.
type PipeLink struct {
	pipe *Pipe
	conn net.Conn

	mu       sync.Mutex
	seqNum   uint8
	delegate StateDelegate
	state    MessageTransportState
	onQueue  bool
	log      logging.LeveledLogger
}

// NewPipeLink creates a PipeLink backed by a fresh Pipe and starts the
// firmware-side goroutine that answers frames with handler.
func NewPipeLink(handler Handler, factory logging.LoggerFactory) *PipeLink {
	p := NewPipe()
	l := &PipeLink{
		pipe: p,
		conn: p.Conn0(),
		log:  podlog.New(factory, "transport.pipe"),
	}
	go l.runFirmware(handler, p.Conn1())
	return l
}

// SetCondition configures the network fault injection applied to every
// frame this link carries, in both directions.
func (l *PipeLink) SetCondition(cond NetworkCondition) { l.pipe.SetCondition(cond) }

// EnterSessionQueue marks the link as executing on the session queue,
// satisfying AssertOnSessionQueue for tests that call it directly.
func (l *PipeLink) EnterSessionQueue() { l.onQueue = true }

func (l *PipeLink) SendMessage(ctx context.Context, m *message.Message) (*message.Message, error) {
	frame, err := message.Encode(m)
	if err != nil {
		return nil, err
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = l.conn.SetDeadline(dl)
	} else {
		_ = l.conn.SetDeadline(time.Time{})
	}

	l.log.Debugf("sendMessage: address=%#x seq=%d blocks=%d", m.Address, m.SequenceNum, len(m.Blocks))

	if _, err := l.pipe.writeWithCondition(l.conn, frame); err != nil {
		return nil, err
	}

	buf := make([]byte, 512)
	n, err := l.conn.Read(buf)
	if err != nil {
		l.log.Warnf("sendMessage failed: %v", err)
		return nil, err
	}
	resp, err := message.Decode(buf[:n])
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.seqNum++
	l.state.MessageSeqNum = l.seqNum
	l.state.PacketNumber++
	state := l.state
	delegate := l.delegate
	l.mu.Unlock()

	if delegate != nil {
		delegate.MessageTransportStateDidChange(state)
	}

	return resp, nil
}

// runFirmware plays the pod's side of the pipe: decode a frame, hand it to
// handler, encode and write back whatever it returns. A handler error
// mirrors a real pod that never answers a packet it couldn't process; the
// caller's Read simply times out against its own context deadline.
func (l *PipeLink) runFirmware(handler Handler, conn net.Conn) {
	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		m, err := message.Decode(buf[:n])
		if err != nil {
			continue
		}
		resp, err := handler(m)
		if err != nil {
			continue
		}
		frame, err := message.Encode(resp)
		if err != nil {
			continue
		}
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (l *PipeLink) MessageNumber() uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seqNum
}

func (l *PipeLink) AssertOnSessionQueue() {
	if !l.onQueue {
		panic("transport: AssertOnSessionQueue called off the session queue")
	}
}

func (l *PipeLink) SetDelegate(d StateDelegate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delegate = d
}

// Close tears down the underlying Pipe, stopping the firmware goroutine.
func (l *PipeLink) Close() error { return l.pipe.Close() }
