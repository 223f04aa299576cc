package transport

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures the packet-loss/latency/duplication behavior
// Pipe applies to every frame it carries, mirroring a flaky radio link
// without a real network. ReorderRate mirrors the field name pkg/transport's
// teacher carries on its own NetworkCondition but, like that original, isn't
// wired into writeWithCondition below — reordering a single in-flight
// request/response round trip has no observable effect under this module's
// synchronous MessageTransport contract, so there's nothing to apply it to.
type NetworkCondition struct {
	// DropRate is the probability of silently dropping a frame (0.0-1.0).
	DropRate float64

	// DelayMin is the minimum delay added before a frame is delivered.
	DelayMin time.Duration

	// DelayMax is the maximum delay; actual delay is uniform between
	// DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of delivering a frame twice
	// (0.0-1.0), exercising the pod's nonce-based duplicate rejection.
	DuplicateRate float64

	// ReorderRate and ReorderDelay are carried for parity with the
	// condition this is grounded on; see the type comment.
	ReorderRate  float64
	ReorderDelay time.Duration
}

// Pipe is an in-memory, datagram-preserving duplex link built on
// pion/transport/v3's test.Bridge, with NetworkCondition fault injection
// applied on every write. PipeLink uses it to carry encoded
// pkg/message frames the way FlakyLink carries whole SendMessage attempts,
// but at the byte/packet level the teacher's own Pipe operates at.
type Pipe struct {
	bridge *test.Bridge

	mu              sync.RWMutex
	condition       NetworkCondition
	rng             *rand.Rand
	closed          bool
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a Pipe with auto-processing enabled at a 1ms tick, the
// same default the teacher's Pipe uses.
func NewPipe() *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     true,
		processInterval: time.Millisecond,
		stopCh:          make(chan struct{}),
	}
	p.startAutoProcess()
	return p
}

func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// SetCondition configures the fault injection applied to frames written in
// either direction.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the currently configured NetworkCondition.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// Conn0 returns the connection for endpoint 0 (conventionally the session
// core's side).
func (p *Pipe) Conn0() net.Conn { return p.bridge.GetConn0() }

// Conn1 returns the connection for endpoint 1 (conventionally the
// simulated pod firmware's side).
func (p *Pipe) Conn1() net.Conn { return p.bridge.GetConn1() }

// writeWithCondition applies the pipe's configured drop/delay/duplicate
// behavior, then writes frame to conn. Grounded on the teacher's
// PipePacketConn.WriteTo (pkg/transport/pipe.go): drop is a silent no-op
// rather than an error, since a real dropped radio packet never reaches the
// peer at all and the caller finds out only via its own read timeout.
func (p *Pipe) writeWithCondition(conn net.Conn, frame []byte) (int, error) {
	p.mu.RLock()
	cond := p.condition
	rng := p.rng
	p.mu.RUnlock()

	if cond.DropRate > 0 && rng.Float64() < cond.DropRate {
		return len(frame), nil
	}

	if cond.DelayMax > 0 {
		delay := cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			delay += time.Duration(rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	if cond.DuplicateRate > 0 && rng.Float64() < cond.DuplicateRate {
		if _, err := conn.Write(frame); err != nil {
			return 0, err
		}
	}

	return conn.Write(frame)
}

// Close closes both endpoints and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()

	err0 := p.bridge.GetConn0().Close()
	err1 := p.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}
