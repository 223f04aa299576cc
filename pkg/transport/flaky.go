package transport

import (
	"context"

	"github.com/cenkalti/backoff"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/podlog"
	"github.com/pion/logging"
)

// FlakyLink wraps a MessageTransport and retries transient radio failures
// internally, per spec.md §5: "transport... encapsulates radio I/O and its
// own packet-level retries/timeouts" — the exchange layer above never sees
// these retries, only the eventual success or the context's error. The
// backoff has no elapsed-time limit, and errors from the inner transport
// are retried like simulated drops, so only ctx ends a failing send.
type FlakyLink struct {
	inner      MessageTransport
	shouldFail func(attempt int) bool
	newBackOff func() backoff.BackOff
	log        logging.LeveledLogger
}

// NewFlakyLink wraps inner. shouldFail is consulted before each delivery
// attempt (attempt is 0-based); when it returns true the attempt is
// dropped as if the radio link failed, and the wrapper retries per
// newBackOff's schedule. Pass a shouldFail that always returns false for a
// transport that never drops packets.
func NewFlakyLink(inner MessageTransport, shouldFail func(attempt int) bool, factory logging.LoggerFactory) *FlakyLink {
	return &FlakyLink{
		inner:      inner,
		shouldFail: shouldFail,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return b
		},
		log: podlog.New(factory, "transport.flaky"),
	}
}

func (f *FlakyLink) SendMessage(ctx context.Context, m *message.Message) (*message.Message, error) {
	attempt := 0
	var resp *message.Message

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		if f.shouldFail(attempt) {
			attempt++
			f.log.Debugf("simulated radio drop on attempt %d", attempt)
			return errDroppedPacket
		}
		var err error
		resp, err = f.inner.SendMessage(ctx, m)
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(f.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *FlakyLink) MessageNumber() uint8        { return f.inner.MessageNumber() }
func (f *FlakyLink) AssertOnSessionQueue()       { f.inner.AssertOnSessionQueue() }
func (f *FlakyLink) SetDelegate(d StateDelegate) { f.inner.SetDelegate(d) }
