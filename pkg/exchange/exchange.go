// Package exchange implements Message Exchange (spec.md §4.4): the sole
// entry point for pod I/O, responsible for nonce bookkeeping, the
// bad-nonce resync retry, and translating the pod's reply into either a
// typed response or one of pkg/pcerr's errors.
package exchange

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/crypto"
	"github.com/dosewise/podcomms/pkg/fault"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/pcerr"
	"github.com/dosewise/podcomms/pkg/podlog"
	"github.com/dosewise/podcomms/pkg/podstate"
	"github.com/dosewise/podcomms/pkg/transport"
	"github.com/pion/logging"
)

var exchangeLog = podlog.New(nil, "exchange")

// SetLoggerFactory rebinds the package-level logger used by Send. Callers
// that want exchange's nonce-resync/retry activity on their own logging
// pipeline (pkg/podsession.New does) call this once during setup.
func SetLoggerFactory(factory logging.LoggerFactory) {
	exchangeLog = podlog.New(factory, "exchange")
}

func nonceFingerprint(n uint32) string {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	return crypto.Fingerprint(buf[:])
}

// Send is the sole entry point for pod I/O (spec.md §4.4's send<T>). blocks
// is the command's block list; if any carry a nonce, the nonce advances
// once before the first attempt and is rewritten into those same blocks on
// a badNonce retry. T identifies the expected first response block type;
// Send returns a *pcerr.UnexpectedResponseError if the reply's first block
// doesn't match.
func Send[T message.Block](ctx context.Context, s *podstate.PodState, tr transport.MessageTransport, cfg config.Config, blocks []message.Block, expectFollowOn bool, now time.Time) (T, error) {
	var zero T

	msg := &message.Message{Address: s.Address, ExpectFollowOn: expectFollowOn, Blocks: blocks}
	nonceBlocks := msg.NonceBearingBlocks()
	if len(nonceBlocks) > 0 {
		next := s.Nonce.AdvanceToNextNonce()
		for _, nb := range nonceBlocks {
			nb.SetNonce(next)
		}
	}
	sentNonce := s.Nonce.CurrentNonce()
	if len(nonceBlocks) > 0 {
		sentNonce = nonceBlocks[0].Nonce()
	}

	for attempt := 0; attempt < 2; attempt++ {
		msg.SequenceNum = tr.MessageNumber()

		resp, err := tr.SendMessage(ctx, msg)
		if err != nil {
			return zero, pcerr.NewCommsError(err)
		}
		if resp.Address != s.Address {
			return zero, &pcerr.InvalidAddressError{Got: resp.Address, Expected: s.Address}
		}

		if resp.Fault != nil {
			// No PulseLogReader is wired at this layer: exchange sits below
			// pkg/delivery and must not import it to read a detailed status
			// back, so the postmortem read only happens at the delivery.go
			// call site, which already holds the Transport/Config it needs.
			fault.Capture(ctx, s, resp.Fault, cfg, now, nil)
			return zero, fault.Error(resp.Fault)
		}
		if len(resp.Blocks) == 0 {
			return zero, pcerr.ErrEmptyResponse
		}

		first := resp.Blocks[0]
		if t, ok := first.(T); ok {
			return t, nil
		}

		if er, ok := first.(*message.ErrorResponseBlock); ok {
			switch er.Kind {
			case message.ErrorBadNonce:
				exchangeLog.Debugf("bad nonce %s, resyncing", nonceFingerprint(sentNonce))
				s.Nonce.Resync(er.SyncWord, sentNonce, msg.SequenceNum)
				s.Nonce.AdvanceToNextNonce()
				next := s.Nonce.CurrentNonce()
				for _, nb := range nonceBlocks {
					nb.SetNonce(next)
				}
				sentNonce = next
				continue
			case message.ErrorNonretryable:
				return zero, &pcerr.RejectedMessageError{ErrorCode: er.ErrorCode}
			}
		}

		return zero, &pcerr.UnexpectedResponseError{BlockType: uint8(first.Type())}
	}

	return zero, pcerr.ErrNonceResyncFailed
}
