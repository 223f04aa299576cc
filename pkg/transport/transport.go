// Package transport defines the MessageTransport interface the session core
// consumes (spec.md §6, "Transport interface") plus a simulated-pod double
// usable by tests and cmd/podsim.
package transport

import (
	"context"

	"github.com/dosewise/podcomms/pkg/message"
)

// MessageTransportState is the packet/message counter pair the transport
// reports through its delegate whenever it changes, so the session can
// persist it. Mirrors podstate.TransportState; kept as its own type here so
// this package does not import podstate.
type MessageTransportState struct {
	PacketNumber  uint32
	MessageSeqNum uint8
}

// StateDelegate is notified whenever a transport's MessageTransportState
// changes.
type StateDelegate interface {
	MessageTransportStateDidChange(MessageTransportState)
}

// MessageTransport is the blocking send/receive interface the core
// consumes (spec.md §6). A single call encapsulates a full round trip
// including the transport's own packet-level retries/timeouts; on a
// protocol-level error the returned Message's first block is an
// ErrorResponse, or its Fault variant applies — this package's simulated
// pod and pkg/exchange both honor that contract.
type MessageTransport interface {
	// SendMessage blocks until a response is received or ctx is done.
	SendMessage(ctx context.Context, m *message.Message) (*message.Message, error)

	// MessageNumber returns the next sequence number to stamp on an
	// outbound Message; the transport owns wraparound.
	MessageNumber() uint8

	// AssertOnSessionQueue is a debug assertion hook mirroring the one
	// pkg/podsession exposes; a transport that itself schedules work (e.g.
	// retries) should call back into it before touching shared state.
	AssertOnSessionQueue()

	// SetDelegate registers the callback fired on MessageTransportState
	// changes. Passing nil clears the delegate.
	SetDelegate(StateDelegate)
}
