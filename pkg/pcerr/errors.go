// Package pcerr collects the error taxonomy spec.md §7 defines, shared
// across pkg/exchange, pkg/setup, pkg/delivery, pkg/fault and pkg/podsession
// so callers can errors.Is/errors.As against one vocabulary regardless of
// which layer raised the error. This mirrors the teacher's StatusError
// pattern (pkg/matter/dispatch.go): a typed struct with an Error() method
// for the cases that carry a payload, plain sentinel values otherwise.
package pcerr

import (
	"errors"

	"github.com/dosewise/podcomms/pkg/message"
)

// Sentinel errors with no payload.
var (
	// ErrNoPodPaired is returned when an operation requires an active pod.
	ErrNoPodPaired = errors.New("podcomms: no pod paired")

	// ErrInvalidData is returned for malformed wire data.
	ErrInvalidData = errors.New("podcomms: invalid data")

	// ErrEmptyResponse is returned when a response carries no blocks.
	ErrEmptyResponse = errors.New("podcomms: empty response")

	// ErrUnknownResponseType is returned when a response block type is unrecognized.
	ErrUnknownResponseType = errors.New("podcomms: unknown response type")

	// ErrNoResponse is returned when the transport timed out with no reply.
	ErrNoResponse = errors.New("podcomms: no response")

	// ErrPodAckedInsteadOfReturningResponse is returned when the pod
	// returned a bare ack where a data block was expected.
	ErrPodAckedInsteadOfReturningResponse = errors.New("podcomms: pod acked instead of returning response")

	// ErrUnexpectedPacketType is returned for a protocol violation below the Message level.
	ErrUnexpectedPacketType = errors.New("podcomms: unexpected packet type")

	// ErrUnfinalizedBolus is returned by a guard that requires no bolus in flight.
	ErrUnfinalizedBolus = errors.New("podcomms: unfinalized bolus in progress")

	// ErrUnfinalizedTempBasal is returned by a guard that requires no temp basal in flight.
	ErrUnfinalizedTempBasal = errors.New("podcomms: unfinalized temp basal in progress")

	// ErrPodSuspended is returned by a guard that requires the pod not be suspended.
	ErrPodSuspended = errors.New("podcomms: pod is suspended")

	// ErrNonceResyncFailed is returned when both send attempts in
	// pkg/exchange.Send are exhausted without a successful response.
	ErrNonceResyncFailed = errors.New("podcomms: nonce resync failed")

	// ErrPodChange indicates the previously paired pod was replaced (pairing-layer failure).
	ErrPodChange = errors.New("podcomms: pod change detected")

	// ErrRSSITooLow indicates a pairing-layer signal strength failure.
	ErrRSSITooLow = errors.New("podcomms: rssi too low")

	// ErrRSSITooHigh indicates a pairing-layer signal strength failure.
	ErrRSSITooHigh = errors.New("podcomms: rssi too high")

	// ErrActivationTimeExceeded specializes PodFaultError for the
	// activationTimeExceeded pod progress status (spec.md §4.7).
	ErrActivationTimeExceeded = errors.New("podcomms: pod activation time exceeded")
)

// InvalidAddressError is returned when a response's address does not match
// the paired pod's address (invariant N1) — crosstalk suspected.
type InvalidAddressError struct {
	Got      uint32
	Expected uint32
}

func (e *InvalidAddressError) Error() string {
	return "podcomms: invalid address"
}

// UnexpectedResponseError is returned when the exchange receives a response
// block type it did not ask for.
type UnexpectedResponseError struct {
	BlockType uint8
}

func (e *UnexpectedResponseError) Error() string {
	return "podcomms: unexpected response block type"
}

// RejectedMessageError wraps a nonretryable ErrorResponse from the pod.
type RejectedMessageError struct {
	ErrorCode uint8
}

func (e *RejectedMessageError) Error() string {
	return "podcomms: pod rejected message"
}

// CommsError wraps a transport-layer error. Callers may unwrap it to inspect
// the underlying transport failure.
type CommsError struct {
	Err error
}

func (e *CommsError) Error() string {
	return "podcomms: comms error: " + e.Err.Error()
}

func (e *CommsError) Unwrap() error { return e.Err }

// NewCommsError wraps err, or returns nil if err is nil.
func NewCommsError(err error) error {
	if err == nil {
		return nil
	}
	return &CommsError{Err: err}
}

// PodFaultError wraps the DetailedStatus captured when the fault handler
// first observes a faulted pod (spec.md §4.7's podFault(detailed)). Callers
// use errors.As to recover the payload; ErrActivationTimeExceeded is used
// instead for the activationTimeExceeded special case (spec.md §4.6).
type PodFaultError struct {
	Detailed *message.DetailedStatus
}

func (e *PodFaultError) Error() string {
	return "podcomms: pod fault"
}
