// Package delivery implements the Delivery Operations (spec.md §4.6): the
// dosing and status commands a session issues against a paired pod. Every
// operation that can affect dosing returns a three-valued result instead of
// an error, so the certainty of a failure is visible in the type system
// rather than left to the caller to infer from an exception's message —
// conflating "definitely did not happen" with "may have happened" here is a
// patient-safety bug, not a style issue.
package delivery

import "github.com/dosewise/podcomms/pkg/message"

// ResultKind discriminates the three DeliveryCommandResult/CancelDeliveryResult
// variants.
type ResultKind uint8

const (
	Success ResultKind = iota
	CertainFailure
	UncertainFailure
)

func (k ResultKind) String() string {
	switch k {
	case Success:
		return "success"
	case CertainFailure:
		return "certainFailure"
	case UncertainFailure:
		return "uncertainFailure"
	default:
		return "unknown"
	}
}

// DeliveryCommandResult is the outcome of a dosing command. Exactly one of
// Status or Err is populated, selected by Kind.
type DeliveryCommandResult struct {
	Kind   ResultKind
	Status *message.StatusResponseBlock
	Err    error
}

// SuccessResult builds a Success result carrying the pod's status.
func SuccessResult(status *message.StatusResponseBlock) DeliveryCommandResult {
	return DeliveryCommandResult{Kind: Success, Status: status}
}

// CertainFailureResult builds a CertainFailure result: the command's
// disposition is knowable without a status round-trip.
func CertainFailureResult(err error) DeliveryCommandResult {
	return DeliveryCommandResult{Kind: CertainFailure, Err: err}
}

// UncertainFailureResult builds an UncertainFailure result: the transport
// failed after the command may have reached the pod.
func UncertainFailureResult(err error) DeliveryCommandResult {
	return DeliveryCommandResult{Kind: UncertainFailure, Err: err}
}

// IsSuccess reports whether the command is known to have succeeded.
func (r DeliveryCommandResult) IsSuccess() bool { return r.Kind == Success }

// CancelDeliveryResult mirrors DeliveryCommandResult for cancelDelivery,
// which reports the post-cancel delivery status rather than a full status
// response on success.
type CancelDeliveryResult struct {
	Kind           ResultKind
	DeliveryStatus *message.DeliveryStatus
	Err            error
}

// CancelSuccessResult builds a Success CancelDeliveryResult.
func CancelSuccessResult(ds *message.DeliveryStatus) CancelDeliveryResult {
	return CancelDeliveryResult{Kind: Success, DeliveryStatus: ds}
}

// CancelCertainFailureResult builds a CertainFailure CancelDeliveryResult.
func CancelCertainFailureResult(err error) CancelDeliveryResult {
	return CancelDeliveryResult{Kind: CertainFailure, Err: err}
}

// CancelUncertainFailureResult builds an UncertainFailure CancelDeliveryResult.
func CancelUncertainFailureResult(err error) CancelDeliveryResult {
	return CancelDeliveryResult{Kind: UncertainFailure, Err: err}
}

// IsSuccess reports whether the cancel is known to have succeeded.
func (r CancelDeliveryResult) IsSuccess() bool { return r.Kind == Success }
