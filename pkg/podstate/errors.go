package podstate

import "errors"

// ErrInvalidAddress is returned by Validate* guards per invariant N1: a
// response address mismatch never mutates state.
var ErrInvalidAddress = errors.New("podstate: invalid address")
