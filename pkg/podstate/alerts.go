package podstate

import (
	"time"

	"github.com/dosewise/podcomms/pkg/message"
)

// PodAlert is a configured alert slot's parameters, mirroring
// message.PodAlertConfig but kept in podstate's own vocabulary so
// persistence doesn't leak wire-layer types.
type PodAlert struct {
	Kind         message.AlertKind
	ActivateAt   time.Duration
	BeepRepeat   uint8
}
