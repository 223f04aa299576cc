// Package podlog wraps github.com/pion/logging so every long-lived
// component in this module (the session, the transport double, the demo
// binary) shares one leveled-logger convention instead of each rolling
// its own.
package podlog

import "github.com/pion/logging"

// Scope is the pion/logging scope name used when no factory is supplied
// by the caller.
const Scope = "podcomms"

// New returns a leveled logger for the given component name, using factory
// if non-nil or a disabled default logger factory otherwise. Every
// constructor in this module (podsession.New, transport.NewSimulatedPod,
// cmd/podsim) follows this same nil-safe pattern.
func New(factory logging.LoggerFactory, component string) logging.LeveledLogger {
	if factory == nil {
		df := logging.NewDefaultLoggerFactory()
		df.DefaultLogLevel = logging.LogLevelDisabled
		factory = df
	}
	return factory.NewLogger(Scope + "." + component)
}
