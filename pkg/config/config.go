// Package config holds the tunable timing and dosing constants the rest of
// this module treats as fixed policy, following the same
// struct-with-Default-constructor shape as the teacher's session.Params /
// session.DefaultParams.
package config

import "time"

// Config bundles every constant spec.md §6 names. Zero-value fields left
// unset by a caller are filled in by WithDefaults.
type Config struct {
	// PrimeUnits is the insulin volume delivered during prime.
	PrimeUnits float64
	// PrimeDuration is how long a full prime cycle is estimated to take.
	PrimeDuration time.Duration
	// SecondsPerPrimePulse is the delivery pacing during prime.
	SecondsPerPrimePulse time.Duration

	// CannulaInsertionUnits is the insulin volume delivered during cannula insertion.
	CannulaInsertionUnits float64
	// SecondsPerCannulaPulse is the delivery pacing during cannula insertion.
	SecondsPerCannulaPulse time.Duration

	// SecondsPerBolusPulse is the delivery pacing for a normal bolus pulse (0.05U/pulse).
	SecondsPerBolusPulse time.Duration
	// BolusPulseUnits is the insulin volume of a single bolus pulse.
	BolusPulseUnits float64

	// NominalPodLife is the pod's rated service life from activation.
	NominalPodLife time.Duration
	// ServiceDuration is the total window the pod will keep operating past activation,
	// including the grace period after NominalPodLife.
	ServiceDuration time.Duration
	// EndOfServiceImminentWindow is how long before ServiceDuration elapses the
	// "shutdown imminent" alarm is armed.
	EndOfServiceImminentWindow time.Duration
	// ExpirationAdvisoryWindow is how long before NominalPodLife elapses the
	// expiration advisory alert is armed.
	ExpirationAdvisoryWindow time.Duration

	// CommsOffset is the negative offset applied when timestamping a bolus start,
	// compensating for radio/firmware latency between send and pod acceptance.
	CommsOffset time.Duration

	// ExpiryDriftMargin is the invariant-N3 tolerance: a newly computed
	// expiresAt may only move later by more than this margin.
	ExpiryDriftMargin time.Duration
}

// Default returns the spec-mandated constants.
func Default() Config {
	return Config{
		PrimeUnits:                 2.6,
		PrimeDuration:              55 * time.Second,
		SecondsPerPrimePulse:       1 * time.Second,
		CannulaInsertionUnits:      0.5,
		SecondsPerCannulaPulse:     1 * time.Second,
		SecondsPerBolusPulse:       2 * time.Second,
		BolusPulseUnits:            0.05,
		NominalPodLife:             72 * time.Hour,
		ServiceDuration:            80 * time.Hour,
		EndOfServiceImminentWindow: 1 * time.Hour,
		ExpirationAdvisoryWindow:   8 * time.Hour,
		CommsOffset:                -1500 * time.Millisecond,
		ExpiryDriftMargin:          1 * time.Minute,
	}
}

// WithDefaults returns a copy of c with every zero-value field replaced by
// the spec-mandated default, mirroring session.Params.WithDefaults.
func (c Config) WithDefaults() Config {
	def := Default()
	if c.PrimeUnits == 0 {
		c.PrimeUnits = def.PrimeUnits
	}
	if c.PrimeDuration == 0 {
		c.PrimeDuration = def.PrimeDuration
	}
	if c.SecondsPerPrimePulse == 0 {
		c.SecondsPerPrimePulse = def.SecondsPerPrimePulse
	}
	if c.CannulaInsertionUnits == 0 {
		c.CannulaInsertionUnits = def.CannulaInsertionUnits
	}
	if c.SecondsPerCannulaPulse == 0 {
		c.SecondsPerCannulaPulse = def.SecondsPerCannulaPulse
	}
	if c.SecondsPerBolusPulse == 0 {
		c.SecondsPerBolusPulse = def.SecondsPerBolusPulse
	}
	if c.BolusPulseUnits == 0 {
		c.BolusPulseUnits = def.BolusPulseUnits
	}
	if c.NominalPodLife == 0 {
		c.NominalPodLife = def.NominalPodLife
	}
	if c.ServiceDuration == 0 {
		c.ServiceDuration = def.ServiceDuration
	}
	if c.EndOfServiceImminentWindow == 0 {
		c.EndOfServiceImminentWindow = def.EndOfServiceImminentWindow
	}
	if c.ExpirationAdvisoryWindow == 0 {
		c.ExpirationAdvisoryWindow = def.ExpirationAdvisoryWindow
	}
	if c.CommsOffset == 0 {
		c.CommsOffset = def.CommsOffset
	}
	if c.ExpiryDriftMargin == 0 {
		c.ExpiryDriftMargin = def.ExpiryDriftMargin
	}
	return c
}
