package podstate

import (
	"time"

	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/nonce"
	"gopkg.in/yaml.v3"
)

// Blob is the self-describing key/value form PodState serializes to,
// spec.md §6: "the PodState serializes as a self-describing key/value
// blob." Every field PodState carries has a slot here so the round trip
// preserves everything except transient derived caches.
type Blob struct {
	Address   uint32 `yaml:"address"`
	PiVersion string `yaml:"piVersion"`
	PmVersion string `yaml:"pmVersion"`
	Lot       uint32 `yaml:"lot"`
	Tid       uint32 `yaml:"tid"`

	NonceState nonce.Snapshot `yaml:"nonceState"`

	ActivatedAt *time.Time `yaml:"activatedAt,omitempty"`
	ExpiresAt   *time.Time `yaml:"expiresAt,omitempty"`

	SetupProgress uint8 `yaml:"setupProgress"`

	SuspendTag uint8     `yaml:"suspendTag"`
	SuspendAt  time.Time `yaml:"suspendAt"`

	// Suspended is a legacy boolean form. If present (and SuspendTag/SuspendAt
	// absent) it is migrated to suspendState with the restore time as the
	// transition timestamp, per spec.md §6 and the Open Question in §9: the
	// original flags this migration timestamp as approximate.
	Suspended *bool `yaml:"suspended,omitempty"`

	Ledger dose.Snapshot `yaml:"ledger"`

	Fault *message.DetailedStatus `yaml:"fault,omitempty"`

	ConfiguredAlerts map[message.AlertSlot]PodAlert `yaml:"configuredAlerts,omitempty"`
	ActiveAlertSlots message.AlertSet               `yaml:"activeAlertSlots"`

	LastInsulinMeasurements *InsulinSnapshot `yaml:"lastInsulinMeasurements,omitempty"`

	Transport TransportState `yaml:"messageTransportState"`

	PrimeFinishTime     *time.Time `yaml:"primeFinishTime,omitempty"`
	SetupUnitsDelivered float64    `yaml:"setupUnitsDelivered"`
}

// ToBlob captures s's full state for persistence.
func (s *PodState) ToBlob() Blob {
	return Blob{
		Address:                 s.Address,
		PiVersion:               s.PiVersion,
		PmVersion:               s.PmVersion,
		Lot:                     s.Lot,
		Tid:                     s.Tid,
		NonceState:              s.Nonce.Snapshot(),
		ActivatedAt:             s.ActivatedAt,
		ExpiresAt:               s.ExpiresAt,
		SetupProgress:           uint8(s.SetupProgress),
		SuspendTag:              uint8(s.Suspend.Tag),
		SuspendAt:               s.Suspend.At,
		Ledger:                  s.Ledger.Snapshot(),
		Fault:                   s.Fault,
		ConfiguredAlerts:        s.ConfiguredAlerts,
		ActiveAlertSlots:        s.ActiveAlertSlots,
		LastInsulinMeasurements: s.LastInsulinMeasurements,
		Transport:               s.Transport,
		PrimeFinishTime:         s.PrimeFinishTime,
		SetupUnitsDelivered:     s.SetupUnitsDelivered,
	}
}

// FromBlob restores a PodState from a previously captured Blob. now is used
// only for the legacy suspended-bool migration timestamp.
func FromBlob(b Blob, now time.Time) *PodState {
	suspend := SuspendState{Tag: SuspendTag(b.SuspendTag), At: b.SuspendAt}
	if b.Suspended != nil && b.SuspendAt.IsZero() {
		if *b.Suspended {
			suspend = Suspended(now)
		} else {
			suspend = Resumed(now)
		}
	}

	configured := b.ConfiguredAlerts
	if configured == nil {
		configured = make(map[message.AlertSlot]PodAlert)
	}

	return &PodState{
		Address:                 b.Address,
		PiVersion:               b.PiVersion,
		PmVersion:               b.PmVersion,
		Lot:                     b.Lot,
		Tid:                     b.Tid,
		Nonce:                   nonce.FromSnapshot(b.NonceState),
		ActivatedAt:             b.ActivatedAt,
		ExpiresAt:               b.ExpiresAt,
		SetupProgress:           SetupProgress(b.SetupProgress),
		Suspend:                 suspend,
		Ledger:                  dose.FromSnapshot(b.Ledger),
		Fault:                   b.Fault,
		ConfiguredAlerts:        configured,
		ActiveAlertSlots:        b.ActiveAlertSlots,
		LastInsulinMeasurements: b.LastInsulinMeasurements,
		Transport:               b.Transport,
		PrimeFinishTime:         b.PrimeFinishTime,
		SetupUnitsDelivered:     b.SetupUnitsDelivered,
	}
}

// Marshal serializes s to its YAML blob form.
func (s *PodState) Marshal() ([]byte, error) {
	return yaml.Marshal(s.ToBlob())
}

// Unmarshal parses a YAML blob previously produced by Marshal (or a legacy
// blob carrying a boolean suspended field) into a PodState.
func Unmarshal(data []byte, now time.Time) (*PodState, error) {
	var b Blob
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return FromBlob(b, now), nil
}
