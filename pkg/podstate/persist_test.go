package podstate

import (
	"testing"
	"time"

	"github.com/dosewise/podcomms/pkg/dose"
	"gopkg.in/yaml.v3"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New(0xABCD1234, 43620, 99, "1.2.0", "1.1.0", 7, now)
	s.AdvanceSetupProgress(Priming)
	if err := s.Ledger.RecordBolus(1.25, now, dose.Uncertain); err != nil {
		t.Fatalf("RecordBolus: %v", err)
	}
	activated := now.Add(-time.Hour)
	s.ActivatedAt = &activated

	data, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	restored, err := Unmarshal(data, now)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if restored.Address != s.Address {
		t.Errorf("address = %#x, want %#x", restored.Address, s.Address)
	}
	if restored.SetupProgress != s.SetupProgress {
		t.Errorf("setupProgress = %v, want %v", restored.SetupProgress, s.SetupProgress)
	}
	if restored.Nonce.CurrentNonce() != s.Nonce.CurrentNonce() {
		t.Error("nonce state did not round-trip")
	}
	if restored.Ledger.UnfinalizedBolus() == nil {
		t.Fatal("unfinalized bolus did not round-trip")
	}
	if restored.Ledger.UnfinalizedBolus().ProgrammedAmount != 1.25 {
		t.Errorf("bolus amount = %v, want 1.25", restored.Ledger.UnfinalizedBolus().ProgrammedAmount)
	}
}

func TestLegacySuspendedBoolMigration(t *testing.T) {
	legacy := true
	b := Blob{
		Address:   1,
		Suspended: &legacy,
	}
	data, err := yaml.Marshal(b)
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	restored, err := Unmarshal(data, now)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !restored.Suspend.IsSuspended() {
		t.Error("legacy suspended=true should migrate to Suspended state")
	}
	if !restored.Suspend.At.Equal(now) {
		t.Errorf("migration timestamp = %v, want %v", restored.Suspend.At, now)
	}
}
