package podstate

import (
	"testing"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/message"
)

func newTestState(now time.Time) *PodState {
	return New(0x1234, 43620, 0, "1.0", "1.0", 0, now)
}

// Scenario 3: uncertain bolus reconciled to success.
func TestUncertainBolusReconciledToSuccess(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestState(now)
	start := now.Add(-1500 * time.Millisecond)
	if err := s.Ledger.RecordBolus(1.5, start, dose.Uncertain); err != nil {
		t.Fatalf("RecordBolus: %v", err)
	}

	sr := &message.StatusResponseBlock{DeliveryStatus: message.DeliveryStatus{Bolus: true}}
	s.UpdateFromStatusResponse(sr, config.Default(), now)

	b := s.Ledger.UnfinalizedBolus()
	if b == nil {
		t.Fatal("bolus record was dropped, want upgraded")
	}
	if b.Certainty != dose.Certain {
		t.Errorf("certainty = %v, want certain", b.Certainty)
	}
}

// Scenario 4: uncertain bolus reconciled to failure.
func TestUncertainBolusReconciledToFailure(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestState(now)
	if err := s.Ledger.RecordBolus(1.5, now, dose.Uncertain); err != nil {
		t.Fatalf("RecordBolus: %v", err)
	}

	sr := &message.StatusResponseBlock{DeliveryStatus: message.DeliveryStatus{Bolus: false}}
	s.UpdateFromStatusResponse(sr, config.Default(), now)

	if s.Ledger.UnfinalizedBolus() != nil {
		t.Error("bolus record should have been dropped")
	}
}

// Scenario 7: suspend/resume finalization pairing (N7).
func TestSuspendResumeFinalization(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestState(now)
	t1 := now.Add(-time.Hour)
	t2 := now.Add(-time.Minute)

	if err := s.Ledger.RecordSuspend(t1, dose.Certain); err != nil {
		t.Fatalf("RecordSuspend: %v", err)
	}
	if err := s.Ledger.RecordResume(t2, dose.Certain); err != nil {
		t.Fatalf("RecordResume: %v", err)
	}

	sr := &message.StatusResponseBlock{DeliveryStatus: message.DeliveryStatus{Suspended: false}}
	s.UpdateFromStatusResponse(sr, config.Default(), now)

	if s.Ledger.UnfinalizedSuspend() != nil || s.Ledger.UnfinalizedResume() != nil {
		t.Fatal("suspend/resume were not cleared")
	}
	finalized := s.Ledger.FinalizedDoses()
	if len(finalized) != 2 {
		t.Fatalf("finalized doses = %d, want 2", len(finalized))
	}
	if finalized[0].Kind != dose.Suspend || finalized[1].Kind != dose.Resume {
		t.Errorf("finalized order = [%v, %v], want [suspend, resume]", finalized[0].Kind, finalized[1].Kind)
	}
}

// Scenario 6: fault captures dose state once.
func TestFaultCapturesDoseStateOnce(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestState(now)
	if err := s.Ledger.RecordBolus(2.0, now.Add(-time.Minute), dose.Certain); err != nil {
		t.Fatalf("RecordBolus: %v", err)
	}

	remaining := 0.4
	if err := s.Ledger.CancelBolus(now, remaining); err != nil {
		t.Fatalf("CancelBolus: %v", err)
	}

	fault := &message.DetailedStatus{FaultEventCode: 0x14, BolusNotDelivered: remaining}
	if !s.SetFault(fault) {
		t.Fatal("first SetFault should succeed")
	}

	finalized := s.Ledger.FinalizedDoses()
	if len(finalized) != 1 {
		t.Fatalf("finalized doses = %d, want 1", len(finalized))
	}
	if finalized[0].UnitsNotDelivered == nil || *finalized[0].UnitsNotDelivered != remaining {
		t.Errorf("unitsNotDelivered = %v, want %v", finalized[0].UnitsNotDelivered, remaining)
	}

	secondFault := &message.DetailedStatus{FaultEventCode: 0x99}
	if s.SetFault(secondFault) {
		t.Error("fault should be sticky")
	}
	if s.Fault.FaultEventCode != 0x14 {
		t.Errorf("fault mutated, faultEventCode = %#x", s.Fault.FaultEventCode)
	}
}
