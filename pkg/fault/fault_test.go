package fault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dosewise/podcomms/pkg/config"
	"github.com/dosewise/podcomms/pkg/dose"
	"github.com/dosewise/podcomms/pkg/message"
	"github.com/dosewise/podcomms/pkg/pcerr"
	"github.com/dosewise/podcomms/pkg/podstate"
)

// recordingReader is a fault.PulseLogReader test double that records how
// many times it was asked to read, without making any real call.
type recordingReader struct {
	reads int
}

func (r *recordingReader) ReadPulseLog(ctx context.Context, now time.Time) (*message.DetailedStatus, error) {
	r.reads++
	return &message.DetailedStatus{}, nil
}

func TestCaptureIsOneShot(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := podstate.New(1, 43620, 0, "1.0", "1.0", 0, now)
	if err := s.Ledger.RecordBolus(2.0, now.Add(-time.Minute), dose.Certain); err != nil {
		t.Fatalf("RecordBolus: %v", err)
	}

	reader := &recordingReader{}
	d1 := &message.DetailedStatus{FaultEventCode: 0x14, BolusNotDelivered: 0.4}
	if !Capture(context.Background(), s, d1, config.Default(), now, reader) {
		t.Fatal("first Capture should report new")
	}
	if s.Ledger.UnfinalizedBolus() != nil {
		t.Error("bolus should have been finalized by the cancel")
	}
	finalized := s.Ledger.FinalizedDoses()
	if len(finalized) != 1 || finalized[0].UnitsNotDelivered == nil || *finalized[0].UnitsNotDelivered != 0.4 {
		t.Fatalf("finalized doses = %+v, want one bolus with 0.4 undelivered", finalized)
	}
	if reader.reads != 1 {
		t.Errorf("reader.reads = %d, want 1 on first capture", reader.reads)
	}

	d2 := &message.DetailedStatus{FaultEventCode: 0x99}
	if Capture(context.Background(), s, d2, config.Default(), now, reader) {
		t.Error("second Capture should not report new")
	}
	if s.Fault.FaultEventCode != 0x14 {
		t.Errorf("fault was overwritten: %#x", s.Fault.FaultEventCode)
	}
	if reader.reads != 1 {
		t.Errorf("reader.reads = %d, want still 1 after the second (non-new) capture", reader.reads)
	}
}

func TestCaptureToleratesNilReader(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := podstate.New(1, 43620, 0, "1.0", "1.0", 0, now)
	d := &message.DetailedStatus{FaultEventCode: 0x14}
	if !Capture(context.Background(), s, d, config.Default(), now, nil) {
		t.Fatal("Capture with a nil reader should still report new")
	}
}

func TestErrorSpecializesActivationTimeExceeded(t *testing.T) {
	d := &message.DetailedStatus{PodProgress: message.PodProgressActivationTimeExceeded}
	if !errors.Is(Error(d), pcerr.ErrActivationTimeExceeded) {
		t.Error("expected ErrActivationTimeExceeded")
	}

	other := &message.DetailedStatus{PodProgress: message.PodProgressRunningBelowMinVolume, FaultEventCode: 5}
	var pf *pcerr.PodFaultError
	if !errors.As(Error(other), &pf) {
		t.Fatal("expected *pcerr.PodFaultError")
	}
	if pf.Detailed != other {
		t.Error("PodFaultError did not carry the detailed status")
	}
}
