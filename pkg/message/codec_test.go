package message

import (
	"errors"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := &Message{
		Address:        0x1F0B3A7C,
		SequenceNum:    5,
		ExpectFollowOn: true,
		Blocks: []Block{
			&SetInsulinScheduleBlock{
				NonceValue: 0xDEADBEEF,
				Schedule:   InsulinPulse{Amount: 2.5, Interval: 2 * time.Second},
			},
			&BolusExtraBlock{Units: 2.5, Beep: BeepBipBip},
		},
	}

	raw, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Address != m.Address {
		t.Errorf("address = %#x, want %#x", got.Address, m.Address)
	}
	if got.SequenceNum != m.SequenceNum {
		t.Errorf("seq = %d, want %d", got.SequenceNum, m.SequenceNum)
	}
	if !got.ExpectFollowOn {
		t.Error("expectFollowOn lost in round trip")
	}
	if len(got.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(got.Blocks))
	}
	sis, ok := got.Blocks[0].(*SetInsulinScheduleBlock)
	if !ok {
		t.Fatalf("blocks[0] type = %T", got.Blocks[0])
	}
	if sis.NonceValue != 0xDEADBEEF {
		t.Errorf("nonce = %#x, want %#x", sis.NonceValue, 0xDEADBEEF)
	}
	if sis.Schedule.Amount != 2.5 {
		t.Errorf("amount = %v, want 2.5", sis.Schedule.Amount)
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	m := &Message{Address: 1, Blocks: []Block{&GetStatusBlock{}}}
	raw, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF

	_, err = Decode(raw)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestDecodeTruncatedFrame(t *testing.T) {
	_, err := Decode([]byte{0, 1, 2})
	if !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("err = %v, want ErrTruncatedFrame", err)
	}
}

func TestNonceBearingBlocksRewrite(t *testing.T) {
	m := &Message{
		Blocks: []Block{
			&SetInsulinScheduleBlock{NonceValue: 1},
			&BolusExtraBlock{},
			&CancelDeliveryBlock{NonceValue: 1},
		},
	}
	nonceBlocks := m.NonceBearingBlocks()
	if len(nonceBlocks) != 2 {
		t.Fatalf("nonce-bearing blocks = %d, want 2", len(nonceBlocks))
	}
	for _, nb := range nonceBlocks {
		nb.SetNonce(0xCAFEBABE)
	}
	if m.Blocks[0].(*SetInsulinScheduleBlock).NonceValue != 0xCAFEBABE {
		t.Error("SetInsulinScheduleBlock nonce not rewritten")
	}
	if m.Blocks[2].(*CancelDeliveryBlock).NonceValue != 0xCAFEBABE {
		t.Error("CancelDeliveryBlock nonce not rewritten")
	}
}

func TestDetailedStatusIsFaulted(t *testing.T) {
	d := &DetailedStatus{FaultEventCode: 0}
	if d.IsFaulted() {
		t.Error("zero fault event code should not be faulted")
	}
	d.FaultEventCode = 0x14
	if !d.IsFaulted() {
		t.Error("nonzero fault event code should be faulted")
	}
}

func TestPodInfoResponseRoundTrip(t *testing.T) {
	ds := &DetailedStatus{
		PodProgress:       PodProgressRunningAboveMinVolume,
		FaultEventCode:    0,
		BolusNotDelivered: 0.5,
		InsulinDelivered:  12.75,
		ReservoirLevel:    48.5,
		TimeActive:        90 * time.Minute,
	}
	m := &Message{Blocks: []Block{&PodInfoResponseBlock{Detailed: ds}}}

	raw, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pi, ok := got.PodInfoResponse()
	if !ok {
		t.Fatal("missing PodInfoResponse")
	}
	decoded, ok := pi.AsDetailedStatus()
	if !ok {
		t.Fatal("AsDetailedStatus returned false")
	}
	if decoded.InsulinDelivered != ds.InsulinDelivered {
		t.Errorf("insulinDelivered = %v, want %v", decoded.InsulinDelivered, ds.InsulinDelivered)
	}
	if decoded.PodProgress != ds.PodProgress {
		t.Errorf("podProgress = %v, want %v", decoded.PodProgress, ds.PodProgress)
	}
}
