package message

import (
	"encoding/binary"
	"time"
)

// Block is one MessageBlock: blockType(u8) ‖ length(u8) ‖ body, per
// spec.md §6.
type Block interface {
	Type() BlockType
	// EncodeBody returns just the body bytes (header is added by the caller).
	EncodeBody() []byte
}

// NonceBearing is implemented by every command block that carries a 4-byte
// nonce immediately after its header. pkg/exchange rewrites these by
// interface, not by reflection.
type NonceBearing interface {
	Block
	Nonce() uint32
	SetNonce(uint32)
}

// InsulinPulse describes one scheduled delivery pulse train, shared by
// SetInsulinSchedule (bolus/prime/cannula-insertion programming) and
// BasalScheduleExtra.
type InsulinPulse struct {
	// Amount is the total volume in units.
	Amount float64
	// Interval is the pacing between pulses.
	Interval time.Duration
}

// SetInsulinScheduleBlock programs a bolus-shaped delivery: prime, cannula
// insertion, and normal boluses all use this block with different Amount.
type SetInsulinScheduleBlock struct {
	NonceValue uint32
	Schedule   InsulinPulse
}

func (b *SetInsulinScheduleBlock) Type() BlockType { return BlockSetInsulinSchedule }
func (b *SetInsulinScheduleBlock) Nonce() uint32    { return b.NonceValue }
func (b *SetInsulinScheduleBlock) SetNonce(n uint32) { b.NonceValue = n }
func (b *SetInsulinScheduleBlock) EncodeBody() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], b.NonceValue)
	binary.BigEndian.PutUint64(buf[4:12], uint64(b.Schedule.Amount*10000))
	binary.BigEndian.PutUint32(buf[12:16], uint32(b.Schedule.Interval/time.Millisecond))
	return buf
}

// BolusExtraBlock is the non-nonce-bearing follow-on block that accompanies
// a SetInsulinScheduleBlock bolus command, carrying beep/reminder options.
type BolusExtraBlock struct {
	Units            float64
	Beep             BeepType
	ReminderInterval time.Duration
}

func (b *BolusExtraBlock) Type() BlockType { return BlockBolusExtra }
func (b *BolusExtraBlock) EncodeBody() []byte {
	buf := make([]byte, 13)
	binary.BigEndian.PutUint64(buf[0:8], uint64(b.Units*10000))
	buf[8] = byte(b.Beep)
	binary.BigEndian.PutUint32(buf[9:13], uint32(b.ReminderInterval/time.Second))
	return buf
}

// TempBasalExtraBlock is the follow-on block for a temp basal command.
type TempBasalExtraBlock struct {
	Rate     float64
	Duration time.Duration
	Beep     BeepType
}

func (b *TempBasalExtraBlock) Type() BlockType { return BlockTempBasalExtra }
func (b *TempBasalExtraBlock) EncodeBody() []byte {
	buf := make([]byte, 13)
	binary.BigEndian.PutUint64(buf[0:8], uint64(b.Rate*10000))
	binary.BigEndian.PutUint32(buf[8:12], uint32(b.Duration/time.Minute))
	buf[12] = byte(b.Beep)
	return buf
}

// BasalScheduleExtraBlock programs the standing basal schedule.
type BasalScheduleExtraBlock struct {
	NonceValue uint32
	Schedule   []float64 // units/hour per half-hour segment
	UTCOffset  time.Duration
	Beep       BeepType
}

func (b *BasalScheduleExtraBlock) Type() BlockType  { return BlockBasalScheduleExtra }
func (b *BasalScheduleExtraBlock) Nonce() uint32     { return b.NonceValue }
func (b *BasalScheduleExtraBlock) SetNonce(n uint32) { b.NonceValue = n }
func (b *BasalScheduleExtraBlock) EncodeBody() []byte {
	buf := make([]byte, 4+len(b.Schedule)*4+4+1)
	off := 0
	binary.BigEndian.PutUint32(buf[off:off+4], b.NonceValue)
	off += 4
	for _, seg := range b.Schedule {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(seg*10000))
		off += 4
	}
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(b.UTCOffset/time.Minute))
	off += 4
	buf[off] = byte(b.Beep)
	return buf
}

// GetStatusBlock requests a StatusResponse, or a DetailedStatus
// PodInfoResponse when Detailed is set.
type GetStatusBlock struct {
	Detailed bool
}

func (b *GetStatusBlock) Type() BlockType { return BlockGetStatus }
func (b *GetStatusBlock) EncodeBody() []byte {
	if b.Detailed {
		return []byte{1}
	}
	return []byte{0}
}

// CancelDeliveryBlock cancels one or more in-progress deliveries.
type CancelDeliveryBlock struct {
	NonceValue uint32
	Delivery   DeliveryType
	Beep       BeepType
}

func (b *CancelDeliveryBlock) Type() BlockType  { return BlockCancelDelivery }
func (b *CancelDeliveryBlock) Nonce() uint32     { return b.NonceValue }
func (b *CancelDeliveryBlock) SetNonce(n uint32) { b.NonceValue = n }
func (b *CancelDeliveryBlock) EncodeBody() []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint32(buf[0:4], b.NonceValue)
	buf[4] = byte(b.Delivery)
	buf[5] = byte(b.Beep)
	return buf
}

// ConfigureAlertsBlock arms/disarms one or more of the pod's eight alert slots.
type ConfigureAlertsBlock struct {
	NonceValue uint32
	Alerts     []PodAlertConfig
}

// PodAlertConfig configures a single alert slot.
type PodAlertConfig struct {
	Slot         AlertSlot
	ActivateAt   time.Duration // relative to now or to pod activation, by AlertKind
	Kind         AlertKind
	BeepRepeat   uint8
}

// AlertKind distinguishes an alert whose trigger is relative to activation
// time vs one relative to now (e.g. finishSetupReminder).
type AlertKind uint8

const (
	AlertRelativeToNow AlertKind = iota
	AlertRelativeToActivation
)

func (b *ConfigureAlertsBlock) Type() BlockType  { return BlockConfigureAlerts }
func (b *ConfigureAlertsBlock) Nonce() uint32     { return b.NonceValue }
func (b *ConfigureAlertsBlock) SetNonce(n uint32) { b.NonceValue = n }
func (b *ConfigureAlertsBlock) EncodeBody() []byte {
	buf := make([]byte, 4+len(b.Alerts)*7)
	off := 0
	binary.BigEndian.PutUint32(buf[off:off+4], b.NonceValue)
	off += 4
	for _, a := range b.Alerts {
		buf[off] = byte(a.Slot)
		binary.BigEndian.PutUint32(buf[off+1:off+5], uint32(a.ActivateAt/time.Second))
		buf[off+5] = byte(a.Kind)
		buf[off+6] = a.BeepRepeat
		off += 7
	}
	return buf
}

// AcknowledgeAlertBlock clears the given alert slots.
type AcknowledgeAlertBlock struct {
	NonceValue uint32
	Alerts     AlertSet
}

func (b *AcknowledgeAlertBlock) Type() BlockType  { return BlockAcknowledgeAlert }
func (b *AcknowledgeAlertBlock) Nonce() uint32     { return b.NonceValue }
func (b *AcknowledgeAlertBlock) SetNonce(n uint32) { b.NonceValue = n }
func (b *AcknowledgeAlertBlock) EncodeBody() []byte {
	return []byte{byte(b.NonceValue >> 24), byte(b.NonceValue >> 16), byte(b.NonceValue >> 8), byte(b.NonceValue), byte(b.Alerts)}
}

// FaultConfigBlock configures the pod's $6x fault family behavior during
// pairing (spec.md §4.5 prime()).
type FaultConfigBlock struct {
	NonceValue uint32
	Tab5Sub16  uint8
	Tab5Sub17  uint8
}

func (b *FaultConfigBlock) Type() BlockType  { return BlockFaultConfig }
func (b *FaultConfigBlock) Nonce() uint32     { return b.NonceValue }
func (b *FaultConfigBlock) SetNonce(n uint32) { b.NonceValue = n }
func (b *FaultConfigBlock) EncodeBody() []byte {
	return []byte{
		byte(b.NonceValue >> 24), byte(b.NonceValue >> 16), byte(b.NonceValue >> 8), byte(b.NonceValue),
		b.Tab5Sub16, b.Tab5Sub17,
	}
}

// BeepConfigBlock configures standalone confirmation beeps unrelated to a
// delivery command. No operation in this module sends it.
type BeepConfigBlock struct {
	Beep BeepType
}

func (b *BeepConfigBlock) Type() BlockType { return BlockBeepConfig }
func (b *BeepConfigBlock) EncodeBody() []byte {
	return []byte{byte(b.Beep)}
}

// DeactivatePodBlock requests pod deactivation.
type DeactivatePodBlock struct {
	NonceValue uint32
}

func (b *DeactivatePodBlock) Type() BlockType  { return BlockDeactivatePod }
func (b *DeactivatePodBlock) Nonce() uint32     { return b.NonceValue }
func (b *DeactivatePodBlock) SetNonce(n uint32) { b.NonceValue = n }
func (b *DeactivatePodBlock) EncodeBody() []byte {
	return []byte{byte(b.NonceValue >> 24), byte(b.NonceValue >> 16), byte(b.NonceValue >> 8), byte(b.NonceValue)}
}

// StatusResponseBlock is the pod's routine status self-report.
type StatusResponseBlock struct {
	DeliveryStatus    DeliveryStatus
	PodProgress       PodProgressStatus
	InsulinDelivered  float64
	// BolusNotDelivered is the undelivered remainder of the most recently
	// cancelled or fault-terminated bolus, mirrored from DetailedStatus so
	// cancelDelivery can reconcile the ledger without a second round trip.
	BolusNotDelivered float64
	ReservoirLevel    float64
	TimeActive        time.Duration
	ActiveAlertSlots  AlertSet
}

func (b *StatusResponseBlock) Type() BlockType { return BlockStatusResponse }
func (b *StatusResponseBlock) EncodeBody() []byte {
	buf := make([]byte, 32)
	buf[0] = b.DeliveryStatus.encode()
	buf[1] = byte(b.PodProgress)
	binary.BigEndian.PutUint64(buf[2:10], uint64(b.InsulinDelivered*10000))
	binary.BigEndian.PutUint64(buf[10:18], uint64(b.BolusNotDelivered*10000))
	binary.BigEndian.PutUint64(buf[18:26], uint64(b.ReservoirLevel*10000))
	binary.BigEndian.PutUint32(buf[26:30], uint32(b.TimeActive/time.Minute))
	buf[30] = byte(b.ActiveAlertSlots)
	return buf
}

// PodInfoResponseBlock wraps a detailed status payload (spec.md's
// DetailedStatus). Other PodInfo sub-types (e.g. pulse log) are represented
// by leaving Detailed nil and populating Raw.
type PodInfoResponseBlock struct {
	Detailed *DetailedStatus
	Raw      []byte // used for non-DetailedStatus sub-types such as pulse log reads
}

func (b *PodInfoResponseBlock) Type() BlockType { return BlockPodInfoResponse }
func (b *PodInfoResponseBlock) EncodeBody() []byte {
	if b.Detailed != nil {
		return append([]byte{0x02}, b.Detailed.encode()...)
	}
	return append([]byte{0xFF}, b.Raw...)
}

// AsDetailedStatus unwraps a PodInfoResponseBlock as a DetailedStatus,
// mirroring spec.md §4.6's getDetailedStatus validation step.
func (b *PodInfoResponseBlock) AsDetailedStatus() (*DetailedStatus, bool) {
	if b.Detailed == nil {
		return nil, false
	}
	return b.Detailed, true
}

// ErrorResponseBlock is the pod's negative acknowledgement, discriminated
// into badNonce/nonretryable by Kind (spec.md §6).
type ErrorResponseBlock struct {
	Kind          ErrorResponseKind
	SyncWord      uint16 // valid when Kind == ErrorBadNonce
	ErrorCode     uint8  // valid when Kind == ErrorNonretryable
	FaultEventCode uint8
	PodProgress   PodProgressStatus
}

func (b *ErrorResponseBlock) Type() BlockType { return BlockErrorResponse }
func (b *ErrorResponseBlock) EncodeBody() []byte {
	buf := make([]byte, 6)
	buf[0] = byte(b.Kind)
	binary.BigEndian.PutUint16(buf[1:3], b.SyncWord)
	buf[3] = b.ErrorCode
	buf[4] = b.FaultEventCode
	buf[5] = byte(b.PodProgress)
	return buf
}
