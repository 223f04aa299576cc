package message

import (
	"encoding/binary"
	"time"
)

// DeliveryStatus reports which of {basal, tempBasal, bolus} are currently
// active plus whether the pod considers itself suspended, decoded from the
// StatusResponse delivery-status bits (spec.md §3/§4.3).
type DeliveryStatus struct {
	Basal     bool
	TempBasal bool
	Bolus     bool
	Suspended bool
}

func (d DeliveryStatus) encode() byte {
	var b byte
	if d.Basal {
		b |= 1 << 0
	}
	if d.TempBasal {
		b |= 1 << 1
	}
	if d.Bolus {
		b |= 1 << 2
	}
	if d.Suspended {
		b |= 1 << 3
	}
	return b
}

func decodeDeliveryStatus(b byte) DeliveryStatus {
	return DeliveryStatus{
		Basal:     b&(1<<0) != 0,
		TempBasal: b&(1<<1) != 0,
		Bolus:     b&(1<<2) != 0,
		Suspended: b&(1<<3) != 0,
	}
}

// DetailedStatus is the pod's decoded self-report returned inside a
// PodInfoResponse, spec.md §3: "decoded pod self-report including
// faultEventCode, bolusNotDelivered, podProgressStatus, cumulative insulin,
// reservoir, time-active, unacknowledged alerts."
type DetailedStatus struct {
	PodProgress        PodProgressStatus
	DeliveryStatus     DeliveryStatus
	FaultEventCode     uint8
	BolusNotDelivered  float64
	InsulinDelivered   float64
	ReservoirLevel     float64
	TimeActive         time.Duration
	UnacknowledgedAlerts AlertSet
	ReceiverLowGain    uint8
	RadioRSSI          int8
}

// IsFaulted reports whether faultEventCode names an actual fault condition.
// 0x00 is the "no fault" sentinel value, matching the pod's own convention.
func (d *DetailedStatus) IsFaulted() bool { return d.FaultEventCode != 0 }

func (d *DetailedStatus) encode() []byte {
	buf := make([]byte, 28)
	buf[0] = byte(d.PodProgress)
	buf[1] = d.DeliveryStatus.encode()
	buf[2] = d.FaultEventCode
	binary.BigEndian.PutUint64(buf[3:11], uint64(d.BolusNotDelivered*10000))
	binary.BigEndian.PutUint64(buf[11:19], uint64(d.InsulinDelivered*10000))
	binary.BigEndian.PutUint32(buf[19:23], uint32(d.ReservoirLevel*100))
	binary.BigEndian.PutUint32(buf[23:27], uint32(d.TimeActive/time.Minute))
	buf[27] = byte(d.UnacknowledgedAlerts)
	return buf
}

func decodeDetailedStatus(buf []byte) (*DetailedStatus, error) {
	if len(buf) < 28 {
		return nil, ErrTruncatedBlock
	}
	return &DetailedStatus{
		PodProgress:          PodProgressStatus(buf[0]),
		DeliveryStatus:       decodeDeliveryStatus(buf[1]),
		FaultEventCode:       buf[2],
		BolusNotDelivered:    float64(binary.BigEndian.Uint64(buf[3:11])) / 10000,
		InsulinDelivered:     float64(binary.BigEndian.Uint64(buf[11:19])) / 10000,
		ReservoirLevel:       float64(binary.BigEndian.Uint32(buf[19:23])) / 100,
		TimeActive:           time.Duration(binary.BigEndian.Uint32(buf[23:27])) * time.Minute,
		UnacknowledgedAlerts: AlertSet(buf[27]),
	}, nil
}
