package message

import (
	"encoding/binary"
	"time"

	"github.com/dosewise/podcomms/pkg/crc16"
)

// Encode frames m per spec.md §6: address(u32 BE) ‖ seqAndFlags(u8) ‖
// length(u8) ‖ blocks… ‖ crc16, where each block is blockType(u8) ‖
// length(u8) ‖ body, and seqAndFlags packs the sequence number in the top
// six bits and expectFollowOn in the low bit.
func Encode(m *Message) ([]byte, error) {
	var body []byte
	for _, b := range m.Blocks {
		enc := b.EncodeBody()
		if len(enc) > 255 {
			return nil, ErrTruncatedBlock
		}
		body = append(body, byte(b.Type()), byte(len(enc)))
		body = append(body, enc...)
	}
	if len(body) > 255 {
		return nil, ErrTruncatedFrame
	}

	frame := make([]byte, 0, 6+len(body))
	frame = binary.BigEndian.AppendUint32(frame, m.Address)
	frame = append(frame, seqAndFlags(m.SequenceNum, m.ExpectFollowOn))
	frame = append(frame, byte(len(body)))
	frame = append(frame, body...)

	sum := crc16.Checksum(frame)
	frame = binary.BigEndian.AppendUint16(frame, sum)
	return frame, nil
}

func seqAndFlags(seq uint8, expectFollowOn bool) byte {
	b := seq << 2
	if expectFollowOn {
		b |= 1
	}
	return b
}

// Decode parses a framed wire message, validating its trailing CRC16 and
// dispatching each block body to its concrete type by BlockType. Only the
// response blocks and the SetInsulinSchedule, BolusExtra, CancelDelivery,
// AcknowledgeAlert and DeactivatePod commands decode; any other block type
// fails the whole message with ErrUnknownBlockType.
func Decode(raw []byte) (*Message, error) {
	if len(raw) < 6 {
		return nil, ErrTruncatedFrame
	}
	payload, sum := raw[:len(raw)-2], raw[len(raw)-2:]
	if crc16.Checksum(payload) != binary.BigEndian.Uint16(sum) {
		return nil, ErrChecksumMismatch
	}

	addr := binary.BigEndian.Uint32(payload[0:4])
	seqFlags := payload[4]
	length := int(payload[5])
	body := payload[6:]
	if len(body) < length {
		return nil, ErrTruncatedFrame
	}
	body = body[:length]

	m := &Message{
		Address:        addr,
		SequenceNum:    seqFlags >> 2,
		ExpectFollowOn: seqFlags&1 != 0,
	}

	for len(body) > 0 {
		if len(body) < 2 {
			return nil, ErrTruncatedBlock
		}
		bt := BlockType(body[0])
		blen := int(body[1])
		body = body[2:]
		if len(body) < blen {
			return nil, ErrTruncatedBlock
		}
		blk, err := decodeBlock(bt, body[:blen])
		if err != nil {
			return nil, err
		}
		m.Blocks = append(m.Blocks, blk)
		body = body[blen:]
	}

	return m, nil
}

func decodeBlock(t BlockType, buf []byte) (Block, error) {
	switch t {
	case BlockStatusResponse:
		return decodeStatusResponse(buf)
	case BlockPodInfoResponse:
		return decodePodInfoResponse(buf)
	case BlockErrorResponse:
		return decodeErrorResponse(buf)
	case BlockSetInsulinSchedule:
		return decodeSetInsulinSchedule(buf)
	case BlockCancelDelivery:
		return decodeCancelDelivery(buf)
	case BlockAcknowledgeAlert:
		return decodeAcknowledgeAlert(buf)
	case BlockDeactivatePod:
		return decodeDeactivatePod(buf)
	case BlockBolusExtra:
		if len(buf) < 13 {
			return nil, ErrTruncatedBlock
		}
		return &BolusExtraBlock{
			Units:            float64(binary.BigEndian.Uint64(buf[0:8])) / 10000,
			Beep:             BeepType(buf[8]),
			ReminderInterval: time.Duration(binary.BigEndian.Uint32(buf[9:13])) * time.Second,
		}, nil
	default:
		return nil, ErrUnknownBlockType
	}
}

func decodeStatusResponse(buf []byte) (*StatusResponseBlock, error) {
	if len(buf) < 31 {
		return nil, ErrTruncatedBlock
	}
	return &StatusResponseBlock{
		DeliveryStatus:    decodeDeliveryStatus(buf[0]),
		PodProgress:       PodProgressStatus(buf[1]),
		InsulinDelivered:  float64(binary.BigEndian.Uint64(buf[2:10])) / 10000,
		BolusNotDelivered: float64(binary.BigEndian.Uint64(buf[10:18])) / 10000,
		ReservoirLevel:    float64(binary.BigEndian.Uint64(buf[18:26])) / 10000,
		TimeActive:        time.Duration(binary.BigEndian.Uint32(buf[26:30])) * time.Minute,
		ActiveAlertSlots:  AlertSet(buf[30]),
	}, nil
}

func decodePodInfoResponse(buf []byte) (*PodInfoResponseBlock, error) {
	if len(buf) < 1 {
		return nil, ErrTruncatedBlock
	}
	switch buf[0] {
	case 0x02:
		ds, err := decodeDetailedStatus(buf[1:])
		if err != nil {
			return nil, err
		}
		return &PodInfoResponseBlock{Detailed: ds}, nil
	default:
		return &PodInfoResponseBlock{Raw: append([]byte(nil), buf[1:]...)}, nil
	}
}

func decodeErrorResponse(buf []byte) (*ErrorResponseBlock, error) {
	if len(buf) < 6 {
		return nil, ErrTruncatedBlock
	}
	return &ErrorResponseBlock{
		Kind:           ErrorResponseKind(buf[0]),
		SyncWord:       binary.BigEndian.Uint16(buf[1:3]),
		ErrorCode:      buf[3],
		FaultEventCode: buf[4],
		PodProgress:    PodProgressStatus(buf[5]),
	}, nil
}

func decodeSetInsulinSchedule(buf []byte) (*SetInsulinScheduleBlock, error) {
	if len(buf) < 16 {
		return nil, ErrTruncatedBlock
	}
	return &SetInsulinScheduleBlock{
		NonceValue: binary.BigEndian.Uint32(buf[0:4]),
		Schedule: InsulinPulse{
			Amount:   float64(binary.BigEndian.Uint64(buf[4:12])) / 10000,
			Interval: time.Duration(binary.BigEndian.Uint32(buf[12:16])) * time.Millisecond,
		},
	}, nil
}

func decodeCancelDelivery(buf []byte) (*CancelDeliveryBlock, error) {
	if len(buf) < 6 {
		return nil, ErrTruncatedBlock
	}
	return &CancelDeliveryBlock{
		NonceValue: binary.BigEndian.Uint32(buf[0:4]),
		Delivery:   DeliveryType(buf[4]),
		Beep:       BeepType(buf[5]),
	}, nil
}

func decodeAcknowledgeAlert(buf []byte) (*AcknowledgeAlertBlock, error) {
	if len(buf) < 5 {
		return nil, ErrTruncatedBlock
	}
	return &AcknowledgeAlertBlock{
		NonceValue: binary.BigEndian.Uint32(buf[0:4]),
		Alerts:     AlertSet(buf[4]),
	}, nil
}

func decodeDeactivatePod(buf []byte) (*DeactivatePodBlock, error) {
	if len(buf) < 4 {
		return nil, ErrTruncatedBlock
	}
	return &DeactivatePodBlock{NonceValue: binary.BigEndian.Uint32(buf[0:4])}, nil
}
