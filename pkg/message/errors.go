package message

import "errors"

// Errors returned by Encode/Decode. These are wire-framing failures, distinct
// from the protocol-level errors pkg/pcerr defines.
var (
	// ErrChecksumMismatch is returned when a decoded frame's trailing CRC16
	// does not match the computed checksum over the preceding bytes.
	ErrChecksumMismatch = errors.New("message: checksum mismatch")

	// ErrTruncatedFrame is returned when a frame is shorter than its
	// declared length, or shorter than the minimum header size.
	ErrTruncatedFrame = errors.New("message: truncated frame")

	// ErrTruncatedBlock is returned when a block's body is shorter than its
	// type requires.
	ErrTruncatedBlock = errors.New("message: truncated block")

	// ErrUnknownBlockType is returned when decoding a block whose type byte
	// has no decoder: any value outside BlockType, and also the command
	// types GetStatus, TempBasalExtra, BasalScheduleExtra, ConfigureAlerts,
	// FaultConfig and BeepConfig, which this package encodes but does not
	// decode.
	ErrUnknownBlockType = errors.New("message: unknown block type")
)
