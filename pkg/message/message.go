// Package message implements the pod's wire-level Message type: framing,
// CRC16 checksums, and the block vocabulary core-visible commands and
// responses are built from (spec.md §6, "Message wire format").
package message

// Message is the unit exchanged with the pod: an addressed, sequenced
// envelope around one or more Blocks. spec.md §3/§6: "Message := {address,
// sequenceNum, [MessageBlock], expectFollowOn}. Response shape symmetric."
type Message struct {
	Address        uint32
	SequenceNum    uint8
	Blocks         []Block
	ExpectFollowOn bool

	// Fault is populated by the transport when the pod's reply itself
	// signals a captured fault condition out of band from the block list
	// (spec.md §4.4 step 3d: "If response.fault is present..."). Decoded
	// wire traffic normally surfaces a fault through a PodInfoResponse
	// block instead; this field exists for transports that detect and
	// attach it directly.
	Fault *DetailedStatus
}

// NonceBearingBlocks returns the subset of m.Blocks that carry a nonce,
// in order. pkg/exchange uses this to rewrite the nonce field on retry
// without needing to know each block's concrete type.
func (m *Message) NonceBearingBlocks() []NonceBearing {
	var out []NonceBearing
	for _, b := range m.Blocks {
		if nb, ok := b.(NonceBearing); ok {
			out = append(out, nb)
		}
	}
	return out
}

// FirstOfType returns the first block matching t, or nil.
func (m *Message) FirstOfType(t BlockType) Block {
	for _, b := range m.Blocks {
		if b.Type() == t {
			return b
		}
	}
	return nil
}

// StatusResponse returns the message's StatusResponseBlock, if present.
func (m *Message) StatusResponse() (*StatusResponseBlock, bool) {
	b := m.FirstOfType(BlockStatusResponse)
	if b == nil {
		return nil, false
	}
	sr, ok := b.(*StatusResponseBlock)
	return sr, ok
}

// PodInfoResponse returns the message's PodInfoResponseBlock, if present.
func (m *Message) PodInfoResponse() (*PodInfoResponseBlock, bool) {
	b := m.FirstOfType(BlockPodInfoResponse)
	if b == nil {
		return nil, false
	}
	pi, ok := b.(*PodInfoResponseBlock)
	return pi, ok
}

// ErrorResponse returns the message's ErrorResponseBlock, if present.
func (m *Message) ErrorResponse() (*ErrorResponseBlock, bool) {
	b := m.FirstOfType(BlockErrorResponse)
	if b == nil {
		return nil, false
	}
	er, ok := b.(*ErrorResponseBlock)
	return er, ok
}
