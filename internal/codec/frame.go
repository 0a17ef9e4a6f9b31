// Package codec implements the Cync mesh gateway's proprietary,
// length-prefixed binary frame protocol: parsing inbound frames into
// typed events, and encoding outbound command frames with the
// mesh-id-based additive checksum. Every function here is pure - no I/O,
// no state - so the Session owns the socket and byte-buffer bookkeeping
// and calls into this package only to peel a frame off a buffer or turn
// a command into bytes.
package codec

import "encoding/binary"

// Frame types recognized on the wire.
const (
	TypeRequest      byte = 0x73 // server request; needs an ack
	TypeRequestNoAck byte = 0x83 // same semantics, no ack required
	TypeBatchedState byte = 0x43
	TypePresence     byte = 0xAB
	TypeCommandAck   byte = 0x7B
	TypeKeepalive    byte = 0xA3
	TypeHeartbeat    byte = 0xD3
	TypeLogin        byte = 0x13
)

// frameHeaderSize is the type byte plus the 4-byte big-endian length
// prefix.
const frameHeaderSize = 5

// Frame is one unit of the wire protocol: a type byte and its payload,
// already stripped of the length prefix.
type Frame struct {
	Type    byte
	Payload []byte
}

// PeelFrame extracts the first complete frame from buf, per the wire
// format `type:u8 | length:u32 be | payload[length]`. It returns the
// frame, the remaining unconsumed bytes, and whether a complete frame
// was present. When ok is false, the caller should read more bytes and
// retry with the same (unconsumed) buf.
func PeelFrame(buf []byte) (frame Frame, rest []byte, ok bool) {
	if len(buf) < frameHeaderSize {
		return Frame{}, buf, false
	}
	length := binary.BigEndian.Uint32(buf[1:5])
	total := frameHeaderSize + int(length)
	if len(buf) < total {
		return Frame{}, buf, false
	}
	payload := make([]byte, length)
	copy(payload, buf[frameHeaderSize:total])
	return Frame{Type: buf[0], Payload: payload}, buf[total:], true
}

// Encode serializes a Frame back to its wire form.
func (f Frame) Encode() []byte {
	out := make([]byte, frameHeaderSize+len(f.Payload))
	out[0] = f.Type
	binary.BigEndian.PutUint32(out[1:5], uint32(len(f.Payload)))
	copy(out[frameHeaderSize:], f.Payload)
	return out
}
