package codec

import "encoding/binary"

// Fixed opcode and preamble bytes shared by every mesh command envelope.
const (
	opPowerOnOff    byte = 0xD0
	opSetColorTemp  byte = 0xE2
	opCombo         byte = 0xF0
	opStateRequest  byte = 0x52
	innerLenPower   byte = 0x0D
	innerLenCT      byte = 0x0C
	innerLenCombo   byte = 0x10
	colorToneWhite  byte = 0xFF
	colorToneRGB    byte = 0xFE
)

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// buildCommandFrame assembles the common outbound command envelope:
//
//	switch_id:u32 be | seq:u16 be | 0x00
//	| 0x7E 00 00 00 00 F8 opcode innerLen | 00 00 00 00 00 00
//	| mesh_id:u16 le | body | checksum:u8 | 0x7E
func buildCommandFrame(switchID uint32, seq uint16, opcode, innerLen byte, base int, meshID uint16, body []byte) Frame {
	payload := make([]byte, 0, 15+len(body)+2)
	payload = append(payload, be32(switchID)...)
	payload = append(payload, be16(seq)...)
	payload = append(payload, 0x00)
	payload = append(payload, 0x7E, 0x00, 0x00, 0x00, 0x00, 0xF8, opcode, innerLen)
	payload = append(payload, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	payload = append(payload, le16(meshID)...)
	payload = append(payload, body...)
	cs := checksum(base, meshID, body)
	payload = append(payload, cs, 0x7E)
	return Frame{Type: TypeRequest, Payload: payload}
}

// EncodePowerOn builds a power-on command for the given mesh slot, routed
// through switchID, tagged with sequence seq.
func EncodePowerOn(switchID uint32, meshID uint16, seq uint16) Frame {
	body := []byte{opPowerOnOff, 0x00, 0x00, 0x01, 0x00, 0x00}
	return buildCommandFrame(switchID, seq, opPowerOnOff, innerLenPower, baseSwitchOn, meshID, body)
}

// EncodePowerOff builds a power-off command.
func EncodePowerOff(switchID uint32, meshID uint16, seq uint16) Frame {
	body := []byte{opPowerOnOff, 0x00, 0x00, 0x00, 0x00, 0x00}
	return buildCommandFrame(switchID, seq, opPowerOnOff, innerLenPower, baseSwitchOff, meshID, body)
}

// EncodeSetColorTemp builds a set-color-temperature command. ct is
// 0-100 on the vendor scale.
func EncodeSetColorTemp(switchID uint32, meshID uint16, seq uint16, ct byte) Frame {
	body := []byte{opSetColorTemp, 0x00, 0x00, 0x05, ct}
	return buildCommandFrame(switchID, seq, opSetColorTemp, innerLenCT, baseSetColorTemp+int(ct), meshID, body)
}

// EncodeCombo builds a combined state/brightness/color-tone/rgb command.
// colorTone selects white (0xFF) or RGB (0xFE) mode; rgb is ignored in
// white mode.
func EncodeCombo(switchID uint32, meshID uint16, seq uint16, state bool, brightness, colorTone byte, rgb [3]byte) Frame {
	stateByte := byte(0x00)
	if state {
		stateByte = 0x01
	}
	body := []byte{opCombo, 0x00, 0x00, stateByte, brightness, colorTone, rgb[0], rgb[1], rgb[2]}
	return buildCommandFrame(switchID, seq, opCombo, innerLenCombo, baseCombo, meshID, body)
}

// ColorToneWhite and ColorToneRGB select EncodeCombo's color-tone byte.
const (
	ColorToneWhite = colorToneWhite
	ColorToneRGB   = colorToneRGB
)

// EncodeStateRequestBroadcast builds the fixed state-request frame sent
// to a controller to prompt it to report full state for every device on
// its mesh. The frame carries no mesh-id specific checksum - its body
// is entirely fixed, with the broadcast mesh-id (0xFFFF) embedded where
// the common envelope would otherwise carry a per-device mesh-id.
func EncodeStateRequestBroadcast(switchID uint32, seq uint16) Frame {
	payload := make([]byte, 0, 24)
	payload = append(payload, be32(switchID)...)
	payload = append(payload, be16(seq)...)
	payload = append(payload, 0x00)
	payload = append(payload, 0x7E, 0x00, 0x00, 0x00, 0x00, 0xF8, opStateRequest, 0x06)
	payload = append(payload, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x56)
	payload = append(payload, 0x7E)
	return Frame{Type: TypeRequest, Payload: payload}
}

// EncodeKeepalivePing builds the Controller Tracker's presence-probe
// frame to a single controller.
func EncodeKeepalivePing(switchID uint32, seq uint16) Frame {
	payload := make([]byte, 0, 7)
	payload = append(payload, be32(switchID)...)
	payload = append(payload, be16(seq)...)
	payload = append(payload, 0x00)
	return Frame{Type: TypeKeepalive, Payload: payload}
}

// EncodeHeartbeat builds the fixed session heartbeat frame, sent every
// 180 seconds with no controller addressing.
func EncodeHeartbeat() Frame {
	return Frame{Type: TypeHeartbeat, Payload: nil}
}

// EncodeAck builds the 7-byte acknowledgement required for every
// inbound TypeRequest frame, echoing back the response-id the server
// sent at payload[4:6].
func EncodeAck(inbound Frame) Frame {
	payload := make([]byte, 7)
	copy(payload, inbound.Payload[:7])
	return Frame{Type: TypeRequest, Payload: payload}
}

// EncodeLoginFrame derives the binary login frame sent immediately after
// the TCP/TLS connection is established.
//
// Layout: type 0x13, payload = 0x03 | user_id:u32 be | len(authorize):u16
// be | authorize (ASCII) | 00 00 B4. The frame's length prefix works out
// to 10+len(authorize), matching the wire format's general
// type|length|payload shape.
func EncodeLoginFrame(userID uint32, authorize string) []byte {
	payload := make([]byte, 0, 10+len(authorize))
	payload = append(payload, 0x03)
	payload = append(payload, be32(userID)...)
	payload = append(payload, be16(uint16(len(authorize)))...)
	payload = append(payload, []byte(authorize)...)
	payload = append(payload, 0x00, 0x00, 0xB4)
	return Frame{Type: TypeLogin, Payload: payload}.Encode()
}
