package codec

import "encoding/binary"

// Guard bytes distinguishing the sub-kinds of a TypeRequest/
// TypeRequestNoAck frame.
const (
	guardDelta    byte = 0xDB
	guardSensors  byte = 0x54
	guardSnapshot byte = 0x52
)

const (
	snapshotRecordSize     = 24
	batchedStateRecordSize = 19
)

// DeltaUpdate is a single-device on/power + brightness change.
//
// The spec gives only the slot's offset (payload[21]) for this frame
// kind; the state and brightness bytes are read at payload[25] and
// payload[29], four and eight bytes past the slot byte. These offsets
// are inferred, not copied from another record layout (a snapshot
// record keeps state and brightness eight and twelve bytes past its
// slot byte). See DESIGN.md.
type DeltaUpdate struct {
	Slot       byte
	Power      bool
	Brightness byte
}

// SensorUpdate reports a motion/ambient-light sensor's current reading.
type SensorUpdate struct {
	Slot    byte
	Motion  bool
	Ambient bool
}

// DeviceRecord is one device's decoded state, common to both the
// snapshot and batched-state wire record formats. MultiMask/MultiShift
// carry the two raw bytes a multi-element device's record packs its
// per-element state into (the overall enable mask and the per-element
// selector byte respectively; see MultiElementState) - meaningless for
// a single-element device, whose Power/Brightness fields already give
// the full picture.
type DeviceRecord struct {
	Slot       byte
	Power      bool
	Brightness byte
	ColorTemp  byte
	RGBActive  bool
	RGB        [3]byte
	MultiMask  byte
	MultiShift byte
}

// SnapshotUpdate carries the bulk initial-state dump sent after login or
// in response to a state-request.
type SnapshotUpdate struct {
	Records []DeviceRecord
}

// BatchedStateUpdate carries a batch of per-device state records from a
// 0x43 frame.
type BatchedStateUpdate struct {
	Records []DeviceRecord
}

// Presence indicates a controller responded to a keepalive ping.
type Presence struct {
	SwitchID uint32
}

// CommandAck resolves a previously sent command's pending waiter.
type CommandAck struct {
	Sequence uint16
}

// Decoded is the result of decoding one inbound Frame. NeedsAck is true
// for every TypeRequest frame (never for TypeRequestNoAck); when true,
// the caller must emit EncodeAck(frame) exactly once.
//
// Exactly one of Delta, Sensors, Snapshot, Batched, Presence, or Ack is
// non-nil, except that a bare TypeRequest frame with no recognized
// guard byte decodes to NeedsAck=true with every other field nil.
type Decoded struct {
	NeedsAck bool

	Delta    *DeltaUpdate
	Sensors  *SensorUpdate
	Snapshot *SnapshotUpdate
	Batched  *BatchedStateUpdate
	Presence *Presence
	Ack      *CommandAck
}

// Decode interprets a Frame per the wire protocol's type and guard-byte
// dispatch. An unrecognized type, or a batched-state, presence or ack
// frame whose guard byte or length does not match, is not an error: the
// frame is discarded silently, so Decode returns a zero Decoded and
// ok=false. TypeRequest and TypeRequestNoAck frames always return
// ok=true; one with no recognized guard byte or too short a payload
// decodes with every event field nil (NeedsAck still set for
// TypeRequest).
func Decode(f Frame) (Decoded, bool) {
	switch f.Type {
	case TypeRequest, TypeRequestNoAck:
		return decodeRequestFamily(f), true
	case TypeBatchedState:
		return decodeBatchedState(f)
	case TypePresence:
		return decodePresence(f)
	case TypeCommandAck:
		return decodeCommandAck(f)
	default:
		return Decoded{}, false
	}
}

func decodeRequestFamily(f Frame) Decoded {
	d := Decoded{NeedsAck: f.Type == TypeRequest}
	p := f.Payload

	if len(p) < 14 {
		return d
	}

	switch {
	case p[13] == guardDelta && len(p) >= 33:
		d.Delta = &DeltaUpdate{Slot: p[21], Power: p[25] > 0, Brightness: p[29]}
	case p[13] == guardSensors && len(p) >= 25:
		d.Sensors = &SensorUpdate{
			Slot:    p[16],
			Motion:  p[22] > 0,
			Ambient: p[24] > 0,
		}
	case p[13] == guardSnapshot && len(p) > 51:
		d.Snapshot = &SnapshotUpdate{Records: decodeSnapshotRecords(p[22:])}
	}
	return d
}

func decodeSnapshotRecords(buf []byte) []DeviceRecord {
	var records []DeviceRecord
	for len(buf) >= snapshotRecordSize {
		r := buf[:snapshotRecordSize]
		records = append(records, DeviceRecord{
			Slot:       r[0],
			Power:      r[8] > 0,
			Brightness: r[12],
			ColorTemp:  r[16],
			RGBActive:  r[16] == 254,
			RGB:        [3]byte{r[20], r[21], r[22]},
			MultiMask:  r[8],
			MultiShift: r[12],
		})
		buf = buf[snapshotRecordSize:]
	}
	return records
}

func decodeBatchedState(f Frame) (Decoded, bool) {
	p := f.Payload
	if len(p) < 8 || p[4] != 0x01 || p[5] != 0x01 || p[6] != 0x06 || len(p) < 26 {
		return Decoded{}, false
	}
	return Decoded{Batched: &BatchedStateUpdate{Records: decodeBatchedStateRecords(p[7:])}}, true
}

func decodeBatchedStateRecords(buf []byte) []DeviceRecord {
	var records []DeviceRecord
	for len(buf) >= batchedStateRecordSize {
		r := buf[:batchedStateRecordSize]
		records = append(records, DeviceRecord{
			Slot:       r[3],
			Power:      r[4] > 0,
			Brightness: r[5],
			ColorTemp:  r[6],
			RGBActive:  r[6] == 254,
			RGB:        [3]byte{r[7], r[8], r[9]},
			MultiMask:  r[4],
			MultiShift: r[5],
		})
		buf = buf[batchedStateRecordSize:]
	}
	return records
}

func decodePresence(f Frame) (Decoded, bool) {
	if len(f.Payload) < 4 {
		return Decoded{}, false
	}
	return Decoded{Presence: &Presence{SwitchID: binary.BigEndian.Uint32(f.Payload[0:4])}}, true
}

func decodeCommandAck(f Frame) (Decoded, bool) {
	if len(f.Payload) < 6 {
		return Decoded{}, false
	}
	return Decoded{Ack: &CommandAck{Sequence: binary.BigEndian.Uint16(f.Payload[4:6])}}, true
}

// MultiElementState decodes a multi-element device's per-element
// on/brightness state, per the spec's "state=((byte[12]>>i) &
// byte[8])>0" rule (snapshot records; batched-state records use the
// analogous byte[5]/byte[4] pair). rawShift is the per-element selector
// byte (byte[12] or byte[5]); rawMask is the overall enable mask
// (byte[8] or byte[4]).
func MultiElementState(record DeviceRecord, rawShift, rawMask byte, elements int) (power []bool, brightness []byte) {
	power = make([]bool, elements)
	brightness = make([]byte, elements)
	for i := 0; i < elements; i++ {
		on := (rawShift>>uint(i))&rawMask > 0
		power[i] = on
		if on {
			brightness[i] = 100
		}
	}
	return power, brightness
}
