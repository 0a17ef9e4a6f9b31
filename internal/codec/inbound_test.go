package codec

import "testing"

// TestDecode_SnapshotScenarioC reproduces spec.md's scenario C: a
// snapshot record at slot=5 with state on, brightness=60, color_temp=200,
// rgb=(0,0,0), rgb_active=false (color_temp != 254).
func TestDecode_SnapshotScenarioC(t *testing.T) {
	payload := make([]byte, 60)
	payload[13] = guardSnapshot

	record := payload[22:46]
	record[0] = 5   // slot
	record[8] = 1   // state
	record[12] = 60 // brightness
	record[16] = 200 // color_temp
	record[20], record[21], record[22] = 0, 0, 0

	f := Frame{Type: TypeRequest, Payload: payload}
	decoded, ok := Decode(f)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if !decoded.NeedsAck {
		t.Error("expected NeedsAck=true for TypeRequest")
	}
	if decoded.Snapshot == nil || len(decoded.Snapshot.Records) != 1 {
		t.Fatalf("expected exactly one snapshot record, got %+v", decoded.Snapshot)
	}

	got := decoded.Snapshot.Records[0]
	if got.Slot != 5 {
		t.Errorf("slot = %d, want 5", got.Slot)
	}
	if !got.Power {
		t.Error("expected power=true")
	}
	if got.Brightness != 60 {
		t.Errorf("brightness = %d, want 60", got.Brightness)
	}
	if got.ColorTemp != 200 {
		t.Errorf("color_temp = %d, want 200", got.ColorTemp)
	}
	if got.RGBActive {
		t.Error("expected rgb_active=false")
	}
}

func TestDecode_RequestNoAckDoesNotRequireAck(t *testing.T) {
	payload := make([]byte, 14)
	f := Frame{Type: TypeRequestNoAck, Payload: payload}
	decoded, ok := Decode(f)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if decoded.NeedsAck {
		t.Error("expected NeedsAck=false for TypeRequestNoAck")
	}
}

func TestDecode_BatchedState(t *testing.T) {
	payload := make([]byte, 26)
	payload[4], payload[5], payload[6] = 0x01, 0x01, 0x06
	record := payload[7:26]
	record[3] = 9   // slot
	record[4] = 1   // state
	record[5] = 80  // brightness
	record[6] = 254 // color_temp == 254 => rgb_active
	record[7], record[8], record[9] = 1, 2, 3

	f := Frame{Type: TypeBatchedState, Payload: payload}
	decoded, ok := Decode(f)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if decoded.Batched == nil || len(decoded.Batched.Records) != 1 {
		t.Fatalf("expected one batched record, got %+v", decoded.Batched)
	}
	got := decoded.Batched.Records[0]
	if got.Slot != 9 || !got.Power || got.Brightness != 80 || !got.RGBActive {
		t.Errorf("got %+v", got)
	}
	if got.RGB != [3]byte{1, 2, 3} {
		t.Errorf("rgb = %v, want [1 2 3]", got.RGB)
	}
}

func TestDecode_BatchedState_GuardMismatchDiscarded(t *testing.T) {
	payload := make([]byte, 26)
	payload[4], payload[5], payload[6] = 0x01, 0x01, 0x07 // wrong guard
	f := Frame{Type: TypeBatchedState, Payload: payload}
	_, ok := Decode(f)
	if ok {
		t.Error("expected guard mismatch to discard the frame")
	}
}

func TestDecode_Presence(t *testing.T) {
	payload := []byte{0x12, 0x34, 0x56, 0x78}
	f := Frame{Type: TypePresence, Payload: payload}
	decoded, ok := Decode(f)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if decoded.Presence == nil || decoded.Presence.SwitchID != 0x12345678 {
		t.Errorf("presence = %+v", decoded.Presence)
	}
}

// TestDecode_CommandAckScenarioD reproduces spec.md's scenario D: a 0x7B
// frame with payload[4:6]=00 C0 resolves sequence 0x00C0.
func TestDecode_CommandAckScenarioD(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0x00, 0xC0}
	f := Frame{Type: TypeCommandAck, Payload: payload}
	decoded, ok := Decode(f)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if decoded.Ack == nil || decoded.Ack.Sequence != 0x00C0 {
		t.Errorf("ack = %+v, want sequence 0x00C0", decoded.Ack)
	}
}

// TestMultiElementState_ScenarioF reproduces spec.md's scenario F:
// payload[4]=0b11 (mask), payload[5]=0b01 (shift source) yields
// element 0 on, element 1 off.
func TestMultiElementState_ScenarioF(t *testing.T) {
	power, brightness := MultiElementState(DeviceRecord{}, 0b01, 0b11, 2)
	if !power[0] || brightness[0] != 100 {
		t.Errorf("element 0 = power %v brightness %d, want true 100", power[0], brightness[0])
	}
	if power[1] || brightness[1] != 0 {
		t.Errorf("element 1 = power %v brightness %d, want false 0", power[1], brightness[1])
	}
}

func TestDecode_UnknownTypeDiscarded(t *testing.T) {
	_, ok := Decode(Frame{Type: 0xFF, Payload: nil})
	if ok {
		t.Error("expected unknown frame type to be discarded")
	}
}
