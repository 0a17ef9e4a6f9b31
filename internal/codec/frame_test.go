package codec

import (
	"bytes"
	"testing"
)

func TestPeelFrame_IncompleteHeader(t *testing.T) {
	_, rest, ok := PeelFrame([]byte{0x73, 0x00, 0x00})
	if ok {
		t.Fatal("expected ok=false for incomplete header")
	}
	if len(rest) != 3 {
		t.Errorf("expected unconsumed bytes preserved, got %d", len(rest))
	}
}

func TestPeelFrame_IncompletePayload(t *testing.T) {
	buf := []byte{0x7B, 0x00, 0x00, 0x00, 0x05, 0x01, 0x02}
	_, _, ok := PeelFrame(buf)
	if ok {
		t.Fatal("expected ok=false when payload is short")
	}
}

func TestPeelFrame_ExactFrameAndLeavesRest(t *testing.T) {
	frame1 := Frame{Type: 0x7B, Payload: []byte{0x00, 0xC0}}.Encode()
	frame2 := Frame{Type: 0xAB, Payload: []byte{0x01, 0x02, 0x03, 0x04}}.Encode()
	buf := append(append([]byte{}, frame1...), frame2...)

	got, rest, ok := PeelFrame(buf)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got.Type != 0x7B || !bytes.Equal(got.Payload, []byte{0x00, 0xC0}) {
		t.Errorf("got %+v", got)
	}
	if !bytes.Equal(rest, frame2) {
		t.Errorf("rest = % X, want % X", rest, frame2)
	}

	got2, rest2, ok2 := PeelFrame(rest)
	if !ok2 {
		t.Fatal("expected second frame to peel")
	}
	if got2.Type != 0xAB {
		t.Errorf("got2.Type = %#x, want 0xAB", got2.Type)
	}
	if len(rest2) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(rest2))
	}
}

func TestFrameEncode_RoundTripsThroughPeelFrame(t *testing.T) {
	original := Frame{Type: 0x43, Payload: []byte{1, 2, 3, 4, 5}}
	encoded := original.Encode()
	decoded, rest, ok := PeelFrame(encoded)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if decoded.Type != original.Type || !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
	if len(rest) != 0 {
		t.Errorf("expected empty rest, got %d bytes", len(rest))
	}
}
