package capability

import "testing"

func TestLookup_MultiElementDevice(t *testing.T) {
	caps, elements := Lookup(67)

	if elements != 2 {
		t.Errorf("elements = %d, want 2", elements)
	}
	if !caps.Has(MultiElement) {
		t.Error("expected MultiElement capability")
	}
	if !caps.Has(RGB) {
		t.Error("expected RGB capability")
	}
}

func TestLookup_Fan(t *testing.T) {
	caps, elements := Lookup(81)

	if elements != 1 {
		t.Errorf("elements = %d, want 1", elements)
	}
	if !caps.Has(Fan) {
		t.Error("expected Fan capability")
	}
	if !caps.Has(WifiControl) {
		t.Error("expected type 81 to carry WifiControl, per the latest vendor table")
	}
	if !caps.Has(Brightness) {
		t.Error("expected fan to be brightness-controlled")
	}
}

func TestLookup_Type56ExcludesSensorCapabilities(t *testing.T) {
	caps, _ := Lookup(56)

	if caps.Has(Motion) || caps.Has(AmbientLight) {
		t.Error("type 56 should not carry Motion or AmbientLight capabilities")
	}
}

func TestLookup_UnknownDefaultsToOnOff(t *testing.T) {
	caps, elements := Lookup(9999)

	if caps != OnOff {
		t.Errorf("caps = %v, want OnOff only", caps)
	}
	if elements != 1 {
		t.Errorf("elements = %d, want 1", elements)
	}
}

func TestIsController(t *testing.T) {
	if !IsController(11) {
		t.Error("expected device type 11 (Wi-Fi full-color bulb) to be a controller")
	}
	if IsController(1) {
		t.Error("expected plain on/off switch to not be a controller")
	}
}

func TestBitset_Has(t *testing.T) {
	b := OnOff | Brightness
	if !b.Has(OnOff) || !b.Has(Brightness) {
		t.Error("expected both flags set")
	}
	if b.Has(RGB) {
		t.Error("did not expect RGB flag")
	}
}
