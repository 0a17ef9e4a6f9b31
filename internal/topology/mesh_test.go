package topology

import "testing"

func TestMeshSlot_Formula(t *testing.T) {
	cases := []struct {
		deviceID, homeID, want int
	}{
		{12345, 777, ((12345 % 777) % 1000) + ((12345 % 777) / 1000) * 256},
		{1, 1, 0},
		{999999, 12345, ((999999 % 12345) % 1000) + ((999999 % 12345) / 1000) * 256},
	}
	for _, c := range cases {
		got := MeshSlot(c.deviceID, c.homeID)
		if got != c.want {
			t.Errorf("MeshSlot(%d, %d) = %d, want %d", c.deviceID, c.homeID, got, c.want)
		}
	}
}

func TestElementSlot_OffsetsBy256PerElement(t *testing.T) {
	base := MeshSlot(54321, 999)

	if got := ElementSlot(base, 0); got != base {
		t.Errorf("element 0 slot = %d, want base %d", got, base)
	}
	if got := ElementSlot(base, 1); got != base+256 {
		t.Errorf("element 1 slot = %d, want %d", got, base+256)
	}
	if got := ElementSlot(base, 2); got != base+512 {
		t.Errorf("element 2 slot = %d, want %d", got, base+512)
	}
}
