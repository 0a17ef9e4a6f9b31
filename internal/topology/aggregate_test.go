package topology

import (
	"testing"

	"github.com/cyncmesh/cync-core/internal/capability"
)

func fullColorDevice(id string, power bool, brightness, ct int, rgb [3]byte, rgbActive bool) *Device {
	caps, _ := capability.Lookup(11)
	return &Device{
		ID:   id,
		Caps: caps,
		State: State{
			Power:      power,
			Brightness: brightness,
			ColorTemp:  ct,
			RGB:        rgb,
			RGBActive:  rgbActive,
		},
	}
}

func onOffDevice(id string, power bool) *Device {
	caps, _ := capability.Lookup(1)
	return &Device{ID: id, Caps: caps, State: State{Power: power}}
}

func TestRollupDevices_PowerIsOR(t *testing.T) {
	members := []*Device{onOffDevice("a", false), onOffDevice("b", true)}
	got := rollupDevices(members)
	if !got.Power {
		t.Error("expected rollup power=true when any member is on")
	}
}

func TestRollupDevices_BrightnessMeanOverSupportingMembers(t *testing.T) {
	members := []*Device{
		fullColorDevice("a", true, 40, 50, [3]byte{0, 0, 0}, false),
		fullColorDevice("b", true, 60, 50, [3]byte{0, 0, 0}, false),
		onOffDevice("c", true), // no brightness support, excluded from mean
	}
	got := rollupDevices(members)
	if got.Brightness != 50 {
		t.Errorf("brightness = %d, want 50 (mean of 40,60 excluding the on/off device)", got.Brightness)
	}
}

func TestRollupDevices_BrightnessMeanRoundsHalfUp(t *testing.T) {
	members := []*Device{
		fullColorDevice("a", true, 20, 50, [3]byte{0, 0, 0}, false),
		fullColorDevice("b", true, 40, 50, [3]byte{0, 0, 0}, false),
		fullColorDevice("c", true, 50, 50, [3]byte{0, 0, 0}, false),
	}
	got := rollupDevices(members)
	// 20+40+50=110, /3 = 36.67: truncation gives 36, rounding gives 37.
	if got.Brightness != 37 {
		t.Errorf("brightness = %d, want 37 (rounded mean, not truncated)", got.Brightness)
	}
}

func TestRollupDevices_BrightnessFallsBackTo100WhenUnsupportedAndOn(t *testing.T) {
	members := []*Device{onOffDevice("a", true)}
	got := rollupDevices(members)
	if got.Brightness != 100 {
		t.Errorf("brightness = %d, want 100", got.Brightness)
	}
}

func TestRollupDevices_RGBComponentwiseMeanOwnDenominator(t *testing.T) {
	// Three RGB-capable members; each component's mean must divide by the
	// same count (3), not by some other channel's count. This is the
	// fixed behaviour, as opposed to a bug that reused one channel's
	// length for all three.
	members := []*Device{
		fullColorDevice("a", true, 100, 50, [3]byte{90, 0, 0}, true),
		fullColorDevice("b", true, 100, 50, [3]byte{90, 90, 0}, false),
		fullColorDevice("c", true, 100, 50, [3]byte{90, 90, 90}, false),
	}
	got := rollupDevices(members)
	want := [3]byte{90, 60, 30}
	if got.RGB != want {
		t.Errorf("rgb = %v, want %v", got.RGB, want)
	}
	if !got.RGBActive {
		t.Error("expected RGBActive=true since member a has it active")
	}
}

func TestRollupDevices_ColorTempMeanOverSupportingMembers(t *testing.T) {
	members := []*Device{
		fullColorDevice("a", true, 100, 20, [3]byte{}, false),
		fullColorDevice("b", true, 100, 80, [3]byte{}, false),
	}
	got := rollupDevices(members)
	if got.ColorTemp != 50 {
		t.Errorf("color_temp = %d, want 50", got.ColorTemp)
	}
}

func TestApplyDeviceUpdate_ClampsAndNotifies(t *testing.T) {
	top := New()
	top.AddHome(&Home{ID: "h1"})
	d := onOffDevice("d1", false)
	d.HomeID = "h1"
	top.AddDevice(d)

	var gotSnap Snapshot
	notified := false
	top.Subscribe("d1", func(s Snapshot) {
		notified = true
		gotSnap = s
	})

	power := true
	snap, changed, err := top.ApplyDeviceUpdate("d1", DeviceUpdate{Power: &power})
	if err != nil {
		t.Fatalf("ApplyDeviceUpdate: %v", err)
	}
	if !changed {
		t.Error("expected changed=true")
	}
	if !notified {
		t.Fatal("expected subscriber to be notified")
	}
	if !gotSnap.Power || gotSnap.Power != snap.Power {
		t.Errorf("snapshot power mismatch: %+v", gotSnap)
	}
}

func TestApplyDeviceUpdate_UnknownDeviceReturnsError(t *testing.T) {
	top := New()
	_, _, err := top.ApplyDeviceUpdate("missing", DeviceUpdate{})
	if err != ErrDeviceNotFound {
		t.Errorf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestRecomputeRoom_CascadesToParentSubgroup(t *testing.T) {
	top := New()
	top.AddHome(&Home{ID: "h1"})

	d1 := onOffDevice("d1", false)
	d1.HomeID = "h1"
	d1.RoomID = "h1-sub1"
	top.AddDevice(d1)

	sub := &Room{ID: "h1-sub1", HomeID: "h1", IsSubgroup: true, ParentID: "h1-parent", MemberDeviceIDs: []string{"d1"}}
	parent := &Room{ID: "h1-parent", HomeID: "h1", SubgroupIDs: []string{"h1-sub1"}}
	top.AddRoom(sub)
	top.AddRoom(parent)

	var parentNotified bool
	top.Subscribe("h1-parent", func(Snapshot) { parentNotified = true })

	on := true
	if _, _, err := top.ApplyDeviceUpdate("d1", DeviceUpdate{Power: &on}); err != nil {
		t.Fatalf("ApplyDeviceUpdate: %v", err)
	}

	if !parentNotified {
		t.Error("expected parent room to be notified via the one-level cascade")
	}

	gotParent, err := top.Room("h1-parent")
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if !gotParent.State.Power {
		t.Error("expected parent rollup power=true after subgroup member turned on")
	}
}
