package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cyncmesh/cync-core/internal/topology"
)

func TestClient_Discover_BuildsTopologyAndSkipsHomesWithoutController(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v2/user/7/subscribe/devices":
			json.NewEncoder(w).Encode([]subscribedHome{
				{ProductID: 1, ID: 100, Name: "Living Room Home"},
				{ProductID: 1, ID: 200, Name: "Shed (no controller)"},
			})

		case r.URL.Path == "/v2/product/1/device/100/property":
			json.NewEncoder(w).Encode(homeProperty{
				BulbsArray: []bulbEntry{
					{DeviceID: 1, DisplayName: "Hub", DeviceType: 128, SwitchID: 555},
					{DeviceID: 2, DisplayName: "Lamp", DeviceType: 10},
				},
				GroupsArray: []groupEntry{
					{GroupID: 1, DisplayName: "Living Room", DeviceIDArray: []int{1, 2}},
				},
			})

		case r.URL.Path == "/v2/product/1/device/200/property":
			json.NewEncoder(w).Encode(homeProperty{
				BulbsArray: []bulbEntry{
					{DeviceID: 1, DisplayName: "Plain Sensor", DeviceType: 55},
				},
			})

		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New("user@example.com", "hunter2")
	c.baseURL = srv.URL

	topo, err := c.Discover(context.Background(), 7, "tok")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if _, err := topo.Home("100"); err != nil {
		t.Fatalf("expected home 100 to be kept: %v", err)
	}
	if _, err := topo.Home("200"); err == nil {
		t.Fatal("expected home 200 (no controller) to be discarded")
	}

	hub, err := topo.Device("100-1")
	if err != nil {
		t.Fatalf("expected hub device: %v", err)
	}
	if !hub.IsController() || hub.SwitchID != 555 {
		t.Fatalf("unexpected hub device: %+v", hub)
	}

	room, err := topo.Room("100-1")
	if err != nil {
		t.Fatalf("expected room 100-1: %v", err)
	}
	if len(room.MemberDeviceIDs) != 2 {
		t.Fatalf("room members = %v, want 2", room.MemberDeviceIDs)
	}
	if !room.SupportsRGB {
		t.Fatal("expected room to support RGB via its Lamp member")
	}
}

func TestClient_Discover_AllHomesDiscardedReturnsErrNoUsableHome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/user/1/subscribe/devices":
			json.NewEncoder(w).Encode([]subscribedHome{{ProductID: 1, ID: 1, Name: "No controller home"}})
		case "/v2/product/1/device/1/property":
			json.NewEncoder(w).Encode(homeProperty{
				BulbsArray: []bulbEntry{{DeviceID: 1, DisplayName: "Lamp", DeviceType: 10}},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New("user@example.com", "hunter2")
	c.baseURL = srv.URL

	_, err := c.Discover(context.Background(), 1, "tok")
	if err != ErrNoUsableHome {
		t.Fatalf("err = %v, want ErrNoUsableHome", err)
	}
}

func TestBuildRooms_DropsUnresolvedSubgroupAndOmitsGroupWithoutOnOffMember(t *testing.T) {
	devices, byVendorID, _, _ := buildDevices("1", []bulbEntry{
		{DeviceID: 1, DisplayName: "Lamp", DeviceType: 10},
		{DeviceID: 2, DisplayName: "Sensor", DeviceType: 55}, // no OnOff capability
	})
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2", len(devices))
	}

	groups := []groupEntry{
		{GroupID: 1, DisplayName: "Main", DeviceIDArray: []int{1}, SubgroupIDs: []int{99}},
		{GroupID: 2, DisplayName: "Sensors only", DeviceIDArray: []int{2}},
	}

	rooms := buildRooms("1", groups, byVendorID)

	var main *topology.Room
	for _, r := range rooms {
		if r.ID == "1-1" {
			main = r
		}
		if r.ID == "1-2" {
			t.Fatal("group with no on/off member should have been omitted")
		}
	}
	if main == nil {
		t.Fatal("expected room 1-1 to be built")
	}
	if len(main.SubgroupIDs) != 0 {
		t.Fatalf("expected unresolved subgroup id 99 to be dropped, got %v", main.SubgroupIDs)
	}
}

func TestBuildRooms_SetsMeshIDAndStampsMemberRoomID(t *testing.T) {
	// Home id 1 would put every id at slot 0 (x mod 1 == 0), so a
	// realistic multi-digit home id is used.
	devices, byVendorID, _, _ := buildDevices("1000", []bulbEntry{
		{DeviceID: 1, DisplayName: "Lamp", DeviceType: 10},
	})
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}

	groups := []groupEntry{
		{GroupID: 7, DisplayName: "Main", DeviceIDArray: []int{1}},
	}
	rooms := buildRooms("1000", groups, byVendorID)

	var room *topology.Room
	for _, r := range rooms {
		if r.ID == "1000-7" {
			room = r
		}
	}
	if room == nil {
		t.Fatal("expected room 1000-7 to be built")
	}
	if room.MeshID == 0 {
		t.Error("room.MeshID left unset (zero); room-targeted commands would encode mesh_id=0x0000")
	}

	lamp := byVendorID[1]
	if lamp.RoomID != room.ID {
		t.Errorf("lamp.RoomID = %q, want %q", lamp.RoomID, room.ID)
	}
}

func TestBuildDevices_MultiElementSplitsIntoOneDevicePerElement(t *testing.T) {
	devices, byVendorID, _, maxSlot := buildDevices("1", []bulbEntry{
		{DeviceID: 1, DisplayName: "Fixture", DeviceType: 67, SwitchID: 10}, // 2 elements
	})
	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2 (one per element)", len(devices))
	}

	primary := byVendorID[1]
	if primary.Elements != 2 {
		t.Errorf("primary.Elements = %d, want 2", primary.Elements)
	}

	var secondary *topology.Device
	for _, d := range devices {
		if d.ID != primary.ID {
			secondary = d
		}
	}
	if secondary == nil {
		t.Fatal("expected a second per-element device")
	}
	if secondary.MeshID == primary.MeshID {
		t.Error("secondary element shares primary's mesh slot; inbound records for either element would collide")
	}
	if secondary.Elements != 1 {
		t.Errorf("secondary.Elements = %d, want 1 (its own standalone identity)", secondary.Elements)
	}
	if int(secondary.MeshID) > maxSlot {
		t.Errorf("maxSlot = %d, doesn't account for secondary element's slot %d", maxSlot, secondary.MeshID)
	}
}
