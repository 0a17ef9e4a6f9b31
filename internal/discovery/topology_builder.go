package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cyncmesh/cync-core/internal/capability"
	"github.com/cyncmesh/cync-core/internal/topology"
)

// Discover lists the account's homes and fetches each home's device and
// group layout, building a Topology per spec.md 4.1/3. A home is kept
// only if it yields at least one Wi-Fi controller device; homes without
// one (and all their devices) are silently discarded. Groups with no
// on/off-capable member are omitted, and a subgroup id that can't be
// resolved against the home's own group list is dropped from its parent's
// list rather than failing discovery.
func (c *Client) Discover(ctx context.Context, userID uint32, accessToken string) (*topology.Topology, error) {
	homes, err := c.listHomes(ctx, userID, accessToken)
	if err != nil {
		return nil, err
	}

	topo := topology.New()
	kept := 0

	for _, h := range homes {
		homeID := strconv.Itoa(h.ID)
		prop, err := c.homeProperty(ctx, h.ProductID, homeID, accessToken)
		if err != nil {
			return nil, err
		}

		devices, byVendorID, controllerIDs, maxSlot := buildDevices(homeID, prop.BulbsArray)
		if len(controllerIDs) == 0 {
			continue // no usable controller in this home, discard it entirely
		}

		slots := make([]string, maxSlot+1)
		for _, d := range devices {
			if int(d.MeshID) < len(slots) {
				slots[d.MeshID] = d.ID
			}
		}

		topo.AddHome(&topology.Home{
			ID:                  homeID,
			Name:                h.Name,
			MeshSlots:           slots,
			ControllerDeviceIDs: controllerIDs,
		})
		for _, d := range devices {
			topo.AddDevice(d)
		}

		rooms := buildRooms(homeID, prop.GroupsArray, byVendorID)
		for _, r := range rooms {
			topo.AddRoom(r)
		}

		kept++
	}

	if kept == 0 {
		return nil, ErrNoUsableHome
	}
	return topo, nil
}

func (c *Client) listHomes(ctx context.Context, userID uint32, accessToken string) ([]subscribedHome, error) {
	path := fmt.Sprintf("/v2/user/%d/subscribe/devices", userID)
	data, err := c.get(ctx, path, accessToken)
	if err != nil {
		return nil, err
	}
	var homes []subscribedHome
	if err := json.Unmarshal(data, &homes); err != nil {
		return nil, fmt.Errorf("%w: decoding home list: %w", ErrTransport, err)
	}
	return homes, nil
}

func (c *Client) homeProperty(ctx context.Context, productID int, homeID, accessToken string) (homeProperty, error) {
	path := fmt.Sprintf("/v2/product/%d/device/%s/property", productID, homeID)
	data, err := c.get(ctx, path, accessToken)
	if err != nil {
		return homeProperty{}, err
	}
	var prop homeProperty
	if err := json.Unmarshal(data, &prop); err != nil {
		return homeProperty{}, fmt.Errorf("%w: decoding home property: %w", ErrTransport, err)
	}
	return prop, nil
}

// buildDevices converts bulbsArray entries into topology.Device values.
// A multi-element fixture (spec.md 3/4.1, e.g. device type 67) becomes
// one primary Device at its base mesh slot plus one secondary Device
// per extra element, each at slot+i*256 with its own State - the
// primary keeps Elements set to the fixture's full element count (the
// Session's inbound dispatch uses that to recognize a multi-element
// snapshot/batched record and fan it out across the per-element
// devices); secondaries are single-element entities in their own
// right. It returns the built devices, a lookup from the vendor's
// numeric device id back to the primary Device (used to resolve group
// membership), the switch ids of any Wi-Fi controllers among them, and
// the highest mesh slot index used (for sizing Home.MeshSlots).
func buildDevices(homeID string, bulbs []bulbEntry) ([]*topology.Device, map[int]*topology.Device, []string, int) {
	homeIDNum, err := strconv.Atoi(homeID)
	if err != nil || homeIDNum == 0 {
		return nil, nil, nil, 0
	}

	devices := make([]*topology.Device, 0, len(bulbs))
	byVendorID := make(map[int]*topology.Device, len(bulbs))
	var controllerIDs []string
	maxSlot := 0

	for _, b := range bulbs {
		caps, elements := capability.Lookup(b.DeviceType)
		baseSlot := topology.MeshSlot(b.DeviceID, homeIDNum)

		primary := &topology.Device{
			ID:       fmt.Sprintf("%s-%d", homeID, b.DeviceID),
			Name:     b.DisplayName,
			HomeID:   homeID,
			MeshID:   uint16(baseSlot),
			SwitchID: b.SwitchID,
			Caps:     caps,
			Elements: elements,
		}
		devices = append(devices, primary)
		byVendorID[b.DeviceID] = primary
		if baseSlot > maxSlot {
			maxSlot = baseSlot
		}
		if primary.IsController() {
			controllerIDs = append(controllerIDs, primary.ID)
		}

		for e := 1; e < elements; e++ {
			slot := topology.ElementSlot(baseSlot, e)
			secondary := &topology.Device{
				ID:       fmt.Sprintf("%s-%d-%d", homeID, b.DeviceID, e),
				Name:     fmt.Sprintf("%s (Zone %d)", b.DisplayName, e+1),
				HomeID:   homeID,
				MeshID:   uint16(slot),
				Caps:     caps,
				Elements: 1,
			}
			devices = append(devices, secondary)
			if slot > maxSlot {
				maxSlot = slot
			}
		}
	}

	return devices, byVendorID, controllerIDs, maxSlot
}

// buildRooms converts groupsArray entries into topology.Room values.
// Groups with no on/off-capable member are omitted entirely; a listed
// subgroup id that doesn't resolve to another group in this home is
// dropped from the parent's subgroup list. The vendor group payload
// carries no independent mesh-id field, so a Room's mesh id is derived
// with the same formula as a Device's (topology.MeshSlot), keyed off
// the group id instead of the device id.
func buildRooms(homeID string, groups []groupEntry, deviceByVendorID map[int]*topology.Device) []*topology.Room {
	homeIDNum, _ := strconv.Atoi(homeID)

	byVendorID := make(map[int]groupEntry, len(groups))
	for _, g := range groups {
		byVendorID[g.GroupID] = g
	}

	rooms := make(map[string]*topology.Room, len(groups))

	build := func(g groupEntry) *topology.Room {
		if !groupHasOnOffMember(g, deviceByVendorID) {
			return nil
		}

		roomID := fmt.Sprintf("%s-%d", homeID, g.GroupID)
		memberIDs := make([]string, 0, len(g.DeviceIDArray))
		var supportsBrightness, supportsColorTemp, supportsRGB bool
		var defaultController uint32

		for _, vendorID := range g.DeviceIDArray {
			d, ok := deviceByVendorID[vendorID]
			if !ok {
				continue
			}
			memberIDs = append(memberIDs, d.ID)
			d.RoomID = roomID
			supportsBrightness = supportsBrightness || d.SupportsBrightness()
			supportsColorTemp = supportsColorTemp || d.SupportsColorTemp()
			supportsRGB = supportsRGB || d.SupportsRGB()
			if defaultController == 0 && d.IsController() {
				defaultController = d.SwitchID
			}
		}

		var subgroupIDs []string
		for _, sub := range g.SubgroupIDs {
			if _, ok := byVendorID[sub]; !ok {
				continue // unresolved subgroup id: silently dropped
			}
			subgroupIDs = append(subgroupIDs, fmt.Sprintf("%s-%d", homeID, sub))
		}

		return &topology.Room{
			ID:                 roomID,
			HomeID:             homeID,
			Name:               g.DisplayName,
			MeshID:             uint16(topology.MeshSlot(g.GroupID, homeIDNum)),
			MemberDeviceIDs:    memberIDs,
			SubgroupIDs:        subgroupIDs,
			IsSubgroup:         g.IsSubgroup,
			DefaultController:  defaultController,
			SupportsBrightness: supportsBrightness,
			SupportsColorTemp:  supportsColorTemp,
			SupportsRGB:        supportsRGB,
		}
	}

	// Top-level rooms build (and stamp Device.RoomID) first, subgroups
	// second, so a member device that belongs to both ends up with its
	// RoomID on the more specific subgroup.
	for _, g := range groups {
		if g.IsSubgroup {
			continue
		}
		if r := build(g); r != nil {
			rooms[r.ID] = r
		}
	}
	for _, g := range groups {
		if !g.IsSubgroup {
			continue
		}
		if r := build(g); r != nil {
			rooms[r.ID] = r
		}
	}

	// Second pass: stamp each subgroup's ParentID from whichever
	// top-level room still lists it after unresolved ids were dropped.
	for _, r := range rooms {
		for _, subID := range r.SubgroupIDs {
			if sub, ok := rooms[subID]; ok {
				sub.ParentID = r.ID
			}
		}
	}

	out := make([]*topology.Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r)
	}
	return out
}

func groupHasOnOffMember(g groupEntry, deviceByVendorID map[int]*topology.Device) bool {
	for _, vendorID := range g.DeviceIDArray {
		if d, ok := deviceByVendorID[vendorID]; ok && d.Caps.Has(capability.OnOff) {
			return true
		}
	}
	return false
}
