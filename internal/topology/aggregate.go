package topology

// DeviceUpdate carries the fields a decoded inbound frame changed. A nil
// field was not present in the frame and is left untouched.
type DeviceUpdate struct {
	Power        *bool
	Brightness   *int
	ColorTemp    *int
	RGB          *[3]byte
	RGBActive    *bool
	Motion       *bool
	AmbientLight *bool
}

// ApplyDeviceUpdate merges upd into deviceID's State, enforces the
// brightness invariants, and - if anything externally visible changed -
// notifies that device's subscribers and recomputes the rollup of its
// Room (and, one level up, that room's parent if it is a subgroup).
//
// It returns the resulting Snapshot and whether any field actually
// changed, so the Command Engine can distinguish a real state transition
// from a redundant echo.
func (t *Topology) ApplyDeviceUpdate(deviceID string, upd DeviceUpdate) (Snapshot, bool, error) {
	t.mu.Lock()
	d, ok := t.devices[deviceID]
	if !ok {
		t.mu.Unlock()
		return Snapshot{}, false, ErrDeviceNotFound
	}

	before := d.State
	applyUpdate(&d.State, upd)
	clampState(&d.State, d.SupportsBrightness())
	changed := before != d.State
	snap := d.State.Snapshot(d.ID)
	roomID := d.RoomID
	t.mu.Unlock()

	if changed {
		t.notify(deviceID, snap)
	}
	if roomID != "" {
		t.recomputeRoom(roomID)
	}
	return snap, changed, nil
}

func applyUpdate(s *State, upd DeviceUpdate) {
	if upd.Power != nil {
		s.Power = *upd.Power
	}
	if upd.Brightness != nil {
		s.Brightness = *upd.Brightness
	}
	if upd.ColorTemp != nil {
		s.ColorTemp = *upd.ColorTemp
	}
	if upd.RGB != nil {
		s.RGB = *upd.RGB
	}
	if upd.RGBActive != nil {
		s.RGBActive = *upd.RGBActive
	}
	if upd.Motion != nil {
		s.Motion = *upd.Motion
	}
	if upd.AmbientLight != nil {
		s.AmbientLight = *upd.AmbientLight
	}
}

// recomputeRoom rebuilds roomID's rollup from its member devices, and if
// it changed, notifies subscribers and cascades one level to its parent
// (a subgroup's rollup affects its parent room's rollup, but never
// beyond - the tree is only two levels deep).
func (t *Topology) recomputeRoom(roomID string) {
	t.mu.Lock()
	room, ok := t.rooms[roomID]
	if !ok {
		t.mu.Unlock()
		return
	}

	members := make([]*Device, 0, len(room.MemberDeviceIDs))
	for _, id := range room.MemberDeviceIDs {
		if d, ok := t.devices[id]; ok {
			members = append(members, d)
		}
	}

	before := room.State
	room.State = rollupDevices(members)
	changed := before != room.State
	snap := room.State.Snapshot(room.ID)
	parentID := room.ParentID
	t.mu.Unlock()

	if changed {
		t.notify(roomID, snap)
	}
	if parentID != "" {
		t.recomputeRoomFromSubgroups(parentID)
	}
}

// recomputeRoomFromSubgroups rebuilds a parent room's rollup from the
// member devices of all its subgroups combined - the one-level cascade
// above a subgroup's own recompute.
func (t *Topology) recomputeRoomFromSubgroups(roomID string) {
	t.mu.Lock()
	room, ok := t.rooms[roomID]
	if !ok {
		t.mu.Unlock()
		return
	}

	var members []*Device
	for _, subID := range room.SubgroupIDs {
		sub, ok := t.rooms[subID]
		if !ok {
			continue
		}
		for _, id := range sub.MemberDeviceIDs {
			if d, ok := t.devices[id]; ok {
				members = append(members, d)
			}
		}
	}
	for _, id := range room.MemberDeviceIDs {
		if d, ok := t.devices[id]; ok {
			members = append(members, d)
		}
	}

	before := room.State
	room.State = rollupDevices(members)
	changed := before != room.State
	snap := room.State.Snapshot(room.ID)
	t.mu.Unlock()

	if changed {
		t.notify(roomID, snap)
	}
}

// rollupDevices computes a Room's aggregate State from its member
// devices:
//
//   - power: true if any member is on (OR)
//   - brightness: mean of Brightness across members that support
//     brightness; if none support it, 100 when any member is on, else 0
//   - color_temp: mean of ColorTemp across members that support CT
//   - rgb: componentwise mean across members that support RGB, each
//     component divided by the count of RGB-supporting members (the
//     same denominator for every component, since they all come from
//     the same member list - this is the fix for the reference
//     implementation's bug of reusing one channel's count for another)
//   - active: true if any RGB-supporting member currently has RGBActive
func rollupDevices(members []*Device) State {
	var s State

	var brightnessSum, brightnessCount int
	var ctSum, ctCount int
	var rSum, gSum, bSum, rgbCount int

	for _, d := range members {
		if d.State.Power {
			s.Power = true
		}
		if d.SupportsBrightness() {
			brightnessSum += d.State.Brightness
			brightnessCount++
		}
		if d.SupportsColorTemp() {
			ctSum += d.State.ColorTemp
			ctCount++
		}
		if d.SupportsRGB() {
			rSum += int(d.State.RGB[0])
			gSum += int(d.State.RGB[1])
			bSum += int(d.State.RGB[2])
			rgbCount++
			if d.State.RGBActive {
				s.RGBActive = true
			}
		}
		if d.State.Motion {
			s.Motion = true
		}
		if d.State.AmbientLight {
			s.AmbientLight = true
		}
	}

	if brightnessCount > 0 {
		s.Brightness = roundDiv(brightnessSum, brightnessCount)
	} else if s.Power {
		s.Brightness = 100
	}

	if ctCount > 0 {
		s.ColorTemp = roundDiv(ctSum, ctCount)
	}

	if rgbCount > 0 {
		s.RGB = [3]byte{
			byte(roundDiv(rSum, rgbCount)),
			byte(roundDiv(gSum, rgbCount)),
			byte(roundDiv(bSum, rgbCount)),
		}
	}

	return s
}

// roundDiv computes sum/count rounded half-up, matching spec.md's
// "mean ... (rounded)" rollup rule (Testable Property 5) instead of Go's
// truncating integer division.
func roundDiv(sum, count int) int {
	return (sum*2 + count) / (2 * count)
}

// SetReachableControllers replaces a home's set of currently-responsive
// controller switch ids, called by the Controller Tracker after each
// ping round.
func (t *Topology) SetReachableControllers(homeID string, switchIDs []uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.homes[homeID]
	if !ok {
		return ErrHomeNotFound
	}
	h.ReachableControllers = append([]uint32(nil), switchIDs...)
	return nil
}
