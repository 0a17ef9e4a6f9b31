package topology

import (
	"sync"

	"github.com/cyncmesh/cync-core/internal/capability"
)

// State is the live, mutable portion of a Device or Room: everything the
// session's inbound dispatch can change after discovery built the
// structural graph around it.
type State struct {
	Power        bool
	Brightness   int // 0-100
	ColorTemp    int // 0-100, 0=cool .. 100=warm on the vendor scale
	RGB          [3]byte
	RGBActive    bool // true: the colour channel, not white, currently drives output
	Motion       bool
	AmbientLight bool
}

// Device is a single addressable entity on a home's mesh. The structural
// fields (ID, HomeID, MeshID, SwitchID, Caps, Elements, RoomID) are fixed
// at discovery and never change; only State mutates during the session.
type Device struct {
	ID       string
	Name     string
	HomeID   string
	MeshID   uint16
	SwitchID uint32 // non-zero iff this device is a Wi-Fi controller
	Caps     capability.Bitset
	Elements int // >1 for multi-element devices
	RoomID   string

	State State
}

// SupportsBrightness reports whether the device accepts brightness
// commands.
func (d *Device) SupportsBrightness() bool { return d.Caps.Has(capability.Brightness) }

// SupportsColorTemp reports whether the device accepts colour
// temperature commands.
func (d *Device) SupportsColorTemp() bool { return d.Caps.Has(capability.ColorTemp) }

// SupportsRGB reports whether the device accepts RGB commands.
func (d *Device) SupportsRGB() bool { return d.Caps.Has(capability.RGB) }

// IsController reports whether this device can route commands onto the
// mesh (Wi-Fi capable with a non-zero switch id).
func (d *Device) IsController() bool { return d.SwitchID != 0 && d.Caps.Has(capability.WifiControl) }

// clampState enforces the brightness invariants: brightness in [0,100];
// power=false implies brightness=0; when brightness is unsupported,
// brightness tracks power (100 when on, 0 when off).
func clampState(s *State, supportsBrightness bool) {
	if s.Brightness < 0 {
		s.Brightness = 0
	}
	if s.Brightness > 100 {
		s.Brightness = 100
	}
	if !s.Power {
		s.Brightness = 0
		return
	}
	if !supportsBrightness {
		s.Brightness = 100
	}
}

// Room is a named collection of devices (or, for a subgroup, a
// second-level grouping under a parent Room). Rooms and subgroups form a
// two-level tree only: a subgroup's SubgroupIDs is always empty.
type Room struct {
	ID                string // "{home_id}-{group_id}"
	HomeID            string
	Name              string
	MeshID            uint16
	DefaultController uint32
	MemberDeviceIDs   []string
	SubgroupIDs       []string
	IsSubgroup        bool
	ParentID          string // set iff IsSubgroup

	SupportsBrightness bool
	SupportsColorTemp  bool
	SupportsRGB        bool

	State State
}

// Home is a mesh of devices under one vendor account home id.
type Home struct {
	ID                   string
	Name                 string
	MeshSlots            []string // sparse: index is mesh slot, "" is an empty sentinel
	ControllerDeviceIDs  []string
	ReachableControllers []uint32 // switch ids currently responsive, see internal/tracker
}

// Snapshot is a read-only, externally safe copy of an entity's current
// state, handed to Subscribe callbacks and used to build diagnostics API
// responses. It never aliases Topology's internal maps.
type Snapshot struct {
	EntityID     string
	Power        bool
	Brightness   int
	ColorTemp    int
	RGB          [3]byte
	RGBActive    bool
	Motion       bool
	AmbientLight bool
}

// Snapshot builds the externally-safe Snapshot of s for entityID, used
// by Subscribe callbacks and the diagnostics API's topology dump.
func (s State) Snapshot(entityID string) Snapshot {
	return Snapshot{
		EntityID:     entityID,
		Power:        s.Power,
		Brightness:   s.Brightness,
		ColorTemp:    s.ColorTemp,
		RGB:          s.RGB,
		RGBActive:    s.RGBActive,
		Motion:       s.Motion,
		AmbientLight: s.AmbientLight,
	}
}

// Topology is the in-memory Home -> Device -> Room -> Subgroup graph
// built once by Discovery and held immutable in structure thereafter;
// only State fields and each Home's ReachableControllers mutate during
// the session.
//
// Thread Safety:
//   - All methods are safe for concurrent use. The structural graph
//     (built at Discover time) never changes, so reads of it need no
//     lock; State and ReachableControllers mutations take mu.
type Topology struct {
	mu sync.RWMutex

	homes   map[string]*Home
	devices map[string]*Device
	rooms   map[string]*Room

	// meshIndex[homeID][meshID] -> deviceID, for O(1) inbound dispatch.
	meshIndex map[string]map[uint16]string
	// switchIndex[homeID][switchID] -> deviceID, for presence/ack routing.
	switchIndex map[string]map[uint32]string

	subMu       sync.RWMutex
	subscribers map[string][]func(Snapshot)
}

// New builds an empty Topology. Discovery populates it via AddHome,
// AddDevice, and AddRoom before handing it to the Session.
func New() *Topology {
	return &Topology{
		homes:       make(map[string]*Home),
		devices:     make(map[string]*Device),
		rooms:       make(map[string]*Room),
		meshIndex:   make(map[string]map[uint16]string),
		switchIndex: make(map[string]map[uint32]string),
		subscribers: make(map[string][]func(Snapshot)),
	}
}

// AddHome registers a Home. Must be called before any AddDevice call
// referencing it.
func (t *Topology) AddHome(h *Home) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.homes[h.ID] = h
	t.meshIndex[h.ID] = make(map[uint16]string)
	t.switchIndex[h.ID] = make(map[uint32]string)
}

// AddDevice registers a Device and indexes it by mesh id and, if it is a
// controller, by switch id.
func (t *Topology) AddDevice(d *Device) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices[d.ID] = d
	if idx, ok := t.meshIndex[d.HomeID]; ok {
		idx[d.MeshID] = d.ID
	}
	if d.IsController() {
		if idx, ok := t.switchIndex[d.HomeID]; ok {
			idx[d.SwitchID] = d.ID
		}
	}
}

// AddRoom registers a Room.
func (t *Topology) AddRoom(r *Room) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rooms[r.ID] = r
}

// Home returns a Home by id.
func (t *Topology) Home(id string) (*Home, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.homes[id]
	if !ok {
		return nil, ErrHomeNotFound
	}
	return h, nil
}

// Homes returns every registered Home.
func (t *Topology) Homes() []*Home {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Home, 0, len(t.homes))
	for _, h := range t.homes {
		out = append(out, h)
	}
	return out
}

// Device returns a Device by id.
func (t *Topology) Device(id string) (*Device, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d, nil
}

// Room returns a Room by id.
func (t *Topology) Room(id string) (*Room, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// DeviceByMeshSlot resolves the device occupying a mesh slot within a
// home, used by the Packet Codec's inbound dispatch.
func (t *Topology) DeviceByMeshSlot(homeID string, slot uint16) (*Device, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.meshIndex[homeID]
	if !ok {
		return nil, false
	}
	id, ok := idx[slot]
	if !ok {
		return nil, false
	}
	return t.devices[id], true
}

// DeviceBySwitchID resolves the controller device with a given switch id
// within a home, used to attribute presence pings and ack frames.
func (t *Topology) DeviceBySwitchID(homeID string, switchID uint32) (*Device, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.switchIndex[homeID]
	if !ok {
		return nil, false
	}
	id, ok := idx[switchID]
	if !ok {
		return nil, false
	}
	return t.devices[id], true
}

// Devices returns every Device registered under homeID, used by the
// diagnostics API's topology dump and by internal/core to enumerate a
// home's entities for subscription.
func (t *Topology) Devices(homeID string) []*Device {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Device, 0)
	for _, d := range t.devices {
		if d.HomeID == homeID {
			out = append(out, d)
		}
	}
	return out
}

// Rooms returns every Room registered under homeID.
func (t *Topology) Rooms(homeID string) []*Room {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Room, 0)
	for _, r := range t.rooms {
		if r.HomeID == homeID {
			out = append(out, r)
		}
	}
	return out
}

// Subscribe registers fn to be invoked with a Snapshot whenever
// entityID's (device or room) state changes. It returns an unsubscribe
// function.
func (t *Topology) Subscribe(entityID string, fn func(Snapshot)) (unsubscribe func()) {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	t.subscribers[entityID] = append(t.subscribers[entityID], fn)
	idx := len(t.subscribers[entityID]) - 1

	return func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		subs := t.subscribers[entityID]
		if idx >= len(subs) {
			return
		}
		subs[idx] = nil
	}
}

func (t *Topology) notify(entityID string, snap Snapshot) {
	t.subMu.RLock()
	subs := append([]func(Snapshot){}, t.subscribers[entityID]...)
	t.subMu.RUnlock()

	for _, fn := range subs {
		if fn != nil {
			fn(snap)
		}
	}
}
