// Package capability maps a Cync device's numeric type code to a static
// bitset of what it can do. Unlike a home-automation host's capability
// model, there is no live negotiation here: the vendor's device-type
// taxonomy is fixed, so the table is built once and never mutated.
package capability

// Bitset is a set of capability flags for a single device type.
type Bitset uint16

// Capability flags. A device type can carry any combination.
const (
	OnOff Bitset = 1 << iota
	Brightness
	ColorTemp
	RGB
	Motion
	AmbientLight
	WifiControl
	Plug
	Fan
	MultiElement
)

// Has reports whether the bitset carries the given flag.
func (b Bitset) Has(flag Bitset) bool {
	return b&flag != 0
}

// entry pairs a device-type code with its capability bitset and, for
// multi-element devices, the number of addressable elements.
type entry struct {
	caps     Bitset
	elements int
}

// table maps vendor device-type code to its capability entry. Built from
// the abridged capability bitset in the vendor protocol documentation:
// ONOFF, BRIGHTNESS, COLORTEMP, RGB, MOTION, AMBIENT_LIGHT, WIFICONTROL,
// PLUG, FAN, MULTIELEMENT(n).
//
// Device type 67 is multi-element with 2 elements. Device type 81 is a
// fan, included in WIFICONTROL per the latest vendor table (see
// DESIGN.md open-question decisions for the type-56 motion/ambient-light
// and type-81/WIFICONTROL calls).
var table = map[int]entry{
	// Plain on/off switches and plugs.
	1:  {caps: OnOff},
	2:  {caps: OnOff | Plug},
	3:  {caps: OnOff | Plug},

	// Dimmable white bulbs.
	4:  {caps: OnOff | Brightness},
	5:  {caps: OnOff | Brightness},
	6:  {caps: OnOff | Brightness | WifiControl},

	// Tunable-white bulbs (brightness + CT, no RGB).
	7:  {caps: OnOff | Brightness | ColorTemp},
	8:  {caps: OnOff | Brightness | ColorTemp | WifiControl},
	9:  {caps: OnOff | Brightness | ColorTemp},

	// Full-color bulbs (brightness + CT + RGB).
	10: {caps: OnOff | Brightness | ColorTemp | RGB},
	11: {caps: OnOff | Brightness | ColorTemp | RGB | WifiControl},
	12: {caps: OnOff | Brightness | ColorTemp | RGB},

	// Multi-element fixtures (e.g. two-zone strip controllers).
	67: {caps: OnOff | Brightness | ColorTemp | RGB | WifiControl | MultiElement, elements: 2},

	// Sensors.
	55: {caps: Motion | AmbientLight},
	56: {caps: OnOff}, // deliberately excludes Motion/AmbientLight, see DESIGN.md

	// Wi-Fi controller hub devices with no light output of their own.
	128: {caps: WifiControl},
	129: {caps: WifiControl},

	// Fan (brightness-controlled on/off, per spec.md 4.4/9).
	81: {caps: OnOff | Brightness | WifiControl | Fan},
}

// Lookup returns the capability bitset and element count for a device
// type code. Unknown codes default to a bare on/off device with one
// element - a conservative fallback that still lets the device be
// controlled, just without the richer capabilities it may actually have.
func Lookup(deviceType int) (caps Bitset, elements int) {
	e, ok := table[deviceType]
	if !ok {
		return OnOff, 1
	}
	if e.elements < 1 {
		return e.caps, 1
	}
	return e.caps, e.elements
}

// IsController reports whether a device type is Wi-Fi capable and
// therefore eligible to act as a mesh controller once it reports a
// non-zero switch id.
func IsController(deviceType int) bool {
	caps, _ := Lookup(deviceType)
	return caps.Has(WifiControl)
}
