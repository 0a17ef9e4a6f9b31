package topology

import "errors"

// Sentinel errors for topology lookups.
var (
	// ErrHomeNotFound indicates a lookup referenced an unknown home id.
	ErrHomeNotFound = errors.New("topology: home not found")

	// ErrDeviceNotFound indicates a lookup referenced an unknown device id.
	ErrDeviceNotFound = errors.New("topology: device not found")

	// ErrRoomNotFound indicates a lookup referenced an unknown room id.
	ErrRoomNotFound = errors.New("topology: room not found")

	// ErrInvalidCyncConfiguration indicates discovery produced no usable
	// home - every home lacked a Wi-Fi-capable controller device.
	ErrInvalidCyncConfiguration = errors.New("topology: no usable home after discovery")
)
