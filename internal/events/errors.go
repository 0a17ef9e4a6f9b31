package events

import "errors"

// Domain-specific errors for the MQTT event publisher.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting to publish while disconnected.
	ErrNotConnected = errors.New("events: publisher not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("events: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("events: publish failed")
)
