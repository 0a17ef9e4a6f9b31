package command

import "errors"

// Sentinel errors a Command call can return. See spec.md 4.5 failure
// semantics.
var (
	// ErrEntityNotFound indicates entityID names neither a known Device
	// nor a known Room.
	ErrEntityNotFound = errors.New("command: entity not found")

	// ErrNoController indicates the entity's home has no controller to
	// route a command through at all (not even a fallback).
	ErrNoController = errors.New("command: no controller available")

	// ErrCommandTimeout indicates every retry attempt's waiter expired
	// without an ack; the device may or may not have actually changed.
	ErrCommandTimeout = errors.New("command: timed out waiting for ack")

	// ErrDisconnected indicates the underlying Session was shutting down
	// or lost its transport mid-retry; callers should treat this as
	// "retry later" rather than a definite failure.
	ErrDisconnected = errors.New("command: session disconnected")
)
