package session

import "errors"

// Sentinel errors surfaced by Session and used by the Command Engine to
// classify a failed command.
var (
	// ErrNotConnected indicates an operation was attempted while the
	// session has no live transport.
	ErrNotConnected = errors.New("session: not connected")

	// ErrShuttingDown indicates the session was cancelled while a
	// command waiter was still pending; the waiter resolves with this
	// error instead of an ack.
	ErrShuttingDown = errors.New("session: shutting down")

	// ErrConnectionFailed indicates every transport fallback (TLS
	// verified, TLS insecure, plaintext) failed on one connect attempt.
	ErrConnectionFailed = errors.New("session: connection failed")

	// ErrLoginFailed indicates writing the login frame failed. The
	// Session does not wait for or read a login response; the session
	// is marked Ready as soon as the write succeeds.
	ErrLoginFailed = errors.New("session: login failed")
)
