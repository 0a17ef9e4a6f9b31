package discovery

import "errors"

// Sentinel errors returned by Client, checked with errors.Is.
var (
	// ErrInvalidAuth means the REST API rejected the submitted email,
	// password, or two-factor code outright.
	ErrInvalidAuth = errors.New("discovery: invalid auth")

	// ErrTwoFactorRequired is a continuation signal, not a terminal
	// failure: the caller must collect a code and call SubmitTwoFactor.
	ErrTwoFactorRequired = errors.New("discovery: two-factor code required")

	// ErrNoUsableHome means discovery completed but every home lacked a
	// reachable Wi-Fi controller, so none were kept.
	ErrNoUsableHome = errors.New("discovery: no usable home found")

	// ErrTransport wraps network/HTTP-level failures.
	ErrTransport = errors.New("discovery: transport error")
)
