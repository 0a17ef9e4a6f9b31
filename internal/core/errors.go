package core

import "errors"

// ErrNotDiscovered indicates Start was called before a successful
// Discover (or SubmitTwoFactor) call populated the Topology.
var ErrNotDiscovered = errors.New("core: Start called before Discover")
