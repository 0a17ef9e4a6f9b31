// Package api implements a small read-only diagnostics HTTP server for
// the bridge: topology inspection, runtime metrics, and a websocket
// stream of the same state-change and status events the Go Subscribe
// callback receives.
//
// This is a monitoring surface only. It never substitutes for the
// host's entity lifecycle or command path - those go through
// internal/core.Client directly. Every route except GET /healthz is
// bearer-token protected; there is no user or session model, only a
// single pre-shared operator secret.
package api
