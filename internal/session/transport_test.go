package session

import (
	"context"
	"testing"
	"time"

	"github.com/cyncmesh/cync-core/internal/config"
)

// TestConnectWithFallback_GivesUpOnContextCancel verifies the retry loop
// respects ctx cancellation instead of retrying forever against an
// address nothing listens on.
func TestConnectWithFallback_GivesUpOnContextCancel(t *testing.T) {
	cfg := config.TransportConfig{
		Host:           "127.0.0.1",
		TLSPort:        1, // nothing listens here
		PlaintextPort:  2,
		ConnectTimeout: 1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := connectWithFallback(ctx, cfg)
	if err == nil {
		t.Fatal("expected an error once the context is cancelled")
	}
}
