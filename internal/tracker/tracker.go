// Package tracker implements the Controller Tracker: the periodic probe
// that maintains, per home, which Wi-Fi controller devices are currently
// reachable on the mesh.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cyncmesh/cync-core/internal/topology"
)

const (
	maxRounds      = 10
	pingSpacing    = 150 * time.Millisecond
	roundWait      = 2 * time.Second
	refreshPeriod  = time.Hour
)

// Pinger sends a single keepalive probe to a controller. The Session
// implements this by writing an encoded 0xA3 frame.
type Pinger interface {
	SendKeepalive(ctx context.Context, switchID uint32) error
}

// Tracker runs the ping-burst refresh algorithm and records which
// controllers responded.
type Tracker struct {
	topo   *topology.Topology
	pinger Pinger

	mu       sync.Mutex
	observed map[string]map[uint32]bool // homeID -> switchID -> seen this round
}

// New builds a Tracker over topo, using pinger to send probes.
func New(topo *topology.Topology, pinger Pinger) *Tracker {
	return &Tracker{
		topo:     topo,
		pinger:   pinger,
		observed: make(map[string]map[uint32]bool),
	}
}

// Observe records that switchID in homeID responded to a probe (either
// a presence frame or any response during the active refresh window).
// Safe to call from the Session's dispatch goroutine concurrently with
// Refresh running on another goroutine.
func (t *Tracker) Observe(homeID string, switchID uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.observed[homeID] == nil {
		t.observed[homeID] = make(map[uint32]bool)
	}
	t.observed[homeID][switchID] = true
}

// Refresh runs one full ping-burst cycle: clears the reachable set, then
// up to maxRounds times pings every known controller in every home with
// pingSpacing between pings and waits roundWait between rounds, stopping
// early once every home has at least half its known controllers
// reachable. It then commits the observed set to the Topology.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	t.observed = make(map[string]map[uint32]bool)
	t.mu.Unlock()

	homes := t.topo.Homes()

	for round := 0; round < maxRounds; round++ {
		for _, h := range homes {
			for _, deviceID := range h.ControllerDeviceIDs {
				d, err := t.topo.Device(deviceID)
				if err != nil || d.SwitchID == 0 {
					continue
				}
				if err := t.pinger.SendKeepalive(ctx, d.SwitchID); err != nil {
					// A send failure for one controller doesn't abort the
					// round; the session's own reconnect logic handles
					// transport failure.
					continue
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(pingSpacing):
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(roundWait):
		}

		if t.halfReachableEverywhere(homes) {
			break
		}
	}

	t.commit(homes)
	return nil
}

func (t *Tracker) halfReachableEverywhere(homes []*topology.Home) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, h := range homes {
		total := len(h.ControllerDeviceIDs)
		if total == 0 {
			continue
		}
		reachable := len(t.observed[h.ID])
		if reachable*2 < total {
			return false
		}
	}
	return true
}

func (t *Tracker) commit(homes []*topology.Home) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, h := range homes {
		var ids []uint32
		for switchID := range t.observed[h.ID] {
			ids = append(ids, switchID)
		}
		// Map iteration order is randomized; Engine.controllersInOrder's
		// step-3 fallback walks this slice in order, so it needs to be
		// stable across refreshes rather than reshuffled every commit.
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		_ = t.topo.SetReachableControllers(h.ID, ids)
	}
}

// RefreshLoop runs Refresh immediately, then every refreshPeriod, until
// ctx is cancelled.
func (t *Tracker) RefreshLoop(ctx context.Context) error {
	if err := t.Refresh(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(refreshPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Refresh(ctx); err != nil {
				return err
			}
		}
	}
}
