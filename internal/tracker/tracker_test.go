package tracker

import (
	"context"
	"sync"
	"testing"

	"github.com/cyncmesh/cync-core/internal/topology"
)

type fakePinger struct {
	mu  sync.Mutex
	obs func(switchID uint32)
}

func (p *fakePinger) SendKeepalive(_ context.Context, switchID uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.obs != nil {
		p.obs(switchID)
	}
	return nil
}

func buildTopoWithControllers(homeID string, switchIDs ...uint32) *topology.Topology {
	top := topology.New()
	h := &topology.Home{ID: homeID}
	top.AddHome(h)
	for i, sw := range switchIDs {
		d := &topology.Device{ID: homeID + "-c" + string(rune('a'+i)), HomeID: homeID, SwitchID: sw}
		top.AddDevice(d)
		h.ControllerDeviceIDs = append(h.ControllerDeviceIDs, d.ID)
	}
	return top
}

func TestTracker_ObserveThenRefreshCommitsReachable(t *testing.T) {
	top := buildTopoWithControllers("h1", 100, 200)

	var tr *Tracker
	pinger := &fakePinger{}
	tr = New(top, pinger)
	pinger.obs = func(switchID uint32) {
		tr.Observe("h1", switchID)
	}

	ctx := context.Background()
	if err := tr.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	h, err := top.Home("h1")
	if err != nil {
		t.Fatalf("Home: %v", err)
	}
	if len(h.ReachableControllers) != 2 {
		t.Errorf("reachable = %v, want both controllers", h.ReachableControllers)
	}
}

func TestTracker_HalfReachableEverywhere(t *testing.T) {
	top := buildTopoWithControllers("h1", 1, 2, 3, 4)
	tr := New(top, &fakePinger{})

	tr.Observe("h1", 1)
	tr.Observe("h1", 2)
	if !tr.halfReachableEverywhere(top.Homes()) {
		t.Error("expected half-reachable (2 of 4) to satisfy the early-stop condition")
	}

	tr2 := New(top, &fakePinger{})
	tr2.Observe("h1", 1)
	if tr2.halfReachableEverywhere(top.Homes()) {
		t.Error("expected 1 of 4 reachable to not satisfy early-stop")
	}
}

func TestTracker_NoControllersIsVacuouslySatisfied(t *testing.T) {
	top := topology.New()
	top.AddHome(&topology.Home{ID: "empty"})
	tr := New(top, &fakePinger{})
	if !tr.halfReachableEverywhere(top.Homes()) {
		t.Error("a home with zero known controllers should not block early-stop")
	}
}
