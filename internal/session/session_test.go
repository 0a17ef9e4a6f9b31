package session

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cyncmesh/cync-core/internal/capability"
	"github.com/cyncmesh/cync-core/internal/codec"
	"github.com/cyncmesh/cync-core/internal/config"
	"github.com/cyncmesh/cync-core/internal/logging"
	"github.com/cyncmesh/cync-core/internal/topology"
)

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	topo := topology.New()
	topo.AddHome(&topology.Home{ID: "h1"})
	topo.AddDevice(&topology.Device{
		ID:     "h1-5",
		HomeID: "h1",
		MeshID: 5,
		Caps:   capability.Brightness | capability.ColorTemp,
	})

	s := New(config.TransportConfig{}, Credentials{}, topo, logging.Default())

	client, server := net.Pipe()
	s.conn = client
	t.Cleanup(func() { client.Close(); server.Close() })
	return s, server
}

func TestSession_DispatchSnapshotUpdatesTopologyAndAcks(t *testing.T) {
	s, server := newTestSession(t)
	topo := mustTopologyOf(s)

	payload := make([]byte, 60)
	payload[13] = 0x52 // guardSnapshot, mirrors inbound.go's unexported constant
	record := payload[22:46]
	record[0] = 5
	record[8] = 1
	record[12] = 60
	record[16] = 200

	frame := codec.Frame{Type: codec.TypeRequest, Payload: payload}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.dispatch(frame)
	}()

	ackBuf := make([]byte, 256)
	server.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := server.Read(ackBuf); err != nil {
		t.Fatalf("reading ack: %v", err)
	}
	if ackBuf[0] != codec.TypeRequest {
		t.Errorf("ack frame type = %#x, want TypeRequest echoed back", ackBuf[0])
	}
	<-done

	d, err := topo.Device("h1-5")
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if !d.State.Power || d.State.Brightness != 60 || d.State.ColorTemp != 200 {
		t.Errorf("state = %+v, want power=true brightness=60 color_temp=200", d.State)
	}
}

func TestSession_DispatchCommandAckResolvesWaiter(t *testing.T) {
	s, _ := newTestSession(t)
	ch := s.pending.register(42)

	payload := make([]byte, 6)
	payload[4], payload[5] = 0, 42
	s.dispatch(codec.Frame{Type: codec.TypeCommandAck, Payload: payload})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("ack did not resolve the registered waiter")
	}
}

func TestSession_OnStateChange_FiresOnTransition(t *testing.T) {
	s, _ := newTestSession(t)

	var got []State
	var mu sync.Mutex
	s.OnStateChange(func(st State) {
		mu.Lock()
		got = append(got, st)
		mu.Unlock()
	})

	s.setState(Connecting)
	s.setState(Ready)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != Connecting || got[1] != Ready {
		t.Errorf("observed transitions = %v, want [Connecting Ready]", got)
	}
}

func newMultiElementTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	topo := topology.New()
	topo.AddHome(&topology.Home{ID: "h1"})
	topo.AddDevice(&topology.Device{
		ID: "h1-9", HomeID: "h1", MeshID: 9,
		Caps: capability.OnOff | capability.Brightness, Elements: 2,
	})
	topo.AddDevice(&topology.Device{
		ID: "h1-9-1", HomeID: "h1", MeshID: 9 + 256,
		Caps: capability.OnOff | capability.Brightness, Elements: 1,
	})

	s := New(config.TransportConfig{}, Credentials{}, topo, logging.Default())
	client, server := net.Pipe()
	s.conn = client
	t.Cleanup(func() { client.Close(); server.Close() })
	return s, server
}

func TestSession_ApplyRecord_MultiElementFansOutAcrossSiblingDevices(t *testing.T) {
	s, _ := newMultiElementTestSession(t)
	topo := mustTopologyOf(s)

	// rawMask (byte[8]) enables element 0 only; rawShift (byte[12]) selects
	// which bits of the mask apply to which element index.
	record := codec.DeviceRecord{Slot: 9, MultiMask: 0x01, MultiShift: 0x01}
	s.applyRecord(record)

	primary, err := topo.Device("h1-9")
	if err != nil {
		t.Fatalf("Device h1-9: %v", err)
	}
	secondary, err := topo.Device("h1-9-1")
	if err != nil {
		t.Fatalf("Device h1-9-1: %v", err)
	}

	if !primary.State.Power {
		t.Error("expected element 0 (primary) to be powered on")
	}
	if secondary.State.Power {
		t.Error("expected element 1 (secondary) to remain off, not clobbered by element 0's update")
	}
}

func mustTopologyOf(s *Session) *topology.Topology { return s.topo }
