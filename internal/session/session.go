// Package session owns the single persistent TCP/TLS connection to the
// mesh controller endpoint: the login handshake, the keepalive and
// controller-tracker background tasks, the inbound dispatch loop, and
// the outbound write queue used by the Command Engine.
package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyncmesh/cync-core/internal/codec"
	"github.com/cyncmesh/cync-core/internal/config"
	"github.com/cyncmesh/cync-core/internal/logging"
	"github.com/cyncmesh/cync-core/internal/topology"
	"github.com/cyncmesh/cync-core/internal/tracker"
)

// State is the Session's connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Ready
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Credentials authenticates the login frame. UserID and Authorize come
// from the Discovery Client's REST login response.
type Credentials struct {
	UserID    uint32
	Authorize string
}

const readBufferSize = 4096

// Session drives the mesh connection. Only the dispatch task mutates
// Topology's device state; the socket is exclusively owned by Session.
type Session struct {
	cfg   config.TransportConfig
	creds Credentials
	topo  *topology.Topology
	log   *logging.Logger

	seq     sequenceCounter
	pending *pendingTable
	tracker *tracker.Tracker

	connMu sync.Mutex
	conn   net.Conn

	writeMu sync.Mutex

	stateMu  sync.RWMutex
	state    State
	onChange func(State)
}

// OnStateChange registers fn to be called, synchronously and from
// whichever goroutine triggers the transition, every time the Session's
// lifecycle state changes. Only one handler is kept; callers that need
// fan-out (e.g. core.Client's Events stream) should fan out themselves.
func (s *Session) OnStateChange(fn func(State)) {
	s.stateMu.Lock()
	s.onChange = fn
	s.stateMu.Unlock()
}

// New builds a Session together with its Controller Tracker, for which
// the Session itself serves as the Pinger.
func New(cfg config.TransportConfig, creds Credentials, topo *topology.Topology, log *logging.Logger) *Session {
	s := &Session{
		cfg:     cfg,
		creds:   creds,
		topo:    topo,
		log:     log,
		pending: newPendingTable(),
	}
	s.tracker = tracker.New(topo, s)
	return s
}

// State returns the Session's current lifecycle state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	onChange := s.onChange
	s.stateMu.Unlock()
	if onChange != nil {
		onChange(st)
	}
}

// Run connects, authenticates, and runs the reader/heartbeat/tracker
// tasks until ctx is cancelled or an unrecoverable error occurs. On a
// transport failure it reconnects automatically; it only returns once
// ctx is done, at which point it performs the shutdown handshake from
// spec.md section 4.3 and fails every outstanding command waiter.
func (s *Session) Run(ctx context.Context) error {
	defer s.pending.abortAll()

	for {
		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				s.setState(Disconnected)
				return ctx.Err()
			}
			s.log.Warn("session: connection lost, reconnecting", "error", err)
			s.setState(Reconnecting)
			continue
		}
		s.setState(Disconnected)
		return nil
	}
}

// runOnce performs one connect+login+task-group cycle. It returns nil
// only on a clean, ctx-driven shutdown; any transport or protocol
// failure returns a non-nil error so Run can reconnect.
func (s *Session) runOnce(ctx context.Context) error {
	s.setState(Connecting)
	conn, err := connectWithFallback(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		if s.conn == conn {
			conn.Close()
			s.conn = nil
		}
		s.connMu.Unlock()
	}()

	s.setState(Authenticating)
	if err := s.login(); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.setState(Ready)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.readLoop(gctx, conn) })
	group.Go(func() error { return s.heartbeatLoop(gctx) })
	group.Go(func() error { return s.tracker.RefreshLoop(gctx) })
	group.Go(func() error {
		// The reader blocks in conn.Read regardless of gctx, so once any
		// task ends or ctx is cancelled the socket is closed to release
		// it; on shutdown the state-request broadcast goes out first.
		<-gctx.Done()
		if ctx.Err() != nil {
			s.shutdownHandshake()
		}
		conn.Close()
		return nil
	})

	err = group.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Session) login() error {
	frame := codec.EncodeLoginFrame(s.creds.UserID, s.creds.Authorize)
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	return nil
}

// shutdownHandshake writes a state-request broadcast per known
// controller to unblock the reader's pending read, per spec.md 4.3.
// The broadcast is best-effort: the reader is unblocked for certain by
// the conn.Close that runOnce issues right after it, not by this write
// succeeding.
func (s *Session) shutdownHandshake() {
	for _, h := range s.topo.Homes() {
		for _, deviceID := range h.ControllerDeviceIDs {
			d, err := s.topo.Device(deviceID)
			if err != nil {
				continue
			}
			frame := codec.EncodeStateRequestBroadcast(d.SwitchID, s.seq.next())
			_ = s.writeFrame(frame)
		}
	}
}

func (s *Session) heartbeatLoop(ctx context.Context) error {
	interval := time.Duration(s.cfg.KeepaliveInterval) * time.Second
	if interval <= 0 {
		interval = 180 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.writeFrame(codec.EncodeHeartbeat()); err != nil {
				return err
			}
		}
	}
}

// SendKeepalive implements tracker.Pinger by writing a 0xA3 frame
// addressed to switchID.
func (s *Session) SendKeepalive(ctx context.Context, switchID uint32) error {
	return s.writeFrame(codec.EncodeKeepalivePing(switchID, s.seq.next()))
}

// Send writes frame to the socket, serializing with every other writer.
// Used by the Command Engine to dispatch a command after registering a
// waiter for its sequence number.
func (s *Session) Send(frame codec.Frame) error {
	return s.writeFrame(frame)
}

func (s *Session) writeFrame(frame codec.Frame) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := conn.Write(frame.Encode())
	return err
}

// NextSequence returns the next outbound command sequence number.
func (s *Session) NextSequence() uint16 {
	return s.seq.next()
}

// RegisterWaiter registers seq with the Pending Command Table, returning
// a channel that receives nil when the matching 0x7B ack arrives, or
// ErrShuttingDown if the session tears down first.
func (s *Session) RegisterWaiter(seq uint16) <-chan error {
	return s.pending.register(seq)
}

// CancelWaiter removes seq's waiter without resolving it, used by the
// Command Engine when a retry attempt gives up on that sequence number.
func (s *Session) CancelWaiter(seq uint16) {
	s.pending.cancel(seq)
}

func (s *Session) readLoop(ctx context.Context, conn net.Conn) error {
	buf := make([]byte, 0, readBufferSize)
	chunk := make([]byte, readBufferSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				frame, rest, ok := codec.PeelFrame(buf)
				if !ok {
					break
				}
				buf = append([]byte(nil), rest...)
				s.dispatch(frame)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (s *Session) dispatch(frame codec.Frame) {
	decoded, ok := codec.Decode(frame)
	if !ok {
		return
	}

	switch {
	case decoded.Delta != nil:
		s.applySlotUpdate(decoded.Delta.Slot, topology.DeviceUpdate{
			Power:      boolPtr(decoded.Delta.Power),
			Brightness: intPtr(int(decoded.Delta.Brightness)),
		})
	case decoded.Sensors != nil:
		s.applySlotUpdate(decoded.Sensors.Slot, topology.DeviceUpdate{
			Motion:       boolPtr(decoded.Sensors.Motion),
			AmbientLight: boolPtr(decoded.Sensors.Ambient),
		})
	case decoded.Snapshot != nil:
		for _, r := range decoded.Snapshot.Records {
			s.applyRecord(r)
		}
	case decoded.Batched != nil:
		for _, r := range decoded.Batched.Records {
			s.applyRecord(r)
		}
	case decoded.Presence != nil:
		s.observePresence(decoded.Presence.SwitchID)
	case decoded.Ack != nil:
		s.pending.resolve(decoded.Ack.Sequence)
	}

	if decoded.NeedsAck {
		_ = s.writeFrame(codec.EncodeAck(frame))
	}
}

// applyRecord resolves r's slot to a device and applies its decoded
// state. A multi-element device's record describes every element at
// once (packed into MultiMask/MultiShift), so it fans out across the
// element's sibling devices instead of writing r's fields straight onto
// one Device, per spec.md 4.2's snapshot/batched-state multi-element
// rule.
func (s *Session) applyRecord(r codec.DeviceRecord) {
	for _, h := range s.topo.Homes() {
		d, ok := s.topo.DeviceByMeshSlot(h.ID, uint16(r.Slot))
		if !ok {
			continue
		}
		if d.Elements > 1 {
			s.applyMultiElementRecord(h.ID, d, r)
			return
		}
		rgb := r.RGB
		if _, _, err := s.topo.ApplyDeviceUpdate(d.ID, topology.DeviceUpdate{
			Power:      boolPtr(r.Power),
			Brightness: intPtr(int(r.Brightness)),
			ColorTemp:  intPtr(int(r.ColorTemp)),
			RGB:        &rgb,
			RGBActive:  boolPtr(r.RGBActive),
		}); err != nil {
			s.log.Warn("session: apply device update failed", "device", d.ID, "error", err)
		}
		return
	}
}

// applyMultiElementRecord decodes r's packed per-element bits and writes
// each element's power/brightness onto its own device, found by the
// element's mesh slot (base.MeshID + i*256; see topology.ElementSlot).
func (s *Session) applyMultiElementRecord(homeID string, base *topology.Device, r codec.DeviceRecord) {
	power, brightness := codec.MultiElementState(r, r.MultiShift, r.MultiMask, base.Elements)
	for i := 0; i < base.Elements; i++ {
		slot := topology.ElementSlot(int(base.MeshID), i)
		d, ok := s.topo.DeviceByMeshSlot(homeID, uint16(slot))
		if !ok {
			continue
		}
		if _, _, err := s.topo.ApplyDeviceUpdate(d.ID, topology.DeviceUpdate{
			Power:      boolPtr(power[i]),
			Brightness: intPtr(int(brightness[i])),
		}); err != nil {
			s.log.Warn("session: apply multi-element update failed", "device", d.ID, "error", err)
		}
	}
}

// applySlotUpdate resolves a mesh slot to a device. Mesh slots are only
// unique within a home, so every known home is searched; this is the
// one place Session needs to know about the home partition at all.
func (s *Session) applySlotUpdate(slot byte, upd topology.DeviceUpdate) {
	for _, h := range s.topo.Homes() {
		if d, ok := s.topo.DeviceByMeshSlot(h.ID, uint16(slot)); ok {
			if _, _, err := s.topo.ApplyDeviceUpdate(d.ID, upd); err != nil {
				s.log.Warn("session: apply device update failed", "device", d.ID, "error", err)
			}
			return
		}
	}
}

func (s *Session) observePresence(switchID uint32) {
	for _, h := range s.topo.Homes() {
		if _, ok := s.topo.DeviceBySwitchID(h.ID, switchID); ok {
			s.tracker.Observe(h.ID, switchID)
			return
		}
	}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
