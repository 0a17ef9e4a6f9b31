// Package command implements the Command Engine: translating high-level
// turn_on/turn_off calls into encoded mesh frames, selecting a
// controller to route them through, and retrying across alternate
// controllers until an ack arrives or the retry window is exhausted.
package command

import (
	"context"
	"time"

	"github.com/cyncmesh/cync-core/internal/codec"
	"github.com/cyncmesh/cync-core/internal/topology"
)

const (
	ackTimeout  = 500 * time.Millisecond
	retryWindow = 5 * time.Second
	maxAttempts = int(retryWindow / ackTimeout) // 10
)

// Sender is the subset of Session the Command Engine needs: sequence
// allocation, the Pending Command Table, and the outbound write queue.
type Sender interface {
	NextSequence() uint16
	RegisterWaiter(seq uint16) <-chan error
	CancelWaiter(seq uint16)
	Send(frame codec.Frame) error
}

// Engine is the Command Engine. One Engine serves an entire session's
// Topology.
type Engine struct {
	topo   *topology.Topology
	sender Sender
}

// New builds an Engine over topo, dispatching through sender.
func New(topo *topology.Topology, sender Sender) *Engine {
	return &Engine{topo: topo, sender: sender}
}

// target is the resolved routing and current-state information the
// opcode-selection and controller-selection steps need, common to both
// Device and Room entities.
type target struct {
	meshID             uint16
	homeID             string
	state              topology.State
	supportsBrightness bool
	supportsColorTemp  bool
	supportsRGB        bool
	defaultController  uint32

	// ownSwitchID is the entity's own switch id, set only when the
	// entity is itself a reachable-as-controller Device (spec.md 4.4
	// step 1, devices only).
	ownSwitchID uint32
	// roomMemberIDs are the other device ids controllersInOrder should
	// check next (spec.md 4.4 step 2): a Device's roommates, or a
	// Room's own members plus its subgroups' members.
	roomMemberIDs []string
}

func (e *Engine) resolveTarget(entityID string) (target, error) {
	if d, err := e.topo.Device(entityID); err == nil {
		var fallback, ownSwitchID uint32
		if d.IsController() {
			fallback = d.SwitchID
			ownSwitchID = d.SwitchID
		}
		var roomMembers []string
		if d.RoomID != "" {
			if r, err := e.topo.Room(d.RoomID); err == nil {
				roomMembers = r.MemberDeviceIDs
			}
		}
		return target{
			meshID:             d.MeshID,
			homeID:             d.HomeID,
			state:              d.State,
			supportsBrightness: d.SupportsBrightness(),
			supportsColorTemp:  d.SupportsColorTemp(),
			supportsRGB:        d.SupportsRGB(),
			defaultController:  fallback,
			ownSwitchID:        ownSwitchID,
			roomMemberIDs:      roomMembers,
		}, nil
	}
	if r, err := e.topo.Room(entityID); err == nil {
		roomMembers := append([]string(nil), r.MemberDeviceIDs...)
		for _, subID := range r.SubgroupIDs {
			if sub, err := e.topo.Room(subID); err == nil {
				roomMembers = append(roomMembers, sub.MemberDeviceIDs...)
			}
		}
		return target{
			meshID:             r.MeshID,
			homeID:             r.HomeID,
			state:              r.State,
			supportsBrightness: r.SupportsBrightness,
			supportsColorTemp:  r.SupportsColorTemp,
			supportsRGB:        r.SupportsRGB,
			defaultController:  r.DefaultController,
			roomMemberIDs:      roomMembers,
		}, nil
	}
	return target{}, ErrEntityNotFound
}

// controllersInOrder implements spec.md 4.4's per-entity controller
// priority: (1) the entity's own switch-id if reachable, (2) reachable
// switch-ids of roomMemberIDs, (3) any other reachable switch-id in the
// home, each only once. Falls back to the single default controller
// when nothing in the home is currently known reachable.
func (e *Engine) controllersInOrder(homeID string, ownSwitchID uint32, roomMemberIDs []string, fallback uint32) ([]uint32, uint32, error) {
	h, err := e.topo.Home(homeID)
	if err != nil {
		return nil, 0, ErrEntityNotFound
	}
	if len(h.ReachableControllers) == 0 {
		if fallback != 0 {
			return nil, fallback, nil
		}
		for _, id := range h.ControllerDeviceIDs {
			d, err := e.topo.Device(id)
			if err == nil && d.SwitchID != 0 {
				return nil, d.SwitchID, nil
			}
		}
		return nil, 0, ErrNoController
	}

	reachable := make(map[uint32]bool, len(h.ReachableControllers))
	for _, id := range h.ReachableControllers {
		reachable[id] = true
	}

	var ordered []uint32
	seen := make(map[uint32]bool, len(reachable))
	add := func(id uint32) {
		if id == 0 || !reachable[id] || seen[id] {
			return
		}
		ordered = append(ordered, id)
		seen[id] = true
	}

	add(ownSwitchID)
	for _, memberID := range roomMemberIDs {
		if d, err := e.topo.Device(memberID); err == nil {
			add(d.SwitchID)
		}
	}
	for _, id := range h.ReachableControllers {
		add(id)
	}

	if len(ordered) == 0 {
		return nil, fallback, nil
	}
	return ordered, ordered[0], nil
}

// TurnOff sends a plain power-off command to entityID.
func (e *Engine) TurnOff(ctx context.Context, entityID string) error {
	t, err := e.resolveTarget(entityID)
	if err != nil {
		return err
	}
	return e.dispatch(ctx, t, func(switchID uint32, seq uint16) codec.Frame {
		return codec.EncodePowerOff(switchID, t.meshID, seq)
	})
}

// TurnOn sends a turn_on command to entityID, selecting the opcode per
// spec.md 4.5's rules from whichever of opts' fields are set.
func (e *Engine) TurnOn(ctx context.Context, entityID string, opts TurnOnOptions) error {
	t, err := e.resolveTarget(entityID)
	if err != nil {
		return err
	}

	build := e.selectBuilder(t, sanitizeOptions(t, opts))
	return e.dispatch(ctx, t, build)
}

// Execute dispatches a host-facing Request: Power=false turns the
// entity off; otherwise it turns on, passing through whichever of
// Brightness/ColorTempMired/RGB were given.
func (e *Engine) Execute(ctx context.Context, entityID string, req Request) error {
	if req.Power != nil && !*req.Power {
		return e.TurnOff(ctx, entityID)
	}
	return e.TurnOn(ctx, entityID, TurnOnOptions{
		Brightness:     req.Brightness,
		ColorTempMired: req.ColorTempMired,
		RGB:            req.RGB,
	})
}

// sanitizeOptions drops any option the target doesn't actually support,
// so a caller asking for RGB on a white-only bulb falls through to the
// next applicable opcode instead of encoding a command the device would
// ignore anyway.
func sanitizeOptions(t target, opts TurnOnOptions) TurnOnOptions {
	if opts.RGB != nil && !t.supportsRGB {
		opts.RGB = nil
	}
	if opts.Brightness != nil && !t.supportsBrightness {
		opts.Brightness = nil
	}
	if opts.ColorTempMired != nil && !t.supportsColorTemp {
		opts.ColorTempMired = nil
	}
	return opts
}

// selectBuilder implements spec.md 4.5's opcode-selection rule, choosing
// among combo (white or RGB tone), set-color-temp, and plain power-on.
func (e *Engine) selectBuilder(t target, opts TurnOnOptions) func(switchID uint32, seq uint16) codec.Frame {
	currentBrightness := byte(t.state.Brightness)

	switch {
	case opts.RGB != nil && opts.Brightness != nil:
		rgb := *opts.RGB
		maxChannel := rgb[0]
		if rgb[1] > maxChannel {
			maxChannel = rgb[1]
		}
		if rgb[2] > maxChannel {
			maxChannel = rgb[2]
		}
		predicted := int(maxChannel) * t.state.Brightness / 100
		diff := *opts.Brightness - predicted
		if diff < 0 {
			diff = -diff
		}
		if diff <= 2 {
			return func(switchID uint32, seq uint16) codec.Frame {
				return codec.EncodeCombo(switchID, t.meshID, seq, true, currentBrightness, codec.ColorToneRGB, rgb)
			}
		}
		newBrightness := byte(*opts.Brightness * 100 / 255)
		return func(switchID uint32, seq uint16) codec.Frame {
			return codec.EncodeCombo(switchID, t.meshID, seq, true, newBrightness, codec.ColorToneWhite, [3]byte{})
		}

	case opts.Brightness != nil:
		newBrightness := byte(*opts.Brightness * 100 / 255)
		return func(switchID uint32, seq uint16) codec.Frame {
			return codec.EncodeCombo(switchID, t.meshID, seq, true, newBrightness, codec.ColorToneWhite, [3]byte{})
		}

	case opts.RGB != nil:
		rgb := *opts.RGB
		return func(switchID uint32, seq uint16) codec.Frame {
			return codec.EncodeCombo(switchID, t.meshID, seq, true, currentBrightness, codec.ColorToneRGB, rgb)
		}

	case opts.ColorTempMired != nil:
		ct := byte(miredToVendorCT(*opts.ColorTempMired))
		return func(switchID uint32, seq uint16) codec.Frame {
			return codec.EncodeSetColorTemp(switchID, t.meshID, seq, ct)
		}

	default:
		return func(switchID uint32, seq uint16) codec.Frame {
			return codec.EncodePowerOn(switchID, t.meshID, seq)
		}
	}
}

// dispatch runs the retry loop of spec.md 4.5: up to maxAttempts
// attempts, each against controllers[attempts % len(controllers)] (or
// the fallback controller when no reachable list is known), registering
// a waiter before sending and waiting ackTimeout for it to resolve.
func (e *Engine) dispatch(ctx context.Context, t target, build func(switchID uint32, seq uint16) codec.Frame) error {
	controllers, fallback, err := e.controllersInOrder(t.homeID, t.ownSwitchID, t.roomMemberIDs, t.defaultController)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var switchID uint32
		if len(controllers) > 0 {
			switchID = controllers[attempt%len(controllers)]
		} else {
			switchID = fallback
		}

		seq := e.sender.NextSequence()
		waiter := e.sender.RegisterWaiter(seq)
		frame := build(switchID, seq)

		if err := e.sender.Send(frame); err != nil {
			e.sender.CancelWaiter(seq)
			return ErrDisconnected
		}

		select {
		case <-ctx.Done():
			e.sender.CancelWaiter(seq)
			return ctx.Err()
		case resolution := <-waiter:
			if resolution != nil {
				return ErrDisconnected
			}
			return nil
		case <-time.After(ackTimeout):
			e.sender.CancelWaiter(seq)
		}
	}

	return ErrCommandTimeout
}
