// Package core wires every other package together behind the
// host-facing API spec.md 6 names: Discover, Start/Stop, Subscribe,
// Command, and an Events status stream. Collaborators outside this
// module reach the bridge only through Client; every other package is
// an internal implementation detail.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cyncmesh/cync-core/internal/audit"
	"github.com/cyncmesh/cync-core/internal/command"
	"github.com/cyncmesh/cync-core/internal/config"
	"github.com/cyncmesh/cync-core/internal/credentials"
	"github.com/cyncmesh/cync-core/internal/discovery"
	"github.com/cyncmesh/cync-core/internal/events"
	"github.com/cyncmesh/cync-core/internal/logging"
	"github.com/cyncmesh/cync-core/internal/session"
	"github.com/cyncmesh/cync-core/internal/telemetry"
	"github.com/cyncmesh/cync-core/internal/topology"
)

// StatusEvent is one Session lifecycle transition, exposed to collaborators
// via Events().
type StatusEvent struct {
	State session.State
	At    time.Time
}

// Client is the bridge's facade: it owns the discovery bootstrap, the
// Topology, the Session, the Command Engine, and whichever optional
// enrichments (events, telemetry, audit) the configuration enables.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Client struct {
	cfg *config.Config
	log *logging.Logger

	disco *discovery.Client
	creds credentials.Store

	topo   *topology.Topology
	sess   *session.Session
	engine *command.Engine

	publisher *events.Publisher
	telem     *telemetry.Writer
	auditRepo audit.Repository

	statusMu sync.RWMutex
	statusCh chan StatusEvent

	runCancel context.CancelFunc
	runErr    error
	runDone   chan struct{}
}

// New builds a Client from configuration. It performs no I/O; call
// Discover then Start to bring the bridge up.
func New(cfg *config.Config, log *logging.Logger) *Client {
	return &Client{
		cfg:      cfg,
		log:      log,
		disco:    discovery.New(cfg.Account.Email, cfg.Account.Password),
		statusCh: make(chan StatusEvent, 32),
	}
}

// Discover runs the REST auth/2FA/topology bootstrap (spec.md 4.1) and
// caches the resulting Credential Store and Topology. If the account
// already carries an access token (cfg.Account.AccessToken), discovery
// still re-authenticates - the vendor API has no token-refresh endpoint
// usable independently of the password flow.
func (c *Client) Discover(ctx context.Context) (*topology.Topology, error) {
	store, err := c.disco.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	c.creds = store

	topo, err := c.disco.Discover(ctx, store.UserID, store.AccessToken)
	if err != nil {
		return nil, err
	}
	c.topo = topo
	return topo, nil
}

// SubmitTwoFactor completes a Discover call that returned
// discovery.ErrTwoFactorRequired, then retries discovery.
func (c *Client) SubmitTwoFactor(ctx context.Context, code string) (*topology.Topology, error) {
	store, err := c.disco.SubmitTwoFactor(ctx, code)
	if err != nil {
		return nil, err
	}
	c.creds = store

	topo, err := c.disco.Discover(ctx, store.UserID, store.AccessToken)
	if err != nil {
		return nil, err
	}
	c.topo = topo
	return topo, nil
}

// Start opens the persistent mesh session and wires the optional
// enrichments (MQTT events, InfluxDB telemetry, SQLite audit) that the
// configuration enables. It returns once the Session reports Ready or
// the context is cancelled first.
func (c *Client) Start(ctx context.Context) error {
	if c.topo == nil {
		return ErrNotDiscovered
	}

	if err := c.connectEnrichments(ctx); err != nil {
		return err
	}

	sessCreds := session.Credentials{UserID: c.creds.UserID, Authorize: c.creds.Authorize}
	c.sess = session.New(c.cfg.Transport, sessCreds, c.topo, c.log)
	c.engine = command.New(c.topo, c.sess)

	// Session keeps a single state handler, so the Events stream and the
	// Ready signal share this one.
	readyCh := make(chan struct{})
	var once sync.Once
	c.sess.OnStateChange(func(st session.State) {
		c.statusMu.RLock()
		ch := c.statusCh
		c.statusMu.RUnlock()
		select {
		case ch <- StatusEvent{State: st, At: time.Now()}:
		default:
			c.log.Warn("core: status event dropped, channel full")
		}
		if st == session.Ready {
			once.Do(func() { close(readyCh) })
		}
	})

	c.subscribeEnrichments()

	runCtx, cancel := context.WithCancel(context.Background())
	c.runCancel = cancel
	c.runDone = make(chan struct{})

	go func() {
		defer close(c.runDone)
		c.runErr = c.sess.Run(runCtx)
	}()

	select {
	case <-readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.runDone:
		return c.runErr
	}
}

// Stop tears down the Session and closes every optional enrichment.
func (c *Client) Stop() {
	if c.runCancel != nil {
		c.runCancel()
		<-c.runDone
	}
	if c.publisher != nil {
		c.publisher.Close()
	}
	if c.telem != nil {
		c.telem.Close()
	}
}

// Subscribe registers fn to be invoked on every state change of
// entityID (a device or room id). It returns an unsubscribe function.
func (c *Client) Subscribe(entityID string, fn func(topology.Snapshot)) (unsubscribe func()) {
	return c.topo.Subscribe(entityID, fn)
}

// Command executes a host-facing command against entityID, auditing the
// call's outcome and latency when the audit log is enabled.
func (c *Client) Command(ctx context.Context, entityID string, req command.Request) error {
	start := time.Now()
	err := c.engine.Execute(ctx, entityID, req)
	latency := time.Since(start)

	if c.telem != nil {
		c.telem.WriteCommandLatency(entityID, latency)
	}
	if c.auditRepo != nil {
		c.recordAudit(ctx, entityID, req, err, latency)
	}
	return err
}

// Events returns the stream of Session lifecycle transitions.
func (c *Client) Events() <-chan StatusEvent {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.statusCh
}

// Topology exposes the built Topology for read-only consumers (e.g. the
// diagnostics API's /topology endpoint).
func (c *Client) Topology() *topology.Topology {
	return c.topo
}

func (c *Client) recordAudit(ctx context.Context, entityID string, req command.Request, cmdErr error, latency time.Duration) {
	operation := "turn_on"
	if req.Power != nil && !*req.Power {
		operation = "turn_off"
	}

	params := map[string]any{}
	if req.Brightness != nil {
		params["brightness"] = *req.Brightness
	}
	if req.ColorTempMired != nil {
		params["color_temp_mireds"] = *req.ColorTempMired
	}
	if req.RGB != nil {
		params["rgb"] = *req.RGB
	}

	entry := &audit.CommandAudit{
		EntityID:  entityID,
		Operation: operation,
		Params:    params,
		Succeeded: cmdErr == nil,
		LatencyMS: latency.Milliseconds(),
	}
	if cmdErr != nil {
		entry.Error = cmdErr.Error()
	}

	if err := c.auditRepo.Record(ctx, entry); err != nil {
		c.log.Warn("core: recording command audit entry failed", "error", err)
	}
}

func (c *Client) connectEnrichments(ctx context.Context) error {
	if c.cfg.MQTT != nil {
		pub, err := events.Connect(*c.cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting event publisher: %w", err)
		}
		pub.SetLogger(c.log)
		c.publisher = pub
	}

	if c.cfg.InfluxDB != nil {
		w, err := telemetry.Connect(ctx, *c.cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting telemetry writer: %w", err)
		}
		c.telem = w
	}

	if c.cfg.Audit != nil {
		db, err := audit.Open(ctx, *c.cfg.Audit)
		if err != nil {
			return fmt.Errorf("opening audit database: %w", err)
		}
		c.auditRepo = audit.NewSQLiteRepository(db)
	}

	return nil
}

// subscribeEnrichments wires every device and room's Topology
// subscription to the optional MQTT publisher and InfluxDB telemetry
// writer, so both stay current without the Session knowing they exist.
func (c *Client) subscribeEnrichments() {
	if c.publisher == nil && c.telem == nil {
		return
	}

	for _, h := range c.topo.Homes() {
		for _, d := range c.topo.Devices(h.ID) {
			id := d.ID
			c.topo.Subscribe(id, func(snap topology.Snapshot) {
				c.publishSnapshot(id, snap)
			})
		}
		for _, r := range c.topo.Rooms(h.ID) {
			id := r.ID
			c.topo.Subscribe(id, func(snap topology.Snapshot) {
				c.publishSnapshot(id, snap)
				if c.telem != nil {
					c.telem.WriteRoomRollup(id, telemetry.RoomRollup{
						RoomID: id, Power: snap.Power, BrightnessPct: snap.Brightness,
						ColorTempPct: snap.ColorTemp, RGBActive: snap.RGBActive,
					})
				}
			})
		}
	}
}

func (c *Client) publishSnapshot(entityID string, snap topology.Snapshot) {
	if c.publisher != nil {
		if payload, err := json.Marshal(snap); err == nil {
			if err := c.publisher.PublishState(entityID, payload); err != nil {
				c.log.Warn("core: publishing state update failed", "entity", entityID, "error", err)
			}
		}
	}
}
