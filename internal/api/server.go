// Package api provides the diagnostics HTTP/websocket server.
//
// It follows the same lifecycle pattern as the rest of the bridge:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: all methods are safe for concurrent use.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cyncmesh/cync-core/internal/config"
	"github.com/cyncmesh/cync-core/internal/core"
	"github.com/cyncmesh/cync-core/internal/logging"
	"github.com/cyncmesh/cync-core/internal/topology"
)

const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the diagnostics API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Client  *core.Client
	Version string
}

// Server is the diagnostics HTTP/websocket server. It never mutates the
// bridge: every route reads from the injected Client.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	client  *core.Client
	version string

	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc

	stateMu  sync.RWMutex
	lastSeen string
}

// New creates a diagnostics API server. The server is not started until
// Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("api: logger is required")
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("api: client is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		client:    deps.Client,
		version:   deps.Version,
		startTime: time.Now(),
		lastSeen:  "unknown",
	}, nil
}

// Start begins listening for HTTP connections and launches the status
// event relay that feeds both the metrics endpoint and the websocket hub.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.cfg.WebSocket, s.logger)
	go s.hub.Run(srvCtx)
	go s.relayStatusEvents(srvCtx)
	s.relayEntityUpdates()

	router := s.buildRouter()
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("diagnostics API server error", "error", err)
		}
	}()

	return nil
}

// relayStatusEvents drains Client.Events(), caching the latest Session
// state for the metrics endpoint and broadcasting every transition to
// websocket subscribers. Entity state changes are relayed separately by
// relayEntityUpdates.
func (s *Server) relayStatusEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.client.Events():
			if !ok {
				return
			}
			s.stateMu.Lock()
			s.lastSeen = ev.State.String()
			s.stateMu.Unlock()
			s.hub.Broadcast(ChannelSessionState, map[string]any{
				"state": ev.State.String(),
				"at":    ev.At.Format(time.RFC3339),
			})
		}
	}
}

// relayEntityUpdates subscribes to every known device and room's
// Topology updates so /events clients can receive live state changes
// without polling /topology.
func (s *Server) relayEntityUpdates() {
	topo := s.client.Topology()
	if topo == nil {
		return
	}
	for _, h := range topo.Homes() {
		for _, d := range topo.Devices(h.ID) {
			s.client.Subscribe(d.ID, func(snap topology.Snapshot) { s.hub.Broadcast(ChannelEntityState, snap) })
		}
		for _, r := range topo.Rooms(h.ID) {
			s.client.Subscribe(r.ID, func(snap topology.Snapshot) { s.hub.Broadcast(ChannelEntityState, snap) })
		}
	}
}

func (s *Server) lastState() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastSeen
}

// Close gracefully shuts down the diagnostics API server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("diagnostics API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down diagnostics API server: %w", err)
	}
	return nil
}
