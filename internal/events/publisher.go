// Package events publishes Room/Device state changes and command
// acknowledgements to an MQTT broker, mirroring the same events the Go
// Subscribe callback receives. It is an optional enrichment: a host that
// never configures an MQTT section never imports this package's broker
// connection at runtime.
package events

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cyncmesh/cync-core/internal/config"
)

// Logger is the logging interface the publisher accepts. It is satisfied
// by *logging.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Publisher wraps paho.mqtt.golang with connection management, automatic
// reconnect (republishing the retained online status on every connect),
// and a small publish-only surface for state and ack events. It holds no
// subscriptions.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Publisher struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	connected bool
	connMu    sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Connect establishes a connection to the MQTT broker.
//
// It builds connection options from config, configures a Last Will and
// Testament for offline detection, and publishes an online status message
// once connected.
func Connect(cfg config.MQTTConfig) (*Publisher, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	p := &Publisher{cfg: cfg, options: opts}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		p.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.handleDisconnect(err)
	})

	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p.connMu.Lock()
	p.connected = true
	p.connMu.Unlock()

	return p, nil
}

func (p *Publisher) handleConnect() {
	p.connMu.Lock()
	p.connected = true
	p.connMu.Unlock()

	topic := Topics{}.SystemStatus()
	payload := buildOnlinePayload(p.cfg.Broker.ClientID)
	p.client.Publish(topic, byte(p.cfg.QoS), true, payload)
}

func (p *Publisher) handleDisconnect(err error) {
	p.connMu.Lock()
	p.connected = false
	p.connMu.Unlock()

	if logger := p.getLogger(); logger != nil {
		logger.Warn("mqtt connection lost", "error", err)
	}
}

// Close gracefully disconnects from the broker, publishing a graceful
// offline status first so subscribers can distinguish it from an LWT
// crash notification.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}

	if p.IsConnected() {
		topic := Topics{}.SystemStatus()
		payload := buildOfflinePayload(p.cfg.Broker.ClientID)
		token := p.client.Publish(topic, byte(p.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	p.client.Disconnect(defaultDisconnectQuiesce)

	p.connMu.Lock()
	p.connected = false
	p.connMu.Unlock()

	return nil
}

// IsConnected returns the current connection state.
func (p *Publisher) IsConnected() bool {
	p.connMu.RLock()
	defer p.connMu.RUnlock()
	return p.connected && p.client.IsConnected()
}

// SetLogger sets a logger for connection-loss diagnostics.
func (p *Publisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

func (p *Publisher) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

// PublishState publishes an entity's rolled-up state as a retained
// message. The payload is typically a JSON-encoded topology.Snapshot.
func (p *Publisher) PublishState(entityID string, payload []byte) error {
	return p.publish(Topics{}.EntityState(entityID), payload, true)
}

// PublishAck publishes a command's outcome. Acks are not retained - a new
// subscriber has no use for a stale command result.
func (p *Publisher) PublishAck(commandID string, payload []byte) error {
	return p.publish(Topics{}.CommandAck(commandID), payload, false)
}

func (p *Publisher) publish(topic string, payload []byte, retained bool) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(topic, byte(p.cfg.QoS), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
