// Package config loads cyncd's YAML configuration file and applies
// environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for cyncd.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Transport TransportConfig `yaml:"transport"`
	Logging   LoggingConfig   `yaml:"logging"`
	MQTT      *MQTTConfig     `yaml:"mqtt,omitempty"`
	InfluxDB  *InfluxDBConfig `yaml:"influxdb,omitempty"`
	Audit     *AuditConfig    `yaml:"audit,omitempty"`
	API       *APIConfig      `yaml:"api,omitempty"`
}

// AccountConfig holds the vendor account credentials used to bootstrap a
// session. Email and Password are normally supplied via environment
// variables rather than committed to the YAML file.
type AccountConfig struct {
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	AccessToken string `yaml:"access_token"`
	AuthorizeID string `yaml:"authorize_id"`
}

// TransportConfig controls how the session connects to the mesh
// controller endpoint.
type TransportConfig struct {
	Host              string `yaml:"host"`
	TLSPort           int    `yaml:"tls_port"`
	PlaintextPort     int    `yaml:"plaintext_port"`
	TLSEnabled        bool   `yaml:"tls_enabled"`
	InsecureSkipTLS   bool   `yaml:"insecure_skip_tls_verify"`
	ConnectTimeout    int    `yaml:"connect_timeout_seconds"`
	KeepaliveInterval int    `yaml:"keepalive_interval_seconds"`
	TrackerInterval   int    `yaml:"tracker_interval_seconds"`
}

// LoggingConfig controls cyncd's structured logging output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig enables the optional event publisher.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       byte                `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig addresses the broker the event publisher connects to.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	TLS      bool   `yaml:"tls"`
}

// MQTTAuthConfig holds optional broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig tunes the publisher's reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig enables the optional telemetry writer.
type InfluxDBConfig struct {
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Org          string `yaml:"org"`
	Bucket       string `yaml:"bucket"`
	BatchSize    int    `yaml:"batch_size"`
	FlushSeconds int    `yaml:"flush_interval_seconds"`
}

// AuditConfig enables the optional SQLite command audit log.
type AuditConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout_seconds"`
}

// APIConfig enables the optional diagnostics API.
type APIConfig struct {
	Host         string       `yaml:"host"`
	Port         int          `yaml:"port"`
	BearerToken  string       `yaml:"bearer_token"`
	Timeouts     APITimeouts  `yaml:"timeouts"`
	WebSocket    WebSocketCfg `yaml:"websocket"`
}

// APITimeouts holds the diagnostics HTTP server's timeouts, in seconds.
type APITimeouts struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketCfg tunes the /events stream.
type WebSocketCfg struct {
	Path           string `yaml:"path"`
	MaxMessageSize int64  `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval_seconds"`
	PongTimeout    int    `yaml:"pong_timeout_seconds"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables used: CYNC_EMAIL, CYNC_PASSWORD, CYNC_ACCESS_TOKEN,
// CYNC_MQTT_HOST, CYNC_MQTT_USERNAME, CYNC_MQTT_PASSWORD,
// CYNC_INFLUXDB_TOKEN, CYNC_API_BEARER_TOKEN.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Host:              "cm.gelighting.com",
			TLSPort:           23779,
			PlaintextPort:     23778,
			TLSEnabled:        true,
			ConnectTimeout:    10,
			KeepaliveInterval: 180,
			TrackerInterval:   3600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Secrets are never read from the YAML file's defaults
// section - only from the file itself or the environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CYNC_EMAIL"); v != "" {
		cfg.Account.Email = v
	}
	if v := os.Getenv("CYNC_PASSWORD"); v != "" {
		cfg.Account.Password = v
	}
	if v := os.Getenv("CYNC_ACCESS_TOKEN"); v != "" {
		cfg.Account.AccessToken = v
	}

	if cfg.MQTT != nil {
		if v := os.Getenv("CYNC_MQTT_HOST"); v != "" {
			cfg.MQTT.Broker.Host = v
		}
		if v := os.Getenv("CYNC_MQTT_USERNAME"); v != "" {
			cfg.MQTT.Auth.Username = v
		}
		if v := os.Getenv("CYNC_MQTT_PASSWORD"); v != "" {
			cfg.MQTT.Auth.Password = v
		}
	}

	if cfg.InfluxDB != nil {
		if v := os.Getenv("CYNC_INFLUXDB_TOKEN"); v != "" {
			cfg.InfluxDB.Token = v
		}
	}

	if cfg.API != nil {
		if v := os.Getenv("CYNC_API_BEARER_TOKEN"); v != "" {
			cfg.API.BearerToken = v
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Account.Email == "" {
		errs = append(errs, "account.email is required (or set CYNC_EMAIL)")
	}
	if c.Account.Password == "" && c.Account.AccessToken == "" {
		errs = append(errs, "one of account.password or account.access_token is required")
	}
	if c.Transport.Host == "" {
		errs = append(errs, "transport.host is required")
	}
	if c.Transport.TLSPort < 1 || c.Transport.TLSPort > 65535 {
		errs = append(errs, "transport.tls_port must be between 1 and 65535")
	}

	if c.MQTT != nil && (c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API != nil {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
		if c.API.BearerToken == "" {
			errs = append(errs, "api.bearer_token is required when the api section is enabled (or set CYNC_API_BEARER_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ConnectTimeout returns the transport connect timeout as a Duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Transport.ConnectTimeout) * time.Second
}

// KeepaliveInterval returns the session keepalive interval as a Duration.
func (c *Config) KeepaliveInterval() time.Duration {
	return time.Duration(c.Transport.KeepaliveInterval) * time.Second
}

// TrackerInterval returns the controller tracker refresh interval as a
// Duration.
func (c *Config) TrackerInterval() time.Duration {
	return time.Duration(c.Transport.TrackerInterval) * time.Second
}
