package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cyncmesh/cync-core/internal/config"
)

const transportRetryDelay = 5 * time.Second

// connectWithFallback implements the connect algorithm of spec.md section
// 4.3: try TLS with default certificate verification, then TLS with
// verification disabled (the vendor's own controllers present
// self-signed certificates in some firmware revisions), then plaintext.
// If all three fail it waits transportRetryDelay and tries the whole
// sequence again, until ctx is cancelled.
func connectWithFallback(ctx context.Context, cfg config.TransportConfig) (net.Conn, error) {
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	for {
		if conn, err := dialTLS(ctx, cfg, timeout, false); err == nil {
			return conn, nil
		}
		if conn, err := dialTLS(ctx, cfg, timeout, true); err == nil {
			return conn, nil
		}
		if conn, err := dialPlaintext(ctx, cfg, timeout); err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(transportRetryDelay):
		}
	}
}

func dialTLS(ctx context.Context, cfg config.TransportConfig, timeout time.Duration, insecure bool) (net.Conn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TLSPort))
	dialer := &net.Dialer{Timeout: timeout}
	tlsConf := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: insecure,
	}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConf)
	if err != nil {
		return nil, fmt.Errorf("tls dial (insecure=%v) %s: %w", insecure, addr, err)
	}
	return conn, nil
}

func dialPlaintext(ctx context.Context, cfg config.TransportConfig, timeout time.Duration) (net.Conn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.PlaintextPort))
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("plaintext dial %s: %w", addr, err)
	}
	return conn, nil
}
