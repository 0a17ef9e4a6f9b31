// cyncd is the bridge daemon: it loads configuration, brings up a
// internal/core.Client against a GE/Cync account, and - if the
// diagnostics API is configured - serves it alongside the bridge.
//
// For architecture details, see DESIGN.md.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cyncmesh/cync-core/internal/api"
	"github.com/cyncmesh/cync-core/internal/config"
	"github.com/cyncmesh/cync-core/internal/core"
	"github.com/cyncmesh/cync-core/internal/discovery"
	"github.com/cyncmesh/cync-core/internal/logging"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "/etc/cyncd/config.yaml"

func main() {
	fmt.Printf("cyncd %s (%s) built %s\n", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath resolves the config file path from CYNCD_CONFIG, falling
// back to defaultConfigPath.
func getConfigPath() string {
	if v := os.Getenv("CYNCD_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

// run wires a Client (and, if configured, the diagnostics API) and
// blocks until ctx is cancelled. Separated from main for testability.
func run(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting cyncd", "version", version, "commit", commit)

	client := core.New(cfg, log)

	if err := discoverWithTwoFactor(ctx, client); err != nil {
		return fmt.Errorf("discovering account topology: %w", err)
	}

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge session: %w", err)
	}
	defer client.Stop()

	var apiServer *api.Server
	if cfg.API != nil {
		apiServer, err = api.New(api.Deps{
			Config:  *cfg.API,
			Logger:  log.With("component", "api"),
			Client:  client,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("building diagnostics API: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting diagnostics API: %w", err)
		}
		defer apiServer.Close() //nolint:errcheck // best-effort on shutdown path
		log.Info("diagnostics API listening", "host", cfg.API.Host, "port", cfg.API.Port)
	}

	log.Info("cyncd ready")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// discoverWithTwoFactor runs Client.Discover and, if the account
// requires a 2FA code, prompts for one on stdin and retries via
// SubmitTwoFactor. GE's 2FA email code is single-use and short-lived, so
// this has to happen interactively rather than be pre-supplied in
// config.
func discoverWithTwoFactor(ctx context.Context, client *core.Client) error {
	_, discErr := client.Discover(ctx)
	if discErr == nil {
		return nil
	}
	if !errors.Is(discErr, discovery.ErrTwoFactorRequired) {
		return discErr
	}

	fmt.Print("Two-factor code sent to your account email, enter it: ")
	reader := bufio.NewReader(os.Stdin)
	code, readErr := reader.ReadString('\n')
	if readErr != nil {
		return fmt.Errorf("reading two-factor code: %w", readErr)
	}
	code = strings.TrimSpace(code)

	_, err := client.SubmitTwoFactor(ctx, code)
	return err
}
