// Moonsim - Moonraker API Simulator
//
// This is the main entry point for the moonsim application. Moonsim stands
// in for a fleet of Moonraker-based 3D printer hosts so that client
// software can be exercised without hardware:
//   - Per-device HTTP API and JSON-RPC realtime channel
//   - Multiple simulated devices, each on its own port
//   - mDNS advertisement so clients discover devices like real ones
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/moonsim-core/internal/infrastructure/config"
	"github.com/nerrad567/moonsim-core/internal/infrastructure/logging"
	"github.com/nerrad567/moonsim-core/internal/manager"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting moonsim",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(log)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	mgr, err := manager.New(manager.Deps{
		Config:    cfg.Manager,
		API:       cfg.API,
		WS:        cfg.WebSocket,
		Discovery: cfg.Discovery,
		Logger:    log,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating device manager: %w", err)
	}
	defer func() {
		log.Info("stopping device instances")
		if closeErr := mgr.Close(); closeErr != nil {
			log.Error("error stopping device instances", "error", closeErr)
		}
	}()

	for i := 0; i < cfg.Manager.Devices; i++ {
		id, addErr := mgr.Add(ctx, "", "", 0)
		if addErr != nil {
			return fmt.Errorf("starting device %d: %w", i+1, addErr)
		}
		inst, lookupErr := mgr.Lookup(id)
		if lookupErr != nil {
			return fmt.Errorf("looking up device %d: %w", i+1, lookupErr)
		}
		log.Info("device online",
			"id", id,
			"name", inst.Name,
			"addr", inst.Addr(),
		)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"devices", mgr.Count(),
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// The deferred Close() stops every instance: listeners down, mDNS
	// withdrawn, realtime sessions closed.

	log.Info("moonsim stopped")
	return nil
}

// loadConfig loads configuration from the config file if one is present,
// falling back to built-in defaults so the simulator runs with zero setup.
func loadConfig(log *logging.Logger) (*config.Config, error) {
	path := getConfigPath()
	if _, err := os.Stat(path); err != nil {
		if os.Getenv("MOONSIM_CONFIG") != "" {
			// An explicitly named config file must exist.
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		log.Info("no config file found, using defaults", "path", path)
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log.Info("configuration loaded", "path", path)
	return cfg, nil
}

// getConfigPath returns the configuration file path.
// Uses MOONSIM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MOONSIM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
