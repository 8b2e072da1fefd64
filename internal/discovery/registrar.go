package discovery

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"

	"github.com/nerrad567/moonsim-core/internal/infrastructure/config"
	"github.com/nerrad567/moonsim-core/internal/infrastructure/logging"
)

// Registrar creates mDNS advertisements for device instances.
type Registrar struct {
	cfg     config.DiscoveryConfig
	logger  *logging.Logger
	version string
}

// Registration is the handle for one advertised instance.
// A nil Registration is valid and Shutdown on it is a no-op, so callers
// never need to distinguish "not advertised" from "advertised".
type Registration struct {
	server *zeroconf.Server
	logger *logging.Logger
	name   string
}

// New creates a Registrar.
func New(cfg config.DiscoveryConfig, logger *logging.Logger, version string) *Registrar {
	return &Registrar{
		cfg:     cfg,
		logger:  logger,
		version: version,
	}
}

// Register advertises an instance's endpoint. It must be called only after
// the instance's listener is confirmed accepting connections.
//
// Failures are logged and swallowed: a missing multicast route must never
// prevent the instance itself from serving. The returned handle is nil when
// discovery is disabled or registration failed.
func (r *Registrar) Register(port int) *Registration {
	if !r.cfg.Enabled {
		return nil
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "moonsim"
	}

	// Unique per host+port so co-resident instances never collide.
	name := fmt.Sprintf("%s-%d", hostname, port)
	txt := []string{
		"version=" + r.version,
		"hostname=" + hostname,
	}

	server, err := zeroconf.Register(name, r.cfg.ServiceType, r.cfg.Domain, port, txt, nil)
	if err != nil {
		r.logger.Warn("mDNS registration failed; instance remains reachable directly",
			"name", name,
			"port", port,
			"error", err,
		)
		return nil
	}

	r.logger.Info("mDNS service registered",
		"name", name,
		"type", r.cfg.ServiceType,
		"port", port,
	)

	return &Registration{
		server: server,
		logger: r.logger,
		name:   name,
	}
}

// Shutdown withdraws the advertisement. Safe on a nil handle and safe to
// call more than once; failures never propagate.
func (reg *Registration) Shutdown() {
	if reg == nil || reg.server == nil {
		return
	}

	defer func() {
		if err := recover(); err != nil {
			reg.logger.Warn("mDNS withdraw failed", "name", reg.name, "error", err)
		}
	}()

	reg.server.Shutdown()
	reg.server = nil
	reg.logger.Info("mDNS service withdrawn", "name", reg.name)
}
