package manager

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/moonsim-core/internal/api"
	"github.com/nerrad567/moonsim-core/internal/discovery"
	"github.com/nerrad567/moonsim-core/internal/infrastructure/config"
	"github.com/nerrad567/moonsim-core/internal/infrastructure/logging"
	"github.com/nerrad567/moonsim-core/internal/printer"
)

// ErrInstanceNotFound is returned by Lookup for unknown instance ids.
var ErrInstanceNotFound = errors.New("instance not found")

// readinessPollInterval caps the dial retry cadence in WaitReady.
const readinessPollInterval = 50 * time.Millisecond

// Deps holds the dependencies required by the Manager.
type Deps struct {
	Config    config.ManagerConfig
	API       config.APIConfig
	WS        config.WebSocketConfig
	Discovery config.DiscoveryConfig
	Logger    *logging.Logger
	Version   string
}

// Manager creates, tracks, and destroys device instances.
type Manager struct {
	cfg       config.ManagerConfig
	apiCfg    config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	registrar *discovery.Registrar
	version   string

	mu        sync.Mutex
	instances map[string]*Instance
	order     []string // instance ids in creation order
	nextPort  int
	nameSeq   int
}

// New creates a Manager with an empty registry. The port counter is seeded
// from the configured start port.
func New(deps Deps) (*Manager, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Manager{
		cfg:       deps.Config,
		apiCfg:    deps.API,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registrar: discovery.New(deps.Discovery, deps.Logger, deps.Version),
		version:   deps.Version,
		instances: make(map[string]*Instance),
		nextPort:  deps.Config.StartPort,
	}, nil
}

// Add creates and starts a new device instance.
//
// An empty name gets a sequential auto-generated one; a zero port takes the
// next value from the port counter; an empty host falls back to the
// configured default. The instance is registered and advertised only after
// the listener bind succeeds. A bind failure is returned to the caller and
// leaves no trace in the registry.
func (m *Manager) Add(ctx context.Context, name, host string, port int) (string, error) {
	if host == "" {
		host = m.cfg.Host
	}

	m.mu.Lock()
	if port == 0 {
		port = m.nextPort
		m.nextPort++
	}
	if name == "" {
		m.nameSeq++
		name = fmt.Sprintf("Printer %d", m.nameSeq)
	}
	for _, existing := range m.instances {
		if existing.Port == port {
			m.mu.Unlock()
			return "", fmt.Errorf("port %d already in use by instance %s", port, existing.ID)
		}
	}
	m.mu.Unlock()

	machine := printer.NewMachine()
	machine.SetLogger(m.logger.With("device", name))

	server, err := api.New(api.Deps{
		Config:  m.apiCfg,
		WS:      m.wsCfg,
		Logger:  m.logger.With("device", name, "port", port),
		Machine: machine,
		Host:    host,
		Port:    port,
		Version: m.version,
	})
	if err != nil {
		return "", fmt.Errorf("creating device server: %w", err)
	}

	// Bind first: only a confirmed listener may enter the registry.
	if err := server.Start(ctx); err != nil {
		return "", fmt.Errorf("starting device %q: %w", name, err)
	}

	inst := &Instance{
		ID:        uuid.NewString(),
		Name:      name,
		Host:      host,
		Port:      port,
		Machine:   machine,
		server:    server,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.instances[inst.ID] = inst
	m.order = append(m.order, inst.ID)
	m.mu.Unlock()

	// Discovery is best-effort and never fails the add.
	inst.registration = m.registrar.Register(port)

	m.logger.Info("device instance added",
		"id", inst.ID,
		"name", name,
		"host", host,
		"port", port,
	)
	return inst.ID, nil
}

// Remove stops an instance: listener down, discovery withdrawn, all
// realtime sessions force-closed, registry entry deleted. Returns false if
// the id is unknown. Ids are never reused.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.instances, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	inst.registration.Shutdown()
	if err := inst.server.Close(); err != nil {
		m.logger.Warn("error stopping device instance", "id", id, "error", err)
	}

	m.logger.Info("device instance removed", "id", id, "name", inst.Name)
	return true
}

// Lookup returns the instance with the given id.
func (m *Manager) Lookup(id string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return inst, nil
}

// List returns all known instance ids in creation order.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, len(m.order))
	copy(ids, m.order)
	return ids
}

// Instances returns all instances in creation order, for read-only
// collaborators like a control panel.
func (m *Manager) Instances() []*Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Instance, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.instances[id])
	}
	return out
}

// Count returns the number of live instances.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// StartDevice drives the instance's machine into printing, bypassing the
// HTTP surface. Returns false if the id is unknown. Always succeeds on a
// known instance regardless of its current state.
func (m *Manager) StartDevice(id string) bool {
	inst, err := m.Lookup(id)
	if err != nil {
		return false
	}
	inst.broadcast(inst.Machine.StartPrint(""))
	return true
}

// PauseDevice drives the instance's machine into paused.
func (m *Manager) PauseDevice(id string) bool {
	inst, err := m.Lookup(id)
	if err != nil {
		return false
	}
	inst.broadcast(inst.Machine.Pause())
	return true
}

// StopDevice drives the instance's machine into standby.
func (m *Manager) StopDevice(id string) bool {
	inst, err := m.Lookup(id)
	if err != nil {
		return false
	}
	inst.broadcast(inst.Machine.Cancel())
	return true
}

// WaitReady blocks until the instance's endpoint accepts a TCP connection
// or the timeout elapses. The bind in Add is already synchronous, so this
// exists for callers that start instances in the background and want an
// end-to-end reachability check; it polls with a capped interval and
// converts a timeout into an error rather than hanging.
func (m *Manager) WaitReady(id string, timeout time.Duration) error {
	inst, err := m.Lookup(id)
	if err != nil {
		return err
	}

	addr := inst.server.Addr()
	deadline := time.Now().Add(timeout)
	for {
		conn, dialErr := net.DialTimeout("tcp", addr, readinessPollInterval)
		if dialErr == nil {
			conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("instance %s not reachable at %s after %s: %w", id, addr, timeout, dialErr)
		}
		time.Sleep(readinessPollInterval)
	}
}

// Close removes all instances, shutting them down concurrently.
func (m *Manager) Close() error {
	m.mu.Lock()
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	m.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			m.Remove(id)
			return nil
		})
	}
	return g.Wait()
}
