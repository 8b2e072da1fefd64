package manager

import (
	"time"

	"github.com/nerrad567/moonsim-core/internal/api"
	"github.com/nerrad567/moonsim-core/internal/discovery"
	"github.com/nerrad567/moonsim-core/internal/printer"
)

// Instance is one independently addressable simulated device: a printer
// state machine, an HTTP/WebSocket server, and an optional discovery
// registration bound to a unique host:port.
type Instance struct {
	ID        string
	Name      string
	Host      string
	Port      int
	Machine   *printer.Machine
	CreatedAt time.Time

	server       *api.Server
	registration *discovery.Registration
}

// Addr returns the instance's bound listener address.
func (inst *Instance) Addr() string {
	return inst.server.Addr()
}

// SessionCount returns the number of live realtime sessions on this device.
func (inst *Instance) SessionCount() int {
	return inst.server.SessionCount()
}

// Snapshot returns a consistent copy of the device's printer state.
func (inst *Instance) Snapshot() printer.Snapshot {
	return inst.Machine.Snapshot()
}

// broadcast fans a state change out to the device's realtime sessions.
func (inst *Instance) broadcast(changed map[string]any) {
	inst.server.BroadcastStatus(changed)
}
