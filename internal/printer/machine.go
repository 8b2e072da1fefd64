package printer

import (
	"fmt"
	"sync"
)

// State is one of the four printer lifecycle states.
type State string

// Printer states. A new Machine starts in StateReady.
const (
	StateReady    State = "ready"
	StatePrinting State = "printing"
	StatePaused   State = "paused"
	StateStandby  State = "standby"
)

// Heater identifies one of the simulated temperature readings.
type Heater string

const (
	HeaterExtruder Heater = "extruder"
	HeaterBed      Heater = "heater_bed"
)

// TemperatureReading holds one heater's actual and target temperature.
type TemperatureReading struct {
	Actual float64 `json:"actual"`
	Target float64 `json:"target"`
}

// PrintStats mirrors the printer state at print-job granularity.
type PrintStats struct {
	Filename      string  `json:"filename"`
	TotalDuration float64 `json:"total_duration"`
	PrintDuration float64 `json:"print_duration"`
	FilamentUsed  float64 `json:"filament_used"`
	State         State   `json:"state"`
}

// Snapshot is a consistent point-in-time copy of a Machine's state.
// Callers may retain and modify it freely.
type Snapshot struct {
	State        State
	StateMessage string
	Extruder     TemperatureReading
	HeaterBed    TemperatureReading
	PrintStats   PrintStats
	Progress     float64
}

// Logger defines the logging interface used by the Machine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Machine owns one simulated printer's mutable state.
//
// All public methods are thread-safe. Transition methods return the flat
// dotted-key map of changed fields that the realtime channel broadcasts as
// a notify_status_update.
type Machine struct {
	mu           sync.RWMutex
	state        State
	stateMessage string
	extruder     TemperatureReading
	heaterBed    TemperatureReading
	stats        PrintStats
	progress     float64
	logger       Logger
}

// NewMachine creates a Machine in the ready state with ambient temperatures.
func NewMachine() *Machine {
	return &Machine{
		state:        StateReady,
		stateMessage: "Printer is ready",
		extruder:     TemperatureReading{Actual: 25.0},
		heaterBed:    TemperatureReading{Actual: 25.0},
		stats:        PrintStats{State: StateStandby},
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the machine.
func (m *Machine) SetLogger(logger Logger) {
	m.logger = logger
}

// Snapshot returns a consistent copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:        m.state,
		StateMessage: m.stateMessage,
		Extruder:     m.extruder,
		HeaterBed:    m.heaterBed,
		PrintStats:   m.stats,
		Progress:     m.progress,
	}
}

// StartPrint transitions to printing from any state.
//
// Progress resets to zero and the filename replaces whatever a previous job
// left behind, so a printing→standby→printing cycle never carries stale
// values.
func (m *Machine) StartPrint(filename string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StatePrinting
	m.stateMessage = printMessage(filename)
	m.progress = 0
	m.stats.Filename = filename
	m.stats.State = StatePrinting

	m.logger.Info("print started", "filename", filename)
	return m.changedLocked()
}

// Cancel transitions to standby from any state, clearing the job.
// Cancelling an already-standby printer succeeds and changes nothing
// observable beyond re-asserting the same values.
func (m *Machine) Cancel() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateStandby
	m.stateMessage = "Print cancelled"
	m.progress = 0
	m.stats.Filename = ""
	m.stats.State = StateStandby

	m.logger.Info("print cancelled")
	return m.changedLocked()
}

// Pause transitions to paused from any state. Progress is preserved.
func (m *Machine) Pause() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StatePaused
	m.stateMessage = "Print paused"

	m.logger.Info("print paused")
	return m.changedLocked()
}

// SetTemperature updates one heater's readings. Valid in any state.
func (m *Machine) SetTemperature(heater Heater, actual, target float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reading := TemperatureReading{Actual: actual, Target: target}
	switch heater {
	case HeaterBed:
		m.heaterBed = reading
	default:
		m.extruder = reading
	}
}

// SetProgress updates the print progress, clamped to [0,100].
// Only meaningful while printing or paused, but accepted in any state.
func (m *Machine) SetProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	m.mu.Lock()
	m.progress = p
	m.mu.Unlock()
}

// changedLocked builds the dotted-key status-update payload for the fields
// every transition touches. Caller must hold the lock.
func (m *Machine) changedLocked() map[string]any {
	return map[string]any{
		"printer.state":         string(m.state),
		"printer.state_message": m.stateMessage,
	}
}

// printMessage renders the state message for a start-print transition.
func printMessage(filename string) string {
	if filename == "" {
		return "Printing"
	}
	return fmt.Sprintf("Printing %s", filename)
}
