// Package manager orchestrates multiple simulated device instances in one
// process.
//
// Each instance binds one printer state machine, one HTTP/WebSocket server,
// and at most one mDNS registration to a unique host:port. The Manager
// creates and destroys instances, assigns ports from an auto-incrementing
// counter, and exposes the convenience control operations (start/pause/stop
// a device) used by control panels that hold a direct handle instead of
// going through HTTP.
//
// Registration is atomic: an instance only becomes visible to List/Lookup
// after its listener bind has succeeded, and a failed bind leaves no trace.
// Instance ids are UUIDs and are never reused.
//
// All methods are safe for concurrent use; the convenience control
// operations may be called from any goroutine (a UI thread, a test), the
// per-machine mutex marshals the state access.
package manager
