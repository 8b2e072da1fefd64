// Package discovery advertises device instances on the local network via
// mDNS (DNS-SD), the way real Moonraker hosts announce themselves.
//
// Each registration uses the fixed service type (default "_moonraker._tcp")
// with a name composed from the host identity and port, so many instances
// on one machine never collide. TXT metadata carries the simulator version
// and hostname.
//
// Discovery is strictly best-effort: registration and withdrawal failures
// are logged and swallowed, never blocking instance startup or shutdown.
// On networks without multicast (CI runners, containers) the registrar can
// be disabled in configuration, turning every call into a no-op.
package discovery
