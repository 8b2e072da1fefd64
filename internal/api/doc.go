// Package api implements one simulated device's HTTP API and realtime channel.
//
// This package provides:
//   - The Moonraker-style REST endpoints (/server/info, /printer/info,
//     /printer/objects/query, print start/cancel, gcode script, ...)
//   - The WebSocket endpoint with JSON-RPC 2.0 shaped envelopes and the
//     notify_status_update broadcast fanout
//   - Middleware stack (request ID, logging, recovery, permissive CORS,
//     body size limit)
//
// Every HTTP response is one of two JSON envelope shapes:
//
//	{"result": <payload>}
//	{"error": {"message": <text>, "code": <http status>}}
//
// One Server is created per device instance and operates only on that
// instance's printer.Machine; cross-instance isolation is structural. The
// listener is bound synchronously in Start, so a nil error from Start means
// the endpoint is accepting connections — callers never need to poll the
// port.
package api
