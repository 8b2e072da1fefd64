// Package printer implements the simulated printer state machine.
//
// Each device instance owns exactly one Machine. The Machine holds the
// printer state (ready/printing/paused/standby), the state message, two
// temperature readings, the print statistics block, and the print progress.
// All of a transition's field writes happen under one lock acquisition, so
// a concurrent reader never observes a half-applied transition.
//
// Transitions are unconditionally accepted regardless of the current state:
// pausing a printer that was never printing simply sets paused. This is the
// documented test-double behaviour, not missing validation — client software
// under test drives the simulator into arbitrary states.
//
// The canonical object mapping in objects.go is shared by the HTTP
// objects-query endpoint and the WebSocket subscribe handler, so both
// surfaces always agree on which object names are recognised and what their
// payloads look like.
package printer
