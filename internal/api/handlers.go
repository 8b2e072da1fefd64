package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/moonsim-core/internal/printer"
)

// decodeBody reads a JSON request body into v. A missing or malformed body
// is treated as an empty payload: field defaults apply and no error is
// reported to the client.
func decodeBody(r *http.Request, v any) {
	if r.Body == nil {
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil || len(data) == 0 {
		return
	}
	//nolint:errcheck // Malformed JSON falls back to field defaults
	json.Unmarshal(data, v)
}

// parseObjectList splits a comma-separated object list, trimming whitespace
// around each name. Empty segments are dropped.
func parseObjectList(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// handleServerInfo returns connectivity flags, static component identifiers,
// and the current live-session count for this device.
func (s *Server) handleServerInfo(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, map[string]any{
		"klippy_connected":       true,
		"klippy_state":           "ready",
		"components":             []string{"server", "database", "file_manager", "machine"},
		"failed_components":      []string{},
		"registered_directories": []string{"config", "logs", "gcodes"},
		"warnings":               []string{},
		"websocket_count":        s.SessionCount(),
		"moonraker_version":      s.version,
	})
}

// handlePrinterInfo returns the printer state and static identity strings.
// The hostname and paths are literal simulator values, not configurable.
func (s *Server) handlePrinterInfo(w http.ResponseWriter, _ *http.Request) {
	snap := s.machine.Snapshot()
	writeResult(w, map[string]any{
		"state":            snap.State,
		"state_message":    snap.StateMessage,
		"hostname":         "moonraker-simulator",
		"software_version": "Moonraker Simulator v0.1.0",
		"cpu_info":         "Simulated CPU",
		"klipper_path":     "/fake/path/klippy",
		"python_path":      "/fake/path/python",
		"log_file":         "/fake/path/klippy.log",
		"config_file":      "/fake/path/printer.cfg",
	})
}

// handleObjectsQuery resolves the requested object names against the
// canonical mapping. Unrecognised names are silently omitted.
func (s *Server) handleObjectsQuery(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("objects")
	if raw == "" {
		raw = "temperature_sensor,heater_bed,extruder"
	}
	status := s.machine.QueryObjects(parseObjectList(raw))
	writeResult(w, map[string]any{"status": status})
}

// handleObjectsList returns the fixed catalog of recognised object names.
func (s *Server) handleObjectsList(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, map[string]any{"objects": printer.Catalog()})
}

// handleFilesList returns one canned file entry and an empty directory
// list. The simulator deliberately has no real file store.
func (s *Server) handleFilesList(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, map[string]any{
		"files": []map[string]any{
			{
				"filename": "test.gcode",
				"modified": float64(time.Now().Unix()),
				"size":     1024,
			},
		},
		"dirs": []any{},
	})
}

// handleServerRestart acknowledges the restart without performing one.
func (s *Server) handleServerRestart(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, "ok")
}

// handlePrintStart triggers the start-print transition and broadcasts the
// change to all realtime sessions.
func (s *Server) handlePrintStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	decodeBody(r, &req)

	changed := s.machine.StartPrint(req.Filename)
	s.hub.BroadcastStatus(changed)

	writeResult(w, "ok")
}

// handlePrintCancel triggers the cancel transition and broadcasts the change.
func (s *Server) handlePrintCancel(w http.ResponseWriter, _ *http.Request) {
	changed := s.machine.Cancel()
	s.hub.BroadcastStatus(changed)

	writeResult(w, "ok")
}

// handleGcodeScript logs the script and acknowledges it. Pure stub: the
// simulator does not interpret G-code.
func (s *Server) handleGcodeScript(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Script string `json:"script"`
	}
	decodeBody(r, &req)

	s.logger.Info("gcode script received", "script", req.Script)
	writeResult(w, "ok")
}
