package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/moonsim-core/internal/infrastructure/config"
	"github.com/nerrad567/moonsim-core/internal/infrastructure/logging"
	"github.com/nerrad567/moonsim-core/internal/printer"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{
		Level:  "error",
		Format: "text",
		Output: "stderr",
	}, "test")
}

// newTestServer builds a Server with a live hub but no listener, suitable
// for driving the router directly through httptest.
func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	cfg := config.Default()
	s, err := New(Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  testLogger(),
		Machine: printer.NewMachine(),
		Host:    "127.0.0.1",
		Version: "test-version",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.hub = NewHub(cfg.WebSocket, s.logger, s.machine, s.version)
	return s, s.buildRouter()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body io.Reader) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decoding %s %s response: %v (body %q)", method, path, err, rec.Body.String())
		}
	}
	return rec, decoded
}

// result extracts the success envelope payload as a map.
func result(t *testing.T, body map[string]any) map[string]any {
	t.Helper()

	payload, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("response has no result object: %v", body)
	}
	return payload
}

func TestNew_RequiresMachine(t *testing.T) {
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Fatal("expected error for missing machine")
	}
}

func TestServerInfo(t *testing.T) {
	_, h := newTestServer(t)
	rec, body := doRequest(t, h, http.MethodGet, "/server/info", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	res := result(t, body)
	if res["klippy_connected"] != true {
		t.Errorf("klippy_connected = %v, want true", res["klippy_connected"])
	}
	if res["klippy_state"] != "ready" {
		t.Errorf("klippy_state = %v, want ready", res["klippy_state"])
	}
	if res["moonraker_version"] != "test-version" {
		t.Errorf("moonraker_version = %v, want test-version", res["moonraker_version"])
	}
	if res["websocket_count"] != float64(0) {
		t.Errorf("websocket_count = %v, want 0", res["websocket_count"])
	}
}

func TestPrinterInfo(t *testing.T) {
	_, h := newTestServer(t)
	rec, body := doRequest(t, h, http.MethodGet, "/printer/info", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	res := result(t, body)
	if res["state"] != "ready" {
		t.Errorf("state = %v, want ready", res["state"])
	}
	if res["state_message"] != "Printer is ready" {
		t.Errorf("state_message = %v", res["state_message"])
	}
	if res["hostname"] != "moonraker-simulator" {
		t.Errorf("hostname = %v, want moonraker-simulator", res["hostname"])
	}
}

func TestObjectsQuery_Defaults(t *testing.T) {
	_, h := newTestServer(t)
	_, body := doRequest(t, h, http.MethodGet, "/printer/objects/query", nil)

	status, ok := result(t, body)["status"].(map[string]any)
	if !ok {
		t.Fatalf("result has no status object: %v", body)
	}
	for _, name := range []string{"temperature_sensor", "heater_bed", "extruder"} {
		obj, ok := status[name].(map[string]any)
		if !ok {
			t.Fatalf("status missing %q: %v", name, status)
		}
		if obj["temperature"] != 25.0 {
			t.Errorf("%s temperature = %v, want 25", name, obj["temperature"])
		}
		if obj["power"] != 0.0 {
			t.Errorf("%s power = %v, want 0", name, obj["power"])
		}
	}
}

func TestObjectsQuery_UnknownNamesDropped(t *testing.T) {
	_, h := newTestServer(t)
	_, body := doRequest(t, h, http.MethodGet, "/printer/objects/query?objects=extruder,%20gcode_move%20,nonsense", nil)

	status, ok := result(t, body)["status"].(map[string]any)
	if !ok {
		t.Fatalf("result has no status object: %v", body)
	}
	if _, ok := status["extruder"]; !ok {
		t.Error("extruder missing from status")
	}
	if _, ok := status["nonsense"]; ok {
		t.Error("unknown object name should be dropped")
	}
	if _, ok := status["gcode_move"]; ok {
		t.Error("unsupported object name should be dropped")
	}
}

func TestObjectsList(t *testing.T) {
	_, h := newTestServer(t)
	_, body := doRequest(t, h, http.MethodGet, "/printer/objects/list", nil)

	objects, ok := result(t, body)["objects"].([]any)
	if !ok {
		t.Fatalf("result has no objects array: %v", body)
	}
	if len(objects) != len(printer.Catalog()) {
		t.Fatalf("objects list has %d entries, want %d", len(objects), len(printer.Catalog()))
	}
}

func TestFilesList(t *testing.T) {
	_, h := newTestServer(t)
	_, body := doRequest(t, h, http.MethodGet, "/server/files/list", nil)

	res := result(t, body)
	files, ok := res["files"].([]any)
	if !ok || len(files) != 1 {
		t.Fatalf("files = %v, want one canned entry", res["files"])
	}
	entry := files[0].(map[string]any)
	if entry["filename"] != "test.gcode" {
		t.Errorf("filename = %v, want test.gcode", entry["filename"])
	}
	if dirs, ok := res["dirs"].([]any); !ok || len(dirs) != 0 {
		t.Errorf("dirs = %v, want empty array", res["dirs"])
	}
}

func TestServerRestart(t *testing.T) {
	_, h := newTestServer(t)
	rec, body := doRequest(t, h, http.MethodPost, "/server/restart", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["result"] != "ok" {
		t.Fatalf("result = %v, want ok", body["result"])
	}
}

func TestPrintStart(t *testing.T) {
	s, h := newTestServer(t)
	rec, body := doRequest(t, h, http.MethodPost, "/printer/print/start",
		strings.NewReader(`{"filename":"benchy.gcode"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["result"] != "ok" {
		t.Fatalf("result = %v, want ok", body["result"])
	}

	snap := s.machine.Snapshot()
	if snap.State != printer.StatePrinting {
		t.Errorf("state = %q, want printing", snap.State)
	}
	if snap.PrintStats.Filename != "benchy.gcode" {
		t.Errorf("filename = %q, want benchy.gcode", snap.PrintStats.Filename)
	}
	if snap.StateMessage != "Printing benchy.gcode" {
		t.Errorf("state_message = %q", snap.StateMessage)
	}
}

func TestPrintStart_MalformedBody(t *testing.T) {
	s, h := newTestServer(t)
	rec, body := doRequest(t, h, http.MethodPost, "/printer/print/start",
		strings.NewReader(`{not json`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (malformed body falls back to defaults)", rec.Code)
	}
	if body["result"] != "ok" {
		t.Fatalf("result = %v, want ok", body["result"])
	}

	snap := s.machine.Snapshot()
	if snap.State != printer.StatePrinting {
		t.Errorf("state = %q, want printing", snap.State)
	}
	if snap.PrintStats.Filename != "" {
		t.Errorf("filename = %q, want empty", snap.PrintStats.Filename)
	}
}

func TestPrintCancel(t *testing.T) {
	s, h := newTestServer(t)
	s.machine.StartPrint("job.gcode")

	rec, body := doRequest(t, h, http.MethodPost, "/printer/print/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["result"] != "ok" {
		t.Fatalf("result = %v, want ok", body["result"])
	}

	snap := s.machine.Snapshot()
	if snap.State != printer.StateStandby {
		t.Errorf("state = %q, want standby", snap.State)
	}
	if snap.PrintStats.Filename != "" {
		t.Errorf("filename = %q, want cleared", snap.PrintStats.Filename)
	}
}

func TestGcodeScript(t *testing.T) {
	_, h := newTestServer(t)
	rec, body := doRequest(t, h, http.MethodPost, "/printer/gcode/script",
		strings.NewReader(`{"script":"G28"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["result"] != "ok" {
		t.Fatalf("result = %v, want ok", body["result"])
	}
}

func TestNotFound_JSONEnvelope(t *testing.T) {
	_, h := newTestServer(t)
	rec, body := doRequest(t, h, http.MethodGet, "/no/such/route", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error object: %v", body)
	}
	if errObj["code"] != float64(http.StatusNotFound) {
		t.Errorf("error code = %v, want 404", errObj["code"])
	}
	if errObj["message"] == "" {
		t.Error("error message is empty")
	}
}

func TestCORSHeaders(t *testing.T) {
	_, h := newTestServer(t)
	rec, _ := doRequest(t, h, http.MethodGet, "/server/info", nil)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("Access-Control-Allow-Methods not set")
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/printer/print/start", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	s, _ := newTestServer(t)

	panicking := s.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/server/info", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding panic response: %v", err)
	}
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error object: %v", body)
	}
	if msg, _ := errObj["message"].(string); !strings.Contains(msg, "boom") {
		t.Errorf("error message = %q, want panic text", msg)
	}
}
