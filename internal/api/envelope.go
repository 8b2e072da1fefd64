package api

import (
	"encoding/json"
	"net/http"
)

// errorBody is the inner object of the error envelope.
// Code repeats the HTTP status so clients reading only the body see it.
type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeResult writes a success envelope: {"result": <payload>}.
func writeResult(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, map[string]any{"result": payload})
}

// writeError writes an error envelope: {"error": {"message": ..., "code": ...}}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": errorBody{
		Message: message,
		Code:    status,
	}})
}

// writeNotFound writes a 404 error envelope.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

// writeInternalError writes a 500 error envelope.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}
