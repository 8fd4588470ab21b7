package control

import (
	"encoding/json"
	"net/http"
)

// envelope wraps error responses with an "error" key holding a
// human-readable message. Success responses carry their payload directly
// (a bare array for /status and /add, a bare object for /healthz) per the
// control surface's wire format — no "data" wrapper.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"error": message})
}

func errBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func errInternal(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message)
}
