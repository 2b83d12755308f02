// Package httputil provides shared helpers for consistent JSON responses.
package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteData writes a success payload wrapped in a {"data": ...} envelope.
// The internal API uses this envelope for every successful response.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, map[string]any{"data": data})
}

// WriteError writes an error response carrying a machine-readable code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]any{
		"error": message,
		"code":  code,
	})
}

// WriteErrorFields writes an error response with extra top-level fields,
// e.g. the observed and maximum sizes on a 413.
func WriteErrorFields(w http.ResponseWriter, status int, code, message string, fields map[string]any) {
	body := map[string]any{
		"error": message,
		"code":  code,
	}
	for k, v := range fields {
		body[k] = v
	}
	WriteJSON(w, status, body)
}

// WriteUnauthorized writes a 401 with the UNAUTHORIZED code.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// WriteNotFound writes a 404 with the given code.
func WriteNotFound(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusNotFound, code, message)
}

// WriteBadRequest writes a 400 with the given code.
func WriteBadRequest(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusBadRequest, code, message)
}
