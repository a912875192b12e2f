// Package core defines the JSON envelope and HTTP error mapping shared by
// all API modules. Every response is either
//
//	{"success": true,  "data": ..., "message": "..."}
//	{"success": false, "message": "...", "error": "..."}
package core

import (
	"encoding/json"
	"net/http"
)

// Envelope is the wire format for all API responses.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON writes a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data any, message string) {
	writeEnvelope(w, status, Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// Fail writes a failure envelope. err may be nil when the message alone is
// descriptive enough.
func Fail(w http.ResponseWriter, status int, message string, err error) {
	env := Envelope{Success: false, Message: message}
	if err != nil {
		env.Error = err.Error()
	}
	writeEnvelope(w, status, env)
}

// FailErr maps an error to a failure envelope using its HTTPError status
// when available, falling back to 500 with message only so internal details
// never leak to clients.
func FailErr(w http.ResponseWriter, err error) {
	if httpErr, ok := AsHTTPError(err); ok {
		Fail(w, httpErr.Status, httpErr.Message, err)
		return
	}
	Fail(w, http.StatusInternalServerError, "internal server error", nil)
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
