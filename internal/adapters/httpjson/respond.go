// Package httpjson holds the JSON response helpers shared by the HTTP handlers.
package httpjson

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
)

// ErrorBody is the payload written for every failed request.
type ErrorBody struct {
	Error string `json:"error"`
}

// Respond writes payload as JSON with the given status.
func Respond(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("Failed to encode response", "status", status, "err", err)
	}
}

// Error writes {"error": message} with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	Respond(w, status, ErrorBody{Error: message})
}
