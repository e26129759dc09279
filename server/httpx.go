package server

import (
	"encoding/json"
	"net/http"

	"github.com/Alp4ka/storypager"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the {error, message} envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, storypager.APIResponse{Error: true, Message: message})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, storypager.APIResponse{Message: message})
}
