package httpserver

import (
	"encoding/json"
	"net/http"
)

const (
	ErrInvalidJSON      = "invalid json"
	ErrMissingID        = "missing id"
	ErrDependency       = "dependency error"
	ErrNotFound         = "not found"
	ErrInvalidSecret    = "invalid webhook secret"
	ErrMissingPhone     = "Phone number is required"
	ErrIncompleteConfig = "VAPI configuration is incomplete"
	ErrInitiateFailed   = "Failed to initiate call"
	ErrInternalServer   = "Internal server error"
	MsgCallInitiated    = "Call initiated successfully"
	maxWebhookBodyBytes = 1 << 20
	maxRequestBodyBytes = 64 << 10
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
