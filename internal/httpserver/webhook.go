package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"callagent/internal/logging"
	"callagent/internal/providers/vapi"
)

type EventHandler interface {
	Handle(ctx context.Context, raw []byte) error
}

// VapiWebhook receives provider server messages. Secret is optional; when set, requests must
// carry it in the x-vapi-secret header.
type VapiWebhook struct {
	Events EventHandler
	Secret string
}

type successBody struct {
	Success bool `json:"success"`
}

func (h *VapiWebhook) Register(m *mux.Router) {
	m.HandleFunc("/v1/webhooks/vapi", h.handleVapi).Methods(http.MethodPost)
}

func (h *VapiWebhook) handleVapi(w http.ResponseWriter, r *http.Request) {
	if !vapi.VerifySecret(h.Secret, r) {
		writeError(w, http.StatusUnauthorized, ErrInvalidSecret)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Events.Handle(r.Context(), raw); err != nil {
		logging.From(r.Context()).Error("webhook payload rejected", "err", err, "bytes", len(raw))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}
