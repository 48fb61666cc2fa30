package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"callagent/internal/domain"
	"callagent/internal/logging"
)

type CallInitiator interface {
	Initiate(ctx context.Context, req domain.CallRequest) (domain.CallResult, error)
}

type Calls struct {
	Svc CallInitiator
}

type callResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	CallID   string          `json:"callId"`
	Language domain.Language `json:"language"`
	Data     map[string]any  `json:"data"`
}

func (c *Calls) Register(m *mux.Router) {
	m.HandleFunc("/v1/calls/outbound", c.handleOutbound).Methods(http.MethodPost)
}

func (c *Calls) handleOutbound(w http.ResponseWriter, r *http.Request) {
	var req domain.CallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON)
		return
	}

	res, err := c.Svc.Initiate(r.Context(), req)
	if err != nil {
		writeCallError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, callResponse{
		Success:  true,
		Message:  MsgCallInitiated,
		CallID:   res.CallID,
		Language: res.Language,
		Data:     res.Data,
	})
}

func writeCallError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingPhone):
		writeError(w, http.StatusBadRequest, ErrMissingPhone)
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConfiguration):
		writeError(w, http.StatusInternalServerError, ErrIncompleteConfig)
	case errors.Is(err, domain.ErrProvider):
		body := errorBody{Error: ErrInitiateFailed, Details: err.Error()}
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			body.Details = pe.Body
			body.Status = pe.StatusCode
		}
		writeJSON(w, http.StatusInternalServerError, body)
	default:
		logging.From(r.Context()).Error("outbound call failed", "err", err)
		writeError(w, http.StatusInternalServerError, ErrInternalServer)
	}
}
