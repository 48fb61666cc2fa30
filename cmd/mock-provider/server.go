package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"callagent/internal/config"
	"callagent/internal/domain"
	"callagent/internal/providers/vapi"
)

const (
	scenarioBooked = "booked"
	scenarioReport = "report"
	scenarioNone   = "none"
)

type server struct {
	cfg    config.MockProviderConfig
	client *http.Client

	rngMu sync.Mutex
	rng   *rand.Rand

	wg    sync.WaitGroup
	sleep func(context.Context, time.Duration) bool
}

type callResponse struct {
	ID            string        `json:"id"`
	Status        string        `json:"status"`
	Type          string        `json:"type"`
	PhoneNumberID string        `json:"phoneNumberId"`
	AssistantID   string        `json:"assistantId"`
	Customer      vapi.Customer `json:"customer"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type apiError struct {
	Message    string `json:"message"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

func newServer(cfg config.MockProviderConfig, rng *rand.Rand) *server {
	return &server{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		rng:    rng,
		sleep:  sleepCtx,
	}
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/call/phone", s.handleCreateCall).Methods(http.MethodPost)
	r.HandleFunc("/call", s.handleCreateCall).Methods(http.MethodPost)
	return r
}

// wait blocks until pending webhook replays finish or d elapses.
func (s *server) wait(d time.Duration) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		slog.Warn("mock provider exiting with webhook replays pending")
	}
}

func (s *server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	if s.cfg.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.APIKey {
		writeAPIError(w, http.StatusUnauthorized, "Invalid Key. Hot tip, you may be using the private key instead of the public key, or vice versa.")
		return
	}

	var req vapi.PhoneCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.PhoneNumberID == "" || req.AssistantID == "" {
		writeAPIError(w, http.StatusBadRequest, "phoneNumberId and assistantId are required")
		return
	}
	if !strings.HasPrefix(req.Customer.Number, "+") {
		writeAPIError(w, http.StatusBadRequest, "customer.number must be a valid phone number in the E.164 format")
		return
	}
	if s.shouldFail() {
		writeAPIError(w, http.StatusInternalServerError, "mock provider failure")
		return
	}

	resp := callResponse{
		ID:            uuid.NewString(),
		Status:        "queued",
		Type:          "outboundPhoneCall",
		PhoneNumberID: req.PhoneNumberID,
		AssistantID:   req.AssistantID,
		Customer:      req.Customer,
		CreatedAt:     time.Now().UTC(),
	}
	writeJSON(w, http.StatusCreated, resp)

	if s.cfg.WebhookURL == "" || s.cfg.Scenario == scenarioNone {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.replay(context.Background(), resp.ID, req)
	}()
}

func (s *server) shouldFail() bool {
	if s.cfg.FailRate <= 0 {
		return false
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < s.cfg.FailRate
}

// replay posts the server messages a real call would produce.
func (s *server) replay(ctx context.Context, callID string, req vapi.PhoneCallRequest) {
	if !s.sleep(ctx, s.cfg.CallDelay) {
		return
	}
	for _, msg := range s.messages(callID, req) {
		if err := s.postWithRetry(ctx, vapi.WebhookPayload{Message: &msg}); err != nil {
			slog.Error("mock webhook delivery failed", "call_id", callID, "type", msg.Type, "err", err)
			return
		}
	}
}

func (s *server) messages(callID string, req vapi.PhoneCallRequest) []vapi.ServerMessage {
	meta := req.AssistantOverrides.Metadata
	call := &vapi.Call{
		ID:                 callID,
		Customer:           &vapi.Customer{Number: req.Customer.Number, Name: req.Customer.Name},
		AssistantOverrides: &vapi.CallAssistant{Metadata: meta},
	}
	area := meta.PreferredArea
	if area == "" {
		area = "Pune"
	}

	report := vapi.ServerMessage{
		Type:       vapi.EventEndOfCallReport,
		Call:       call,
		Summary:    fmt.Sprintf("Customer agreed to a site visit in %s on 15th March at 11 am.", area),
		Transcript: "AI: Saturday subah 11 baje kaisa rahega?\nUser: Haan, appointment fix kar dijiye.",
	}
	if s.cfg.Scenario == scenarioReport {
		return []vapi.ServerMessage{report}
	}

	tool := vapi.ServerMessage{
		Type: vapi.EventToolCalls,
		Call: call,
		ToolCalls: []vapi.ToolCall{{
			ID:   "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
			Type: "function",
			Function: vapi.ToolCallFunction{
				Name: domain.ToolScheduleAppointment,
				Arguments: vapi.Arguments{
					"customerName": req.Customer.Name,
					"date":         "15th March",
					"time":         "11 AM",
					"location":     area,
					"notes":        "Booked by mock provider",
				},
			},
		}},
	}
	return []vapi.ServerMessage{tool, report}
}

func (s *server) postWithRetry(ctx context.Context, payload vapi.WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	attempts := s.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		status, err := s.post(ctx, body)
		if err == nil && status >= 200 && status < 300 {
			return nil
		}
		if err == nil {
			err = fmt.Errorf("webhook returned status %d", status)
			if !isRetryableStatus(status) {
				return err
			}
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		wait := s.cfg.RetryBase * time.Duration(1<<attempt)
		slog.Warn("mock webhook post retrying", "attempt", attempt+1, "status", status, "wait_ms", wait.Milliseconds())
		if !s.sleep(ctx, wait) {
			return ctx.Err()
		}
	}
	return lastErr
}

func (s *server) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.WebhookSecret != "" {
		req.Header.Set(vapi.SecretHeader, s.cfg.WebhookSecret)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Message: msg, Error: http.StatusText(status), StatusCode: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
