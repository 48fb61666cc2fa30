package main

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"callagent/internal/callevents"
	"callagent/internal/config"
	"callagent/internal/domain"
	"callagent/internal/providers/vapi"
)

type capture struct {
	mu       sync.Mutex
	bodies   [][]byte
	secrets  []string
	failures int
}

func (c *capture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	c.bodies = append(c.bodies, b)
	c.secrets = append(c.secrets, r.Header.Get(vapi.SecretHeader))
	w.WriteHeader(http.StatusOK)
}

func newTestMock(t *testing.T, cfg config.MockProviderConfig) (*server, *httptest.Server) {
	t.Helper()
	s := newServer(cfg, rand.New(rand.NewSource(1)))
	s.sleep = func(ctx context.Context, _ time.Duration) bool { return ctx.Err() == nil }
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func placeCall(t *testing.T, baseURL, apiKey string) (domain.PlacedCall, error) {
	t.Helper()
	c := &vapi.Client{APIKey: apiKey, PhoneNumberID: "pn_1", AssistantID: "as_1", BaseURL: baseURL}
	return c.PlaceCall(context.Background(), domain.OutboundCall{
		To:           "+919876543210",
		CustomerName: "Asha",
		Opening:      "Namaste",
		Instructions: "Book a visit",
		Tools:        []domain.ToolSpec{domain.ScheduleAppointmentTool},
		Metadata:     domain.CallMetadata{InquiryID: "inq_1", CustomerName: "Asha", PreferredArea: "Nashik", Language: "english"},
	})
}

func TestMockReplaysBookedCall(t *testing.T) {
	hook := &capture{failures: 1}
	target := httptest.NewServer(hook)
	defer target.Close()

	s, ts := newTestMock(t, config.MockProviderConfig{
		Scenario:      scenarioBooked,
		WebhookURL:    target.URL,
		WebhookSecret: "s3cret",
		MaxRetries:    2,
	})

	placed, err := placeCall(t, ts.URL, "vapi-key")
	if err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	if placed.ID == "" || placed.Data["status"] != "queued" {
		t.Fatalf("unexpected placed call: %+v", placed)
	}
	s.wait(5 * time.Second)

	hook.mu.Lock()
	defer hook.mu.Unlock()
	if len(hook.bodies) != 2 {
		t.Fatalf("webhooks delivered = %d, want 2", len(hook.bodies))
	}
	for _, sec := range hook.secrets {
		if sec != "s3cret" {
			t.Fatalf("secret header = %q", sec)
		}
	}

	m, err := vapi.ParseWebhook(hook.bodies[0])
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	drafts := callevents.Extract(m)
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	a := drafts[0].Appointment
	if a.Status != domain.StatusScheduled || domain.Deref(a.CallID) != placed.ID || domain.Deref(a.InquiryID) != "inq_1" {
		t.Fatalf("unexpected appointment: %+v", a)
	}
	if a.Language != domain.LanguageEnglish || domain.Deref(a.PropertyLocation) != "Nashik" || a.CustomerPhone != "+919876543210" {
		t.Fatalf("metadata not echoed: %+v", a)
	}

	m, err = vapi.ParseWebhook(hook.bodies[1])
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if m.Type != vapi.EventEndOfCallReport || len(callevents.Extract(m)) != 1 {
		t.Fatalf("expected a pending appointment from the report, got %+v", m)
	}
}

func TestMockRejectsBadKey(t *testing.T) {
	_, ts := newTestMock(t, config.MockProviderConfig{APIKey: "key", Scenario: scenarioNone})

	_, err := placeCall(t, ts.URL, "wrong")
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 provider error, got %v", err)
	}
	if _, err := placeCall(t, ts.URL, "key"); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
}

func TestMockFailRate(t *testing.T) {
	_, ts := newTestMock(t, config.MockProviderConfig{FailRate: 1, Scenario: scenarioNone})

	_, err := placeCall(t, ts.URL, "vapi-key")
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 provider error, got %v", err)
	}
}

func TestPostWithRetryStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer target.Close()

	s, _ := newTestMock(t, config.MockProviderConfig{WebhookURL: target.URL, MaxRetries: 3})
	if err := s.postWithRetry(context.Background(), vapi.WebhookPayload{}); err == nil {
		t.Fatalf("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("attempts = %d, want 1", n)
	}
}
