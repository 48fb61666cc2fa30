package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"callagent/internal/domain"
	"callagent/internal/script"
)

type fakeProvider struct {
	mu         sync.Mutex
	configured bool
	calls      []domain.OutboundCall
	err        error
}

func (f *fakeProvider) Name() string     { return "fake" }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) PlaceCall(_ context.Context, call domain.OutboundCall) (domain.PlacedCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.err != nil {
		return domain.PlacedCall{}, f.err
	}
	return domain.PlacedCall{ID: "call-1", Data: map[string]any{"id": "call-1"}}, nil
}

func newCallService(t *testing.T, p *fakeProvider) *CallService {
	t.Helper()
	reg, err := script.Default()
	if err != nil {
		t.Fatalf("scripts: %v", err)
	}
	return &CallService{Provider: p, Scripts: reg, CountryCode: "+91"}
}

func TestInitiateRequiresConfiguration(t *testing.T) {
	p := &fakeProvider{}
	s := newCallService(t, p)

	_, err := s.Initiate(context.Background(), domain.CallRequest{PhoneNumber: "9876543210"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(p.calls) != 0 {
		t.Fatalf("provider must not be called")
	}
}

func TestInitiateRequiresPhone(t *testing.T) {
	p := &fakeProvider{configured: true}
	s := newCallService(t, p)

	_, err := s.Initiate(context.Background(), domain.CallRequest{CustomerName: "Asha"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(p.calls) != 0 {
		t.Fatalf("provider must not be called")
	}
}

func TestInitiatePlacesOneCall(t *testing.T) {
	p := &fakeProvider{configured: true}
	s := newCallService(t, p)

	res, err := s.Initiate(context.Background(), domain.CallRequest{
		InquiryID:     "inq-1",
		PhoneNumber:   "098765 43210",
		PreferredArea: "Baner",
		Language:      "English",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CallID != "call-1" || res.Language != domain.LanguageEnglish {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(p.calls) != 1 {
		t.Fatalf("expected exactly one provider call, got %d", len(p.calls))
	}

	c := p.calls[0]
	if c.To != "+919876543210" {
		t.Fatalf("expected normalized number, got %q", c.To)
	}
	if c.CustomerName != "Sir or Madam" {
		t.Fatalf("expected localized fallback name, got %q", c.CustomerName)
	}
	if !strings.Contains(c.Opening, "Baner") || !strings.Contains(c.Instructions, "schedule_appointment") {
		t.Fatalf("script not rendered: %q", c.Opening)
	}
	if len(c.Tools) != 1 || c.Tools[0].Name != domain.ToolScheduleAppointment {
		t.Fatalf("expected schedule_appointment tool, got %+v", c.Tools)
	}
	want := domain.CallMetadata{InquiryID: "inq-1", PreferredArea: "Baner", Language: "english"}
	if c.Metadata != want {
		t.Fatalf("metadata = %+v, want %+v", c.Metadata, want)
	}
}

func TestInitiateUnknownLanguageUsesHindi(t *testing.T) {
	p := &fakeProvider{configured: true}
	s := newCallService(t, p)

	res, err := s.Initiate(context.Background(), domain.CallRequest{PhoneNumber: "+919876543210", CustomerName: "Ravi", Language: "tamil"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Language != domain.LanguageHindi {
		t.Fatalf("expected hindi, got %q", res.Language)
	}
	if !strings.HasPrefix(p.calls[0].Opening, "Namaste! Kya main Ravi ji") {
		t.Fatalf("expected hindi opening, got %q", p.calls[0].Opening)
	}
	if p.calls[0].Metadata.Language != "hindi" {
		t.Fatalf("metadata should carry the resolved language")
	}
}

func TestInitiateProviderFailureIsNotRetried(t *testing.T) {
	p := &fakeProvider{configured: true, err: &domain.ProviderError{StatusCode: 503, Body: "unavailable"}}
	s := newCallService(t, p)

	_, err := s.Initiate(context.Background(), domain.CallRequest{PhoneNumber: "9876543210"})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 503 {
		t.Fatalf("expected provider error with status, got %v", err)
	}
	if len(p.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(p.calls))
	}
}

func TestInitiateTransportFailureIsProviderError(t *testing.T) {
	p := &fakeProvider{configured: true, err: errors.New("dial tcp: connection refused")}
	s := newCallService(t, p)

	_, err := s.Initiate(context.Background(), domain.CallRequest{PhoneNumber: "9876543210"})
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestProviderBreakerOpensOnServerErrors(t *testing.T) {
	p := &fakeProvider{configured: true, err: &domain.ProviderError{StatusCode: 500}}
	s := newCallService(t, p)
	s.Breaker = NewProviderBreaker("test", 2, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := s.Initiate(context.Background(), domain.CallRequest{PhoneNumber: "9876543210"})
		if !errors.Is(err, domain.ErrProvider) {
			t.Fatalf("attempt %d: expected provider error, got %v", i, err)
		}
	}
	if len(p.calls) != 2 {
		t.Fatalf("expected breaker to stop the third call, provider saw %d", len(p.calls))
	}
}

func TestProviderBreakerIgnoresClientErrors(t *testing.T) {
	p := &fakeProvider{configured: true, err: &domain.ProviderError{StatusCode: 400}}
	s := newCallService(t, p)
	s.Breaker = NewProviderBreaker("test", 2, time.Minute)

	for i := 0; i < 3; i++ {
		_, _ = s.Initiate(context.Background(), domain.CallRequest{PhoneNumber: "9876543210"})
	}
	if len(p.calls) != 3 {
		t.Fatalf("4xx must not trip the breaker, provider saw %d", len(p.calls))
	}
}
