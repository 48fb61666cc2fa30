package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"callagent/internal/domain"
	"callagent/internal/logging"
	"callagent/internal/observability"
	"callagent/internal/script"
	"callagent/internal/util"
)

// VoiceProvider places AI voice calls. Implementations must not retry on their own.
type VoiceProvider interface {
	Name() string
	Configured() bool
	PlaceCall(ctx context.Context, call domain.OutboundCall) (domain.PlacedCall, error)
}

type CallService struct {
	Provider    VoiceProvider
	Scripts     *script.Registry
	CountryCode string

	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker
	Timeout time.Duration
}

// Initiate places a single outbound call. It touches no local state.
func (s *CallService) Initiate(ctx context.Context, req domain.CallRequest) (domain.CallResult, error) {
	if s.Provider == nil || !s.Provider.Configured() {
		return domain.CallResult{}, domain.ErrConfiguration
	}
	if err := req.Validate(); err != nil {
		return domain.CallResult{}, err
	}

	lang := domain.ParseLanguage(req.Language)
	to := util.NormalizePhone(req.PhoneNumber, s.CountryCode)

	sc, err := s.Scripts.Render(lang, script.Vars{Name: req.CustomerName, Area: req.PreferredArea, Budget: req.Budget})
	if err != nil {
		return domain.CallResult{}, fmt.Errorf("%w: render script: %v", domain.ErrInternal, err)
	}

	call := domain.OutboundCall{
		To:           to,
		CustomerName: s.Scripts.DisplayName(lang, req.CustomerName),
		Opening:      sc.Opening,
		Instructions: sc.Instructions,
		Tools:        []domain.ToolSpec{domain.ScheduleAppointmentTool},
		Metadata: domain.CallMetadata{
			InquiryID:     strings.TrimSpace(req.InquiryID),
			CustomerName:  strings.TrimSpace(req.CustomerName),
			PreferredArea: strings.TrimSpace(req.PreferredArea),
			Budget:        strings.TrimSpace(req.Budget),
			Language:      string(lang),
		},
	}

	log := logging.From(ctx)
	provider := s.Provider.Name()

	if s.Limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.Limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			observability.ProviderCalls.WithLabelValues(provider, "rate_limited_local", "0").Inc()
			return domain.CallResult{}, fmt.Errorf("%w: local rate limit: %v", domain.ErrProvider, err)
		}
	}

	start := time.Now()
	placed, err := s.placeWithBreaker(ctx, call)
	observability.ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		observability.ProviderCalls.WithLabelValues(provider, "cb_open", "0").Inc()
		return domain.CallResult{}, fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	if err != nil {
		status := 0
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			status = pe.StatusCode
			log.Error("voice provider rejected call", "provider", provider, "status", pe.StatusCode, "body", pe.Body)
		} else {
			log.Error("voice provider call failed", "provider", provider, "err", err)
		}
		observability.ProviderCalls.WithLabelValues(provider, "error", strconv.Itoa(status)).Inc()
		if !errors.Is(err, domain.ErrProvider) && !errors.Is(err, domain.ErrConfiguration) {
			err = fmt.Errorf("%w: %w", domain.ErrProvider, err)
		}
		return domain.CallResult{}, err
	}

	observability.ProviderCalls.WithLabelValues(provider, "ok", "2xx").Inc()
	log.Info("call initiated", "provider", provider, "call_id", placed.ID, "language", lang)

	return domain.CallResult{CallID: placed.ID, Language: lang, Data: placed.Data}, nil
}

func (s *CallService) placeWithBreaker(ctx context.Context, call domain.OutboundCall) (domain.PlacedCall, error) {
	place := func() (any, error) {
		reqCtx := ctx
		if s.Timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
		}
		return s.Provider.PlaceCall(reqCtx, call)
	}

	if s.Breaker == nil {
		res, err := place()
		if err != nil {
			return domain.PlacedCall{}, err
		}
		return res.(domain.PlacedCall), nil
	}
	res, err := s.Breaker.Execute(place)
	if err != nil {
		return domain.PlacedCall{}, err
	}
	return res.(domain.PlacedCall), nil
}

// NewProviderBreaker trips after consecutive provider failures. Client errors (4xx) do not
// count against the provider.
func NewProviderBreaker(name string, failures uint32, openFor time.Duration) *gobreaker.CircuitBreaker {
	if failures == 0 {
		failures = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var pe *domain.ProviderError
			if errors.As(err, &pe) {
				return pe.StatusCode < 500 && pe.StatusCode != 429
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}
