package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"callagent/internal/config"
	"callagent/internal/httpserver"
	"callagent/internal/logging"
	"callagent/internal/observability"
	"callagent/internal/providers/vapi"
	"callagent/internal/script"
	"callagent/internal/service"
	"callagent/internal/store/pg"
)

func main() {
	cfg := config.LoadAPI()
	logging.Init("api", cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pg.Open(ctx, cfg.DB)
	if err != nil {
		slog.Error("api db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	store := pg.New(db)

	if cfg.DB.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("api schema migration failed", "err", err)
			os.Exit(1)
		}
	}

	scripts, err := script.Load(cfg.ScriptsFile)
	if err != nil {
		slog.Error("api scripts load failed", "err", err, "path", cfg.ScriptsFile)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	provider := &vapi.Client{
		APIKey:        cfg.Vapi.APIKey,
		PhoneNumberID: cfg.Vapi.PhoneNumberID,
		AssistantID:   cfg.Vapi.AssistantID,
		BaseURL:       cfg.Vapi.BaseURL,
		HTTP:          &http.Client{Timeout: cfg.Vapi.Timeout},
		ModelProvider: cfg.Vapi.ModelProvider,
		Model:         cfg.Vapi.Model,
		VoiceProvider: cfg.Vapi.VoiceProvider,
		VoiceID:       cfg.Vapi.VoiceID,
	}
	if !provider.Configured() {
		slog.Warn("vapi credentials missing, outbound calls will be rejected")
	}

	calls := &service.CallService{
		Provider:    provider,
		Scripts:     scripts,
		CountryCode: cfg.CountryCode,
		Limiter:     rate.NewLimiter(rate.Limit(cfg.Vapi.RPSPerPod), cfg.Vapi.Burst),
		Breaker:     service.NewProviderBreaker(provider.Name(), cfg.Vapi.BreakerFailures, cfg.Vapi.BreakerOpenFor),
		Timeout:     cfg.Vapi.Timeout,
	}
	appointments := &service.AppointmentService{Store: store}

	s := httpserver.New(cfg.CORSAllowOrigin)
	(&httpserver.Calls{Svc: calls}).Register(s.Mux)
	(&httpserver.Appointments{Svc: appointments}).Register(s.Mux)
	s.RegisterHealth(2*time.Second, store.Ping)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpserver.ListenAndServe(ctx, "api", srv); err != nil {
		slog.Error("api server failed", "err", err)
		os.Exit(1)
	}
}
