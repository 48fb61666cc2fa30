package main

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callagent/internal/config"
	"callagent/internal/httpserver"
	"callagent/internal/logging"
)

func main() {
	cfg := config.LoadMockProvider()
	logging.Init("mock-provider", cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := newServer(cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.Logging(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpserver.ListenAndServe(ctx, "mock-provider", srv); err != nil {
		slog.Error("mock provider server failed", "err", err)
		os.Exit(1)
	}
	s.wait(10 * time.Second)
}
