package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"callagent/internal/awsutil"
	"callagent/internal/config"
	"callagent/internal/domain"
	"callagent/internal/httpserver"
	"callagent/internal/logging"
	"callagent/internal/observability"
	sqsqueue "callagent/internal/queue/sqs"
	"callagent/internal/store/pg"
	"callagent/internal/worker"
)

func main() {
	cfg := config.LoadWebhookProcessor()
	logging.Init("webhook-processor", cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Open(ctx, cfg.DB)
	if err != nil {
		slog.Error("webhook-processor db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	store := pg.New(db)
	if cfg.DB.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("webhook-processor schema migration failed", "err", err)
			os.Exit(1)
		}
	}

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.SQS)
	if err != nil {
		slog.Error("webhook-processor sqs client init failed", "err", err)
		os.Exit(1)
	}

	observability.Register(prometheus.DefaultRegisterer)

	consumer := &sqsqueue.Consumer{
		SQS:               sqsClient,
		QueueURL:          cfg.SQS.QueueURL,
		WaitTimeSeconds:   cfg.SQS.WaitTime,
		MaxMessages:       cfg.SQS.MaxMsgs,
		VisibilityTimeout: cfg.SQS.VizTimeout,
	}
	processor := worker.NewProcessor(store, cfg.Twilio)

	health := httpserver.New("")
	health.Mux.HandleFunc("/healthz", httpserver.Healthz()).Methods(http.MethodGet)
	health.Mux.HandleFunc("/readyz", httpserver.Readyz(2*time.Second,
		store.Ping,
		func(c context.Context) error {
			_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
				QueueUrl:       &cfg.SQS.QueueURL,
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
			})
			return err
		},
	)).Methods(http.MethodGet)

	healthSrv := &http.Server{Addr: ":" + cfg.Port, Handler: health.Handler(), ReadHeaderTimeout: 10 * time.Second}
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler(), ReadHeaderTimeout: 10 * time.Second}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-processor health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()
	metricsErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-processor metrics listening", "port", cfg.MetricsPort)
		metricsErrCh <- metricsSrv.ListenAndServe()
	}()

	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("webhook-processor starting poll", "queue_url", cfg.SQS.QueueURL, "concurrency", cfg.Concurrency)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.Concurrency, func(ctx context.Context, job domain.AppointmentJob) error {
			start := time.Now()
			err := processor.Process(ctx, job)
			if err != nil {
				slog.Error("appointment job failed", "delivery_key", job.DeliveryKey, "duration", time.Since(start), "err", err)
				return err
			}
			slog.Debug("appointment job done", "delivery_key", job.DeliveryKey, "duration", time.Since(start))
			return nil
		})
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("webhook-processor poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webhook-processor health server failed", "err", err)
			os.Exit(1)
		}
	case err := <-metricsErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webhook-processor metrics server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("webhook-processor shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(10 * time.Second):
		slog.Info("webhook-processor shutdown timeout waiting for poll loop")
	}
}
