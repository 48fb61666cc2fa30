package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"

	"callagent/internal/awsutil"
	"callagent/internal/config"
	"callagent/internal/dedupe"
	"callagent/internal/httpserver"
	"callagent/internal/logging"
	"callagent/internal/observability"
	sqsqueue "callagent/internal/queue/sqs"
	"callagent/internal/service"
	"callagent/internal/store/pg"
	"callagent/internal/worker"
)

func main() {
	cfg := config.LoadWebhook()
	logging.Init("webhook", cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.Register(prometheus.DefaultRegisterer)

	events := &service.EventService{}
	var checks []httpserver.ReadyzCheck
	var proc *worker.Processor

	switch cfg.Mode {
	case config.WebhookModeQueue:
		sqsClient, err := awsutil.NewSQSClient(ctx, cfg.SQS)
		if err != nil {
			slog.Error("webhook sqs client init failed", "err", err)
			os.Exit(1)
		}
		producer := &sqsqueue.AppointmentProducer{
			SQS:      sqsClient,
			QueueURL: cfg.SQS.QueueURL,
			FIFO:     cfg.SQS.FIFO,
		}
		events.Sink = producer.Enqueue
		checks = append(checks, func(c context.Context) error {
			_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
				QueueUrl:       &cfg.SQS.QueueURL,
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
			})
			return err
		})
		slog.Info("webhook mode queue", "queue_url", cfg.SQS.QueueURL, "fifo", cfg.SQS.FIFO)
	default:
		db, err := pg.Open(ctx, cfg.DB)
		if err != nil {
			slog.Error("webhook db connect failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		store := pg.New(db)
		if cfg.DB.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Error("webhook schema migration failed", "err", err)
				os.Exit(1)
			}
		}
		proc = worker.NewProcessor(store, cfg.Twilio)
		proc.Background = true
		events.Sink = proc.Process
		checks = append(checks, store.Ping)
		slog.Info("webhook mode direct", "confirmation_sms", cfg.Twilio.Enabled())
	}

	if cfg.Redis.Addr != "" {
		rdb, err := dedupe.OpenRedis(ctx, dedupe.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Error("webhook redis connect failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		events.Deduper = dedupe.NewRedisDeduper(rdb, cfg.Redis.DedupeTTL)
	} else {
		slog.Warn("REDIS_ADDR not set, provider redeliveries will record duplicate appointments")
	}

	if cfg.WebhookSecret == "" {
		slog.Warn("VAPI_WEBHOOK_SECRET not set, webhook accepts unauthenticated requests")
	}

	s := httpserver.New(cfg.CORSAllowOrigin)
	(&httpserver.VapiWebhook{Events: events, Secret: cfg.WebhookSecret}).Register(s.Mux)
	s.RegisterHealth(2*time.Second, checks...)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := httpserver.ListenAndServe(ctx, "webhook", srv)
	if proc != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if werr := proc.Wait(drainCtx); werr != nil {
			slog.Warn("confirmation sms still in flight at shutdown", "err", werr)
		}
		cancel()
	}
	if err != nil {
		slog.Error("webhook server failed", "err", err)
		os.Exit(1)
	}
}
