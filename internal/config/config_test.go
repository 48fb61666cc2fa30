package config

import (
	"testing"
	"time"
)

func TestLoadAPIDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/calls")

	cfg := LoadAPI()
	if cfg.Port != "8080" || cfg.CountryCode != "+91" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.DB.DSN != "postgres://localhost/calls" || cfg.DB.MaxConns != 10 {
		t.Fatalf("db config not loaded: %+v", cfg.DB)
	}
	if cfg.Vapi.BaseURL != "https://api.vapi.ai" || cfg.Vapi.Model != "gpt-4o" || cfg.Vapi.Timeout != 15*time.Second {
		t.Fatalf("vapi defaults not applied: %+v", cfg.Vapi)
	}
	if cfg.Vapi.APIKey != "" {
		t.Fatalf("credentials must be optional at startup")
	}
}

func TestLoadWebhookQueueMode(t *testing.T) {
	t.Setenv("WEBHOOK_MODE", "queue")
	t.Setenv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/appointments.fifo")
	t.Setenv("SQS_FIFO", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DEDUPE_TTL", "1h")

	cfg := LoadWebhook()
	if !cfg.SQS.FIFO || cfg.SQS.QueueURL == "" {
		t.Fatalf("sqs config not loaded: %+v", cfg.SQS)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DedupeTTL != time.Hour {
		t.Fatalf("redis config not loaded: %+v", cfg.Redis)
	}
	if cfg.Twilio.Enabled() {
		t.Fatalf("twilio should be disabled without credentials")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     interface{ Validate() error }
		wantErr bool
	}{
		{"api without dsn", APIConfig{}, true},
		{"api ok", APIConfig{DB: DBConfig{DSN: "x"}}, false},
		{"webhook direct without dsn", WebhookConfig{Mode: WebhookModeDirect}, true},
		{"webhook queue without url", WebhookConfig{Mode: WebhookModeQueue}, true},
		{"webhook unknown mode", WebhookConfig{Mode: "batch"}, true},
		{"webhook queue ok", WebhookConfig{Mode: WebhookModeQueue, SQS: SQSConfig{QueueURL: "q"}}, false},
		{"processor needs queue", WebhookProcessorConfig{DB: DBConfig{DSN: "x"}}, true},
		{"processor ok", WebhookProcessorConfig{DB: DBConfig{DSN: "x"}, SQS: SQSConfig{QueueURL: "q"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadPanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("WEBHOOK_MODE", "batch")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	LoadWebhook()
}

func TestTwilioEnabled(t *testing.T) {
	c := TwilioConfig{AccountSID: "AC1", AuthToken: "tok"}
	if c.Enabled() {
		t.Fatalf("sender is required")
	}
	c.FromNumber = "+15550001111"
	if !c.Enabled() {
		t.Fatalf("expected enabled")
	}
}
