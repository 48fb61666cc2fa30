package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type DBConfig struct {
	DSN               string `envconfig:"DB_DSN"`
	MaxConns          int32  `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	MinConns          int32  `envconfig:"DB_POOL_MIN_CONNS" default:"0"`
	MaxConnLifetime   string `envconfig:"DB_POOL_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdleTime   string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME" default:"5m"`
	HealthCheckPeriod string `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD" default:"30s"`
	AutoMigrate       bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// VapiConfig holds the voice provider settings. Credentials may be absent at startup; call
// requests fail with a configuration error until they are set.
type VapiConfig struct {
	APIKey        string `envconfig:"VAPI_API_KEY"`
	PhoneNumberID string `envconfig:"VAPI_PHONE_NUMBER_ID"`
	AssistantID   string `envconfig:"VAPI_ASSISTANT_ID"`
	BaseURL       string `envconfig:"VAPI_BASE_URL" default:"https://api.vapi.ai"`

	ModelProvider string `envconfig:"VAPI_MODEL_PROVIDER" default:"openai"`
	Model         string `envconfig:"VAPI_MODEL" default:"gpt-4o"`
	VoiceProvider string `envconfig:"VAPI_VOICE_PROVIDER" default:"11labs"`
	VoiceID       string `envconfig:"VAPI_VOICE_ID" default:"pFZP5JQG7iQjIQuC4Bku"`

	Timeout         time.Duration `envconfig:"VAPI_TIMEOUT" default:"15s"`
	RPSPerPod       float64       `envconfig:"VAPI_RPS_PER_POD" default:"5"`
	Burst           int           `envconfig:"VAPI_BURST" default:"10"`
	BreakerFailures uint32        `envconfig:"VAPI_BREAKER_FAILURES" default:"5"`
	BreakerOpenFor  time.Duration `envconfig:"VAPI_BREAKER_OPEN_FOR" default:"30s"`
}

type SQSConfig struct {
	AWSRegion          string `envconfig:"AWS_REGION" default:"ap-south-1"`
	QueueURL           string `envconfig:"SQS_QUEUE_URL"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	FIFO               bool   `envconfig:"SQS_FIFO" default:"false"`
	WaitTime           int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	MaxMsgs            int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	VizTimeout         int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`
}

// TwilioConfig enables appointment confirmation SMS when account and sender are set.
type TwilioConfig struct {
	AccountSID          string  `envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken           string  `envconfig:"TWILIO_AUTH_TOKEN"`
	MessagingServiceSID string  `envconfig:"TWILIO_MESSAGING_SERVICE_SID"`
	FromNumber          string  `envconfig:"TWILIO_FROM_NUMBER"`
	BaseURL             string  `envconfig:"TWILIO_BASE_URL" default:"https://api.twilio.com"`
	RPSPerPod           float64 `envconfig:"TWILIO_RPS_PER_POD" default:"5"`
	Burst               int     `envconfig:"TWILIO_BURST" default:"10"`
}

func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && (c.MessagingServiceSID != "" || c.FromNumber != "")
}

type RedisConfig struct {
	Addr      string        `envconfig:"REDIS_ADDR"`
	Password  string        `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0"`
	DedupeTTL time.Duration `envconfig:"DEDUPE_TTL" default:"24h"`
}

type APIConfig struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	CountryCode     string `envconfig:"DEFAULT_COUNTRY_CODE" default:"+91"`
	ScriptsFile     string `envconfig:"SCRIPTS_FILE"`
	CORSAllowOrigin string `envconfig:"CORS_ALLOW_ORIGIN" default:"*"`

	DB   DBConfig
	Vapi VapiConfig
}

const (
	WebhookModeDirect = "direct"
	WebhookModeQueue  = "queue"
)

type WebhookConfig struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// direct: write appointments to Postgres in the request; queue: hand them to SQS.
	Mode            string `envconfig:"WEBHOOK_MODE" default:"direct"`
	WebhookSecret   string `envconfig:"VAPI_WEBHOOK_SECRET"`
	CORSAllowOrigin string `envconfig:"CORS_ALLOW_ORIGIN" default:"*"`

	DB     DBConfig
	SQS    SQSConfig
	Redis  RedisConfig
	Twilio TwilioConfig
}

type WebhookProcessorConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Concurrency int `envconfig:"WEBHOOK_PROCESSOR_CONCURRENCY" default:"10"`

	DB     DBConfig
	SQS    SQSConfig
	Twilio TwilioConfig
}

// MockProviderConfig drives cmd/mock-provider, a stand-in for the Vapi call API that replays
// webhook events for each accepted call.
type MockProviderConfig struct {
	Port      string `envconfig:"PORT" default:"8089"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	APIKey   string  `envconfig:"MOCK_API_KEY"`
	FailRate float64 `envconfig:"MOCK_FAIL_RATE" default:"0"`

	// booked: tool-calls then end-of-call-report; report: end-of-call-report only; none: no webhooks.
	Scenario      string        `envconfig:"MOCK_SCENARIO" default:"booked"`
	WebhookURL    string        `envconfig:"MOCK_WEBHOOK_URL"`
	WebhookSecret string        `envconfig:"VAPI_WEBHOOK_SECRET"`
	CallDelay     time.Duration `envconfig:"MOCK_CALL_DELAY" default:"2s"`
	MaxRetries    int           `envconfig:"MOCK_WEBHOOK_MAX_RETRIES" default:"5"`
	RetryBase     time.Duration `envconfig:"MOCK_WEBHOOK_RETRY_BASE" default:"250ms"`
}

func (c APIConfig) Validate() error {
	if c.DB.DSN == "" {
		return errors.New("DB_DSN is required")
	}
	return nil
}

func (c WebhookConfig) Validate() error {
	switch c.Mode {
	case WebhookModeDirect:
		if c.DB.DSN == "" {
			return errors.New("DB_DSN is required in direct mode")
		}
	case WebhookModeQueue:
		if c.SQS.QueueURL == "" {
			return errors.New("SQS_QUEUE_URL is required in queue mode")
		}
	default:
		return fmt.Errorf("WEBHOOK_MODE must be %q or %q, got %q", WebhookModeDirect, WebhookModeQueue, c.Mode)
	}
	return nil
}

func (c WebhookProcessorConfig) Validate() error {
	if c.DB.DSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.SQS.QueueURL == "" {
		return errors.New("SQS_QUEUE_URL is required")
	}
	return nil
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	mustLoad(&cfg)
	return cfg
}

func LoadWebhook() WebhookConfig {
	var cfg WebhookConfig
	mustLoad(&cfg)
	return cfg
}

func LoadWebhookProcessor() WebhookProcessorConfig {
	var cfg WebhookProcessorConfig
	mustLoad(&cfg)
	return cfg
}

func LoadMockProvider() MockProviderConfig {
	var cfg MockProviderConfig
	mustLoad(&cfg)
	return cfg
}

type validator interface{ Validate() error }

// mustLoad reads a local .env (if any) and then the environment. Existing environment
// variables win over .env entries.
func mustLoad(cfg any) {
	_ = godotenv.Load()
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
	if v, ok := cfg.(validator); ok {
		if err := v.Validate(); err != nil {
			panic(err)
		}
	}
}
