package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "callagent_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "callagent_provider_calls_total", Help: "Outbound voice call attempts"},
		[]string{"provider", "result", "http_status"},
	)
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "callagent_provider_call_latency_seconds", Help: "Voice provider call latency"},
		[]string{"provider"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "callagent_webhook_events_total", Help: "Provider webhook events by type"},
		[]string{"type"},
	)
	Appointments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "callagent_appointments_total", Help: "Appointment drafts by source and outcome"},
		[]string{"source", "result"},
	)
	Enqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "callagent_enqueue_total", Help: "SQS enqueue results"},
		[]string{"result"},
	)
	DuplicateDeliveries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "callagent_duplicate_deliveries_total", Help: "Webhook deliveries dropped as duplicates"},
	)
	TwilioSend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "twilio_send_total", Help: "Confirmation SMS outcomes"},
		[]string{"result", "http_status"},
	)
	TwilioLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "twilio_send_latency_seconds", Help: "Twilio send latency"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, ProviderCalls, ProviderLatency, WebhookEvents, Appointments, Enqueues, DuplicateDeliveries, TwilioSend, TwilioLatency)
}
