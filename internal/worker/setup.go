package worker

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"callagent/internal/config"
	"callagent/internal/providers/twilio"
)

// NewProcessor wires the appointment writer. Confirmation SMS is only attached when tw has
// credentials and a sender.
func NewProcessor(st Store, tw config.TwilioConfig) *Processor {
	p := &Processor{Store: st, DBTimeout: defaultDBTimeout}
	if !tw.Enabled() {
		return p
	}
	p.Sender = &twilio.Client{
		AccountSID:          tw.AccountSID,
		AuthToken:           tw.AuthToken,
		HTTP:                &http.Client{Timeout: 8 * time.Second},
		MessagingServiceSID: tw.MessagingServiceSID,
		FromNumber:          tw.FromNumber,
		BaseURL:             tw.BaseURL,
	}
	p.Limiter = rate.NewLimiter(rate.Limit(tw.RPSPerPod), tw.Burst)
	p.Breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "twilio",
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})
	return p
}
