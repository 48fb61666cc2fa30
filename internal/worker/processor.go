package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"callagent/internal/domain"
	"callagent/internal/logging"
	"callagent/internal/observability"
	"callagent/internal/providers/twilio"
	"callagent/internal/util"
)

const (
	defaultDBTimeout    = 5 * time.Second
	confirmationTimeout = 30 * time.Second
)

type Store interface {
	InsertAppointment(ctx context.Context, a domain.Appointment) error
}

type TwilioSender interface {
	SendSMS(ctx context.Context, req twilio.SendRequest) (twilio.SendResponse, int, []byte, error)
}

// Processor writes appointment jobs. When Sender is set it also texts the customer a
// confirmation for scheduled visits. With Background set the SMS is sent after Process
// returns; Wait drains those sends on shutdown.
type Processor struct {
	Store      Store
	Sender     TwilioSender
	Limiter    *rate.Limiter
	Breaker    *gobreaker.CircuitBreaker
	DBTimeout  time.Duration
	Background bool

	inflight sync.WaitGroup
}

// Process inserts the appointment. Only the insert can fail the job; a failed confirmation
// SMS is logged so a redelivered job never writes the row twice.
func (p *Processor) Process(ctx context.Context, job domain.AppointmentJob) error {
	a := job.Appointment
	if a.ID == "" {
		a.ID = util.NewAppointmentID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = job.ReceivedAt
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = util.NowUTC()
	}

	timeout := p.DBTimeout
	if timeout <= 0 {
		timeout = defaultDBTimeout
	}
	dbCtx, cancel := context.WithTimeout(ctx, timeout)
	err := p.Store.InsertAppointment(dbCtx, a)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: insert appointment: %w", domain.ErrPersistence, err)
	}

	ctx = logging.With(ctx, logging.From(ctx).With("appointment_id", a.ID, "call_id", domain.Deref(a.CallID)))
	logging.From(ctx).Info("appointment recorded", "status", a.Status, "event_type", job.EventType)

	if p.Sender == nil || a.Status != domain.StatusScheduled || a.CustomerPhone == "" {
		return nil
	}
	body := ConfirmationText(a)
	if body == "" {
		return nil
	}
	if !p.Background {
		p.confirm(ctx, a.CustomerPhone, body)
		return nil
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmationTimeout)
		defer cancel()
		p.confirm(sctx, a.CustomerPhone, body)
	}()
	return nil
}

// Wait blocks until background confirmations finish or ctx is done.
func (p *Processor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) confirm(ctx context.Context, to, body string) {
	if err := p.sendConfirmation(ctx, to, body); err != nil {
		logging.From(ctx).Warn("confirmation sms not sent", "err", err)
	}
}

func (p *Processor) sendConfirmation(ctx context.Context, to, body string) error {
	var lastErr error
	start := time.Now()

	for attempt := 0; attempt < 3; attempt++ {
		if p.Limiter != nil {
			waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
			err := p.Limiter.Wait(waitCtx)
			cancelWait()
			if err != nil {
				observability.TwilioSend.WithLabelValues("rate_limited_local", "0").Inc()
				lastErr = err
				continue
			}
		}

		resAny, err := p.executeWithBreaker(ctx, to, body)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.TwilioSend.WithLabelValues("cb_open", "0").Inc()
			return err
		}
		if err == nil {
			r := resAny.(sendResult)
			observability.TwilioSend.WithLabelValues("ok", strconv.Itoa(r.httpStatus)).Inc()
			observability.TwilioLatency.Observe(time.Since(start).Seconds())
			logging.From(ctx).Debug("confirmation sms sent", "sid", r.resp.Sid)
			return nil
		}

		lastErr = err
		var httpStatus int
		var tce twilioCallError
		if errors.As(err, &tce) {
			httpStatus = tce.httpStatus
		}
		observability.TwilioSend.WithLabelValues("error", strconv.Itoa(httpStatus)).Inc()

		if !twilio.ShouldRetry(err, httpStatus) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(twilio.Backoff(attempt)):
		}
	}
	return lastErr
}

func (p *Processor) executeWithBreaker(ctx context.Context, to, body string) (any, error) {
	call := func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
		defer cancel()

		resp, httpStatus, raw, callErr := p.Sender.SendSMS(reqCtx, twilio.SendRequest{To: to, Body: body})
		if callErr != nil {
			return nil, twilioCallError{err: callErr, httpStatus: httpStatus, raw: raw}
		}
		return sendResult{resp: resp, httpStatus: httpStatus}, nil
	}

	if p.Breaker == nil {
		return call()
	}
	return p.Breaker.Execute(call)
}

type sendResult struct {
	resp       twilio.SendResponse
	httpStatus int
}

type twilioCallError struct {
	err        error
	httpStatus int
	raw        []byte
}

func (e twilioCallError) Error() string { return e.err.Error() }
func (e twilioCallError) Unwrap() error { return e.err }
