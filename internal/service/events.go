package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callagent/internal/callevents"
	"callagent/internal/domain"
	"callagent/internal/logging"
	"callagent/internal/observability"
	"callagent/internal/providers/vapi"
)

var errNoSink = errors.New("no appointment sink configured")

// Sink accepts an extracted appointment: the worker writes it directly, the SQS producer
// queues it for cmd/webhook-processor.
type Sink func(ctx context.Context, job domain.AppointmentJob) error

// Deduper claims a delivery key. Claim reports false when the key was already claimed.
// Release hands a claim back after the appointment could not be recorded.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type EventService struct {
	Sink    Sink
	Deduper Deduper
	Now     func() time.Time
}

// Handle processes one webhook body. Only a body that is not JSON is an error; failures to
// record an appointment are logged and never reach the provider.
func (s *EventService) Handle(ctx context.Context, raw []byte) error {
	m, err := vapi.ParseWebhook(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	observability.WebhookEvents.WithLabelValues(eventLabel(m.Type)).Inc()

	log := logging.From(ctx).With("event_type", m.Type, "call_id", m.CallID())
	drafts := callevents.Extract(m)
	if len(drafts) == 0 {
		log.Debug("webhook event produced no appointment")
		return nil
	}

	now := s.now()
	for _, d := range drafts {
		key := d.DeliveryKey()
		claimed := false
		if key != "" && s.Deduper != nil {
			fresh, err := s.Deduper.Claim(ctx, key)
			switch {
			case err != nil:
				log.Warn("dedupe claim failed, recording anyway", "delivery_key", key, "err", err)
			case !fresh:
				observability.DuplicateDeliveries.Inc()
				log.Info("duplicate delivery dropped", "delivery_key", key)
				continue
			default:
				claimed = true
			}
		}

		job := domain.AppointmentJob{
			DeliveryKey: key,
			EventType:   d.EventType,
			Appointment: d.Appointment,
			ReceivedAt:  now,
		}
		err := errNoSink
		if s.Sink != nil {
			err = s.Sink(ctx, job)
		}
		if err != nil {
			observability.Appointments.WithLabelValues(d.EventType, "error").Inc()
			log.Error("failed to record appointment", "delivery_key", key, "status", d.Appointment.Status, "err", err)
			if claimed {
				s.release(ctx, key)
			}
			continue
		}
		observability.Appointments.WithLabelValues(d.EventType, "ok").Inc()
	}
	return nil
}

// release runs on a context detached from the request so a cancelled delivery still hands
// its claim back.
func (s *EventService) release(ctx context.Context, key string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.Deduper.Release(rctx, key); err != nil {
		logging.From(ctx).Warn("dedupe release failed, redelivery will be dropped", "delivery_key", key, "err", err)
	}
}

func (s *EventService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func eventLabel(t string) string {
	switch t {
	case vapi.EventToolCalls, vapi.EventEndOfCallReport:
		return t
	case "":
		return "none"
	default:
		return "other"
	}
}
