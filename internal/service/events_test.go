package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callagent/internal/domain"
	"callagent/internal/providers/twilio"
	"callagent/internal/worker"
)

const toolCallBody = `{"message":{"type":"tool-calls",
	"toolCalls":[{"id":"tc-1","function":{"name":"schedule_appointment","arguments":{"date":"20/01/2026","time":"10 AM"}}}],
	"call":{"id":"call-1","customer":{"number":"+919876543210"},"assistantOverrides":{"metadata":{"customerName":"Asha","language":"hindi"}}}}}`

type recordingSink struct {
	mu   sync.Mutex
	jobs []domain.AppointmentJob
	err  error
}

func (r *recordingSink) Record(_ context.Context, job domain.AppointmentJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

type memDeduper struct {
	seen map[string]bool
	err  error
}

func (d *memDeduper) Claim(_ context.Context, key string) (bool, error) {
	if d.err != nil {
		return true, d.err
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *memDeduper) Release(_ context.Context, key string) error {
	delete(d.seen, key)
	return nil
}

func fixedNow() time.Time { return time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC) }

func TestHandleToolCallRecordsScheduledAppointment(t *testing.T) {
	sink := &recordingSink{}
	s := &EventService{Sink: sink.Record, Now: fixedNow}

	if err := s.Handle(context.Background(), []byte(toolCallBody)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(sink.jobs))
	}
	job := sink.jobs[0]
	a := job.Appointment
	if a.Status != domain.StatusScheduled || domain.Deref(a.AppointmentDate) != "20/01/2026" || domain.Deref(a.AppointmentTime) != "10 AM" {
		t.Fatalf("unexpected appointment: %+v", a)
	}
	if job.DeliveryKey != "vapi:call-1:tool-calls:tc-1" || !job.ReceivedAt.Equal(fixedNow()) {
		t.Fatalf("unexpected job envelope: %+v", job)
	}
}

// Without a deduper a redelivered event is recorded again.
func TestHandleRedeliveryWithoutDeduperDuplicates(t *testing.T) {
	sink := &recordingSink{}
	s := &EventService{Sink: sink.Record}

	for i := 0; i < 2; i++ {
		if err := s.Handle(context.Background(), []byte(toolCallBody)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(sink.jobs) != 2 {
		t.Fatalf("expected duplicate rows on redelivery, got %d", len(sink.jobs))
	}
}

func TestHandleRedeliveryWithDeduper(t *testing.T) {
	sink := &recordingSink{}
	s := &EventService{Sink: sink.Record, Deduper: &memDeduper{}}

	for i := 0; i < 3; i++ {
		if err := s.Handle(context.Background(), []byte(toolCallBody)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(sink.jobs) != 1 {
		t.Fatalf("expected one row, got %d", len(sink.jobs))
	}
}

func TestHandleDeduperFailureFailsOpen(t *testing.T) {
	sink := &recordingSink{}
	s := &EventService{Sink: sink.Record, Deduper: &memDeduper{err: errors.New("redis down")}}

	if err := s.Handle(context.Background(), []byte(toolCallBody)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.jobs) != 1 {
		t.Fatalf("expected the draft to be recorded, got %d", len(sink.jobs))
	}
}

func TestHandleSwallowsSinkErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("insert failed")}
	s := &EventService{Sink: sink.Record}

	if err := s.Handle(context.Background(), []byte(toolCallBody)); err != nil {
		t.Fatalf("persistence errors must not surface, got %v", err)
	}
}

func TestHandleSinkFailureReleasesClaim(t *testing.T) {
	sink := &recordingSink{err: errors.New("insert failed")}
	dd := &memDeduper{}
	s := &EventService{Sink: sink.Record, Deduper: dd}

	if err := s.Handle(context.Background(), []byte(toolCallBody)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dd.seen["vapi:call-1:tool-calls:tc-1"] {
		t.Fatalf("expected the claim to be released after a failed write")
	}

	sink.err = nil
	if err := s.Handle(context.Background(), []byte(toolCallBody)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.jobs) != 1 {
		t.Fatalf("expected the redelivery to be recorded, got %d", len(sink.jobs))
	}
}

func TestHandleOddlyTypedFieldsStillRecord(t *testing.T) {
	sink := &recordingSink{}
	s := &EventService{Sink: sink.Record}

	body := `{"message":{"type":"tool-calls","summary":42,
		"toolCalls":[{"id":"tc-1","function":{"name":"schedule_appointment","arguments":{"date":"Sunday","time":11}}}],
		"call":{"id":"call-3","customer":{"number":"+919876543210"},
			"assistantOverrides":{"metadata":{"inquiryId":42,"customerName":"Asha","budget":["80L"]}}}}}`
	if err := s.Handle(context.Background(), []byte(body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.jobs) != 1 {
		t.Fatalf("expected one row, got %d", len(sink.jobs))
	}
	a := sink.jobs[0].Appointment
	if a.Status != domain.StatusScheduled || domain.Deref(a.InquiryID) != "42" || domain.Deref(a.AppointmentTime) != "11" {
		t.Fatalf("unexpected appointment: %+v", a)
	}
}

func TestHandleMalformedBody(t *testing.T) {
	s := &EventService{Sink: (&recordingSink{}).Record}
	if err := s.Handle(context.Background(), []byte("{not json")); !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestHandleEventsWithoutAppointments(t *testing.T) {
	sink := &recordingSink{}
	s := &EventService{Sink: sink.Record}

	bodies := []string{
		`{}`,
		`{"message":{"type":"status-update","status":"ringing"}}`,
		`{"message":{"type":"end-of-call-report","summary":"Customer hung up.","transcript":"Hello? No thanks."}}`,
		`{"message":{"type":"tool-calls","toolCalls":[{"id":"x","function":{"name":"transfer_call","arguments":{}}}]}}`,
	}
	for _, b := range bodies {
		if err := s.Handle(context.Background(), []byte(b)); err != nil {
			t.Fatalf("unexpected error for %s: %v", b, err)
		}
	}
	if len(sink.jobs) != 0 {
		t.Fatalf("expected no rows, got %d", len(sink.jobs))
	}
}

func TestHandleEndOfCallReport(t *testing.T) {
	sink := &recordingSink{}
	s := &EventService{Sink: sink.Record}

	body := `{"message":{"type":"end-of-call-report","summary":"Customer agreed to a visit on Saturday.","transcript":"",
		"call":{"id":"call-2","customer":{"number":"+919812345678"}}}}`
	if err := s.Handle(context.Background(), []byte(body)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.jobs) != 1 {
		t.Fatalf("expected one row, got %d", len(sink.jobs))
	}
	a := sink.jobs[0].Appointment
	if a.Status != domain.StatusPendingConfirmation || a.AppointmentDate != nil || a.AppointmentTime != nil {
		t.Fatalf("unexpected appointment: %+v", a)
	}
}

type nopStore struct{}

func (nopStore) InsertAppointment(context.Context, domain.Appointment) error { return nil }

type stalledSender struct{ release chan struct{} }

func (s stalledSender) SendSMS(context.Context, twilio.SendRequest) (twilio.SendResponse, int, []byte, error) {
	<-s.release
	return twilio.SendResponse{Sid: "SM1"}, 201, nil, nil
}

func TestHandleDoesNotWaitForConfirmationSMS(t *testing.T) {
	snd := stalledSender{release: make(chan struct{})}
	proc := &worker.Processor{Store: nopStore{}, Sender: snd, Background: true}
	s := &EventService{Sink: proc.Process}

	done := make(chan error, 1)
	go func() { done <- s.Handle(context.Background(), []byte(toolCallBody)) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Handle blocked on the confirmation sms")
	}
	close(snd.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := proc.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
