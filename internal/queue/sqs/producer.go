package sqsqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"callagent/internal/domain"
	"callagent/internal/observability"
)

const defaultGroupBuckets = 64

// API is the subset of *sqs.Client used by the producer and consumer.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// AppointmentProducer queues appointment jobs for cmd/webhook-processor.
type AppointmentProducer struct {
	SQS      API
	QueueURL string

	// FIFO queues need a group id; jobs for one call share a group so they stay ordered.
	FIFO         bool
	GroupBuckets int
}

func (p *AppointmentProducer) Enqueue(ctx context.Context, job domain.AppointmentJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	}
	if p.FIFO {
		in.MessageGroupId = str(messageGroupIDBucketed(groupKey(job), p.GroupBuckets))
		if job.DeliveryKey != "" {
			in.MessageDeduplicationId = str(dedupID(job.DeliveryKey))
		}
	}

	if _, err := p.SQS.SendMessage(ctx, in); err != nil {
		observability.Enqueues.WithLabelValues("error").Inc()
		return err
	}
	observability.Enqueues.WithLabelValues("ok").Inc()
	return nil
}

func groupKey(job domain.AppointmentJob) string {
	if id := domain.Deref(job.Appointment.CallID); id != "" {
		return id
	}
	return job.Appointment.CustomerPhone
}

// messageGroupIDBucketed spreads keys over a fixed number of FIFO groups: ordering holds per
// key while unrelated calls still process in parallel.
func messageGroupIDBucketed(key string, buckets int) string {
	if buckets <= 0 {
		buckets = defaultGroupBuckets
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return fmt.Sprintf("appointments-%d", h.Sum32()%uint32(buckets))
}

// SQS limits deduplication ids to 128 characters.
func dedupID(key string) string {
	if len(key) <= 128 {
		return key
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return fmt.Sprintf("%s-%x", key[:100], h.Sum64())
}

func str(s string) *string { return &s }
