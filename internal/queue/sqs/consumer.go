package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"callagent/internal/domain"
)

type Consumer struct {
	SQS      API
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

type Handler func(ctx context.Context, job domain.AppointmentJob) error

// PollConcurrent processes jobs with a worker pool until ctx is cancelled. Messages are
// deleted only after the handler succeeds; a failed job stays on the queue for redrive.
func (c *Consumer) PollConcurrent(ctx context.Context, workers int, handler Handler) error {
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan types.Message, workers*2)
	errCh := make(chan error, 1)

	sendErr := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, m, handler)
			}
		}()
	}

	// Receive loop feeding the workers
	go func() {
		defer close(jobs)

		for {
			if ctx.Err() != nil {
				sendErr(ctx.Err())
				return
			}

			out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            &c.QueueURL,
				MaxNumberOfMessages: c.MaxMessages,
				WaitTimeSeconds:     c.WaitTimeSeconds,
				VisibilityTimeout:   c.VisibilityTimeout,
			})
			if err != nil {
				if ctx.Err() != nil {
					sendErr(ctx.Err())
					return
				}
				slog.Error("sqs receive message failed", "err", err)
				time.Sleep(500 * time.Millisecond)
				continue
			}

			for _, m := range out.Messages {
				select {
				case jobs <- m:
				case <-ctx.Done():
					sendErr(ctx.Err())
					return
				}
			}
		}
	}()

	err := <-errCh

	// drain what was already handed to workers
	wg.Wait()
	return err
}

func (c *Consumer) handle(ctx context.Context, m types.Message, handler Handler) {
	// poison messages are deleted so they don't loop forever
	if m.Body == nil {
		c.delete(ctx, m)
		return
	}
	var job domain.AppointmentJob
	if err := json.Unmarshal([]byte(*m.Body), &job); err != nil {
		slog.Warn("dropping malformed appointment job", "err", err, "message_id", deref(m.MessageId))
		c.delete(ctx, m)
		return
	}

	if err := handler(ctx, job); err != nil {
		slog.Error("appointment job failed", "err", err, "delivery_key", job.DeliveryKey, "message_id", deref(m.MessageId))
		return
	}
	c.delete(ctx, m)
}

func (c *Consumer) delete(ctx context.Context, m types.Message) {
	// use a fresh context so a shutdown does not leave handled messages on the queue
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := c.SQS.DeleteMessage(delCtx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.QueueURL,
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		slog.Error("sqs delete message failed", "err", err, "message_id", deref(m.MessageId))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
