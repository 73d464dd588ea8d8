package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/pkg/queue"
)

// Queue is the job source.
type Queue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Redeliverer sends a logged email again.
type Redeliverer interface {
	Redeliver(ctx context.Context, logID uuid.UUID) error
}

// EmailRedeliveryProcessor re-sends emails whose first delivery failed.
type EmailRedeliveryProcessor struct {
	queue   Queue
	emails  Redeliverer
	backoff time.Duration
	logger  *zap.Logger
}

// NewEmailRedeliveryProcessor creates an email redelivery processor.
func NewEmailRedeliveryProcessor(q Queue, emails Redeliverer, logger *zap.Logger) *EmailRedeliveryProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailRedeliveryProcessor{queue: q, emails: emails, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one redelivery job.
func (p *EmailRedeliveryProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmailRedelivery {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailRedeliveryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := p.emails.Redeliver(ctx, payload.EmailLogID); err != nil {
		return fmt.Errorf("redeliver %s: %w", payload.EmailLogID, err)
	}
	p.logger.Info("email redelivered",
		zap.String("email_log_id", payload.EmailLogID.String()),
		zap.String("requested_by", payload.RequestedBy.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailRedeliveryProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
			}
			p.wait(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.wait(ctx)
		}
	}
}

func (p *EmailRedeliveryProcessor) wait(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
