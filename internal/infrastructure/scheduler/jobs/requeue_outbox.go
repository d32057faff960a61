package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/pkg/logger"
)

// OutboxMaintainer is the part of the outbox the requeue job needs.
type OutboxMaintainer interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
	CountByStatus(ctx context.Context) (map[notification.DeliveryStatus]int, error)
}

// RequeueOutboxJob returns messages stuck in "sending" to the queue, so a
// crashed delivery worker does not lose them.
type RequeueOutboxJob struct {
	outbox     OutboxMaintainer
	staleAfter time.Duration
	log        *slog.Logger
}

// NewRequeueOutboxJob creates a new job.
func NewRequeueOutboxJob(outbox OutboxMaintainer, staleAfter time.Duration, log *slog.Logger) *RequeueOutboxJob {
	if log == nil {
		log = slog.Default()
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &RequeueOutboxJob{
		outbox:     outbox,
		staleAfter: staleAfter,
		log:        log.With(logger.Component("requeue_outbox")),
	}
}

// Name returns the job name.
func (j *RequeueOutboxJob) Name() string {
	return "requeue_outbox"
}

// Description returns a human-readable description.
func (j *RequeueOutboxJob) Description() string {
	return "Requeues outbox messages stuck in sending"
}

// Run requeues stale messages and logs queue depth.
func (j *RequeueOutboxJob) Run(ctx context.Context) error {
	n, err := j.outbox.RequeueStale(ctx, j.staleAfter)
	if err != nil {
		return fmt.Errorf("failed to requeue stale messages: %w", err)
	}

	counts, err := j.outbox.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count outbox messages: %w", err)
	}
	j.log.Info("outbox checked",
		"requeued", n,
		"queued", counts[notification.DeliveryQueued],
		"sending", counts[notification.DeliverySending],
		"failed", counts[notification.DeliveryFailed],
	)
	return nil
}
