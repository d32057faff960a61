package notification

import (
	"context"
	"time"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// OUTBOX MESSAGE
// ══════════════════════════════════════════════════════════════════════════════

// OutboxMessage is a queued descriptor and its delivery state.
type OutboxMessage struct {
	ID         string            `json:"id"`
	DedupeKey  string            `json:"dedupe_key"`
	Descriptor MessageDescriptor `json:"descriptor"`
	Channel    Channel           `json:"channel"`
	Status     DeliveryStatus    `json:"status"`
	Attempts   int               `json:"attempts"`
	LastError  string            `json:"last_error,omitempty"`
	QueuedAt   time.Time         `json:"queued_at"`
	ClaimedAt  *time.Time        `json:"claimed_at,omitempty"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
}

// HistoryEntry converts a delivered message into its delivery-log entry.
func (m *OutboxMessage) HistoryEntry(sentAt time.Time) HistoryEntry {
	return HistoryEntry{
		Code:      m.Descriptor.MessageCode,
		SentDate:  sentAt,
		Milestone: m.Descriptor.MilestoneTag,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// OutboxRepository stores message-to-send records.
type OutboxRepository interface {
	// Enqueue stores a descriptor as queued. When a message with the same
	// dedupe key exists, created is false and id is the existing ID.
	Enqueue(ctx context.Context, d MessageDescriptor) (id string, created bool, err error)

	// Get returns a message. Returns shared.ErrOutboxMessageNotFound.
	Get(ctx context.Context, id string) (*OutboxMessage, error)

	// Claim moves up to limit queued messages to sending and returns them.
	Claim(ctx context.Context, limit int) ([]*OutboxMessage, error)

	// MarkSent records a successful delivery.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error

	// MarkFailed records a failed attempt. The message goes back to queued
	// until the attempt limit is reached, then to failed.
	MarkFailed(ctx context.Context, id, reason string) (DeliveryStatus, error)

	// RequeueStale returns messages stuck in sending for longer than
	// olderThan to the queue.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)

	// CountByStatus reports queue depth per status.
	CountByStatus(ctx context.Context) (map[DeliveryStatus]int, error)
}

// HistoryRepository reads and appends the delivery log.
type HistoryRepository interface {
	LoadHistory(ctx context.Context, studentID string, course progress.CourseID) ([]HistoryEntry, error)
	AppendHistory(ctx context.Context, studentID string, course progress.CourseID, entry HistoryEntry) error
}
