package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD DELIVERY COMMAND
// Called by the delivery collaborator once a queued message was sent or
// could not be sent.
// ══════════════════════════════════════════════════════════════════════════════

// RecordDeliveryCommand reports the outcome of one delivery attempt.
type RecordDeliveryCommand struct {
	OutboxID string

	// Delivered is false when the attempt failed.
	Delivered bool

	// SentAt defaults to now.
	SentAt time.Time

	// Error describes a failed attempt.
	Error string
}

// Validate validates the command.
func (c RecordDeliveryCommand) Validate() error {
	if c.OutboxID == "" {
		return errors.New("record_delivery: outbox_id is required")
	}
	if !c.Delivered && c.Error == "" {
		return errors.New("record_delivery: error is required for a failed delivery")
	}
	return nil
}

// RecordDeliveryResult is the message state after the callback.
type RecordDeliveryResult struct {
	OutboxID    string                      `json:"outbox_id"`
	StudentID   string                      `json:"student_id"`
	MessageCode notification.Code           `json:"message_code"`
	Status      notification.DeliveryStatus `json:"status"`
}

// HistoryInvalidator drops cached history for a registration.
type HistoryInvalidator interface {
	Invalidate(ctx context.Context, studentID string, course progress.CourseID) error
}

// RecordDeliveryHandler handles the RecordDeliveryCommand.
type RecordDeliveryHandler struct {
	outbox  notification.OutboxRepository
	history notification.HistoryRepository
	cache   HistoryInvalidator
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecordDeliveryHandler creates a new RecordDeliveryHandler. cache may be nil.
func NewRecordDeliveryHandler(
	outbox notification.OutboxRepository,
	history notification.HistoryRepository,
	cache HistoryInvalidator,
	log *slog.Logger,
) *RecordDeliveryHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RecordDeliveryHandler{
		outbox:  outbox,
		history: history,
		cache:   cache,
		logger:  log.With(logger.Component("record_delivery")),
		now:     time.Now,
	}
}

// Handle records the delivery outcome. A delivered message is appended to
// the history before the outbox row is marked sent, so a crash in between
// can only duplicate a history entry, never lose one.
func (h *RecordDeliveryHandler) Handle(ctx context.Context, cmd RecordDeliveryCommand) (*RecordDeliveryResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	msg, err := h.outbox.Get(ctx, cmd.OutboxID)
	if err != nil {
		return nil, err
	}
	if msg.Status == notification.DeliverySent {
		return nil, shared.ErrAlreadyDelivered
	}
	if msg.Status.IsFinal() {
		return nil, shared.NewDomainError("notification", "RecordDelivery", shared.ErrInvalidState,
			fmt.Sprintf("message is %s", msg.Status))
	}

	d := msg.Descriptor
	result := &RecordDeliveryResult{OutboxID: msg.ID, StudentID: d.RecipientID, MessageCode: d.MessageCode}
	log := h.logger.With(logger.StudentID(d.RecipientID), logger.Code(string(d.MessageCode)), "outbox_id", msg.ID)

	if !cmd.Delivered {
		status, err := h.outbox.MarkFailed(ctx, msg.ID, cmd.Error)
		if err != nil {
			return nil, fmt.Errorf("record_delivery: failed to mark failed: %w", err)
		}
		result.Status = status
		log.Warn("delivery failed", "status", status, "attempts", msg.Attempts+1, "reason", cmd.Error)
		return result, nil
	}

	sentAt := cmd.SentAt
	if sentAt.IsZero() {
		sentAt = h.now()
	}

	if err := h.history.AppendHistory(ctx, d.RecipientID, d.Course, msg.HistoryEntry(sentAt)); err != nil {
		return nil, fmt.Errorf("record_delivery: failed to append history: %w", err)
	}
	if err := h.outbox.MarkSent(ctx, msg.ID, sentAt); err != nil {
		return nil, fmt.Errorf("record_delivery: failed to mark sent: %w", err)
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, d.RecipientID, d.Course); err != nil {
			log.Warn("failed to invalidate history cache", logger.Err(err))
		}
	}

	result.Status = notification.DeliverySent
	log.Info("delivery recorded", "milestone", d.MilestoneTag)
	return result, nil
}
