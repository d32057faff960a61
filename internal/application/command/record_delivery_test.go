package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/logger"
)

type fakeOutbox struct {
	notification.OutboxRepository
	messages map[string]*notification.OutboxMessage
	maxTries int
}

func (f *fakeOutbox) Get(_ context.Context, id string) (*notification.OutboxMessage, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, shared.ErrOutboxMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeOutbox) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	m := f.messages[id]
	m.Status = notification.DeliverySent
	m.SentAt = &sentAt
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id, reason string) (notification.DeliveryStatus, error) {
	m := f.messages[id]
	m.Attempts++
	m.LastError = reason
	m.Status = notification.DeliveryQueued
	if m.Attempts >= f.maxTries {
		m.Status = notification.DeliveryFailed
	}
	return m.Status, nil
}

type appended struct {
	studentID string
	course    progress.CourseID
	entry     notification.HistoryEntry
}

type fakeHistoryRepo struct {
	appended []appended
}

func (f *fakeHistoryRepo) LoadHistory(context.Context, string, progress.CourseID) ([]notification.HistoryEntry, error) {
	return nil, nil
}

func (f *fakeHistoryRepo) AppendHistory(_ context.Context, studentID string, course progress.CourseID, e notification.HistoryEntry) error {
	f.appended = append(f.appended, appended{studentID, course, e})
	return nil
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate(context.Context, string, progress.CourseID) error {
	f.calls++
	return nil
}

func newDeliveryHarness() (*RecordDeliveryHandler, *fakeOutbox, *fakeHistoryRepo, *fakeInvalidator) {
	outbox := &fakeOutbox{
		maxTries: 2,
		messages: map[string]*notification.OutboxMessage{
			"m1": {
				ID:     "m1",
				Status: notification.DeliverySending,
				Descriptor: notification.MessageDescriptor{
					RecipientID:  "830000001",
					Course:       progress.CourseM117,
					MilestoneTag: "RE1",
					MessageCode:  notification.RE1Rok00,
				},
			},
		},
	}
	history := &fakeHistoryRepo{}
	cache := &fakeInvalidator{}
	return NewRecordDeliveryHandler(outbox, history, cache, logger.Discard()), outbox, history, cache
}

func TestRecordDelivery_Delivered(t *testing.T) {
	h, outbox, history, cache := newDeliveryHarness()
	sentAt := time.Date(2024, 9, 9, 18, 5, 0, 0, time.UTC)

	res, err := h.Handle(context.Background(), RecordDeliveryCommand{OutboxID: "m1", Delivered: true, SentAt: sentAt})
	require.NoError(t, err)

	assert.Equal(t, notification.DeliverySent, res.Status)
	assert.Equal(t, notification.RE1Rok00, res.MessageCode)
	require.Len(t, history.appended, 1)
	assert.Equal(t, "830000001", history.appended[0].studentID)
	assert.Equal(t, progress.CourseM117, history.appended[0].course)
	assert.Equal(t, notification.HistoryEntry{Code: notification.RE1Rok00, SentDate: sentAt, Milestone: "RE1"}, history.appended[0].entry)
	assert.Equal(t, notification.DeliverySent, outbox.messages["m1"].Status)
	assert.Equal(t, 1, cache.calls)

	_, err = h.Handle(context.Background(), RecordDeliveryCommand{OutboxID: "m1", Delivered: true})
	assert.ErrorIs(t, err, shared.ErrAlreadyDelivered)
	assert.Len(t, history.appended, 1)
}

func TestRecordDelivery_FailedUntilLimit(t *testing.T) {
	h, _, history, _ := newDeliveryHarness()
	cmd := RecordDeliveryCommand{OutboxID: "m1", Error: "mailbox full"}

	res, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryQueued, res.Status)

	res, err = h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryFailed, res.Status)

	_, err = h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Empty(t, history.appended)
}

func TestRecordDelivery_Invalid(t *testing.T) {
	h, _, _, _ := newDeliveryHarness()

	_, err := h.Handle(context.Background(), RecordDeliveryCommand{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = h.Handle(context.Background(), RecordDeliveryCommand{OutboxID: "m1"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = h.Handle(context.Background(), RecordDeliveryCommand{OutboxID: "nope", Delivered: true})
	assert.True(t, shared.IsNotFound(err))
}
