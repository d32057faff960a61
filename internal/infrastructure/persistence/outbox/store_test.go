package outbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/pace-notifier/config"
	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
)

func openTestStore(t *testing.T, maxAttempts int) *Store {
	t.Helper()
	s, err := Open(context.Background(), config.OutboxConfig{
		Driver:      DriverSQLite,
		DSN:         filepath.Join(t.TempDir(), "outbox.db"),
		MaxAttempts: maxAttempts,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func descriptor(student string, code notification.Code) notification.MessageDescriptor {
	return notification.MessageDescriptor{
		RecipientID:  student,
		Course:       progress.CourseM117,
		MilestoneTag: "U1",
		MessageCode:  code,
		SubjectLine:  "Keep going",
		BodyText:     "Your next exam is due Friday.",
		Urgency:      3,
		CreatedFor:   time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC),
	}
}

func TestOpen_Rejects(t *testing.T) {
	_, err := Open(context.Background(), config.OutboxConfig{Driver: "mysql", DSN: "x"}, nil)
	assert.Error(t, err)

	_, err = Open(context.Background(), config.OutboxConfig{Driver: DriverSQLite}, nil)
	assert.Error(t, err)
}

func TestEnqueue_Dedupes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 3)

	id, created, err := s.Enqueue(ctx, descriptor("830000001", notification.WELCok00))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)

	again, created, err := s.Enqueue(ctx, descriptor("830000001", notification.WELCok00))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)

	m, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryQueued, m.Status)
	assert.Equal(t, notification.ChannelEmail, m.Channel)
	assert.Equal(t, "830000001:M117:WELCok00:2024-09-09", m.DedupeKey)
	assert.Equal(t, "Your next exam is due Friday.", m.Descriptor.BodyText)
	assert.Equal(t, progress.CourseM117, m.Descriptor.Course)
	assert.Nil(t, m.ClaimedAt)

	_, _, err = s.Enqueue(ctx, notification.MessageDescriptor{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = s.Get(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestClaimAndMarkSent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 3)

	first, _, err := s.Enqueue(ctx, descriptor("830000001", notification.WELCok00))
	require.NoError(t, err)
	second, _, err := s.Enqueue(ctx, descriptor("830000002", notification.WELCok00))
	require.NoError(t, err)

	claimed, err := s.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, notification.DeliverySending, claimed[0].Status)
	assert.NotNil(t, claimed[0].ClaimedAt)

	rest, err := s.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.ElementsMatch(t, []string{first, second}, []string{claimed[0].ID, rest[0].ID})

	sentAt := time.Date(2024, 9, 9, 22, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkSent(ctx, claimed[0].ID, sentAt))
	assert.ErrorIs(t, s.MarkSent(ctx, claimed[0].ID, sentAt), shared.ErrAlreadyDelivered)
	assert.True(t, shared.IsNotFound(s.MarkSent(ctx, "missing", sentAt)))

	m, err := s.Get(ctx, claimed[0].ID)
	require.NoError(t, err)
	require.NotNil(t, m.SentAt)
	assert.True(t, sentAt.Equal(*m.SentAt))

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[notification.DeliverySent])
	assert.Equal(t, 1, counts[notification.DeliverySending])
}

func TestMarkFailed_GivesUp(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)

	id, _, err := s.Enqueue(ctx, descriptor("830000003", notification.PREQpr00))
	require.NoError(t, err)

	status, err := s.MarkFailed(ctx, id, "smtp 451")
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryQueued, status)

	status, err = s.MarkFailed(ctx, id, "smtp 451")
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryFailed, status)

	m, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Attempts)
	assert.Equal(t, "smtp 451", m.LastError)

	_, err = s.MarkFailed(ctx, id, "again")
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = s.MarkFailed(ctx, "missing", "x")
	assert.True(t, shared.IsNotFound(err))
}

func TestRequeueStale(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 3)

	base := time.Date(2024, 9, 9, 20, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	_, _, err := s.Enqueue(ctx, descriptor("830000004", notification.WELCok00))
	require.NoError(t, err)
	claimed, err := s.Claim(ctx, 5)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	s.now = func() time.Time { return base.Add(10 * time.Minute) }
	n, err := s.RequeueStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	s.now = func() time.Time { return base.Add(time.Hour) }
	n, err = s.RequeueStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, err := s.Get(ctx, claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, notification.DeliveryQueued, m.Status)
	assert.Nil(t, m.ClaimedAt)
}
