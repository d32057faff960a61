package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// HistoryRepository implements notification.HistoryRepository and keeps the
// latest urgency score per registration.
type HistoryRepository struct {
	conn *Connection
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(conn *Connection) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

// LoadHistory returns every message delivered for the registration.
func (r *HistoryRepository) LoadHistory(ctx context.Context, studentID string, course progress.CourseID) ([]notification.HistoryEntry, error) {
	var out []notification.HistoryEntry
	err := r.conn.QueryFunc(ctx, `
		SELECT code, milestone, sent_on
		FROM message_history
		WHERE student_id = $1 AND course = $2
		ORDER BY sent_on, id`,
		[]any{studentID, string(course)}, func(rows pgx.Rows) error {
			var e notification.HistoryEntry
			var code string
			if err := rows.Scan(&code, &e.Milestone, &e.SentDate); err != nil {
				return err
			}
			e.Code = notification.Code(code)
			out = append(out, e)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to query message history: %w", err)
	}
	return out, nil
}

// AppendHistory records a delivered message.
func (r *HistoryRepository) AppendHistory(ctx context.Context, studentID string, course progress.CourseID, e notification.HistoryEntry) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO message_history (student_id, course, code, milestone, sent_on)
		VALUES ($1, $2, $3, $4, $5)`,
		studentID, string(course), string(e.Code), e.Milestone, timeutil.Day(e.SentDate))
	if err != nil {
		return fmt.Errorf("failed to insert message history: %w", err)
	}
	return nil
}

// RecordUrgency upserts the latest score for the registration.
func (r *HistoryRepository) RecordUrgency(ctx context.Context, studentID string, course progress.CourseID, u notification.Urgency, day time.Time) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO urgency_scores (student_id, course, score, tier, evaluated_on)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, course) DO UPDATE
		SET score = EXCLUDED.score, tier = EXCLUDED.tier, evaluated_on = EXCLUDED.evaluated_on`,
		studentID, string(course), u.Score, u.Tier.String(), timeutil.Day(day))
	if err != nil {
		return fmt.Errorf("failed to upsert urgency score: %w", err)
	}
	return nil
}
