package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
)

// ProgressRepository reads registrations, schedules and attempts for the
// term that contains the evaluation date.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// ══════════════════════════════════════════════════════════════════════════════
// POPULATION
// ══════════════════════════════════════════════════════════════════════════════

const registrationsQuery = `
	SELECT r.student_id, r.course, r.section, COALESCE(r.open_status, ''), r.pace_order, r.completed
	FROM registrations r
	JOIN terms t ON t.code = r.term
	WHERE $1::date BETWEEN t.starts_on AND t.ends_on`

// ListMembers returns every student with a registration still to work on.
func (r *ProgressRepository) ListMembers(ctx context.Context, today time.Time) ([]progress.Member, error) {
	rows, err := r.enrollments(ctx, registrationsQuery+" ORDER BY r.student_id", today)
	if err != nil {
		return nil, err
	}
	return progress.BuildPopulation(rows), nil
}

// FindMember returns one student's enrollment.
func (r *ProgressRepository) FindMember(ctx context.Context, studentID string, today time.Time) (progress.Member, error) {
	rows, err := r.enrollments(ctx, registrationsQuery+" AND r.student_id = $2", today, studentID)
	if err != nil {
		return progress.Member{}, err
	}
	members := progress.BuildPopulation(rows)
	if len(members) == 0 {
		return progress.Member{}, shared.ErrStudentNotFound
	}
	return members[0], nil
}

func (r *ProgressRepository) enrollments(ctx context.Context, sql string, args ...any) ([]progress.EnrollmentRow, error) {
	var out []progress.EnrollmentRow
	err := r.conn.QueryFunc(ctx, sql, args, func(rows pgx.Rows) error {
		var row progress.EnrollmentRow
		var course string
		if err := rows.Scan(&row.StudentID, &course, &row.Section, &row.OpenStatus, &row.PaceOrder, &row.Completed); err != nil {
			return err
		}
		row.Course = progress.CourseID(course)
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// LoadRecords loads everything progress.Build needs for the member's current
// registration, except the last message date and placement attempts.
func (r *ProgressRepository) LoadRecords(ctx context.Context, member progress.Member, today time.Time) (progress.Records, error) {
	rec := progress.Records{
		StudentID:     member.StudentID,
		Today:         today,
		Registrations: member.Registrations,
		CurrentIndex:  member.CurrentIndex,
	}
	course := member.Current().Course

	var term string
	err := r.conn.QueryFunc(ctx, `SELECT code FROM terms WHERE $1::date BETWEEN starts_on AND ends_on ORDER BY starts_on DESC LIMIT 1`,
		[]any{today}, func(rows pgx.Rows) error { return rows.Scan(&term) })
	if err != nil {
		return rec, fmt.Errorf("failed to query term: %w", err)
	}
	if term == "" {
		return rec, shared.NewPreconditionError("progress", "LoadRecords", "no term contains %s", today.Format("2006-01-02"))
	}

	found := false
	err = r.conn.QueryFunc(ctx, `SELECT met_prerequisite, licensed FROM students WHERE student_id = $1`,
		[]any{member.StudentID}, func(rows pgx.Rows) error {
			found = true
			return rows.Scan(&rec.MetPrerequisite, &rec.Licensed)
		})
	if err != nil {
		return rec, fmt.Errorf("failed to query student: %w", err)
	}
	if !found {
		return rec, shared.ErrStudentNotFound
	}

	if rec.Schedule, err = r.schedule(ctx, member.StudentID, term, course); err != nil {
		return rec, err
	}
	if rec.Exams, err = r.exams(ctx, member.StudentID, term); err != nil {
		return rec, err
	}
	if rec.Homework, err = r.homework(ctx, member.StudentID, term, course); err != nil {
		return rec, err
	}
	return rec, nil
}

// schedule applies per-student overrides on top of the course due dates.
func (r *ProgressRepository) schedule(ctx context.Context, studentID, term string, course progress.CourseID) (progress.Schedule, error) {
	sched := progress.Schedule{
		Due:          make(map[progress.Item]time.Time),
		LastTryCount: progress.DefaultLastTryCount,
	}

	err := r.conn.QueryFunc(ctx, `
		SELECT d.milestone, COALESCE(o.due_on, d.due_on)
		FROM milestone_due_dates d
		LEFT JOIN due_date_overrides o
		  ON o.term = d.term AND o.course = d.course AND o.milestone = d.milestone AND o.student_id = $3
		WHERE d.term = $1 AND d.course = $2`,
		[]any{term, string(course), studentID}, func(rows pgx.Rows) error {
			var tag string
			var due time.Time
			if err := rows.Scan(&tag, &due); err != nil {
				return err
			}
			item, err := progress.ParseItemTag(tag)
			if err != nil {
				return shared.WrapError("progress", "LoadRecords", shared.ErrPrecondition, "bad milestone row", err)
			}
			sched.Due[item] = due
			return nil
		})
	if err != nil {
		return sched, fmt.Errorf("failed to query due dates: %w", err)
	}

	err = r.conn.QueryFunc(ctx, `SELECT last_on, try_count FROM last_try_windows WHERE term = $1 AND course = $2`,
		[]any{term, string(course)}, func(rows pgx.Rows) error {
			return rows.Scan(&sched.Last, &sched.LastTryCount)
		})
	if err != nil {
		return sched, fmt.Errorf("failed to query last-try window: %w", err)
	}
	return sched, nil
}

func (r *ProgressRepository) exams(ctx context.Context, studentID, term string) ([]progress.ExamRecord, error) {
	var out []progress.ExamRecord
	err := r.conn.QueryFunc(ctx, `
		SELECT course, exam_type, unit, passed, score, taken_on
		FROM exam_attempts
		WHERE student_id = $1 AND term = $2
		ORDER BY taken_on, id`,
		[]any{studentID, term}, func(rows pgx.Rows) error {
			var e progress.ExamRecord
			var course string
			if err := rows.Scan(&course, &e.Type, &e.Unit, &e.Passed, &e.Score, &e.TakenOn); err != nil {
				return err
			}
			e.Course = progress.CourseID(course)
			out = append(out, e)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to query exam attempts: %w", err)
	}
	return out, nil
}

func (r *ProgressRepository) homework(ctx context.Context, studentID, term string, course progress.CourseID) ([]progress.HomeworkRecord, error) {
	var out []progress.HomeworkRecord
	err := r.conn.QueryFunc(ctx, `
		SELECT unit, objective, passed, taken_on
		FROM homework_attempts
		WHERE student_id = $1 AND term = $2 AND course = $3
		ORDER BY taken_on, id`,
		[]any{studentID, term, string(course)}, func(rows pgx.Rows) error {
			h := progress.HomeworkRecord{Course: course}
			if err := rows.Scan(&h.Unit, &h.Objective, &h.Passed, &h.TakenOn); err != nil {
				return err
			}
			out = append(out, h)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to query homework attempts: %w", err)
	}
	return out, nil
}
