package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one schema change.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: Migrations()}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	applied := make(map[int]time.Time)
	err := m.conn.QueryFunc(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version", nil,
		func(rows pgx.Rows) error {
			var v int
			var at time.Time
			if err := rows.Scan(&v, &at); err != nil {
				return err
			}
			applied[v] = at
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	return applied, nil
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		last = max(last, v)
	}
	if last == 0 {
		return nil
	}

	for _, mig := range m.migrations {
		if mig.Version != last {
			continue
		}
		return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
				return fmt.Errorf("failed to roll back migration %d: %w", last, err)
			}
			_, err := tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", last)
			return err
		})
	}
	return fmt.Errorf("%w: unknown applied version %d", ErrMigrationFailed, last)
}

// Status lists migrations with their applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// Migrations returns the embedded migrations in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_course_records", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_message_history", UpSQL: migration002Up, DownSQL: migration002Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: COURSE RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS terms (
    code VARCHAR(10) PRIMARY KEY,
    starts_on DATE NOT NULL,
    ends_on DATE NOT NULL,
    CONSTRAINT valid_term CHECK (ends_on >= starts_on)
);

CREATE TABLE IF NOT EXISTS students (
    student_id VARCHAR(9) PRIMARY KEY,
    email VARCHAR(120),
    met_prerequisite BOOLEAN NOT NULL DEFAULT FALSE,
    -- Orientation exam passed in any term.
    licensed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS registrations (
    student_id VARCHAR(9) NOT NULL REFERENCES students(student_id),
    term VARCHAR(10) NOT NULL REFERENCES terms(code),
    course VARCHAR(8) NOT NULL,
    section VARCHAR(4) NOT NULL,
    open_status CHAR(1),
    pace_order SMALLINT NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (student_id, term, course),
    CONSTRAINT valid_open_status CHECK (open_status IS NULL OR open_status IN ('Y', 'N', 'G'))
);

CREATE INDEX IF NOT EXISTS idx_registrations_term ON registrations(term);

CREATE TABLE IF NOT EXISTS milestone_due_dates (
    term VARCHAR(10) NOT NULL REFERENCES terms(code),
    course VARCHAR(8) NOT NULL,
    milestone VARCHAR(6) NOT NULL,
    due_on DATE NOT NULL,
    PRIMARY KEY (term, course, milestone)
);

CREATE TABLE IF NOT EXISTS due_date_overrides (
    student_id VARCHAR(9) NOT NULL REFERENCES students(student_id),
    term VARCHAR(10) NOT NULL REFERENCES terms(code),
    course VARCHAR(8) NOT NULL,
    milestone VARCHAR(6) NOT NULL,
    due_on DATE NOT NULL,
    PRIMARY KEY (student_id, term, course, milestone)
);

CREATE TABLE IF NOT EXISTS last_try_windows (
    term VARCHAR(10) NOT NULL REFERENCES terms(code),
    course VARCHAR(8) NOT NULL,
    last_on DATE NOT NULL,
    try_count SMALLINT NOT NULL DEFAULT 1,
    PRIMARY KEY (term, course)
);

CREATE TABLE IF NOT EXISTS exam_attempts (
    id BIGSERIAL PRIMARY KEY,
    student_id VARCHAR(9) NOT NULL REFERENCES students(student_id),
    term VARCHAR(10) NOT NULL REFERENCES terms(code),
    -- Empty for orientation exams.
    course VARCHAR(8) NOT NULL DEFAULT '',
    exam_type CHAR(1) NOT NULL,
    unit SMALLINT NOT NULL,
    passed CHAR(1) NOT NULL,
    score SMALLINT NOT NULL DEFAULT 0,
    taken_on DATE NOT NULL,
    CONSTRAINT valid_exam_type CHECK (exam_type IN ('Q', 'R', 'U', 'F')),
    CONSTRAINT valid_exam_passed CHECK (passed IN ('Y', 'N', 'G'))
);

CREATE INDEX IF NOT EXISTS idx_exam_attempts_student ON exam_attempts(student_id, term);

CREATE TABLE IF NOT EXISTS homework_attempts (
    id BIGSERIAL PRIMARY KEY,
    student_id VARCHAR(9) NOT NULL REFERENCES students(student_id),
    term VARCHAR(10) NOT NULL REFERENCES terms(code),
    course VARCHAR(8) NOT NULL,
    unit SMALLINT NOT NULL,
    objective SMALLINT NOT NULL,
    passed CHAR(1) NOT NULL,
    taken_on DATE NOT NULL,
    CONSTRAINT valid_homework_passed CHECK (passed IN ('Y', 'N', 'G'))
);

CREATE INDEX IF NOT EXISTS idx_homework_attempts_student ON homework_attempts(student_id, term);
`

const migration001Down = `
DROP TABLE IF EXISTS homework_attempts;
DROP TABLE IF EXISTS exam_attempts;
DROP TABLE IF EXISTS last_try_windows;
DROP TABLE IF EXISTS due_date_overrides;
DROP TABLE IF EXISTS milestone_due_dates;
DROP TABLE IF EXISTS registrations;
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS terms;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: MESSAGE HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS message_history (
    id BIGSERIAL PRIMARY KEY,
    student_id VARCHAR(9) NOT NULL,
    course VARCHAR(8) NOT NULL,
    code VARCHAR(8) NOT NULL,
    milestone VARCHAR(6) NOT NULL DEFAULT '',
    sent_on DATE NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_message_history_registration ON message_history(student_id, course);

CREATE TABLE IF NOT EXISTS urgency_scores (
    student_id VARCHAR(9) NOT NULL,
    course VARCHAR(8) NOT NULL,
    score INTEGER NOT NULL,
    tier VARCHAR(10) NOT NULL,
    evaluated_on DATE NOT NULL,
    PRIMARY KEY (student_id, course)
);
`

const migration002Down = `
DROP TABLE IF EXISTS urgency_scores;
DROP TABLE IF EXISTS message_history;
`
