// Package outbox stores message descriptors for the delivery collaborator.
// The same store runs on PostgreSQL (lib/pq) in production and on SQLite
// for single-host installs and tests.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/alem-hub/pace-notifier/config"
	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/logger"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DefaultMaxAttempts applies when OutboxConfig.MaxAttempts is unset.
const DefaultMaxAttempts = 5

var _ notification.OutboxRepository = (*Store)(nil)

// Store implements notification.OutboxRepository over database/sql.
type Store struct {
	db          *sqlx.DB
	driver      string
	maxAttempts int
	log         *slog.Logger
	now         func() time.Time
}

// Open connects to the configured database and creates the table.
func Open(ctx context.Context, cfg config.OutboxConfig, log *slog.Logger) (*Store, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("outbox: unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("outbox: DSN not set")
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("outbox: failed to open database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// One writer at a time avoids "database is locked".
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("outbox: ping failed: %w", err)
	}

	s := New(db, cfg.MaxAttempts, log)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database.
func New(db *sqlx.DB, maxAttempts int, log *slog.Logger) *Store {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Store{
		db:          db,
		driver:      db.DriverName(),
		maxAttempts: maxAttempts,
		log:         log.With(logger.Component("outbox")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS outbox_messages (
	id           TEXT PRIMARY KEY,
	dedupe_key   TEXT NOT NULL UNIQUE,
	student_id   TEXT NOT NULL,
	course       TEXT NOT NULL,
	message_code TEXT NOT NULL,
	channel      TEXT NOT NULL,
	payload      TEXT NOT NULL,
	status       TEXT NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NOT NULL DEFAULT '',
	queued_at    TIMESTAMPTZ NOT NULL,
	claimed_at   TIMESTAMPTZ,
	sent_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages (status, queued_at);`

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS outbox_messages (
	id           TEXT PRIMARY KEY,
	dedupe_key   TEXT NOT NULL UNIQUE,
	student_id   TEXT NOT NULL,
	course       TEXT NOT NULL,
	message_code TEXT NOT NULL,
	channel      TEXT NOT NULL,
	payload      TEXT NOT NULL,
	status       TEXT NOT NULL,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_error   TEXT NOT NULL DEFAULT '',
	queued_at    DATETIME NOT NULL,
	claimed_at   DATETIME,
	sent_at      DATETIME
);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages (status, queued_at);`

// EnsureSchema creates the outbox table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := schemaSQLite
	if s.driver == DriverPostgres {
		ddl = schemaPostgres
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("outbox: failed to create schema: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROWS
// ══════════════════════════════════════════════════════════════════════════════

const columns = `id, dedupe_key, student_id, course, message_code, channel, payload, status, attempts, last_error, queued_at, claimed_at, sent_at`

type row struct {
	ID          string       `db:"id"`
	DedupeKey   string       `db:"dedupe_key"`
	StudentID   string       `db:"student_id"`
	Course      string       `db:"course"`
	MessageCode string       `db:"message_code"`
	Channel     string       `db:"channel"`
	Payload     string       `db:"payload"`
	Status      string       `db:"status"`
	Attempts    int          `db:"attempts"`
	LastError   string       `db:"last_error"`
	QueuedAt    time.Time    `db:"queued_at"`
	ClaimedAt   sql.NullTime `db:"claimed_at"`
	SentAt      sql.NullTime `db:"sent_at"`
}

func (r row) message() (*notification.OutboxMessage, error) {
	m := &notification.OutboxMessage{
		ID:        r.ID,
		DedupeKey: r.DedupeKey,
		Channel:   notification.Channel(r.Channel),
		Status:    notification.DeliveryStatus(r.Status),
		Attempts:  r.Attempts,
		LastError: r.LastError,
		QueuedAt:  r.QueuedAt,
	}
	if err := json.Unmarshal([]byte(r.Payload), &m.Descriptor); err != nil {
		return nil, fmt.Errorf("outbox: bad payload for %s: %w", r.ID, err)
	}
	if r.ClaimedAt.Valid {
		t := r.ClaimedAt.Time
		m.ClaimedAt = &t
	}
	if r.SentAt.Valid {
		t := r.SentAt.Time
		m.SentAt = &t
	}
	return m, nil
}

// q rebinds ? placeholders for the driver.
func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Enqueue stores the descriptor once per dedupe key.
func (s *Store) Enqueue(ctx context.Context, d notification.MessageDescriptor) (string, bool, error) {
	if err := d.Validate(); err != nil {
		return "", false, shared.WrapError("outbox", "Enqueue", shared.ErrInvalidInput, "invalid descriptor", err)
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return "", false, fmt.Errorf("outbox: failed to encode descriptor: %w", err)
	}

	id := uuid.NewString()
	key := d.DedupeKey()
	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO outbox_messages (id, dedupe_key, student_id, course, message_code, channel, payload, status, attempts, last_error, queued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?)
		ON CONFLICT (dedupe_key) DO NOTHING`),
		id, key, d.RecipientID, string(d.Course), string(d.MessageCode), string(notification.ChannelEmail),
		string(payload), string(notification.DeliveryQueued), s.now())
	if err != nil {
		return "", false, fmt.Errorf("outbox: enqueue failed: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 1 {
		s.log.Debug("message queued", "id", id, logger.StudentID(d.RecipientID), logger.Code(string(d.MessageCode)))
		return id, true, nil
	}

	var existing string
	if err := s.db.GetContext(ctx, &existing, s.q(`SELECT id FROM outbox_messages WHERE dedupe_key = ?`), key); err != nil {
		return "", false, fmt.Errorf("outbox: dedupe lookup failed: %w", err)
	}
	s.log.Debug("dedupe hit", "dedupe_key", key, "id", existing)
	return existing, false, nil
}

// Get returns one message.
func (s *Store) Get(ctx context.Context, id string) (*notification.OutboxMessage, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.q(`SELECT `+columns+` FROM outbox_messages WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrOutboxMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("outbox: get failed: %w", err)
	}
	return r.message()
}

// Claim moves up to limit of the oldest queued messages to sending.
// A row another worker claimed first is skipped.
func (s *Store) Claim(ctx context.Context, limit int) ([]*notification.OutboxMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows []row
	err := s.db.SelectContext(ctx, &rows, s.q(`
		SELECT `+columns+` FROM outbox_messages
		WHERE status = ?
		ORDER BY queued_at, id
		LIMIT ?`), string(notification.DeliveryQueued), limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: claim query failed: %w", err)
	}

	now := s.now()
	out := make([]*notification.OutboxMessage, 0, len(rows))
	for _, r := range rows {
		res, err := s.db.ExecContext(ctx, s.q(`
			UPDATE outbox_messages SET status = ?, claimed_at = ?
			WHERE id = ? AND status = ?`),
			string(notification.DeliverySending), now, r.ID, string(notification.DeliveryQueued))
		if err != nil {
			return nil, fmt.Errorf("outbox: claim update failed: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		m, err := r.message()
		if err != nil {
			return nil, err
		}
		m.Status = notification.DeliverySending
		claimed := now
		m.ClaimedAt = &claimed
		out = append(out, m)
	}
	return out, nil
}

// MarkSent records a successful delivery.
func (s *Store) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE outbox_messages SET status = ?, sent_at = ?
		WHERE id = ? AND status IN (?, ?)`),
		string(notification.DeliverySent), sentAt.UTC(), id,
		string(notification.DeliveryQueued), string(notification.DeliverySending))
	if err != nil {
		return fmt.Errorf("outbox: mark sent failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return s.transitionError(ctx, id)
}

// MarkFailed counts a failed attempt. The message is requeued until it has
// failed maxAttempts times.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) (notification.DeliveryStatus, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("outbox: begin failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cur struct {
		Status   string `db:"status"`
		Attempts int    `db:"attempts"`
	}
	err = tx.GetContext(ctx, &cur, tx.Rebind(`SELECT status, attempts FROM outbox_messages WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", shared.ErrOutboxMessageNotFound
	}
	if err != nil {
		return "", fmt.Errorf("outbox: mark failed lookup: %w", err)
	}
	if notification.DeliveryStatus(cur.Status).IsFinal() {
		return "", shared.NewDomainError("outbox", "MarkFailed", shared.ErrInvalidState,
			fmt.Sprintf("message %s is already %s", id, cur.Status))
	}

	attempts := cur.Attempts + 1
	next := notification.DeliveryQueued
	if attempts >= s.maxAttempts {
		next = notification.DeliveryFailed
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		UPDATE outbox_messages SET status = ?, attempts = ?, last_error = ?, claimed_at = NULL
		WHERE id = ?`), string(next), attempts, reason, id)
	if err != nil {
		return "", fmt.Errorf("outbox: mark failed update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("outbox: commit failed: %w", err)
	}

	if next == notification.DeliveryFailed {
		s.log.Warn("message gave up", "id", id, "attempts", attempts, "reason", reason)
	}
	return next, nil
}

// RequeueStale returns messages claimed more than olderThan ago to the queue.
func (s *Store) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE outbox_messages SET status = ?, claimed_at = NULL
		WHERE status = ? AND claimed_at < ?`),
		string(notification.DeliveryQueued), string(notification.DeliverySending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("outbox: requeue failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("requeued stale messages", "count", n)
	}
	return int(n), nil
}

// CountByStatus reports queue depth per status.
func (s *Store) CountByStatus(ctx context.Context) (map[notification.DeliveryStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM outbox_messages GROUP BY status`); err != nil {
		return nil, fmt.Errorf("outbox: count failed: %w", err)
	}
	out := make(map[notification.DeliveryStatus]int, len(rows))
	for _, r := range rows {
		out[notification.DeliveryStatus(r.Status)] = r.N
	}
	return out, nil
}

func (s *Store) transitionError(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Status == notification.DeliverySent {
		return shared.ErrAlreadyDelivered
	}
	return shared.NewDomainError("outbox", "MarkSent", shared.ErrInvalidState,
		fmt.Sprintf("message %s is %s", id, m.Status))
}
