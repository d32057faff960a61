// Package jobs contains the scheduled jobs of the notifier.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/pace-notifier/internal/application/command"
	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	rediscache "github.com/alem-hub/pace-notifier/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/pace-notifier/pkg/logger"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE NOTIFICATIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ErrRunInProgress is returned when another evaluation run holds the lock.
var ErrRunInProgress = errors.New("evaluate_notifications: a run is already in progress")

// maxReportedErrors caps BatchReport.Errors.
const maxReportedErrors = 50

// MemberLister lists the students to evaluate.
type MemberLister interface {
	ListMembers(ctx context.Context, today time.Time) ([]progress.Member, error)
}

// StudentEvaluator evaluates one student.
type StudentEvaluator interface {
	Handle(ctx context.Context, cmd command.EvaluateStudentCommand) (*command.EvaluateStudentResult, error)
}

// Locker serializes runs across workers.
type Locker interface {
	Acquire(ctx context.Context, name string) (func(context.Context) error, error)
}

// EvaluateNotificationsConfig contains configuration for the job.
type EvaluateNotificationsConfig struct {
	// Concurrency is the number of students evaluated in parallel.
	Concurrency int

	// Location defines "today".
	Location *time.Location
}

// BatchReport summarizes one evaluation run.
type BatchReport struct {
	RunID       string        `json:"run_id"`
	Today       string        `json:"today"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`

	Population int `json:"population"`
	Evaluated  int `json:"evaluated"`
	Sent       int `json:"sent"`
	Suppressed int `json:"suppressed"`
	Errored    int `json:"errored"`
	Degraded   int `json:"degraded"`

	Enqueued   int `json:"enqueued"`
	Duplicates int `json:"duplicates"`

	ByCode   map[notification.Code]int `json:"by_code"`
	ByTier   map[string]int            `json:"by_tier"`
	ByReason map[string]int            `json:"by_reason"`

	Errors []StudentError `json:"errors,omitempty"`

	// Cancelled is set when the run stopped before every student was seen.
	Cancelled bool `json:"cancelled"`
}

// StudentError records a student that could not be evaluated.
type StudentError struct {
	StudentID string `json:"student_id"`
	Error     string `json:"error"`
}

// EvaluateNotificationsJob evaluates every enrolled student and queues the
// selected messages.
type EvaluateNotificationsJob struct {
	members   MemberLister
	evaluator StudentEvaluator
	lock      Locker
	log       *slog.Logger
	config    EvaluateNotificationsConfig
	now       func() time.Time

	lastReport atomic.Value // *BatchReport
}

// NewEvaluateNotificationsJob creates a new job.
func NewEvaluateNotificationsJob(
	members MemberLister,
	evaluator StudentEvaluator,
	lock Locker,
	log *slog.Logger,
	config EvaluateNotificationsConfig,
) *EvaluateNotificationsJob {
	if log == nil {
		log = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &EvaluateNotificationsJob{
		members:   members,
		evaluator: evaluator,
		lock:      lock,
		log:       log.With(logger.Component("evaluate_notifications")),
		config:    config,
		now:       time.Now,
	}
}

// Name returns the job name.
func (j *EvaluateNotificationsJob) Name() string {
	return "evaluate_notifications"
}

// Description returns a human-readable description.
func (j *EvaluateNotificationsJob) Description() string {
	return "Evaluates every enrolled student and queues progress messages"
}

// Run evaluates the population for today. A run already in progress
// elsewhere is not an error.
func (j *EvaluateNotificationsJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx, time.Time{})
	if errors.Is(err, ErrRunInProgress) {
		j.log.Info("skipping run, lock held elsewhere")
		return nil
	}
	return err
}

// LastReport returns the report of the latest completed run, or nil.
func (j *EvaluateNotificationsJob) LastReport() *BatchReport {
	r, _ := j.lastReport.Load().(*BatchReport)
	return r
}

// Execute runs one batch. A zero today means the current date in the
// configured location.
func (j *EvaluateNotificationsJob) Execute(ctx context.Context, today time.Time) (*BatchReport, error) {
	if today.IsZero() {
		today = j.now().In(j.config.Location)
	}
	today = timeutil.Day(today)

	if j.lock != nil {
		release, err := j.lock.Acquire(ctx, j.Name())
		if errors.Is(err, rediscache.ErrLockHeld) {
			return nil, ErrRunInProgress
		}
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		defer func() {
			// The run context may be cancelled; release on a fresh one.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(rctx); err != nil {
				j.log.Warn("failed to release run lock", logger.Err(err))
			}
		}()
	}

	report := &BatchReport{
		RunID:     uuid.NewString(),
		Today:     today.Format("2006-01-02"),
		StartedAt: j.now(),
		ByCode:    make(map[notification.Code]int),
		ByTier:    make(map[string]int),
		ByReason:  make(map[string]int),
	}
	log := j.log.With(logger.RunID(report.RunID))

	members, err := j.members.ListMembers(ctx, today)
	if err != nil {
		return nil, shared.NewUpstreamQueryError("batch", "ListMembers", err)
	}
	report.Population = len(members)
	log.Info("evaluation run started", "today", report.Today, "population", len(members), "concurrency", j.config.Concurrency)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, m := range members {
		if gctx.Err() != nil {
			break
		}
		m := m
		g.Go(func() error {
			res, err := j.evaluator.Handle(gctx, command.EvaluateStudentCommand{
				Member: m,
				Today:  today,
				RunID:  report.RunID,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.record(m.StudentID, err)
				log.Error("student evaluation failed", logger.StudentID(m.StudentID), logger.Err(err))
				return nil
			}
			report.tally(res)
			return nil
		})
	}
	_ = g.Wait()

	report.CompletedAt = j.now()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)
	report.Cancelled = ctx.Err() != nil
	j.lastReport.Store(report)

	log.Info("evaluation run completed",
		"evaluated", report.Evaluated,
		"sent", report.Sent,
		"suppressed", report.Suppressed,
		"errored", report.Errored,
		"degraded", report.Degraded,
		logger.Latency(report.Duration),
	)

	if report.Cancelled {
		return report, fmt.Errorf("evaluation run cancelled: %w", ctx.Err())
	}
	return report, nil
}

func (r *BatchReport) record(studentID string, err error) {
	r.Errored++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, StudentError{StudentID: studentID, Error: err.Error()})
		sort.Slice(r.Errors, func(a, b int) bool { return r.Errors[a].StudentID < r.Errors[b].StudentID })
	}
}

func (r *BatchReport) tally(res *command.EvaluateStudentResult) {
	r.Evaluated++
	if res.Degraded {
		r.Degraded++
	}
	d := res.Decision
	r.ByTier[d.Urgency.Tier.String()]++
	r.ByReason[string(d.Reason)]++

	if !d.Sent() {
		r.Suppressed++
		return
	}
	r.Sent++
	r.ByCode[d.Descriptor.MessageCode]++
	if res.Enqueued {
		r.Enqueued++
	}
	if res.Duplicate {
		r.Duplicates++
	}
}
