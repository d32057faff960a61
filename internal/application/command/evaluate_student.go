// Package command contains write operations (CQRS - Commands).
// Commands change the state of the system: queuing messages and recording
// their delivery.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alem-hub/pace-notifier/config"
	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE STUDENT COMMAND
// Runs the decision engine for one student and queues the selected message.
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateStudentCommand contains the data needed to evaluate one student.
type EvaluateStudentCommand struct {
	// Member is the student's course enrollment for the term.
	Member progress.Member

	// Today is the evaluation date.
	Today time.Time

	// DryRun computes the decision without queuing or recording anything.
	DryRun bool

	// RunID ties the evaluation to a batch run in logs.
	RunID string
}

// Validate validates the command.
func (c EvaluateStudentCommand) Validate() error {
	if c.Member.StudentID == "" {
		return errors.New("evaluate_student: student_id is required")
	}
	if len(c.Member.Registrations) == 0 {
		return shared.ErrNoRegistrations
	}
	if c.Today.IsZero() {
		return shared.ErrMissingToday
	}
	return nil
}

// EvaluateStudentResult is the outcome of one evaluation.
type EvaluateStudentResult struct {
	StudentID string
	Course    progress.CourseID
	Decision  notification.Decision

	// OutboxID is set when the descriptor was queued.
	OutboxID string
	Enqueued bool
	// Duplicate is set when the same message was already queued today.
	Duplicate bool

	// Degraded is set when the placement lookup failed and zero remaining
	// attempts were assumed.
	Degraded bool

	// Snapshot is the view the engine evaluated.
	Snapshot progress.Snapshot
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotSource loads the raw records a snapshot is built from.
type SnapshotSource interface {
	// LoadRecords returns exams, homework and the schedule for the member's
	// current registration. LastMessageOn and placement attempts are
	// filled in by the caller.
	LoadRecords(ctx context.Context, member progress.Member, today time.Time) (progress.Records, error)
}

// HistorySource loads the delivery log for one registration.
type HistorySource interface {
	LoadHistory(ctx context.Context, studentID string, course progress.CourseID) ([]notification.HistoryEntry, error)
}

// PlacementService reports remaining placement exam attempts.
type PlacementService interface {
	RemainingAttempts(ctx context.Context, studentID string) (int, error)
}

// MessageSink queues descriptors for the delivery collaborator.
type MessageSink interface {
	// Enqueue stores the descriptor. created is false when a message with the
	// same dedupe key already exists; id is the existing row's ID then.
	Enqueue(ctx context.Context, d notification.MessageDescriptor) (id string, created bool, err error)
}

// UrgencyRecorder keeps the latest urgency score per registration.
type UrgencyRecorder interface {
	RecordUrgency(ctx context.Context, studentID string, course progress.CourseID, u notification.Urgency, day time.Time) error
}

// FeatureGate answers feature flag questions.
type FeatureGate interface {
	IsEnabled(feature string, ctx *config.FeatureContext) bool
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE SET
// ══════════════════════════════════════════════════════════════════════════════

// engineKey selects an engine variant by optional behaviour.
type engineKey struct {
	onTime   bool
	grade    bool
	nearTerm bool
}

// EngineSet holds one engine per combination of optional behaviours so that
// per-student feature flags never mutate a shared engine.
type EngineSet struct {
	engines map[engineKey]*notification.Engine
}

// NewEngineSet builds every variant from base.
func NewEngineSet(base notification.EngineConfig) (*EngineSet, error) {
	set := &EngineSet{engines: make(map[engineKey]*notification.Engine, 8)}
	for _, onTime := range []bool{false, true} {
		for _, grade := range []bool{false, true} {
			for _, nearTerm := range []bool{false, true} {
				cfg := base
				cfg.Selector.OnTime = base.Selector.OnTime && onTime
				cfg.Selector.Grade = base.Selector.Grade && grade
				if !nearTerm {
					cfg.Cadence.NearTermInterval = 0
				}
				e, err := notification.NewEngine(cfg)
				if err != nil {
					return nil, err
				}
				set.engines[engineKey{onTime, grade, nearTerm}] = e
			}
		}
	}
	return set, nil
}

// EngineConfigFrom maps the messaging settings onto an engine
// configuration. Optional message groups start enabled; feature flags
// switch them off per student.
func EngineConfigFrom(m config.MessagingConfig) notification.EngineConfig {
	cfg := notification.DefaultEngineConfig()
	cfg.Grades = progress.GradeScale{C: m.GradeC, B: m.GradeB, A: m.GradeA}
	cfg.Cadence = notification.CadencePolicy{
		OnTimeMax: m.OnTimeMax,
		LowMax:    m.LowMax,
		MediumMax: m.MediumMax,
		HighMax:   m.HighMax,
		Intervals: map[notification.Tier]int{
			notification.TierOnTime:   m.IntervalOnTime,
			notification.TierLow:      m.IntervalLow,
			notification.TierMedium:   m.IntervalMedium,
			notification.TierHigh:     m.IntervalHigh,
			notification.TierCritical: m.IntervalCritical,
		},
		NearTermInterval: m.NearTermInterval,
		NearTermWindow:   m.NearTermWindow,
	}
	return cfg
}

// Default returns the engine with every optional behaviour on.
func (s *EngineSet) Default() *notification.Engine {
	return s.engines[engineKey{true, true, true}]
}

func (s *EngineSet) pick(features FeatureGate, fc *config.FeatureContext) *notification.Engine {
	if features == nil {
		return s.Default()
	}
	return s.engines[engineKey{
		onTime:   features.IsEnabled(config.FeatureMessagingOnTime, fc),
		grade:    features.IsEnabled(config.FeatureMessagingGrade, fc),
		nearTerm: features.IsEnabled(config.FeatureMessagingNearTermTightening, fc),
	}]
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateStudentHandler handles the EvaluateStudentCommand.
type EvaluateStudentHandler struct {
	engines   *EngineSet
	snapshots SnapshotSource
	history   HistorySource
	placement PlacementService
	sink      MessageSink
	urgency   UrgencyRecorder
	features  FeatureGate
	logger    *slog.Logger

	dryRun bool
}

// EvaluateStudentHandlerConfig contains configuration for the handler.
type EvaluateStudentHandlerConfig struct {
	// DryRun forces every evaluation to skip the outbox.
	DryRun bool
}

// NewEvaluateStudentHandler creates a new EvaluateStudentHandler. placement,
// urgency and features may be nil.
func NewEvaluateStudentHandler(
	engines *EngineSet,
	snapshots SnapshotSource,
	history HistorySource,
	placement PlacementService,
	sink MessageSink,
	urgency UrgencyRecorder,
	features FeatureGate,
	log *slog.Logger,
	cfg EvaluateStudentHandlerConfig,
) *EvaluateStudentHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EvaluateStudentHandler{
		engines:   engines,
		snapshots: snapshots,
		history:   history,
		placement: placement,
		sink:      sink,
		urgency:   urgency,
		features:  features,
		logger:    log.With(logger.Component("evaluate_student")),
		dryRun:    cfg.DryRun,
	}
}

// Handle evaluates one student. Errors are precondition failures or
// storage failures; a failed placement lookup is not an error.
func (h *EvaluateStudentHandler) Handle(ctx context.Context, cmd EvaluateStudentCommand) (*EvaluateStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("evaluate_student: validation failed: %w", err)
	}

	member := cmd.Member
	if member.CurrentIndex < 0 || member.CurrentIndex >= len(member.Registrations) {
		return nil, shared.NewPreconditionError("progress", "Evaluate",
			"current registration index %d out of range [0,%d)", member.CurrentIndex, len(member.Registrations))
	}
	course := member.Current().Course
	log := h.logger.With(logger.StudentID(member.StudentID), logger.Course(string(course)))
	if cmd.RunID != "" {
		log = log.With(logger.RunID(cmd.RunID))
	}

	records, err := h.snapshots.LoadRecords(ctx, member, cmd.Today)
	if err != nil {
		return nil, fmt.Errorf("evaluate_student: failed to load records: %w", err)
	}

	entries, err := h.history.LoadHistory(ctx, member.StudentID, course)
	if err != nil {
		return nil, fmt.Errorf("evaluate_student: failed to load history: %w", err)
	}
	hist := notification.NewHistoryIndex(entries)
	if latest, ok := hist.Latest(); ok {
		records.LastMessageOn = latest.SentDate
	}

	result := &EvaluateStudentResult{StudentID: member.StudentID, Course: course}

	if !records.MetPrerequisite {
		records.PlacementAttemptsRemaining, result.Degraded = h.remainingAttempts(ctx, member.StudentID, log)
	}

	snapshot, err := progress.Build(records)
	if err != nil {
		return nil, err
	}
	result.Snapshot = snapshot

	fc := &config.FeatureContext{StudentID: member.StudentID, Course: string(course), Now: cmd.Today}
	decision, err := h.engines.pick(h.features, fc).Evaluate(snapshot, hist)
	if err != nil {
		return nil, err
	}
	result.Decision = decision

	log.Debug("decision",
		"state", decision.State,
		"outcome", decision.Outcome,
		"reason", decision.Reason,
		"score", decision.Urgency.Score,
		logger.Tier(decision.Urgency.Tier.String()),
		"checkpoint", decision.CheckpointTag(),
	)

	if cmd.DryRun || h.dryRun {
		return result, nil
	}

	if h.urgency != nil {
		if err := h.urgency.RecordUrgency(ctx, member.StudentID, course, decision.Urgency, cmd.Today); err != nil {
			log.Warn("failed to record urgency", logger.Err(err))
		}
	}

	if !decision.Sent() {
		return result, nil
	}
	if h.features != nil && !h.features.IsEnabled(config.FeatureMessagingEnqueue, fc) {
		log.Info("message not queued, enqueue disabled", logger.Code(string(decision.Descriptor.MessageCode)))
		return result, nil
	}

	id, created, err := h.sink.Enqueue(ctx, *decision.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("evaluate_student: failed to enqueue %s: %w", decision.Descriptor.MessageCode, err)
	}
	result.OutboxID = id
	result.Enqueued = created
	result.Duplicate = !created

	log.Info("message queued",
		logger.Code(string(decision.Descriptor.MessageCode)),
		"milestone", decision.Descriptor.MilestoneTag,
		"outbox_id", id,
		"duplicate", !created,
	)
	return result, nil
}

// remainingAttempts asks the placement service and falls back to zero, the
// most restrictive assumption, when it cannot answer.
func (h *EvaluateStudentHandler) remainingAttempts(ctx context.Context, studentID string, log *slog.Logger) (int, bool) {
	if h.placement == nil {
		return 0, false
	}
	n, err := h.placement.RemainingAttempts(ctx, studentID)
	if err != nil {
		log.Warn("placement lookup failed, assuming no attempts remain",
			logger.Err(shared.NewUpstreamQueryError("placement", "RemainingAttempts", err)))
		return 0, true
	}
	if n < 0 {
		log.Warn("placement service returned a negative count", "attempts", n)
		return 0, true
	}
	return n, false
}
