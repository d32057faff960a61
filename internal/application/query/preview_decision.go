// Package query contains read operations (CQRS - Queries).
// Queries never queue messages or write history.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/pace-notifier/internal/application/command"
	"github.com/alem-hub/pace-notifier/internal/domain/notification"
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREVIEW DECISION QUERY
// Shows what tonight's run would send a student, without sending it.
// ══════════════════════════════════════════════════════════════════════════════

// PreviewDecisionQuery identifies the student to preview.
type PreviewDecisionQuery struct {
	StudentID string

	// Today defaults to the current date in the configured location.
	Today time.Time
}

// Validate validates the query.
func (q PreviewDecisionQuery) Validate() error {
	if q.StudentID == "" {
		return fmt.Errorf("%w: preview_decision: student_id is required", shared.ErrInvalidInput)
	}
	return nil
}

// DecisionPreview is the dry-run outcome.
type DecisionPreview struct {
	StudentID  string                          `json:"student_id"`
	Course     progress.CourseID               `json:"course"`
	Today      string                          `json:"today"`
	State      notification.State              `json:"state"`
	Outcome    notification.Outcome            `json:"outcome"`
	Reason     notification.Reason             `json:"reason"`
	Score      int                             `json:"urgency_score"`
	Tier       string                          `json:"urgency_tier"`
	Checkpoint string                          `json:"checkpoint,omitempty"`
	Message    *notification.MessageDescriptor `json:"message,omitempty"`

	// Degraded is set when placement attempts could not be looked up.
	Degraded bool `json:"degraded"`

	TotalScore       int `json:"total_score"`
	MaxPossibleScore int `json:"max_possible_score"`
}

// MemberFinder resolves a student's enrollment for the term.
type MemberFinder interface {
	FindMember(ctx context.Context, studentID string, today time.Time) (progress.Member, error)
}

// Evaluator runs one evaluation.
type Evaluator interface {
	Handle(ctx context.Context, cmd command.EvaluateStudentCommand) (*command.EvaluateStudentResult, error)
}

// PreviewDecisionHandler handles the PreviewDecisionQuery.
type PreviewDecisionHandler struct {
	members   MemberFinder
	evaluator Evaluator
	location  *time.Location
	now       func() time.Time
}

// NewPreviewDecisionHandler creates a new PreviewDecisionHandler.
func NewPreviewDecisionHandler(members MemberFinder, evaluator Evaluator, loc *time.Location) *PreviewDecisionHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PreviewDecisionHandler{members: members, evaluator: evaluator, location: loc, now: time.Now}
}

// Handle evaluates the student in dry-run mode.
func (h *PreviewDecisionHandler) Handle(ctx context.Context, q PreviewDecisionQuery) (*DecisionPreview, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	today := q.Today
	if today.IsZero() {
		today = timeutil.Day(h.now().In(h.location))
	}

	member, err := h.members.FindMember(ctx, q.StudentID, today)
	if err != nil {
		return nil, fmt.Errorf("preview_decision: %w", err)
	}

	res, err := h.evaluator.Handle(ctx, command.EvaluateStudentCommand{
		Member: member,
		Today:  today,
		DryRun: true,
	})
	if err != nil {
		return nil, err
	}

	d := res.Decision
	return &DecisionPreview{
		StudentID:        res.StudentID,
		Course:           res.Course,
		Today:            today.Format("2006-01-02"),
		State:            d.State,
		Outcome:          d.Outcome,
		Reason:           d.Reason,
		Score:            d.Urgency.Score,
		Tier:             d.Urgency.Tier.String(),
		Checkpoint:       d.CheckpointTag(),
		Message:          d.Descriptor,
		Degraded:         res.Degraded,
		TotalScore:       res.Snapshot.TotalScore,
		MaxPossibleScore: res.Snapshot.MaxPossibleScore,
	}, nil
}
