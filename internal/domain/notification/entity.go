package notification

import (
	"errors"
	"strings"
	"time"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrEmptyRecipient = errors.New("notification: recipient id is empty")
	ErrInvalidCode    = errors.New("notification: invalid message code")
	ErrEmptySubject   = errors.New("notification: subject line is empty")
	ErrEmptyBody      = errors.New("notification: body text is empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE DESCRIPTOR
// ══════════════════════════════════════════════════════════════════════════════

// MessageDescriptor is the message-to-send record the engine hands to the
// delivery collaborator. The engine keeps no reference to it.
type MessageDescriptor struct {
	RecipientID  string            `json:"recipient_id"`
	Course       progress.CourseID `json:"course"`
	MilestoneTag string            `json:"milestone_tag"`
	MessageCode  Code              `json:"message_code"`
	SubjectLine  string            `json:"subject_line"`
	BodyText     string            `json:"body_text"`

	// Urgency is the score at the time of selection.
	Urgency int `json:"urgency"`

	// CreatedFor is the evaluation date.
	CreatedFor time.Time `json:"created_for"`
}

// DedupeKey identifies the descriptor across reruns of the same day.
func (d MessageDescriptor) DedupeKey() string {
	return strings.Join([]string{
		d.RecipientID,
		d.Course.Short(),
		string(d.MessageCode),
		d.CreatedFor.Format("2006-01-02"),
	}, ":")
}

// Validate checks that the descriptor can be delivered.
func (d MessageDescriptor) Validate() error {
	switch {
	case d.RecipientID == "":
		return ErrEmptyRecipient
	case !d.MessageCode.IsValid():
		return ErrInvalidCode
	case d.SubjectLine == "":
		return ErrEmptySubject
	case d.BodyText == "":
		return ErrEmptyBody
	}
	return nil
}

// descriptor assembles a descriptor for the snapshot's current registration.
func descriptor(s progress.Snapshot, tag string, code Code, u Urgency, subject string, body *messageBody) *MessageDescriptor {
	return &MessageDescriptor{
		RecipientID:  s.StudentID,
		Course:       s.Current().Course,
		MilestoneTag: tag,
		MessageCode:  code,
		SubjectLine:  subject,
		BodyText:     body.String(),
		Urgency:      u.Score,
		CreatedFor:   s.Today,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DECISION
// ══════════════════════════════════════════════════════════════════════════════

// State is the engine state in which a decision was reached.
type State string

const (
	StateAwaitingWelcome State = "AWAITING_WELCOME"
	StateNormalFlow      State = "NORMAL_FLOW"
	StateBlocked         State = "BLOCKED"
	StateTerminal        State = "TERMINAL"
)

// Outcome is the terminal result of an evaluation.
type Outcome string

const (
	OutcomeSent       Outcome = "SENT"
	OutcomeSuppressed Outcome = "SUPPRESSED"
)

// Reason explains a decision.
type Reason string

const (
	ReasonWelcome          Reason = "welcome"
	ReasonBlockedNotice    Reason = "blocked_notice"
	ReasonBlockedAlready   Reason = "blocked_notice_already_sent"
	ReasonIntervalNotMet   Reason = "min_interval_not_elapsed"
	ReasonNothingToResolve Reason = "all_checkpoints_satisfied"
	ReasonNoVariant        Reason = "no_eligible_variant"
	ReasonCheckpoint       Reason = "checkpoint"
)

// Decision is the result of one evaluation.
type Decision struct {
	State      State              `json:"state"`
	Outcome    Outcome            `json:"outcome"`
	Reason     Reason             `json:"reason"`
	Urgency    Urgency            `json:"urgency"`
	Checkpoint Checkpoint         `json:"-"`
	Descriptor *MessageDescriptor `json:"descriptor,omitempty"`
}

// Sent reports whether a descriptor was produced.
func (d Decision) Sent() bool {
	return d.Outcome == OutcomeSent && d.Descriptor != nil
}

// CheckpointTag returns the checkpoint tag, or "" when none was resolved.
func (d Decision) CheckpointTag() string {
	if d.Checkpoint.IsZero() {
		return ""
	}
	return d.Checkpoint.String()
}
