// Package progress models a student's academic position in a self-paced
// course: milestone due dates, exam and homework outcomes, scores, and the
// read-only Snapshot the notification engine evaluates once per run.
package progress

import (
	"time"

	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// NeverMessaged is used for DaysSinceLastMessage when no message was ever sent.
const NeverMessaged = 9999

// ItemState is the outcome of one graded item so far.
type ItemState struct {
	Passed      bool      `json:"passed"`
	FailedTries int       `json:"failed_tries"`
	LastTry     time.Time `json:"last_try,omitempty"`
	Score       int       `json:"score"`
}

// Tried reports whether the item was attempted at all.
func (s ItemState) Tried() bool {
	return s.Passed || s.FailedTries > 0
}

// Snapshot is the per-run view of one student in one course registration.
// It is built by a collaborator, handed to exactly one evaluation, and never
// mutated afterwards.
type Snapshot struct {
	StudentID string `json:"student_id"`

	// Today is the evaluation date. All date arithmetic uses it instead of the wall clock.
	Today time.Time `json:"today"`

	// DaysSinceLastMessage counts weekdays since the last message of any kind.
	DaysSinceLastMessage int `json:"days_since_last_message"`

	// DaysSinceLastActivity counts calendar days since the last exam or homework attempt.
	DaysSinceLastActivity int `json:"days_since_last_activity"`

	MetPrerequisite bool `json:"met_prerequisite"`
	Started         bool `json:"started"`
	Blocked         bool `json:"blocked"`

	// LastTryAvailable is set when the final due date has passed but a
	// last-try attempt remains.
	LastTryAvailable bool `json:"last_try_available"`

	// PlacementAttemptsRemaining is resolved by the caller before evaluation.
	PlacementAttemptsRemaining int `json:"placement_attempts_remaining"`

	TotalScore       int `json:"total_score"`
	MaxPossibleScore int `json:"max_possible_score"`

	Items    map[Item]ItemState `json:"-"`
	Schedule Schedule           `json:"schedule"`

	Registrations []Registration `json:"registrations"`
	CurrentIndex  int            `json:"current_index"`
}

// State returns the outcome of an item; unattempted items have the zero state.
func (s Snapshot) State(item Item) ItemState {
	return s.Items[item]
}

// Passed reports whether an item has been passed.
func (s Snapshot) Passed(item Item) bool {
	return s.Items[item].Passed
}

// FailedTries returns the number of non-passing attempts on an item.
func (s Snapshot) FailedTries(item Item) int {
	return s.Items[item].FailedTries
}

// PassedOrientationExam reports whether the user's exam is passed.
func (s Snapshot) PassedOrientationExam() bool { return s.Passed(Orientation) }

// PassedSkillsReview reports whether the skills review is passed.
func (s Snapshot) PassedSkillsReview() bool { return s.Passed(SkillsReview) }

// PassedReview reports whether review exam n is passed.
func (s Snapshot) PassedReview(n int) bool { return s.Passed(ReviewExam(n)) }

// PassedUnit reports whether unit exam n is passed.
func (s Snapshot) PassedUnit(n int) bool { return s.Passed(UnitExam(n)) }

// PassedFinal reports whether the final exam is passed.
func (s Snapshot) PassedFinal() bool { return s.Passed(Final) }

// Current returns the registration being evaluated.
func (s Snapshot) Current() Registration {
	return s.Registrations[s.CurrentIndex]
}

// Pace is the number of courses the student is taking this term.
func (s Snapshot) Pace() int {
	return len(s.Registrations)
}

// IsLastCourse reports whether the current registration is the last in the term.
func (s Snapshot) IsLastCourse() bool {
	return s.CurrentIndex == len(s.Registrations)-1
}

// DaysSinceLastTry returns calendar days since the last attempt on an item,
// or -1 when the item was never attempted.
func (s Snapshot) DaysSinceLastTry(item Item) int {
	last := s.Items[item].LastTry
	if last.IsZero() {
		return -1
	}
	return timeutil.DaysBetween(last, s.Today)
}

// Validate reports precondition violations that make the snapshot unusable.
func (s Snapshot) Validate() error {
	if s.Today.IsZero() {
		return shared.ErrMissingToday
	}
	if len(s.Registrations) == 0 {
		return shared.ErrNoRegistrations
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Registrations) {
		return shared.NewPreconditionError("progress", "Validate",
			"current registration index %d out of range [0,%d)", s.CurrentIndex, len(s.Registrations))
	}
	if s.DaysSinceLastMessage < 0 || s.DaysSinceLastActivity < 0 {
		return shared.NewPreconditionError("progress", "Validate", "negative elapsed-day counter")
	}
	if s.PlacementAttemptsRemaining < 0 {
		return shared.NewPreconditionError("progress", "Validate", "negative placement attempts")
	}
	for it, st := range s.Items {
		if st.FailedTries < 0 {
			return shared.NewPreconditionError("progress", "Validate", "negative failed tries on %s", it.Tag())
		}
	}
	return s.Schedule.Validate()
}
