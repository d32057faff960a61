package progress

import (
	"time"

	"github.com/alem-hub/pace-notifier/internal/domain/shared"
)

// DefaultLastTryCount is the number of final exam attempts allowed after the
// final due date and before the last-try deadline.
const DefaultLastTryCount = 1

// Schedule holds the effective due dates for one registration, after any
// per-student overrides have been applied.
type Schedule struct {
	// Due maps each curriculum item to its due date.
	Due map[Item]time.Time `json:"due"`

	// Last is the end of the last-try window for the final exam.
	Last time.Time `json:"last"`

	// LastTryCount is the number of final attempts allowed after the final due date.
	LastTryCount int `json:"last_try_count"`
}

// DueDate returns the due date for an item and whether one is set.
func (s Schedule) DueDate(item Item) (time.Time, bool) {
	d, ok := s.Due[item]
	return d, ok && !d.IsZero()
}

// MustDue returns the due date for an item, or the zero time.
func (s Schedule) MustDue(item Item) time.Time {
	return s.Due[item]
}

// FinalDue is the final exam due date.
func (s Schedule) FinalDue() time.Time {
	return s.Due[Final]
}

// Validate checks that every curriculum item has a due date and that dates
// are non-decreasing in curriculum order.
func (s Schedule) Validate() error {
	if len(s.Due) == 0 {
		return shared.ErrMissingSchedule
	}

	var prev time.Time
	var prevItem Item
	for _, it := range curriculum {
		d, ok := s.DueDate(it)
		if !ok {
			return shared.NewPreconditionError("progress", "Validate", "no due date for %s", it.Tag())
		}
		if !prev.IsZero() && d.Before(prev) {
			return shared.WrapError("progress", "Validate", shared.ErrPrecondition,
				"milestone "+it.Tag()+" is due before "+prevItem.Tag(), shared.ErrScheduleOutOfOrder)
		}
		prev, prevItem = d, it
	}

	if !s.Last.IsZero() && s.Last.Before(prev) {
		return shared.WrapError("progress", "Validate", shared.ErrPrecondition,
			"last-try deadline precedes final due date", shared.ErrScheduleOutOfOrder)
	}
	if s.LastTryCount < 0 {
		return shared.NewPreconditionError("progress", "Validate", "negative last-try count")
	}

	return nil
}
