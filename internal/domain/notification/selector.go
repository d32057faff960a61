package notification

import (
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
)

// variantFunc selects one message for a checkpoint, or nil when every variant
// has been sent or a sending condition is not met.
type variantFunc func(sel *Selector, cp Checkpoint, s progress.Snapshot, u Urgency, h *HistoryIndex) *MessageDescriptor

// SelectorOptions toggles optional message groups.
type SelectorOptions struct {
	// OnTime enables encouragement messages for students who are on schedule.
	OnTime bool
	// Grade enables grade-optimization messages after the final is passed.
	Grade bool
}

// DefaultSelectorOptions enables every message group.
func DefaultSelectorOptions() SelectorOptions {
	return SelectorOptions{OnTime: true, Grade: true}
}

// Selector picks the concrete message variant for a checkpoint.
type Selector struct {
	grades   progress.GradeScale
	opts     SelectorOptions
	variants map[CheckpointKind]variantFunc
}

// NewSelector creates a selector.
func NewSelector(grades progress.GradeScale, opts SelectorOptions) *Selector {
	return &Selector{
		grades: grades,
		opts:   opts,
		variants: map[CheckpointKind]variantFunc{
			CheckpointPrereq:       selectPrereq,
			CheckpointStart:        selectStart,
			CheckpointOrientation:  selectGated,
			CheckpointSkillsReview: selectGated,
			CheckpointHomework:     selectGated,
			CheckpointReview:       selectGated,
			CheckpointUnit:         selectGated,
			CheckpointFinal:        selectFinal,
			CheckpointGrade:        selectGrade,
		},
	}
}

// Select returns the message for a checkpoint. Students in the ON_TIME tier
// get encouragement keyed on their furthest progress instead of a reminder
// about the checkpoint; grade messages are chosen the same way in every tier.
func (sel *Selector) Select(cp Checkpoint, s progress.Snapshot, u Urgency, h *HistoryIndex) (*MessageDescriptor, bool) {
	var d *MessageDescriptor
	switch {
	case cp.Kind == CheckpointGrade:
		if sel.opts.Grade {
			d = selectGrade(sel, cp, s, u, h)
		}
	case u.Tier == TierOnTime:
		if sel.opts.OnTime {
			d = selectOnTime(sel, s, u, h)
		}
	default:
		if fn, ok := sel.variants[cp.Kind]; ok {
			d = fn(sel, cp, s, u, h)
		}
	}
	return d, d != nil
}

// Welcome selects the welcome variant. It always returns a descriptor.
func (sel *Selector) Welcome(s progress.Snapshot, u Urgency) *MessageDescriptor {
	return selectWelcome(s, u)
}

// Blocked selects the blocked notice unless it was already sent.
func (sel *Selector) Blocked(s progress.Snapshot, u Urgency, h *HistoryIndex) (*MessageDescriptor, bool) {
	if h.HasFamily(FamilyBlocked) {
		return nil, false
	}
	return selectBlocked(s, u), true
}
