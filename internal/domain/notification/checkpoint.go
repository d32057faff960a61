package notification

import (
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECKPOINT
// ══════════════════════════════════════════════════════════════════════════════

// CheckpointKind identifies the kind of gating requirement.
type CheckpointKind int

const (
	CheckpointPrereq CheckpointKind = iota + 1
	CheckpointStart
	CheckpointOrientation
	CheckpointSkillsReview
	CheckpointHomework
	CheckpointReview
	CheckpointUnit
	CheckpointFinal
	CheckpointGrade
)

// String returns the kind name.
func (k CheckpointKind) String() string {
	switch k {
	case CheckpointPrereq:
		return "PREREQ"
	case CheckpointStart:
		return "START"
	case CheckpointOrientation:
		return "USERS"
	case CheckpointSkillsReview:
		return "SR"
	case CheckpointHomework:
		return "HOMEWORK"
	case CheckpointReview:
		return "REVIEW"
	case CheckpointUnit:
		return "UNIT"
	case CheckpointFinal:
		return "FINAL"
	case CheckpointGrade:
		return "GRADE"
	default:
		return "UNKNOWN"
	}
}

// Checkpoint is one gating requirement. Item is set for checkpoints that
// correspond to a graded curriculum item.
type Checkpoint struct {
	Kind CheckpointKind
	Item progress.Item
}

// String returns the milestone tag ("PREREQ", "START", "USERS", "HW23", "RE2", "FIN", "GRADE").
func (c Checkpoint) String() string {
	switch c.Kind {
	case CheckpointPrereq, CheckpointStart, CheckpointGrade:
		return c.Kind.String()
	default:
		return c.Item.Tag()
	}
}

// IsZero reports whether the checkpoint is unset.
func (c Checkpoint) IsZero() bool {
	return c.Kind == 0
}

func itemCheckpoint(it progress.Item) Checkpoint {
	var k CheckpointKind
	switch it.Kind {
	case progress.ItemOrientation:
		k = CheckpointOrientation
	case progress.ItemSkillsReview:
		k = CheckpointSkillsReview
	case progress.ItemHomework:
		k = CheckpointHomework
	case progress.ItemReviewExam:
		k = CheckpointReview
	case progress.ItemUnitExam:
		k = CheckpointUnit
	case progress.ItemFinal:
		k = CheckpointFinal
	}
	return Checkpoint{Kind: k, Item: it}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVER TABLE
// ══════════════════════════════════════════════════════════════════════════════

// rule pairs a checkpoint with its satisfaction predicate.
type rule struct {
	checkpoint Checkpoint
	satisfied  func(s progress.Snapshot, h *HistoryIndex) bool
}

// Resolver walks the checkpoint table in curriculum order.
type Resolver struct {
	rules []rule
}

// NewResolver builds the fixed checkpoint table. The grade checkpoint stays
// unmet while the grade ladder for the student's score still has a message
// to send.
func NewResolver(grades progress.GradeScale) *Resolver {
	rules := []rule{
		{
			checkpoint: Checkpoint{Kind: CheckpointPrereq},
			satisfied:  func(s progress.Snapshot, _ *HistoryIndex) bool { return s.MetPrerequisite },
		},
		{
			checkpoint: Checkpoint{Kind: CheckpointStart},
			satisfied:  func(s progress.Snapshot, _ *HistoryIndex) bool { return s.Started },
		},
	}

	for _, it := range progress.CurriculumItems() {
		it := it
		rules = append(rules, rule{
			checkpoint: itemCheckpoint(it),
			satisfied:  func(s progress.Snapshot, _ *HistoryIndex) bool { return s.Passed(it) },
		})
	}

	rules = append(rules, rule{
		checkpoint: Checkpoint{Kind: CheckpointGrade},
		satisfied: func(s progress.Snapshot, h *HistoryIndex) bool {
			_, pending := gradeLadder(s, grades).Next(h)
			return !pending
		},
	})

	return &Resolver{rules: rules}
}

// Resolve returns the first unmet checkpoint. It returns false when every
// checkpoint is satisfied and nothing is left to say about the grade.
func (r *Resolver) Resolve(s progress.Snapshot, h *HistoryIndex) (Checkpoint, bool) {
	for _, ru := range r.rules {
		if !ru.satisfied(s, h) {
			return ru.checkpoint, true
		}
	}
	return Checkpoint{}, false
}

// Table returns the checkpoints in evaluation order.
func (r *Resolver) Table() []Checkpoint {
	out := make([]Checkpoint, len(r.rules))
	for i, ru := range r.rules {
		out[i] = ru.checkpoint
	}
	return out
}
