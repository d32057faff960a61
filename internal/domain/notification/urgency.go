package notification

import (
	"fmt"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// URGENCY TIER
// ══════════════════════════════════════════════════════════════════════════════

// Tier is a messaging-cadence bucket. Tiers are ordered by severity.
type Tier int

const (
	TierOnTime Tier = iota
	TierLow
	TierMedium
	TierHigh
	TierCritical
)

// Tiers lists all tiers from least to most severe.
var Tiers = []Tier{TierOnTime, TierLow, TierMedium, TierHigh, TierCritical}

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierOnTime:
		return "ON_TIME"
	case TierLow:
		return "LOW"
	case TierMedium:
		return "MEDIUM"
	case TierHigh:
		return "HIGH"
	case TierCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier is the inverse of Tier.String.
func ParseTier(s string) (Tier, error) {
	for _, t := range Tiers {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown urgency tier %q", s)
}

// Urgency is a classified urgency score.
type Urgency struct {
	Score int  `json:"score"`
	Tier  Tier `json:"tier"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CADENCE POLICY
// ══════════════════════════════════════════════════════════════════════════════

// CadencePolicy holds the score thresholds and minimum re-contact intervals
// (in weekdays) for each tier.
type CadencePolicy struct {
	// Upper score bound (inclusive) for ON_TIME, LOW, MEDIUM and HIGH.
	// Scores above HighMax are CRITICAL.
	OnTimeMax int
	LowMax    int
	MediumMax int
	HighMax   int

	// Intervals maps each tier to its minimum weekdays between messages.
	// A message is suppressed while DaysSinceLastMessage <= interval.
	Intervals map[Tier]int

	// NearTermInterval replaces the CRITICAL interval when the final due
	// date is within NearTermWindow weekdays. Zero disables tightening.
	NearTermInterval int
	NearTermWindow   int
}

// DefaultCadencePolicy returns the standard cadence.
func DefaultCadencePolicy() CadencePolicy {
	return CadencePolicy{
		OnTimeMax: 0,
		LowMax:    2,
		MediumMax: 4,
		HighMax:   10,
		Intervals: map[Tier]int{
			TierOnTime:   7,
			TierLow:      7,
			TierMedium:   5,
			TierHigh:     3,
			TierCritical: 3,
		},
		NearTermInterval: 2,
		NearTermWindow:   5,
	}
}

// Validate checks that thresholds increase and that more severe tiers never
// wait longer than less severe ones.
func (p CadencePolicy) Validate() error {
	if !(p.OnTimeMax < p.LowMax && p.LowMax < p.MediumMax && p.MediumMax < p.HighMax) {
		return shared.NewDomainError("notification", "CadencePolicy.Validate", shared.ErrInvalidInput,
			"tier score thresholds must be strictly increasing")
	}
	prev := -1
	for i := len(Tiers) - 1; i >= 0; i-- {
		iv, ok := p.Intervals[Tiers[i]]
		if !ok || iv < 0 {
			return shared.NewDomainError("notification", "CadencePolicy.Validate", shared.ErrInvalidInput,
				"missing or negative interval for "+Tiers[i].String())
		}
		if iv < prev {
			return shared.NewDomainError("notification", "CadencePolicy.Validate", shared.ErrInvalidInput,
				"interval for "+Tiers[i].String()+" is shorter than a more severe tier")
		}
		prev = iv
	}
	if p.NearTermInterval > p.Intervals[TierCritical] {
		return shared.NewDomainError("notification", "CadencePolicy.Validate", shared.ErrInvalidInput,
			"near-term interval must not exceed the critical interval")
	}
	return nil
}

// TierFor buckets a score.
func (p CadencePolicy) TierFor(score int) Tier {
	switch {
	case score <= p.OnTimeMax:
		return TierOnTime
	case score <= p.LowMax:
		return TierLow
	case score <= p.MediumMax:
		return TierMedium
	case score <= p.HighMax:
		return TierHigh
	default:
		return TierCritical
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFIER
// ══════════════════════════════════════════════════════════════════════════════

// Point weights for overdue, unmet milestones.
const (
	prerequisitePenalty = 5
	itemPenalty         = 1
	reviewPenalty       = 3
	unitPenalty         = 2
	lowScorePenalty     = 3
)

// Classifier computes urgency from a snapshot.
type Classifier struct {
	policy CadencePolicy
	grades progress.GradeScale
}

// NewClassifier creates a classifier.
func NewClassifier(policy CadencePolicy, grades progress.GradeScale) *Classifier {
	return &Classifier{policy: policy, grades: grades}
}

// Policy returns the cadence policy in use.
func (c *Classifier) Policy() CadencePolicy {
	return c.policy
}

// Classify scores how far behind the student is and buckets the score.
func (c *Classifier) Classify(s progress.Snapshot) Urgency {
	score := c.Score(s)
	return Urgency{Score: score, Tier: c.policy.TierFor(score)}
}

// Score computes the raw urgency score.
func (c *Classifier) Score(s progress.Snapshot) int {
	score := 0
	if !s.MetPrerequisite {
		score = prerequisitePenalty
	}

	for _, it := range progress.CurriculumItems() {
		if it.Kind == progress.ItemFinal || s.Passed(it) {
			continue
		}
		due, ok := s.Schedule.DueDate(it)
		if !ok || due.After(s.Today) {
			continue
		}
		switch it.Kind {
		case progress.ItemReviewExam:
			score += reviewPenalty
		case progress.ItemUnitExam:
			score += unitPenalty
		default:
			score += itemPenalty
		}
	}

	if s.PassedFinal() {
		if s.TotalScore < c.grades.C {
			score += lowScorePenalty
		}
		return score
	}
	return score + finalPenalty(s)
}

// finalPenalty grows as the final due date approaches and passes.
func finalPenalty(s progress.Snapshot) int {
	fin := s.Schedule.FinalDue()
	if fin.IsZero() {
		return 0
	}

	switch until := timeutil.DaysBetween(s.Today, fin); {
	case until > 4:
		return 0
	case until >= 3:
		return 1
	case until == 2:
		return 3
	case until == 1:
		return 5
	case until == 0:
		return 7
	}

	last := s.Schedule.Last
	if last.IsZero() || !s.Today.After(last) {
		return 9
	}
	if timeutil.DaysBetween(last, s.Today) > 3 {
		return 5
	}
	return 9
}

// MinInterval returns the minimum weekdays between messages for a tier,
// tightened for CRITICAL students near the end of the term.
func (c *Classifier) MinInterval(u Urgency, s progress.Snapshot) int {
	iv := c.policy.Intervals[u.Tier]
	if u.Tier == TierCritical && c.nearTermEnd(s) {
		iv = c.policy.NearTermInterval
	}
	return iv
}

func (c *Classifier) nearTermEnd(s progress.Snapshot) bool {
	if c.policy.NearTermInterval <= 0 {
		return false
	}
	fin := s.Schedule.FinalDue()
	if fin.IsZero() || s.Today.After(fin) {
		return false
	}
	return timeutil.WeekdaysBetween(s.Today, fin) <= c.policy.NearTermWindow
}

// Gate reports whether the minimum re-contact interval has not yet elapsed,
// in which case no message may be sent.
func (c *Classifier) Gate(u Urgency, s progress.Snapshot) bool {
	return s.DaysSinceLastMessage <= c.MinInterval(u, s)
}
