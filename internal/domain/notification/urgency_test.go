package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

type scoreCase struct {
	name  string
	setup func() progress.Snapshot
	want  int
}

// nearFinal is a student with everything but the final passed.
func nearFinal(today time.Time) func() progress.Snapshot {
	return func() progress.Snapshot {
		s := newSnapshot(today)
		passThrough(&s, progress.UnitExam(4))
		return s
	}
}

func finalPassed(total int) func() progress.Snapshot {
	return func() progress.Snapshot {
		s := newSnapshot(timeutil.AddDays(dueOf(progress.Final), 1))
		passThrough(&s, progress.Final)
		s.TotalScore = total
		return s
	}
}

func TestClassifier_Score(t *testing.T) {
	c := NewClassifier(DefaultCadencePolicy(), progress.DefaultGradeScale())
	fin := dueOf(progress.Final)
	last := testSchedule().Last

	tests := []scoreCase{
		{
			name:  "nothing due yet",
			setup: func() progress.Snapshot { return newSnapshot(timeutil.AddDays(termStart, -1)) },
			want:  0,
		},
		{
			name: "prerequisite not met",
			setup: func() progress.Snapshot {
				s := newSnapshot(timeutil.AddDays(termStart, -1))
				s.MetPrerequisite = false
				return s
			},
			want: 5,
		},
		{
			// USERS, SR and five homeworks at one point each, RE1 at three.
			name:  "unit 1 review due",
			setup: func() progress.Snapshot { return newSnapshot(dueOf(progress.ReviewExam(1))) },
			want:  10,
		},
		{
			name:  "unit 1 exam due",
			setup: func() progress.Snapshot { return newSnapshot(dueOf(progress.UnitExam(1))) },
			want:  12,
		},
		{
			name: "passed items do not count",
			setup: func() progress.Snapshot {
				s := newSnapshot(dueOf(progress.UnitExam(1)))
				passThrough(&s, progress.ReviewExam(1))
				return s
			},
			want: 2,
		},
		{name: "final in five days", setup: nearFinal(timeutil.AddDays(fin, -5)), want: 0},
		{name: "final in four days", setup: nearFinal(timeutil.AddDays(fin, -4)), want: 1},
		{name: "final in three days", setup: nearFinal(timeutil.AddDays(fin, -3)), want: 1},
		{name: "final in two days", setup: nearFinal(timeutil.AddDays(fin, -2)), want: 3},
		{name: "final tomorrow", setup: nearFinal(timeutil.AddDays(fin, -1)), want: 5},
		{name: "final today", setup: nearFinal(fin), want: 7},
		{name: "final past due", setup: nearFinal(timeutil.AddDays(fin, 1)), want: 9},
		{name: "shortly after last try", setup: nearFinal(timeutil.AddDays(last, 3)), want: 9},
		{name: "long after last try", setup: nearFinal(timeutil.AddDays(last, 4)), want: 5},
		{name: "final passed below passing total", setup: finalPassed(50), want: 3},
		{name: "final passed with passing total", setup: finalPassed(58), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Score(tt.setup()))
		})
	}
}

func TestCadencePolicy_TierFor(t *testing.T) {
	p := DefaultCadencePolicy()

	assert.Equal(t, TierOnTime, p.TierFor(-2))
	assert.Equal(t, TierOnTime, p.TierFor(0))
	assert.Equal(t, TierLow, p.TierFor(2))
	assert.Equal(t, TierMedium, p.TierFor(3))
	assert.Equal(t, TierMedium, p.TierFor(4))
	assert.Equal(t, TierHigh, p.TierFor(5))
	assert.Equal(t, TierHigh, p.TierFor(10))
	assert.Equal(t, TierCritical, p.TierFor(11))
}

func TestCadencePolicy_SeverityNeverWaitsLonger(t *testing.T) {
	p := DefaultCadencePolicy()
	assert.NoError(t, p.Validate())

	for i := 1; i < len(Tiers); i++ {
		assert.LessOrEqual(t, p.Intervals[Tiers[i]], p.Intervals[Tiers[i-1]],
			"%s waits longer than %s", Tiers[i], Tiers[i-1])
	}

	broken := DefaultCadencePolicy()
	broken.Intervals = map[Tier]int{TierOnTime: 3, TierLow: 7, TierMedium: 5, TierHigh: 3, TierCritical: 3}
	assert.Error(t, broken.Validate())

	thresholds := DefaultCadencePolicy()
	thresholds.MediumMax = thresholds.LowMax
	assert.Error(t, thresholds.Validate())
}

func TestClassifier_Gate(t *testing.T) {
	c := NewClassifier(DefaultCadencePolicy(), progress.DefaultGradeScale())

	s := newSnapshot(dueOf(progress.UnitExam(1)))
	u := c.Classify(s)
	assert.Equal(t, Urgency{Score: 12, Tier: TierCritical}, u)
	assert.Equal(t, 3, c.MinInterval(u, s))

	for days := 0; days <= 3; days++ {
		s.DaysSinceLastMessage = days
		assert.True(t, c.Gate(u, s), "days=%d", days)
	}
	s.DaysSinceLastMessage = 4
	assert.False(t, c.Gate(u, s))
}

func TestClassifier_NearTermTightening(t *testing.T) {
	s := newSnapshot(dueOf(progress.Final))
	passThrough(&s, progress.Homework(4, 5))

	c := NewClassifier(DefaultCadencePolicy(), progress.DefaultGradeScale())
	u := c.Classify(s)
	assert.Equal(t, TierCritical, u.Tier)
	assert.Equal(t, 2, c.MinInterval(u, s))

	s.DaysSinceLastMessage = 3
	assert.False(t, c.Gate(u, s))

	off := DefaultCadencePolicy()
	off.NearTermInterval = 0
	assert.Equal(t, 3, NewClassifier(off, progress.DefaultGradeScale()).MinInterval(u, s))
}

func TestParseTier(t *testing.T) {
	for _, tier := range Tiers {
		got, err := ParseTier(tier.String())
		assert.NoError(t, err)
		assert.Equal(t, tier, got)
	}
	_, err := ParseTier("URGENT")
	assert.Error(t, err)
}
