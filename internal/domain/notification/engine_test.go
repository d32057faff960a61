package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

func evaluate(t *testing.T, s progress.Snapshot, h *HistoryIndex) Decision {
	t.Helper()
	d, err := newTestEngine().Evaluate(s, h)
	require.NoError(t, err)
	return d
}

// requireSent asserts a descriptor with the given code was produced.
func requireSent(t *testing.T, d Decision, code Code) *MessageDescriptor {
	t.Helper()
	require.True(t, d.Sent(), "decision %s/%s", d.Outcome, d.Reason)
	require.Equal(t, code, d.Descriptor.MessageCode)
	require.NoError(t, d.Descriptor.Validate())
	return d.Descriptor
}

func TestNewEngine_RejectsInvalidCadence(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Cadence.HighMax = 1

	_, err := NewEngine(cfg)
	assert.Error(t, err)
}

func TestEngine_InvalidSnapshot(t *testing.T) {
	s := newSnapshot(termStart)
	s.Registrations = nil

	_, err := newTestEngine().Evaluate(s, history())
	assert.ErrorIs(t, err, shared.ErrNoRegistrations)
}

func TestEngine_Deterministic(t *testing.T) {
	s := newSnapshot(dueOf(progress.UnitExam(1)))
	passThrough(&s, progress.Homework(1, 3))
	h := history(ItemCode(progress.Homework(1, 4), TrackRegular, 0))

	e := newTestEngine()
	first, err := e.Evaluate(s, h)
	require.NoError(t, err)
	second, err := e.Evaluate(s, h)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	requireSent(t, first, ItemCode(progress.Homework(1, 4), TrackRegular, 1))
}

// ══════════════════════════════════════════════════════════════════════════════
// WELCOME
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_WelcomeFirst(t *testing.T) {
	s := newSnapshot(termStart)
	s.DaysSinceLastMessage = 0
	s.Blocked = true

	for _, h := range []*HistoryIndex{nil, EmptyHistory(), NewHistoryIndex([]HistoryEntry{{Code: BLOKwd00, SentDate: termStart}})} {
		d := evaluate(t, s, h)
		assert.Equal(t, StateAwaitingWelcome, d.State)
		assert.Equal(t, ReasonWelcome, d.Reason)
		desc := requireSent(t, d, WELCus00)
		assert.Equal(t, "WELCOME", desc.MilestoneTag)
		assert.Equal(t, "Welcome to MATH 117", desc.SubjectLine)
	}
}

func TestWelcomeCode(t *testing.T) {
	before := termStart
	after := timeutil.AddDays(dueOf(progress.ReviewExam(1)), 1)

	tests := []struct {
		name  string
		today time.Time
		setup func(s *progress.Snapshot)
		want  Code
	}{
		{name: "prerequisite missing", today: before, setup: func(s *progress.Snapshot) { s.MetPrerequisite = false }, want: WELCpr00},
		{name: "not started", today: before, setup: func(s *progress.Snapshot) { s.Started = false }, want: WELCst00},
		{name: "not started after first review", today: after, setup: func(s *progress.Snapshot) { s.Started = false }, want: WELCst01},
		{name: "orientation untried", today: before, setup: func(*progress.Snapshot) {}, want: WELCus00},
		{name: "orientation untried late", today: after, setup: func(*progress.Snapshot) {}, want: WELCus01},
		{
			name:  "orientation tried",
			today: before,
			setup: func(s *progress.Snapshot) { setTries(s, progress.Orientation, 2, time.Time{}) },
			want:  WELCus02,
		},
		{
			name:  "orientation many tries late",
			today: after,
			setup: func(s *progress.Snapshot) { setTries(s, progress.Orientation, 5, time.Time{}) },
			want:  WELCus05,
		},
		{name: "skills review untried", today: before, setup: func(s *progress.Snapshot) { passThrough(s, progress.Orientation) }, want: WELCsr00},
		{
			name:  "skills review tried late",
			today: after,
			setup: func(s *progress.Snapshot) {
				passThrough(s, progress.Orientation)
				setTries(s, progress.SkillsReview, 3, time.Time{})
			},
			want: WELCsr03,
		},
		{
			name:  "skills review many tries",
			today: before,
			setup: func(s *progress.Snapshot) {
				passThrough(s, progress.Orientation)
				setTries(s, progress.SkillsReview, 4, time.Time{})
			},
			want: WELCsr04,
		},
		{name: "ready", today: after, setup: func(s *progress.Snapshot) { passThrough(s, progress.SkillsReview) }, want: WELCok00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSnapshot(tt.today)
			tt.setup(&s)
			assert.Equal(t, tt.want, welcomeCode(s))
		})
	}
}

func TestWelcomeCode_Exhaustive(t *testing.T) {
	dates := []time.Time{termStart, timeutil.AddDays(dueOf(progress.ReviewExam(1)), 1)}
	tries := []int{0, 1, 3, 4, 9}

	for _, prereq := range []bool{true, false} {
		for _, started := range []bool{true, false} {
			for _, today := range dates {
				for _, usersTries := range tries {
					for _, srTries := range tries {
						for _, usersPassed := range []bool{true, false} {
							s := newSnapshot(today)
							s.MetPrerequisite = prereq
							s.Started = started
							setTries(&s, progress.Orientation, usersTries, time.Time{})
							setTries(&s, progress.SkillsReview, srTries, time.Time{})
							if usersPassed {
								passThrough(&s, progress.Orientation)
							}

							desc := selectWelcome(s, Urgency{})
							require.NotNil(t, desc)
							assert.True(t, FamilyWelcome.Contains(desc.MessageCode), desc.MessageCode)
							assert.NoError(t, desc.Validate())
						}
					}
				}
			}
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BLOCKED
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_BlockedNoticeOnce(t *testing.T) {
	s := newSnapshot(timeutil.AddDays(testSchedule().Last, 1))
	passThrough(&s, progress.UnitExam(4))
	s.Blocked = true

	d := evaluate(t, s, history())
	assert.Equal(t, StateBlocked, d.State)
	assert.Equal(t, ReasonBlockedNotice, d.Reason)
	desc := requireSent(t, d, BLOKwd00)
	assert.Equal(t, "BLOCKED", desc.MilestoneTag)
	assert.Contains(t, desc.BodyText, "Incomplete")

	for _, days := range []int{0, 1, 20} {
		s.DaysSinceLastMessage = days
		d = evaluate(t, s, history(BLOKwd00))
		assert.Equal(t, StateBlocked, d.State)
		assert.Equal(t, OutcomeSuppressed, d.Outcome)
		assert.Equal(t, ReasonBlockedAlready, d.Reason)
		assert.Nil(t, d.Descriptor)
	}
}

func TestSelectBlocked_Content(t *testing.T) {
	s := newSnapshot(timeutil.AddDays(testSchedule().Last, 1))
	s.Blocked = true
	s.Registrations[0].Section = "801"

	body := selectBlocked(s, Urgency{}).BodyText
	assert.NotContains(t, body, "Incomplete")
	assert.Contains(t, body, "register for MATH 117 again")
	assert.Contains(t, body, "reply to this message")

	s.Registrations = append(s.Registrations, progress.Registration{Course: progress.CourseM118, Section: "001", PaceOrder: 2})
	body = selectBlocked(s, Urgency{}).BodyText
	assert.Contains(t, body, "second course is still open")
}

// ══════════════════════════════════════════════════════════════════════════════
// CADENCE
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_CriticalStudentContactedTwoDaysAgo(t *testing.T) {
	s := newSnapshot(dueOf(progress.UnitExam(1)))
	s.DaysSinceLastMessage = 2

	d := evaluate(t, s, history())
	assert.Equal(t, StateNormalFlow, d.State)
	assert.Equal(t, OutcomeSuppressed, d.Outcome)
	assert.Equal(t, ReasonIntervalNotMet, d.Reason)
	assert.Equal(t, Urgency{Score: 12, Tier: TierCritical}, d.Urgency)
	assert.Nil(t, d.Descriptor)

	s.DaysSinceLastMessage = 4
	d = evaluate(t, s, history())
	desc := requireSent(t, d, ItemCode(progress.Orientation, TrackRegular, 0))
	assert.Equal(t, 12, desc.Urgency)
}

// ══════════════════════════════════════════════════════════════════════════════
// PREREQUISITE AND START
// ══════════════════════════════════════════════════════════════════════════════

func prereqSnapshot(placement int) progress.Snapshot {
	s := newSnapshot(termStart)
	s.MetPrerequisite = false
	s.DaysSinceLastMessage = 5
	s.PlacementAttemptsRemaining = placement
	return s
}

func TestEngine_PrerequisiteReminder(t *testing.T) {
	d := evaluate(t, prereqSnapshot(2), history())
	assert.Equal(t, "PREREQ", d.CheckpointTag())
	desc := requireSent(t, d, PREQpr00)
	assert.Equal(t, "Prerequisites for MATH 117", desc.SubjectLine)
	assert.Contains(t, desc.BodyText, "two Math Placement attempts")

	requireSent(t, evaluate(t, prereqSnapshot(1), history()), PREQpr03)
	requireSent(t, evaluate(t, prereqSnapshot(0), history()), PREQpr06)
}

func TestPrereqCode_Escalation(t *testing.T) {
	tests := []struct {
		name      string
		placement int
		days      int
		sent      []Code
		want      Code
	}{
		{name: "stage two after any stage one variant", placement: 2, days: 5, sent: []Code{PREQpr03}, want: PREQpr01},
		{name: "stage three", placement: 0, days: 5, sent: []Code{PREQpr00, PREQpr04}, want: PREQpr08},
		{name: "exhausted, too soon for follow-up", placement: 2, days: 5, sent: []Code{PREQpr00, PREQpr01, PREQpr02}},
		{name: "follow-up", placement: 2, days: 11, sent: []Code{PREQpr00, PREQpr01, PREQpr02}, want: PREQpr09},
		{name: "second follow-up", placement: 1, days: 11, sent: []Code{PREQpr03, PREQpr04, PREQpr05, PREQpr09}, want: PREQpr10},
		{name: "messaged recently", placement: 2, days: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := prereqSnapshot(tt.placement)
			s.DaysSinceLastMessage = tt.days

			code, ok := prereqCode(s, history(tt.sent...))
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestEngine_PrerequisiteRemindersExhausted(t *testing.T) {
	d := evaluate(t, prereqSnapshot(2), history(PREQpr00, PREQpr01, PREQpr02))
	assert.Equal(t, OutcomeSuppressed, d.Outcome)
	assert.Equal(t, ReasonNoVariant, d.Reason)
	assert.Equal(t, "PREREQ", d.CheckpointTag())
}

func TestEngine_StartReminders(t *testing.T) {
	s := newSnapshot(termStart)
	s.Started = false

	sent := []Code{}
	for _, want := range []Code{STRTst00, STRTst01, STRTst02, STRTst03} {
		d := evaluate(t, s, history(sent...))
		assert.Equal(t, "START", d.CheckpointTag())
		requireSent(t, d, want)
		sent = append(sent, want)
	}
	assert.Equal(t, ReasonNoVariant, evaluate(t, s, history(sent...)).Reason)

	s.DaysSinceLastActivity = 3
	assert.Equal(t, ReasonNoVariant, evaluate(t, s, history()).Reason)
}

// ══════════════════════════════════════════════════════════════════════════════
// ITEM REMINDERS
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_HomeworkLadder(t *testing.T) {
	hw := progress.Homework(2, 3)
	s := newSnapshot(dueOf(hw))
	passThrough(&s, progress.Homework(2, 2))

	sent := []Code{}
	for _, stage := range []int{0, 1, 2, 3, StuckStage} {
		want := ItemCode(hw, TrackRegular, stage)
		d := evaluate(t, s, history(sent...))
		assert.Equal(t, "HW23", d.CheckpointTag())
		assert.Equal(t, TierLow, d.Urgency.Tier)
		desc := requireSent(t, d, want)
		assert.Equal(t, "HW23", desc.MilestoneTag)
		sent = append(sent, want)
	}

	d := evaluate(t, s, history(sent...))
	assert.Equal(t, OutcomeSuppressed, d.Outcome)
	assert.Equal(t, ReasonNoVariant, d.Reason)
}

func TestEngine_RecentActivitySuppressesReminder(t *testing.T) {
	hw := progress.Homework(2, 3)
	s := newSnapshot(dueOf(hw))
	passThrough(&s, progress.Homework(2, 2))
	s.DaysSinceLastActivity = activityGap

	d := evaluate(t, s, history())
	assert.Equal(t, ReasonNoVariant, d.Reason)
	assert.Equal(t, "HW23", d.CheckpointTag())
}

func TestGatedLadder_FailedTries(t *testing.T) {
	hw := progress.Homework(2, 3)
	r := func(n int) Code { return ItemCode(hw, TrackRegular, n) }
	x := func(n int) Code { return ItemCode(hw, TrackRepeated, n) }

	tests := []struct {
		name        string
		tries       int
		lastTryDays int
		sent        []Code
		want        Code
	}{
		{name: "few tries", tries: 2, lastTryDays: 5, want: r(4)},
		{name: "few tries after untried reminder", tries: 2, lastTryDays: 5, sent: []Code{r(0)}, want: r(5)},
		{name: "few tries, tried yesterday", tries: 2, lastTryDays: 1},
		{name: "few tries, ladder done", tries: 1, lastTryDays: 5, sent: []Code{r(4), r(1), r(6), r(7)}, want: r(StuckStage)},
		{name: "many tries", tries: 5, lastTryDays: 5, want: x(0)},
		{name: "many tries, tried recently", tries: 5, lastTryDays: 1, sent: []Code{x(0)}, want: x(2)},
		{name: "many tries, not recently", tries: 5, lastTryDays: 5, sent: []Code{x(0)}, want: x(1)},
		{name: "many tries, third stage", tries: 6, lastTryDays: 5, sent: []Code{r(4), x(2)}, want: x(3)},
		{name: "many tries, closed by regular track", tries: 6, lastTryDays: 5, sent: []Code{r(0), r(1), r(3)}, want: r(StuckStage)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSnapshot(dueOf(hw))
			passThrough(&s, progress.Homework(2, 2))
			setTries(&s, hw, tt.tries, timeutil.AddDays(s.Today, -tt.lastTryDays))

			d := evaluate(t, s, history(tt.sent...))
			if tt.want == "" {
				assert.Equal(t, ReasonNoVariant, d.Reason)
				return
			}
			requireSent(t, d, tt.want)
		})
	}
}

func TestEngine_OrientationHasNoStuckNotice(t *testing.T) {
	s := newSnapshot(termStart)
	users := func(n int) Code { return ItemCode(progress.Orientation, TrackRegular, n) }
	sent := []Code{users(0), users(1), users(2)}

	requireSent(t, evaluate(t, s, history(sent...)), users(3))
	d := evaluate(t, s, history(append(sent, users(3))...))
	assert.Equal(t, ReasonNoVariant, d.Reason)
	assert.Equal(t, "USERS", d.CheckpointTag())
}

func TestEngine_ReviewReminderMentionsBonus(t *testing.T) {
	re := progress.ReviewExam(1)
	s := newSnapshot(dueOf(re))
	passThrough(&s, progress.Homework(1, 5))

	desc := requireSent(t, evaluate(t, s, history()), ItemCode(re, TrackRegular, 0))
	assert.Equal(t, "Reminder: Unit 1 Review Exam", desc.SubjectLine)
	assert.Contains(t, desc.BodyText, "bonus points")
	assert.Contains(t, desc.BodyText, "is due today")
}

// ══════════════════════════════════════════════════════════════════════════════
// FINAL EXAM
// ══════════════════════════════════════════════════════════════════════════════

func finalSnapshot(tries int) progress.Snapshot {
	s := newSnapshot(timeutil.AddDays(dueOf(progress.Final), -2))
	passThrough(&s, progress.UnitExam(4))
	setTries(&s, progress.Final, tries, timeutil.AddDays(s.Today, -5))
	return s
}

func TestFinalLadder(t *testing.T) {
	tests := []struct {
		name     string
		tries    int
		activity int
		sent     []Code
		want     Code
	}{
		{name: "untried", want: FINRfe00},
		{name: "untried, second reminder", sent: []Code{FINRfe00}, want: FINRfe01},
		{name: "untried, recently active", activity: 2, sent: []Code{FINRfe00}, want: FINRfe02},
		{name: "few tries", tries: 2, want: FINRfe04},
		{name: "few tries after untried reminder", tries: 2, sent: []Code{FINRfe00}, want: FINRfe05},
		{name: "many tries", tries: 5, want: FINXfe00},
		{name: "many tries, earlier stages closed", tries: 5, sent: []Code{FINRfe00, FINRfe05}, want: FINXfe02},
		{name: "ladder done", tries: 1, sent: []Code{FINRfe04, FINRfe05, FINRfe06}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := finalSnapshot(tt.tries)
			if tt.activity > 0 {
				s.DaysSinceLastActivity = tt.activity
			}

			d := evaluate(t, s, history(tt.sent...))
			assert.Equal(t, "FIN", d.CheckpointTag())
			assert.Equal(t, TierMedium, d.Urgency.Tier)
			if tt.want == "" {
				assert.Equal(t, ReasonNoVariant, d.Reason)
				return
			}
			requireSent(t, d, tt.want)
		})
	}
}

func TestEngine_LastTry(t *testing.T) {
	fin := dueOf(progress.Final)
	s := newSnapshot(timeutil.AddDays(fin, 1))
	passThrough(&s, progress.UnitExam(4))
	s.LastTryAvailable = true

	desc := requireSent(t, evaluate(t, s, history()), LASTfe00)
	assert.Equal(t, "FIN", desc.MilestoneTag)
	assert.Equal(t, "Last day to pass the MATH 117 Final Exam", desc.SubjectLine)
	assert.Equal(t, ReasonNoVariant, evaluate(t, s, history(LASTfe00)).Reason)

	setTries(&s, progress.Final, 1, fin)
	requireSent(t, evaluate(t, s, history()), LASTfe01)
	assert.Equal(t, ReasonNoVariant, evaluate(t, s, history(LASTfe00)).Reason)

	s.LastTryAvailable = false
	assert.Equal(t, ReasonNoVariant, evaluate(t, s, history()).Reason)
}

// ══════════════════════════════════════════════════════════════════════════════
// ON TIME
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_OnTimeEncouragement(t *testing.T) {
	s := newSnapshot(timeutil.AddDays(termStart, 3))
	passThrough(&s, progress.SkillsReview)

	d := evaluate(t, s, history())
	assert.Equal(t, TierOnTime, d.Urgency.Tier)
	desc := requireSent(t, d, RE1Rok00)
	assert.Equal(t, "RE1", desc.MilestoneTag)
	assert.Equal(t, "Great progress in MATH 117", desc.SubjectLine)

	d = evaluate(t, s, history(RE1Rok00))
	assert.Equal(t, ReasonNoVariant, d.Reason)
}

func TestEngine_OnTimeDueSoon(t *testing.T) {
	s := newSnapshot(timeutil.Date(2024, time.September, 6))
	passThrough(&s, progress.Homework(1, 5))

	desc := requireSent(t, evaluate(t, s, history()), RE1Rok01)
	assert.Contains(t, desc.BodyText, "is due Monday")

	// Later and Soon share a guard.
	assert.Equal(t, ReasonNoVariant, evaluate(t, s, history(RE1Rok00)).Reason)
}

func TestEngine_OnTimeDisabled(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Selector.OnTime = false
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	s := newSnapshot(timeutil.AddDays(termStart, 3))
	passThrough(&s, progress.SkillsReview)

	d, err := e.Evaluate(s, history())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, d.Outcome)
	assert.Equal(t, ReasonNoVariant, d.Reason)
}

func TestOnTimeCode_PerfectScoreOnly(t *testing.T) {
	ue3 := progress.UnitExam(3)
	s := newSnapshot(dueOf(ue3))
	passThrough(&s, ue3)

	st := s.Items[ue3]
	st.Score = 8
	s.Items[ue3] = st
	_, _, ok := onTimeCode(s, history())
	assert.False(t, ok)

	st.Score = unitExamMax
	s.Items[ue3] = st
	code, next, ok := onTimeCode(s, history())
	require.True(t, ok)
	assert.Equal(t, RE4Rok00, code)
	assert.Equal(t, progress.ReviewExam(4), next)

	desc := requireSent(t, evaluate(t, s, history()), RE4Rok00)
	assert.Contains(t, desc.BodyText, "perfect score")
}

func TestOnTimeCode_FinalAhead(t *testing.T) {
	fin := dueOf(progress.Final)
	s := newSnapshot(timeutil.AddDays(fin, -1))
	passThrough(&s, progress.UnitExam(4))

	code, next, ok := onTimeCode(s, history())
	require.True(t, ok)
	assert.Equal(t, FINRok01, code)
	assert.Equal(t, progress.Final, next)

	_, _, ok = onTimeCode(s, history(FINRok01))
	assert.False(t, ok)
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE
// ══════════════════════════════════════════════════════════════════════════════

func gradeSnapshot(total, maxPossible int) progress.Snapshot {
	s := newSnapshot(timeutil.AddDays(dueOf(progress.Final), 1))
	passThrough(&s, progress.Final)
	s.TotalScore = total
	s.MaxPossibleScore = maxPossible
	return s
}

func TestEngine_GradeCFinished(t *testing.T) {
	s := gradeSnapshot(58, 60)

	d := evaluate(t, s, history())
	assert.Equal(t, "GRADE", d.CheckpointTag())
	desc := requireSent(t, d, GRDCok02)
	assert.Equal(t, "GRADE", desc.MilestoneTag)
	assert.Contains(t, desc.BodyText, "gives you a C for the course")

	d = evaluate(t, s, history(GRDCok02))
	assert.Equal(t, StateTerminal, d.State)
	assert.Equal(t, OutcomeSuppressed, d.Outcome)
	assert.Equal(t, ReasonNothingToResolve, d.Reason)
	assert.Empty(t, d.CheckpointTag())
}

func TestEngine_GradeCCanImprove(t *testing.T) {
	desc := requireSent(t, evaluate(t, gradeSnapshot(58, 64), history()), GRDCok01)
	assert.Contains(t, desc.BodyText, "You can still improve to a B")

	requireSent(t, evaluate(t, gradeSnapshot(58, 70), history()), GRDCok00)
}

func TestGradeLadder(t *testing.T) {
	tests := []struct {
		name  string
		total int
		max   int
		sent  []Code
		want  Code
	}{
		{name: "below passing", total: 50, max: 63, want: PNTSrt00},
		{name: "below passing, second reminder", total: 50, max: 63, sent: []Code{PNTSrt00}, want: PNTSrt99},
		{name: "below passing, done", total: 50, max: 63, sent: []Code{PNTSrt00, PNTSrt99}},
		{name: "C is final after any C message", total: 56, max: 60, sent: []Code{GRDCok00}},
		{name: "improved to B", total: 62, max: 63, sent: []Code{GRDCok00}, want: GRDBok01},
		{name: "B with A in reach", total: 63, max: 66, want: GRDBok00},
		{name: "A", total: 65, max: 66, sent: []Code{GRDBok00}, want: GRDAok00},
		{name: "A already sent", total: 66, max: 66, sent: []Code{GRDAok00}},
	}

	g := progress.DefaultGradeScale()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := gradeLadder(gradeSnapshot(tt.total, tt.max), g).Next(history(tt.sent...))
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestSelectGrade_ImprovedSubject(t *testing.T) {
	sel := NewSelector(progress.DefaultGradeScale(), DefaultSelectorOptions())
	cp := Checkpoint{Kind: CheckpointGrade}

	d, ok := sel.Select(cp, gradeSnapshot(65, 66), Urgency{}, history(GRDCok00))
	require.True(t, ok)
	assert.Equal(t, "Grade improved to A", d.SubjectLine)

	d, ok = sel.Select(cp, gradeSnapshot(65, 66), Urgency{}, history())
	require.True(t, ok)
	assert.Equal(t, "MATH 117 passed with an A", d.SubjectLine)

	off := NewSelector(progress.DefaultGradeScale(), SelectorOptions{OnTime: true})
	_, ok = off.Select(cp, gradeSnapshot(65, 66), Urgency{}, history())
	assert.False(t, ok)
}
