package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// termStart is a Monday.
var termStart = timeutil.Date(2024, time.August, 26)

// testSchedule spaces curriculum due dates two days apart.
func testSchedule() Schedule {
	due := make(map[Item]time.Time)
	for i, it := range CurriculumItems() {
		due[it] = timeutil.AddDays(termStart, 2*i)
	}
	fin := due[Final]
	return Schedule{Due: due, Last: timeutil.AddDays(fin, 3), LastTryCount: DefaultLastTryCount}
}

func testRecords(today time.Time) Records {
	return Records{
		StudentID: "830000001",
		Today:     today,
		Registrations: []Registration{
			{Course: CourseM117, Section: "001", OpenStatus: OpenStatusOpen, PaceOrder: 1},
		},
		Schedule:        testSchedule(),
		MetPrerequisite: true,
	}
}

func TestBuild_RequiresRegistrations(t *testing.T) {
	r := testRecords(termStart)
	r.Registrations = nil

	_, err := Build(r)
	require.Error(t, err)
	assert.True(t, shared.IsPrecondition(err))
	assert.ErrorIs(t, err, shared.ErrNoRegistrations)
}

func TestBuild_CurrentIndexOutOfRange(t *testing.T) {
	r := testRecords(termStart)
	r.CurrentIndex = 3

	_, err := Build(r)
	assert.True(t, shared.IsPrecondition(err))
}

func TestBuild_ScoresAndAttempts(t *testing.T) {
	sched := testSchedule()
	re1Due := sched.MustDue(ReviewExam(1))
	re2Due := sched.MustDue(ReviewExam(2))
	today := timeutil.AddDays(re2Due, 5)

	r := testRecords(today)
	r.Exams = []ExamRecord{
		{Type: ExamTypeOrientation, Passed: AttemptFailed, TakenOn: termStart},
		{Type: ExamTypeOrientation, Passed: AttemptPassed, TakenOn: timeutil.AddDays(termStart, 1)},
		{Course: CourseM117, Type: ExamTypeReview, Unit: 0, Passed: AttemptPassed, TakenOn: timeutil.AddDays(termStart, 2)},
		// RE1 on time earns the bonus; RE2 late does not.
		{Course: CourseM117, Type: ExamTypeReview, Unit: 1, Passed: AttemptFailed, TakenOn: re1Due},
		{Course: CourseM117, Type: ExamTypeReview, Unit: 1, Passed: AttemptPassed, TakenOn: re1Due},
		{Course: CourseM117, Type: ExamTypeReview, Unit: 2, Passed: AttemptPassed, TakenOn: timeutil.AddDays(re2Due, 1)},
		{Course: CourseM117, Type: ExamTypeUnit, Unit: 1, Passed: AttemptPassed, Score: 8, TakenOn: re2Due},
		{Course: CourseM117, Type: ExamTypeUnit, Unit: 1, Passed: AttemptPassed, Score: 10, TakenOn: re2Due},
		{Course: CourseM117, Type: ExamTypeUnit, Unit: 2, Passed: AttemptVoided, Score: 10, TakenOn: re2Due},
		// Other courses are ignored.
		{Course: CourseM118, Type: ExamTypeUnit, Unit: 3, Passed: AttemptPassed, Score: 10, TakenOn: re2Due},
	}
	r.Homework = []HomeworkRecord{
		{Course: CourseM117, Unit: 1, Objective: 1, Passed: AttemptFailed, TakenOn: termStart},
		{Course: CourseM117, Unit: 1, Objective: 1, Passed: AttemptPassed, TakenOn: timeutil.AddDays(termStart, 3)},
	}

	s, err := Build(r)
	require.NoError(t, err)

	assert.True(t, s.PassedOrientationExam())
	assert.Equal(t, 1, s.FailedTries(Orientation))
	assert.True(t, s.PassedSkillsReview())
	assert.True(t, s.PassedReview(1))
	assert.Equal(t, 1, s.FailedTries(ReviewExam(1)))
	assert.True(t, s.PassedReview(2))
	assert.True(t, s.PassedUnit(1))
	assert.False(t, s.PassedUnit(2))
	assert.False(t, s.PassedUnit(3))
	assert.True(t, s.Passed(Homework(1, 1)))
	assert.Equal(t, 1, s.FailedTries(Homework(1, 1)))

	assert.Equal(t, ReviewOnTimeBonus+10, s.TotalScore)
	assert.Equal(t, ReviewOnTimeBonus+ExamPointsAvailable, s.MaxPossibleScore)
	assert.Equal(t, 4, s.DaysSinceLastActivity)
	assert.Equal(t, NeverMessaged, s.DaysSinceLastMessage)
	assert.True(t, s.Started)
	assert.False(t, s.Blocked)
}

func TestBuild_LicensedCountsAsOrientation(t *testing.T) {
	r := testRecords(termStart)
	r.Licensed = true

	s, err := Build(r)
	require.NoError(t, err)
	assert.True(t, s.PassedOrientationExam())
	assert.Equal(t, NeverMessaged, s.DaysSinceLastActivity)
}

func TestBuild_DaysSinceLastMessageCountsWeekdays(t *testing.T) {
	// Friday to the following Wednesday is three weekdays.
	fri := timeutil.Date(2024, time.September, 6)
	r := testRecords(timeutil.Date(2024, time.September, 11))
	r.LastMessageOn = fri

	s, err := Build(r)
	require.NoError(t, err)
	assert.Equal(t, 3, s.DaysSinceLastMessage)
}

func TestBuild_FinalWindow(t *testing.T) {
	sched := testSchedule()
	fin := sched.FinalDue()

	tests := []struct {
		name        string
		today       time.Time
		finalTries  []time.Time
		wantLastTry bool
		wantBlocked bool
	}{
		{name: "before final due", today: fin},
		{name: "after final, last try unused", today: timeutil.AddDays(fin, 1), wantLastTry: true},
		{
			name:        "after final, last try used",
			today:       timeutil.AddDays(fin, 2),
			finalTries:  []time.Time{timeutil.AddDays(fin, 1)},
			wantBlocked: true,
		},
		{
			name:        "failed before the due date does not use the last try",
			today:       timeutil.AddDays(fin, 2),
			finalTries:  []time.Time{fin},
			wantLastTry: true,
		},
		{name: "after last-try deadline", today: timeutil.AddDays(sched.Last, 1), wantBlocked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRecords(tt.today)
			for _, d := range tt.finalTries {
				r.Exams = append(r.Exams, ExamRecord{
					Course: CourseM117, Type: ExamTypeFinal, Unit: 5, Passed: AttemptFailed, TakenOn: d,
				})
			}

			s, err := Build(r)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLastTry, s.LastTryAvailable)
			assert.Equal(t, tt.wantBlocked, s.Blocked)
		})
	}
}

func TestBuild_PassedFinalIsNeverBlocked(t *testing.T) {
	sched := testSchedule()
	r := testRecords(timeutil.AddDays(sched.Last, 10))
	r.Exams = []ExamRecord{
		{Course: CourseM117, Type: ExamTypeFinal, Unit: 5, Passed: AttemptPassed, Score: 18, TakenOn: sched.FinalDue()},
	}

	s, err := Build(r)
	require.NoError(t, err)
	assert.False(t, s.Blocked)
	assert.True(t, s.PassedFinal())
	assert.Equal(t, 18, s.TotalScore)
}

func TestSchedule_Validate(t *testing.T) {
	assert.NoError(t, testSchedule().Validate())

	missing := testSchedule()
	delete(missing.Due, Homework(2, 3))
	assert.True(t, shared.IsPrecondition(missing.Validate()))

	outOfOrder := testSchedule()
	outOfOrder.Due[ReviewExam(2)] = termStart
	err := outOfOrder.Validate()
	assert.ErrorIs(t, err, shared.ErrScheduleOutOfOrder)
	assert.True(t, shared.IsPrecondition(err))

	lastEarly := testSchedule()
	lastEarly.Last = termStart
	assert.ErrorIs(t, lastEarly.Validate(), shared.ErrScheduleOutOfOrder)

	assert.ErrorIs(t, Schedule{}.Validate(), shared.ErrMissingSchedule)
}

func TestSnapshot_Validate(t *testing.T) {
	s, err := Build(testRecords(termStart))
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	noToday := s
	noToday.Today = time.Time{}
	assert.ErrorIs(t, noToday.Validate(), shared.ErrMissingToday)

	negative := s
	negative.PlacementAttemptsRemaining = -1
	assert.True(t, shared.IsPrecondition(negative.Validate()))
}

func TestGradeScale(t *testing.T) {
	g := DefaultGradeScale()

	assert.Equal(t, GradeU, g.GradeFor(53))
	assert.Equal(t, GradeC, g.GradeFor(54))
	assert.Equal(t, GradeC, g.GradeFor(61))
	assert.Equal(t, GradeB, g.GradeFor(62))
	assert.Equal(t, GradeA, g.GradeFor(65))

	assert.True(t, g.Reachable(GradeB, 62))
	assert.False(t, g.Reachable(GradeB, 60))
	assert.False(t, g.Reachable(GradeA, 64))
}

func TestItemTags(t *testing.T) {
	items := CurriculumItems()
	require.Len(t, items, 2+Units*(ObjectivesPerUnit+2)+1)

	assert.Equal(t, "USERS", items[0].Tag())
	assert.Equal(t, "SR", items[1].Tag())
	assert.Equal(t, "HW11", items[2].Tag())
	assert.Equal(t, "RE1", items[7].Tag())
	assert.Equal(t, "UE1", items[8].Tag())
	assert.Equal(t, "FIN", items[len(items)-1].Tag())

	for _, it := range items {
		parsed, err := ParseItemTag(it.Tag())
		require.NoError(t, err)
		assert.Equal(t, it, parsed)
	}

	_, err := ParseItemTag("HW99")
	assert.Error(t, err)
}

func TestRegistration(t *testing.T) {
	assert.Equal(t, ModalityInPerson, Registration{Section: "001"}.Modality())
	assert.Equal(t, ModalityRemote, Registration{Section: "801"}.Modality())
	assert.True(t, Registration{OpenStatus: OpenStatusCompleted}.Started())
	assert.False(t, Registration{}.Started())
	assert.Equal(t, "M125", CourseM125.Short())
	assert.False(t, CourseID("M 160").IsKnown())
}
