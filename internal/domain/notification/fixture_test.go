package notification

import (
	"time"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// termStart is a Monday. Due dates are two days apart, so the final is due
// Friday 2024-10-25 and the last-try deadline is Monday 2024-10-28.
var termStart = timeutil.Date(2024, time.August, 26)

func testSchedule() progress.Schedule {
	due := make(map[progress.Item]time.Time)
	for i, it := range progress.CurriculumItems() {
		due[it] = timeutil.AddDays(termStart, 2*i)
	}
	return progress.Schedule{
		Due:          due,
		Last:         timeutil.AddDays(due[progress.Final], 3),
		LastTryCount: progress.DefaultLastTryCount,
	}
}

func dueOf(it progress.Item) time.Time {
	return testSchedule().MustDue(it)
}

// newSnapshot returns a started student with the prerequisite met, nothing
// passed, and long gaps since the last message and activity.
func newSnapshot(today time.Time) progress.Snapshot {
	return progress.Snapshot{
		StudentID:                  "830000001",
		Today:                      today,
		DaysSinceLastMessage:       20,
		DaysSinceLastActivity:      20,
		MetPrerequisite:            true,
		Started:                    true,
		PlacementAttemptsRemaining: 2,
		MaxPossibleScore:           progress.ExamPointsAvailable,
		Items:                      make(map[progress.Item]progress.ItemState),
		Schedule:                   testSchedule(),
		Registrations: []progress.Registration{
			{Course: progress.CourseM117, Section: "001", OpenStatus: progress.OpenStatusOpen, PaceOrder: 1},
		},
	}
}

// passThrough marks every item up to and including last as passed.
func passThrough(s *progress.Snapshot, last progress.Item) {
	for _, it := range progress.CurriculumItems() {
		st := s.Items[it]
		st.Passed = true
		s.Items[it] = st
		if it == last {
			return
		}
	}
}

func setTries(s *progress.Snapshot, it progress.Item, tries int, lastTry time.Time) {
	st := s.Items[it]
	st.FailedTries = tries
	st.LastTry = lastTry
	s.Items[it] = st
}

func history(codes ...Code) *HistoryIndex {
	entries := make([]HistoryEntry, 0, len(codes)+1)
	entries = append(entries, HistoryEntry{Code: WELCok00, SentDate: termStart})
	for i, c := range codes {
		entries = append(entries, HistoryEntry{Code: c, SentDate: timeutil.AddDays(termStart, i+1)})
	}
	return NewHistoryIndex(entries)
}

func newTestEngine() *Engine {
	e, err := NewEngine(DefaultEngineConfig())
	if err != nil {
		panic(err)
	}
	return e
}
