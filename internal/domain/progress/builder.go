package progress

import (
	"time"

	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// Exam types as recorded by the testing center.
const (
	ExamTypeOrientation = "Q"
	ExamTypeReview      = "R"
	ExamTypeUnit        = "U"
	ExamTypeFinal       = "F"
)

// Attempt outcomes. "G" marks an attempt that was voided and must be ignored.
const (
	AttemptPassed = "Y"
	AttemptFailed = "N"
	AttemptVoided = "G"
)

// ExamRecord is one exam attempt.
type ExamRecord struct {
	Course  CourseID
	Type    string
	Unit    int
	Passed  string
	Score   int
	TakenOn time.Time
}

// HomeworkRecord is one homework attempt.
type HomeworkRecord struct {
	Course    CourseID
	Unit      int
	Objective int
	Passed    string
	TakenOn   time.Time
}

// Records is the raw material a Snapshot is built from.
type Records struct {
	StudentID     string
	Today         time.Time
	Registrations []Registration
	CurrentIndex  int
	Schedule      Schedule

	MetPrerequisite bool

	// Licensed is set once the student has passed the orientation exam in any term.
	Licensed bool

	Exams    []ExamRecord
	Homework []HomeworkRecord

	// LastMessageOn is the date of the most recent message; zero when none.
	LastMessageOn time.Time

	PlacementAttemptsRemaining int
}

// Build derives a Snapshot from raw records. It validates the result and
// returns a precondition error when the records cannot describe a student.
func Build(r Records) (Snapshot, error) {
	if len(r.Registrations) == 0 {
		return Snapshot{}, shared.ErrNoRegistrations
	}
	if r.CurrentIndex < 0 || r.CurrentIndex >= len(r.Registrations) {
		return Snapshot{}, shared.NewPreconditionError("progress", "Build",
			"current registration index %d out of range", r.CurrentIndex)
	}

	today := timeutil.Day(r.Today)
	reg := r.Registrations[r.CurrentIndex]

	s := Snapshot{
		StudentID:                  r.StudentID,
		Today:                      today,
		MetPrerequisite:            r.MetPrerequisite,
		Started:                    reg.Started(),
		PlacementAttemptsRemaining: r.PlacementAttemptsRemaining,
		Items:                      make(map[Item]ItemState, len(curriculum)),
		Schedule:                   r.Schedule,
		Registrations:              r.Registrations,
		CurrentIndex:               r.CurrentIndex,
	}

	var lastActivity time.Time
	touch := func(d time.Time) {
		if d.After(lastActivity) {
			lastActivity = d
		}
	}

	orientation := ItemState{Passed: r.Licensed}
	for _, e := range r.Exams {
		if e.Type == ExamTypeOrientation {
			// Orientation results are not tied to a course.
			if e.Passed == AttemptPassed {
				orientation.Passed = true
			} else if e.Passed == AttemptFailed {
				orientation.FailedTries++
			}
			orientation.LastTry = later(orientation.LastTry, e.TakenOn)
			touch(e.TakenOn)
			continue
		}
		if e.Course != reg.Course || e.Passed == AttemptVoided {
			continue
		}

		item, ok := examItem(e)
		if !ok {
			continue
		}
		touch(e.TakenOn)

		st := s.Items[item]
		st.LastTry = later(st.LastTry, e.TakenOn)
		if e.Passed == AttemptPassed {
			st.Passed = true
			switch item.Kind {
			case ItemReviewExam:
				if due, ok := r.Schedule.DueDate(item); ok && !timeutil.Day(e.TakenOn).After(due) {
					st.Score = ReviewOnTimeBonus
				}
			case ItemUnitExam, ItemFinal:
				if e.Score > st.Score {
					st.Score = e.Score
				}
			}
		} else {
			st.FailedTries++
		}
		s.Items[item] = st
	}
	s.Items[Orientation] = orientation

	for _, h := range r.Homework {
		if h.Course != reg.Course || h.Passed == AttemptVoided {
			continue
		}
		if h.Unit < 1 || h.Unit > Units || h.Objective < 1 || h.Objective > ObjectivesPerUnit {
			continue
		}
		touch(h.TakenOn)

		item := Homework(h.Unit, h.Objective)
		st := s.Items[item]
		st.LastTry = later(st.LastTry, h.TakenOn)
		if h.Passed == AttemptPassed {
			st.Passed = true
		} else {
			st.FailedTries++
		}
		s.Items[item] = st
	}

	s.TotalScore, s.MaxPossibleScore = scores(s.Items)
	s.LastTryAvailable, s.Blocked = finalWindow(s, r.Exams, reg.Course)

	if r.LastMessageOn.IsZero() {
		s.DaysSinceLastMessage = NeverMessaged
	} else {
		s.DaysSinceLastMessage = timeutil.WeekdaysBetween(r.LastMessageOn, today)
	}
	if lastActivity.IsZero() {
		s.DaysSinceLastActivity = NeverMessaged
	} else {
		s.DaysSinceLastActivity = max(0, timeutil.DaysBetween(lastActivity, today))
	}

	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func examItem(e ExamRecord) (Item, bool) {
	switch {
	case e.Unit == 0:
		return SkillsReview, true
	case e.Unit >= 1 && e.Unit <= Units && e.Type == ExamTypeReview:
		return ReviewExam(e.Unit), true
	case e.Unit >= 1 && e.Unit <= Units && e.Type == ExamTypeUnit:
		return UnitExam(e.Unit), true
	case e.Unit == 5 && e.Type == ExamTypeFinal:
		return Final, true
	default:
		return Item{}, false
	}
}

// scores sums review bonuses, best unit exam scores, and the final score.
func scores(items map[Item]ItemState) (total, maxPossible int) {
	bonus := 0
	for u := 1; u <= Units; u++ {
		bonus += items[ReviewExam(u)].Score
		total += items[UnitExam(u)].Score
	}
	total += bonus + items[Final].Score
	return total, bonus + ExamPointsAvailable
}

// finalWindow decides last-try availability and lockout for a student who
// has not passed the final.
func finalWindow(s Snapshot, exams []ExamRecord, course CourseID) (lastTry, blocked bool) {
	if s.PassedFinal() {
		return false, false
	}

	fin := s.Schedule.FinalDue()
	if fin.IsZero() {
		return false, false
	}

	if s.Today.After(fin) {
		after := 0
		for _, e := range exams {
			if e.Course != course || e.Passed == AttemptVoided {
				continue
			}
			if e.Type == ExamTypeFinal && e.Unit == 5 && timeutil.Day(e.TakenOn).After(fin) {
				after++
			}
		}
		lastTry = after < s.Schedule.LastTryCount
		blocked = !lastTry
	}

	if !s.Schedule.Last.IsZero() && s.Today.After(s.Schedule.Last) {
		return false, true
	}
	return lastTry, blocked
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
