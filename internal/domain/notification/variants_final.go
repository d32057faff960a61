package notification

import (
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// finalActivityGap gates the second untried final reminder.
const finalActivityGap = 2

// finalLadder covers the final exam on or before its due date.
func finalLadder(s progress.Snapshot) Ladder {
	switch tryBand(s.FailedTries(progress.Final)) {
	case 0:
		ladder := Ladder{Once(FINRfe00)}
		if s.DaysSinceLastActivity > finalActivityGap {
			ladder = append(ladder, Once(FINRfe01))
		}
		return append(ladder, Once(FINRfe02))
	case 1:
		return Ladder{
			{Guard: []Code{FINRfe00, FINRfe04}, Send: FINRfe04},
			{Guard: []Code{FINRfe01, FINRfe05}, Send: FINRfe05},
			{Guard: []Code{FINRfe02, FINRfe06}, Send: FINRfe06},
		}
	default:
		return Ladder{
			{Guard: []Code{FINRfe00, FINRfe04, FINXfe00}, Send: FINXfe00},
			{Guard: []Code{FINRfe01, FINRfe05, FINXfe01}, Send: FINXfe01},
			{Guard: []Code{FINRfe02, FINRfe06, FINXfe02}, Send: FINXfe02},
		}
	}
}

// lastTryLadder covers the window between the final due date and the
// last-try deadline.
func lastTryLadder(s progress.Snapshot) Ladder {
	if s.FailedTries(progress.Final) == 0 {
		return Ladder{Once(LASTfe00)}
	}
	return Ladder{{Guard: []Code{LASTfe00, LASTfe01}, Send: LASTfe01}}
}

func selectFinal(_ *Selector, cp Checkpoint, s progress.Snapshot, u Urgency, h *HistoryIndex) *MessageDescriptor {
	if s.Today.After(s.Schedule.FinalDue()) {
		return selectLastTry(s, u, h)
	}

	code, ok := finalLadder(s).Next(h)
	if !ok {
		return nil
	}

	reg := s.Current()
	crs := courseName(reg.Course)
	due := dueMention(s, progress.Final)

	body := newBody()
	switch code {
	case FINRfe00:
		body.para("You are almost there. The ", crs, " Final Exam ", due, ".")
	case FINRfe01:
		body.para("It has been a few days since your last exam. The Final Exam ", due,
			", and passing it finishes the course.")
	case FINRfe02:
		body.para("Please do not let the Final Exam slip. It ", due, " and missing it closes the course.")
	case FINRfe04, FINRfe05, FINRfe06:
		body.para("You have attempted the Final Exam but have not passed it yet. It ", due, ".")
		body.para(retryAdvice[int(code[7]-'4')%len(retryAdvice)])
	case FINXfe00, FINXfe01, FINXfe02:
		body.para("You have made several attempts at the Final Exam. Before trying again, please ",
			helpLocation(reg), " so we can go over the topics that keep coming up.")
		body.paraIf(code != FINXfe00, "The Final Exam ", due, ".")
	}
	body.close()

	return descriptor(s, cp.String(), code, u, crs+" Final Exam", body)
}

func selectLastTry(s progress.Snapshot, u Urgency, h *HistoryIndex) *MessageDescriptor {
	if !s.LastTryAvailable {
		return nil
	}
	code, ok := lastTryLadder(s).Next(h)
	if !ok {
		return nil
	}

	crs := courseName(s.Current().Course)
	last := s.Schedule.Last
	when := "today"
	if !last.Equal(s.Today) {
		when = "on " + last.Format(timeutil.FormatHumanDate)
	}

	body := newBody()
	body.para("You have not passed the Final Exam yet, but because you were eligible for it on its due date, ",
		"you have been given one more try by the end of the day ", when, ".")
	body.paraIf(code == LASTfe01, "Use the time before then to review the problems from your earlier attempts.")
	body.para("If you pass on that try, you are all finished. If not, please let me know and we will talk ",
		"about your options.")
	body.close()

	return descriptor(s, progress.Final.Tag(), code, u, "Last day to pass the "+crs+" Final Exam", body)
}
