package notification

import (
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// Prerequisite reminders escalate through three stages. Each stage has one
// variant per placement level, and a stage counts as sent once any of its
// variants was sent.
var (
	prereqStageA = []Code{PREQpr00, PREQpr03, PREQpr06}
	prereqStageB = []Code{PREQpr01, PREQpr04, PREQpr07}
	prereqStageC = []Code{PREQpr02, PREQpr05, PREQpr08}

	prereqFollowUp = Ladder{Once(PREQpr09), Once(PREQpr10), Once(PREQpr11)}
)

const (
	prereqMinGap      = 3
	prereqFollowUpGap = 10
)

// placementLevel maps remaining placement attempts to a variant column: two
// attempts left is column 0, one is column 1, none is column 2.
func placementLevel(remaining int) int {
	switch {
	case remaining >= 2:
		return 0
	case remaining == 1:
		return 1
	default:
		return 2
	}
}

func prereqCode(s progress.Snapshot, h *HistoryIndex) (Code, bool) {
	if s.DaysSinceLastMessage <= prereqMinGap {
		return "", false
	}

	level := placementLevel(s.PlacementAttemptsRemaining)
	ladder := Ladder{
		{Guard: prereqStageA, Send: prereqStageA[level]},
		{Guard: prereqStageB, Send: prereqStageB[level]},
		{Guard: prereqStageC, Send: prereqStageC[level]},
	}
	if code, ok := ladder.Next(h); ok {
		return code, true
	}

	if s.DaysSinceLastMessage <= prereqFollowUpGap {
		return "", false
	}
	return prereqFollowUp.Next(h)
}

func selectPrereq(_ *Selector, cp Checkpoint, s progress.Snapshot, u Urgency, h *HistoryIndex) *MessageDescriptor {
	code, ok := prereqCode(s, h)
	if !ok {
		return nil
	}

	// Prerequisites are checked against the first course of the term.
	first := s.Registrations[0].Course
	crs := courseName(first)
	elm := first == progress.CourseM117

	body := newBody()
	switch code {
	case PREQpr00:
		body.para("Any progress on resolving the prerequisite for ", crs, "? It looks like you still have ",
			"two Math Placement attempts that could clear it.")
	case PREQpr03:
		body.para("Any progress on resolving the prerequisite for ", crs, "? You still have one Math ",
			"Placement attempt that could clear it.")
		body.paraIf(elm, "Completing the ELM Tutorial would also satisfy the prerequisite.")
	case PREQpr06:
		body.para("Any progress on resolving the prerequisite for ", crs, "? The prerequisite can be met ",
			"with ", prerequisiteChain(first), ".")
	case PREQpr01, PREQpr04, PREQpr07:
		body.para("Just checking again whether I can help you clear the prerequisite for ", crs, ".")
		switch {
		case code == PREQpr01:
			body.para("Have you looked at the Math Placement site to see if that is a good option?")
		case elm:
			body.para("Let me know if I can help with Math Placement or the ELM Tutorial.")
		default:
			body.para("Let me know if I can help with Math Placement or transfer credit.")
		}
	case PREQpr02, PREQpr05, PREQpr08:
		body.para("Sorry to keep bothering you. Would it make sense to take ", crs, " in a future semester, ",
			"once you have had time to go through placement or transfer in coursework that meets the prerequisite?")
	case PREQpr09:
		body.para("I have not heard from you in a while about the prerequisite for ", crs, ". ",
			"If you have decided not to continue, please drop the course so it does not affect your record.")
	case PREQpr10:
		body.para("Another check-in on ", crs, ": without the prerequisite the course cannot be started. ",
			"Please let me know your plans.")
	case PREQpr11:
		body.para("This is my last reminder about the prerequisite for ", crs, ". ",
			"Contact me any time if your situation changes.")
	}

	re1 := s.Schedule.MustDue(progress.ReviewExam(1))
	body.paraIf(timeutil.AddDays(re1, -3).Before(s.Today),
		"Course due dates are moving along, and I want to make sure you get this resolved in time to succeed.")
	body.close()

	return descriptor(s, cp.String(), code, u, "Prerequisites for "+crs, body)
}

// Start reminders for students who have not opened the course.
var startLadder = Ladder{Once(STRTst00), Once(STRTst01), Once(STRTst02), Once(STRTst03)}

const startMinGap = 3

func selectStart(_ *Selector, cp Checkpoint, s progress.Snapshot, u Urgency, h *HistoryIndex) *MessageDescriptor {
	if s.DaysSinceLastActivity <= startMinGap {
		return nil
	}
	code, ok := startLadder.Next(h)
	if !ok {
		return nil
	}

	reg := s.Current()
	crs := courseName(reg.Course)
	usersDue := dueMention(s, progress.Orientation)

	body := newBody()
	switch code {
	case STRTst00:
		body.para("It looks like you have not started ", crs, " yet. The first step is the User's Exam, which ",
			usersDue, ".")
	case STRTst01:
		body.para("Checking in again: ", crs, " is still waiting for you. Once you pass the User's Exam ",
			"the rest of the course opens up.")
	case STRTst02:
		body.para("You still have not started ", crs, ", and due dates are passing. Please ", helpLocation(reg),
			" if something is keeping you from getting going.")
	case STRTst03:
		body.para("If you no longer plan to take ", crs, " this semester, please drop it before the deadline ",
			"so it does not affect your record.")
	}
	body.close()

	return descriptor(s, cp.String(), code, u, "Getting started in "+crs, body)
}
