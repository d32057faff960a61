package notification

import (
	"strconv"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
)

// gradeLadder returns the grade messages that apply to a student who passed
// the final. Earlier rows win: low points before the C, B and A bands.
func gradeLadder(s progress.Snapshot, g progress.GradeScale) Ladder {
	if !s.PassedFinal() {
		return nil
	}

	total, maxPossible := s.TotalScore, s.MaxPossibleScore
	switch g.GradeFor(total) {
	case progress.GradeU:
		return Ladder{Once(PNTSrt00), Once(PNTSrt99)}
	case progress.GradeC:
		code := GRDCok02
		switch {
		case g.Reachable(progress.GradeA, maxPossible):
			code = GRDCok00
		case g.Reachable(progress.GradeB, maxPossible):
			code = GRDCok01
		}
		return Ladder{{Guard: FamilyGradeC.Codes, Send: code}}
	case progress.GradeB:
		code := GRDBok01
		if g.Reachable(progress.GradeA, maxPossible) {
			code = GRDBok00
		}
		return Ladder{{Guard: FamilyGradeB.Codes, Send: code}}
	default:
		return Ladder{Once(GRDAok00)}
	}
}

func selectGrade(sel *Selector, cp Checkpoint, s progress.Snapshot, u Urgency, h *HistoryIndex) *MessageDescriptor {
	code, ok := gradeLadder(s, sel.grades).Next(h)
	if !ok {
		return nil
	}

	g := sel.grades
	crs := courseName(s.Current().Course)
	total := strconv.Itoa(s.TotalScore)
	subject := "Re-testing to increase score"

	body := newBody()
	switch code {
	case PNTSrt00:
		subject = "Points needed in " + crs
		body.para("You passed the ", crs, " Final Exam, but your point total is ", total, ", and ",
			strconv.Itoa(g.C), " points are needed to pass the course.")
		body.para("You can retake Unit exams and the Final Exam to raise your score before the last day to test.")
	case PNTSrt99:
		subject = "Points needed in " + crs
		body.para("Another reminder that ", crs, " still needs ", strconv.Itoa(g.C-s.TotalScore),
			" more points. Retaking a Unit exam is usually the quickest way to get there.")
	case GRDCok00, GRDCok01:
		body.para("Great job passing ", crs, "! Your point total of ", total, " currently gives you a C.")
		if code == GRDCok00 {
			body.para("You can still retake Unit and Final exams. Reaching ", strconv.Itoa(g.B),
				" points earns a B, and ", strconv.Itoa(g.A), " earns an A.")
		} else {
			body.para("You can still improve to a B: reach ", strconv.Itoa(g.B), " points by retaking Unit ",
				"or Final exams.")
		}
	case GRDCok02:
		body.para("Great job passing ", crs, "! Your point total of ", total, " gives you a C for the course.")
		body.para("You are all finished in the course. Have a great rest of your semester!")
	case GRDBok00, GRDBok01:
		if h.HasFamily(FamilyGradeC) {
			subject = "Grade improved to B"
			body.para("You raised your grade in ", crs, " to a B. Well done!")
		} else {
			body.para("Great job passing ", crs, "! Your point total of ", total, " currently gives you a B.")
		}
		if code == GRDBok00 {
			body.para("If you can reach ", strconv.Itoa(g.A), " points, your grade will become an A.")
		} else {
			body.para("You are all finished in the course. Have a great rest of your semester!")
		}
	case GRDAok00:
		if h.HasFamily(FamilyGradeC) || h.HasFamily(FamilyGradeB) {
			subject = "Grade improved to A"
			body.para("You raised your grade in ", crs, " to an A. Excellent work!")
		} else {
			subject = crs + " passed with an A"
			body.para("Great job passing ", crs, " with an A!")
		}
		body.para("You are all finished in the course. Have a great rest of your semester!")
	}
	body.close()

	return descriptor(s, cp.String(), code, u, subject, body)
}
