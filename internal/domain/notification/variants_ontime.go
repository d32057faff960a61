package notification

import (
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// onTimeStep is one row of the on-time table: once the student has passed
// Reached, they are encouraged toward Next. Soon is sent instead of Later
// when Next is due within three weekdays. A zero Later means nothing is said
// until then; PerfectOnly restricts Later to a perfect score on Reached.
// Later and Soon share one guard, so at most one of them is ever sent.
type onTimeStep struct {
	Reached     progress.Item
	Next        progress.Item
	Later       Code
	Soon        Code
	PerfectOnly bool
}

// onTimeSteps is ordered from furthest progress backwards; the first row
// whose Reached item is passed applies.
var onTimeSteps = []onTimeStep{
	{Reached: progress.ReviewExam(4), Next: progress.UnitExam(4), Soon: UE4Rok00},
	{Reached: progress.UnitExam(3), Next: progress.ReviewExam(4), Later: RE4Rok00, Soon: RE4Rok01, PerfectOnly: true},
	{Reached: progress.ReviewExam(3), Next: progress.UnitExam(3), Soon: UE3Rok00},
	{Reached: progress.UnitExam(2), Next: progress.ReviewExam(3), Later: RE3Rok00, Soon: RE3Rok01},
	{Reached: progress.ReviewExam(2), Next: progress.UnitExam(2), Soon: UE2Rok00},
	{Reached: progress.UnitExam(1), Next: progress.ReviewExam(2), Later: RE2Rok00, Soon: RE2Rok01},
	{Reached: progress.ReviewExam(1), Next: progress.UnitExam(1), Later: UE1Rok00, Soon: UE1Rok01},
	{Reached: progress.SkillsReview, Next: progress.ReviewExam(1), Later: RE1Rok00, Soon: RE1Rok01},
}

// onTimeCode picks the encouragement for a student who is on schedule.
func onTimeCode(s progress.Snapshot, h *HistoryIndex) (Code, progress.Item, bool) {
	plusThree := timeutil.AddWeekdays(s.Today, 3)

	if s.PassedUnit(4) {
		code := FINRok00
		if plusThree.After(s.Schedule.FinalDue()) {
			code = FINRok01
		}
		return code, progress.Final, h.HasNone(code)
	}

	for _, st := range onTimeSteps {
		if !s.Passed(st.Reached) {
			continue
		}
		code := st.Later
		if plusThree.After(s.Schedule.MustDue(st.Next)) {
			code = st.Soon
		} else if st.PerfectOnly && !perfect(s, st.Reached) {
			code = ""
		}
		guard := []Code{st.Soon}
		if st.Later != "" {
			guard = append(guard, st.Later)
		}
		return code, st.Next, code != "" && h.HasNone(guard...)
	}
	return "", progress.Item{}, false
}

func selectOnTime(_ *Selector, s progress.Snapshot, u Urgency, h *HistoryIndex) *MessageDescriptor {
	if !s.PassedFinal() && s.PassedUnit(4) && s.Today.After(s.Schedule.FinalDue()) {
		return selectLastTry(s, u, h)
	}

	code, next, ok := onTimeCode(s, h)
	if !ok {
		return nil
	}

	crs := courseName(s.Current().Course)
	title := itemTitle(next)
	soon := isSoonCode(code)

	body := newBody()
	if reached, ok := lastPassed(s, next); ok {
		if perfect(s, reached) {
			body.para("Congratulations on a perfect score on ", itemTitle(reached), "!")
		} else {
			body.para("Nice work passing ", itemTitle(reached), ". You are right on schedule in ", crs, ".")
		}
	}
	if soon {
		body.para("Next up is ", title, ", which ", dueMention(s, next), ".")
	} else {
		body.para("Next up is ", title, ". Keep the same steady pace and you will be in good shape.")
	}
	if next.Kind == progress.ItemReviewExam {
		body.para("Passing it by the due date earns the on-time bonus points.")
	}
	body.close()

	return descriptor(s, next.Tag(), code, u, "Great progress in "+crs, body)
}

func isSoonCode(c Code) bool {
	if c == FINRok01 {
		return true
	}
	for _, st := range onTimeSteps {
		if st.Soon == c {
			return true
		}
	}
	return false
}

// lastPassed finds the item just before next in curriculum order.
func lastPassed(s progress.Snapshot, next progress.Item) (progress.Item, bool) {
	items := progress.CurriculumItems()
	for i := len(items) - 1; i > 0; i-- {
		if items[i] != next {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if items[j].IsExam() && s.Passed(items[j]) {
				return items[j], true
			}
		}
		break
	}
	return progress.Item{}, false
}

// perfect reports whether a unit exam was passed with full marks.
func perfect(s progress.Snapshot, it progress.Item) bool {
	return it.Kind == progress.ItemUnitExam && s.State(it).Score >= unitExamMax
}

const unitExamMax = 10
