package notification

import (
	"strconv"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
)

// Gates shared by the item reminder ladders.
const (
	// Reminders wait until the student has been idle this many days.
	activityGap = 3
	// After a failed attempt, wait this many days before nudging again.
	retryGap = 2
)

// gatedLadder returns the escalation ladder for an unmet item, chosen by how
// many times the student has failed it.
//
// Untried items step through R00..R03. Items with a few failures step through
// R04..R07, each stage also closed by its untried counterpart. Items with many
// failures move to the X track. All three end with a one-time R99 except the
// orientation exam, which has no stuck notice.
func gatedLadder(it progress.Item, s progress.Snapshot) (Ladder, bool) {
	r := func(n int) Code { return ItemCode(it, TrackRegular, n) }
	x := func(n int) Code { return ItemCode(it, TrackRepeated, n) }

	var ladder Ladder
	switch tries := s.FailedTries(it); {
	case tries == 0:
		if s.DaysSinceLastActivity <= activityGap {
			return nil, false
		}
		ladder = Ladder{Once(r(0)), Once(r(1)), Once(r(2)), Once(r(3))}

	case tries < 4:
		if s.DaysSinceLastActivity <= activityGap {
			return nil, false
		}
		if since := s.DaysSinceLastTry(it); since >= 0 && since < retryGap {
			return nil, false
		}
		ladder = Ladder{
			{Guard: []Code{r(0), r(4)}, Send: r(4)},
			{Guard: []Code{r(1), r(5)}, Send: r(5)},
			{Guard: []Code{r(2), r(6)}, Send: r(6)},
			{Guard: []Code{r(3), r(7)}, Send: r(7)},
		}

	default:
		recent := x(1)
		if since := s.DaysSinceLastTry(it); since >= 0 && since <= retryGap {
			recent = x(2)
		}
		ladder = Ladder{
			{Guard: []Code{r(0), r(4), x(0)}, Send: x(0)},
			{Guard: []Code{r(1), r(5), x(1), x(2)}, Send: recent},
			{Guard: []Code{r(2), r(3), r(6), r(7), x(3)}, Send: x(3)},
		}
	}

	if it.Kind != progress.ItemOrientation {
		ladder = append(ladder, Once(r(StuckStage)))
	}
	return ladder, true
}

func selectGated(_ *Selector, cp Checkpoint, s progress.Snapshot, u Urgency, h *HistoryIndex) *MessageDescriptor {
	ladder, ok := gatedLadder(cp.Item, s)
	if !ok {
		return nil
	}
	code, ok := ladder.Next(h)
	if !ok {
		return nil
	}

	it := cp.Item
	reg := s.Current()
	title := itemTitle(it)
	stage, track := codeStage(code)

	body := newBody()
	switch {
	case stage == StuckStage:
		body.para("I noticed you have not made progress on ", title, " in a while. If you are stuck, please ",
			helpLocation(reg), ". A short conversation often gets things moving again.")
	case track == TrackRepeated:
		body.para("You have made several attempts at ", title, ", which shows real persistence.")
		switch stage {
		case 0:
			body.para("Before the next try, go back through the practice problems for the topics you missed.")
		case 1:
			body.para("It has been a few days since your last attempt. A fresh look at the material may help.")
		case 2:
			body.para("Rather than retaking it right away, take a little time to review first.")
		default:
			body.para("Tutors can help you find what keeps tripping you up; please ", helpLocation(reg), ".")
		}
	case stage >= 4:
		body.para("You have attempted ", title, " but have not passed it yet. It ", dueMention(s, it), ".")
		body.para(retryAdvice[(stage-4)%len(retryAdvice)])
	default:
		body.para("Just a reminder that ", title, " ", dueMention(s, it), ".")
		body.para(nudges[stage%len(nudges)])
	}

	if it.Kind == progress.ItemReviewExam && reviewBonusOpen(s, it) {
		body.para("Passing it by the due date still earns ", strconv.Itoa(progress.ReviewOnTimeBonus), " bonus points.")
	}
	body.close()

	return descriptor(s, cp.String(), code, u, subjectFor(it, stage), body)
}

var nudges = []string{
	"Staying on schedule is the best way to finish the course on time.",
	"Falling behind early makes later units harder, so try to get this done soon.",
	"If your schedule has changed, let me know and we can make a plan.",
	"The later due dates depend on this one, so please make it a priority.",
}

var retryAdvice = []string{
	"Reviewing the problems you missed before retaking it usually helps.",
	"The practice materials for this section are a good place to start.",
	"Working a few problems with a tutor can make the next attempt go better.",
	"Please reach out if you would like help preparing for the next attempt.",
}

func subjectFor(it progress.Item, stage int) string {
	switch {
	case stage == StuckStage:
		return "Checking in on " + it.Tag()
	case it.Kind == progress.ItemHomework:
		return "Homework reminder"
	default:
		return "Reminder: " + itemTitle(it)[len("the "):]
	}
}

// reviewBonusOpen reports whether the on-time bonus can still be earned.
func reviewBonusOpen(s progress.Snapshot, it progress.Item) bool {
	due, ok := s.Schedule.DueDate(it)
	return ok && !s.Today.After(due)
}

// codeStage extracts the stage number and track from an item reminder code.
func codeStage(c Code) (int, Track) {
	if len(c) < 8 {
		return 0, TrackRegular
	}
	n := int(c[6]-'0')*10 + int(c[7]-'0')
	return n, Track(c[3:4])
}
