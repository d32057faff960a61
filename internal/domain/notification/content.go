package notification

import (
	"strconv"
	"strings"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// messageBody accumulates plain-text paragraphs.
type messageBody struct {
	b strings.Builder
}

func newBody() *messageBody {
	body := &messageBody{}
	body.para("Hello,")
	return body
}

// para appends one paragraph.
func (m *messageBody) para(parts ...string) *messageBody {
	for _, p := range parts {
		m.b.WriteString(p)
	}
	m.b.WriteString("\n\n")
	return m
}

// paraIf appends a paragraph only when cond holds.
func (m *messageBody) paraIf(cond bool, parts ...string) *messageBody {
	if cond {
		m.para(parts...)
	}
	return m
}

func (m *messageBody) close() *messageBody {
	return m.para("Let me know if there is anything I can do to help.\n\nYour course coordinator")
}

func (m *messageBody) String() string {
	return strings.TrimRight(m.b.String(), "\n") + "\n"
}

// courseName returns the display name of a course.
func courseName(c progress.CourseID) string {
	return "MATH " + strings.TrimPrefix(c.Short(), "M")
}

// prerequisiteChain describes how a student can satisfy the prerequisite
// for a course.
func prerequisiteChain(c progress.CourseID) string {
	switch c {
	case progress.CourseM117:
		return "a qualifying Math Placement result, transfer credit, or completion of the ELM Tutorial"
	case progress.CourseM118:
		return "credit in MATH 117 or a qualifying Math Placement result"
	case progress.CourseM124:
		return "credit in MATH 118 or a qualifying Math Placement result"
	case progress.CourseM125:
		return "credit in MATH 118 or a qualifying Math Placement result"
	case progress.CourseM126:
		return "credit in MATH 125 or a qualifying Math Placement result"
	default:
		return "a qualifying Math Placement result"
	}
}

// helpLocation differs for in-person and remote sections.
func helpLocation(r progress.Registration) string {
	if r.Modality() == progress.ModalityInPerson {
		return "stop by the Precalculus Center during open hours"
	}
	return "reply to this message or join an online help session"
}

// dueMention renders "is due today", "is due Thursday", or "was due Monday, October 7".
func dueMention(s progress.Snapshot, it progress.Item) string {
	due, ok := s.Schedule.DueDate(it)
	if !ok {
		return "is coming up"
	}
	if due.Before(s.Today) {
		return "was due " + due.Format(timeutil.FormatHumanDate)
	}
	return "is due " + timeutil.DueDayPhrase(s.Today, due)
}

// itemTitle names an item for a message body.
func itemTitle(it progress.Item) string {
	switch it.Kind {
	case progress.ItemOrientation:
		return "the User's Exam"
	case progress.ItemSkillsReview:
		return "the Skills Review exam"
	case progress.ItemHomework:
		return "homework " + strconv.Itoa(it.Unit) + "." + strconv.Itoa(it.Objective)
	case progress.ItemReviewExam:
		return "the Unit " + strconv.Itoa(it.Unit) + " Review Exam"
	case progress.ItemUnitExam:
		return "the Unit " + strconv.Itoa(it.Unit) + " Exam"
	default:
		return "the Final Exam"
	}
}
