package notification

import (
	"github.com/alem-hub/pace-notifier/internal/domain/progress"
	"github.com/alem-hub/pace-notifier/pkg/timeutil"
)

// tryBand groups failed attempt counts: none, a few, many.
func tryBand(tries int) int {
	switch {
	case tries == 0:
		return 0
	case tries < 4:
		return 1
	default:
		return 2
	}
}

var (
	welcomeOrientation  = [3][2]Code{{WELCus00, WELCus01}, {WELCus02, WELCus03}, {WELCus04, WELCus05}}
	welcomeSkillsReview = [3][2]Code{{WELCsr00, WELCsr01}, {WELCsr02, WELCsr03}, {WELCsr04, WELCsr05}}
)

// welcomeCode is the exhaustive welcome decision tree. Every snapshot maps to
// exactly one code.
func welcomeCode(s progress.Snapshot) Code {
	if !s.MetPrerequisite {
		return WELCpr00
	}

	after := 0
	if s.Today.After(s.Schedule.MustDue(progress.ReviewExam(1))) {
		after = 1
	}

	switch {
	case !s.Started:
		return [2]Code{WELCst00, WELCst01}[after]
	case !s.PassedOrientationExam():
		return welcomeOrientation[tryBand(s.FailedTries(progress.Orientation))][after]
	case !s.PassedSkillsReview():
		return welcomeSkillsReview[tryBand(s.FailedTries(progress.SkillsReview))][after]
	default:
		return WELCok00
	}
}

func selectWelcome(s progress.Snapshot, u Urgency) *MessageDescriptor {
	code := welcomeCode(s)
	reg := s.Current()
	crs := courseName(reg.Course)
	re1 := s.Schedule.MustDue(progress.ReviewExam(1)).Format(timeutil.FormatHumanDate)

	body := newBody()
	body.para("Welcome to ", crs, ". I coordinate the self-paced precalculus courses and will check in ",
		"with you by email as the semester moves along.")

	switch code {
	case WELCpr00:
		body.para("There is one immediate issue to resolve: it looks like you do not yet have the prerequisite ",
			"for ", crs, ". You can satisfy it with ", prerequisiteChain(reg.Course), ".")
	case WELCst00:
		body.para("Your first step is to open the course and take the User's Exam. The first Review Exam ",
			"is due ", re1, ", so there is still time to get comfortable with the format.")
	case WELCst01:
		body.para("It looks like you have not opened the course yet, and the first Review Exam was due ", re1,
			". Please get started as soon as you can so we can talk about catching up.")
	case WELCus00, WELCus01:
		body.para("You have started the course, but the User's Exam is still waiting. It covers the course ",
			"policies and unlocks the Skills Review.")
		body.paraIf(code == WELCus01, "The first Review Exam was due ", re1, ", so this is getting urgent.")
	case WELCus02, WELCus03:
		body.para("You have tried the User's Exam but have not passed it yet. Re-read the policies ",
			"and try again; there is no limit on attempts.")
		body.paraIf(code == WELCus03, "The first Review Exam was due ", re1, ", so please make this a priority.")
	case WELCus04, WELCus05:
		body.para("You have made several attempts at the User's Exam. Something may be getting in the way, ",
			"so please ", helpLocation(reg), " and we will sort it out together.")
		body.paraIf(code == WELCus05, "The first Review Exam was due ", re1, ".")
	case WELCsr00, WELCsr01:
		body.para("You passed the User's Exam. Next up is the Skills Review exam, which checks the ",
			"background skills the course builds on.")
		body.paraIf(code == WELCsr01, "The first Review Exam was due ", re1, ", so please move quickly.")
	case WELCsr02, WELCsr03:
		body.para("You have attempted the Skills Review exam. Review the topics you missed and try again.")
		body.paraIf(code == WELCsr03, "The first Review Exam was due ", re1, ".")
	case WELCsr04, WELCsr05:
		body.para("The Skills Review has taken several attempts. Tutors can help you pin down the trouble ",
			"spots; please ", helpLocation(reg), ".")
		body.paraIf(code == WELCsr05, "The first Review Exam was due ", re1, ".")
	case WELCok00:
		if reg.Modality() == progress.ModalityInPerson {
			body.para("You are off to a great start. Remember that tutors are available in the ",
				"Precalculus Center whenever you have questions.")
		} else {
			body.para("You are off to a great start. Online help sessions run every weekday if you ",
				"get stuck.")
		}
	}
	body.close()

	return descriptor(s, "WELCOME", code, u, "Welcome to "+crs, body)
}

// selectBlocked builds the blocked notice. Its content varies with the
// student's position in the term and how far they got.
func selectBlocked(s progress.Snapshot, u Urgency) *MessageDescriptor {
	reg := s.Current()
	crs := courseName(reg.Course)

	body := newBody()
	body.para("The deadline to pass the ", crs, " Final Exam has passed, so the course is now closed ",
		"and no further exams can be taken.")

	if s.PassedReview(4) {
		body.para("You got all the way through Unit 4, which means an Incomplete may be possible. ",
			"Please contact me right away if you would like to discuss that option.")
	}

	switch {
	case s.IsLastCourse() && s.Pace() > 1:
		body.para("Since this was your last course of the semester, there is nothing further to complete ",
			"this term.")
	case s.IsLastCourse():
		body.para("You can register for ", crs, " again in a future semester.")
	case s.Pace() > 2:
		body.para("Your next course is still open. Keep working there; its deadlines are unaffected.")
	default:
		body.para("Your second course is still open. Keep working there; its deadlines are unaffected.")
	}

	if reg.Modality() == progress.ModalityInPerson {
		body.para("If you have questions, stop by the Precalculus Center.")
	} else {
		body.para("If you have questions, reply to this message.")
	}
	body.close()

	return descriptor(s, "BLOCKED", BLOKwd00, u, crs+" course closed", body)
}
