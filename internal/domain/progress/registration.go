package progress

import "strings"

// CourseID identifies a course in the self-paced precalculus sequence.
type CourseID string

// Courses offered in the sequence.
const (
	CourseM117 CourseID = "M 117"
	CourseM118 CourseID = "M 118"
	CourseM124 CourseID = "M 124"
	CourseM125 CourseID = "M 125"
	CourseM126 CourseID = "M 126"
)

// KnownCourses lists courses in sequence order.
var KnownCourses = []CourseID{CourseM117, CourseM118, CourseM124, CourseM125, CourseM126}

// IsKnown reports whether the course belongs to the messaged sequence.
func (c CourseID) IsKnown() bool {
	for _, k := range KnownCourses {
		if k == c {
			return true
		}
	}
	return false
}

// Short returns the compact form used in message codes and keys ("M117").
func (c CourseID) Short() string {
	return strings.ReplaceAll(string(c), " ", "")
}

// Open statuses of a registration.
const (
	OpenStatusOpen      = "Y" // course started and in progress
	OpenStatusCompleted = "N" // course started and closed
	OpenStatusForfeit   = "G" // forfeited; excluded from messaging
)

// Modality describes how a section is delivered.
type Modality string

const (
	ModalityInPerson Modality = "in_person"
	ModalityRemote   Modality = "remote"
)

// Registration is one course registration in the student's term.
type Registration struct {
	Course     CourseID `json:"course"`
	Section    string   `json:"section"`
	OpenStatus string   `json:"open_status"`
	PaceOrder  int      `json:"pace_order"`
	Completed  bool     `json:"completed"`
}

// Started reports whether the student has started the course.
func (r Registration) Started() bool {
	return r.OpenStatus == OpenStatusOpen || r.OpenStatus == OpenStatusCompleted
}

// Modality derives delivery modality from the section number: sections
// beginning with '0' meet in person.
func (r Registration) Modality() Modality {
	if strings.HasPrefix(r.Section, "0") {
		return ModalityInPerson
	}
	return ModalityRemote
}
