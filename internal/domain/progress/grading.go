package progress

// Point values used to compute totals.
const (
	// ReviewOnTimeBonus is earned for passing a review exam by its due date.
	ReviewOnTimeBonus = 3

	// ExamPointsAvailable is the maximum total of unit and final exam scores.
	ExamPointsAvailable = 60
)

// Grade is a letter grade.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeU Grade = "U"
)

// GradeScale holds the minimum total score for each passing grade.
type GradeScale struct {
	C int `json:"c"`
	B int `json:"b"`
	A int `json:"a"`
}

// DefaultGradeScale returns the standard cutoffs.
func DefaultGradeScale() GradeScale {
	return GradeScale{C: 54, B: 62, A: 65}
}

// GradeFor maps a total score to a letter grade.
func (g GradeScale) GradeFor(total int) Grade {
	switch {
	case total >= g.A:
		return GradeA
	case total >= g.B:
		return GradeB
	case total >= g.C:
		return GradeC
	default:
		return GradeU
	}
}

// Reachable reports whether a grade can still be earned given the maximum
// possible score.
func (g GradeScale) Reachable(grade Grade, maxPossible int) bool {
	switch grade {
	case GradeA:
		return maxPossible >= g.A
	case GradeB:
		return maxPossible >= g.B
	case GradeC:
		return maxPossible >= g.C
	default:
		return true
	}
}
