package progress

import (
	"fmt"
	"strconv"
)

// ItemKind identifies a graded curriculum element that carries a due date.
type ItemKind int

const (
	ItemOrientation ItemKind = iota + 1 // user's exam
	ItemSkillsReview
	ItemHomework
	ItemReviewExam
	ItemUnitExam
	ItemFinal
)

const (
	// Units is the number of content units in a course.
	Units = 4
	// ObjectivesPerUnit is the number of homework assignments per unit.
	ObjectivesPerUnit = 5
)

// Item is one graded element: a homework (unit, objective), a review or unit
// exam (unit), or one of the singleton exams.
type Item struct {
	Kind      ItemKind
	Unit      int
	Objective int
}

// Singleton items.
var (
	Orientation  = Item{Kind: ItemOrientation}
	SkillsReview = Item{Kind: ItemSkillsReview}
	Final        = Item{Kind: ItemFinal, Unit: 5}
)

// Homework returns the homework item for a unit/objective pair.
func Homework(unit, objective int) Item {
	return Item{Kind: ItemHomework, Unit: unit, Objective: objective}
}

// ReviewExam returns the review exam item for a unit.
func ReviewExam(unit int) Item {
	return Item{Kind: ItemReviewExam, Unit: unit}
}

// UnitExam returns the unit exam item for a unit.
func UnitExam(unit int) Item {
	return Item{Kind: ItemUnitExam, Unit: unit}
}

// Tag returns the milestone tag, e.g. "USERS", "SR", "HW23", "RE2", "UE4", "FIN".
func (i Item) Tag() string {
	switch i.Kind {
	case ItemOrientation:
		return "USERS"
	case ItemSkillsReview:
		return "SR"
	case ItemHomework:
		return fmt.Sprintf("HW%d%d", i.Unit, i.Objective)
	case ItemReviewExam:
		return "RE" + strconv.Itoa(i.Unit)
	case ItemUnitExam:
		return "UE" + strconv.Itoa(i.Unit)
	case ItemFinal:
		return "FIN"
	default:
		return "UNKNOWN"
	}
}

// String implements fmt.Stringer.
func (i Item) String() string {
	return i.Tag()
}

// IsExam reports whether the item is an exam with a try limit policy
// (everything except homework).
func (i Item) IsExam() bool {
	return i.Kind != ItemHomework
}

// curriculum is the fixed curriculum order shared by all courses.
var curriculum = buildCurriculum()

func buildCurriculum() []Item {
	items := []Item{Orientation, SkillsReview}
	for u := 1; u <= Units; u++ {
		for o := 1; o <= ObjectivesPerUnit; o++ {
			items = append(items, Homework(u, o))
		}
		items = append(items, ReviewExam(u), UnitExam(u))
	}
	return append(items, Final)
}

// CurriculumItems returns all graded items in curriculum order.
// The returned slice is a copy.
func CurriculumItems() []Item {
	out := make([]Item, len(curriculum))
	copy(out, curriculum)
	return out
}

// ParseItemTag is the inverse of Item.Tag.
func ParseItemTag(tag string) (Item, error) {
	for _, it := range curriculum {
		if it.Tag() == tag {
			return it, nil
		}
	}
	return Item{}, fmt.Errorf("unknown milestone tag %q", tag)
}
