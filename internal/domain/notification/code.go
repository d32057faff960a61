// Package notification decides which progress message, if any, a student
// should receive on a run. Everything here is pure: the engine reads a
// progress.Snapshot and a HistoryIndex and returns a Decision.
package notification

import (
	"fmt"

	"github.com/alem-hub/pace-notifier/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE CODE
// ══════════════════════════════════════════════════════════════════════════════

// Code identifies one message variant. Codes are what the delivery log stores,
// so they must never be renamed.
type Code string

// String returns the code.
func (c Code) String() string {
	return string(c)
}

// IsValid reports whether the code has the eight-character shape used by the
// delivery log.
func (c Code) IsValid() bool {
	return len(c) == 8
}

// Welcome family.
const (
	WELCpr00 Code = "WELCpr00"
	WELCst00 Code = "WELCst00"
	WELCst01 Code = "WELCst01"
	WELCus00 Code = "WELCus00"
	WELCus01 Code = "WELCus01"
	WELCus02 Code = "WELCus02"
	WELCus03 Code = "WELCus03"
	WELCus04 Code = "WELCus04"
	WELCus05 Code = "WELCus05"
	WELCsr00 Code = "WELCsr00"
	WELCsr01 Code = "WELCsr01"
	WELCsr02 Code = "WELCsr02"
	WELCsr03 Code = "WELCsr03"
	WELCsr04 Code = "WELCsr04"
	WELCsr05 Code = "WELCsr05"
	WELCok00 Code = "WELCok00"
)

// Administrative notices.
const (
	BLOKwd00 Code = "BLOKwd00"
)

// Prerequisite reminders.
const (
	PREQpr00 Code = "PREQpr00"
	PREQpr01 Code = "PREQpr01"
	PREQpr02 Code = "PREQpr02"
	PREQpr03 Code = "PREQpr03"
	PREQpr04 Code = "PREQpr04"
	PREQpr05 Code = "PREQpr05"
	PREQpr06 Code = "PREQpr06"
	PREQpr07 Code = "PREQpr07"
	PREQpr08 Code = "PREQpr08"
	PREQpr09 Code = "PREQpr09"
	PREQpr10 Code = "PREQpr10"
	PREQpr11 Code = "PREQpr11"
)

// Start reminders.
const (
	STRTst00 Code = "STRTst00"
	STRTst01 Code = "STRTst01"
	STRTst02 Code = "STRTst02"
	STRTst03 Code = "STRTst03"
)

// Final exam reminders.
const (
	FINRfe00 Code = "FINRfe00"
	FINRfe01 Code = "FINRfe01"
	FINRfe02 Code = "FINRfe02"
	FINRfe04 Code = "FINRfe04"
	FINRfe05 Code = "FINRfe05"
	FINRfe06 Code = "FINRfe06"
	FINXfe00 Code = "FINXfe00"
	FINXfe01 Code = "FINXfe01"
	FINXfe02 Code = "FINXfe02"
	LASTfe00 Code = "LASTfe00"
	LASTfe01 Code = "LASTfe01"
)

// On-time encouragement.
const (
	RE1Rok00 Code = "RE1Rok00"
	RE1Rok01 Code = "RE1Rok01"
	UE1Rok00 Code = "UE1Rok00"
	UE1Rok01 Code = "UE1Rok01"
	RE2Rok00 Code = "RE2Rok00"
	RE2Rok01 Code = "RE2Rok01"
	UE2Rok00 Code = "UE2Rok00"
	RE3Rok00 Code = "RE3Rok00"
	RE3Rok01 Code = "RE3Rok01"
	UE3Rok00 Code = "UE3Rok00"
	RE4Rok00 Code = "RE4Rok00"
	RE4Rok01 Code = "RE4Rok01"
	UE4Rok00 Code = "UE4Rok00"
	FINRok00 Code = "FINRok00"
	FINRok01 Code = "FINRok01"
)

// Grade optimization.
const (
	PNTSrt00 Code = "PNTSrt00"
	PNTSrt99 Code = "PNTSrt99"
	GRDCok00 Code = "GRDCok00"
	GRDCok01 Code = "GRDCok01"
	GRDCok02 Code = "GRDCok02"
	GRDBok00 Code = "GRDBok00"
	GRDBok01 Code = "GRDBok01"
	GRDAok00 Code = "GRDAok00"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAMILIES
// ══════════════════════════════════════════════════════════════════════════════

// Family is an explicit group of codes that address the same situation.
// Membership is declared, never inferred from the code spelling.
type Family struct {
	Name  string
	Codes []Code
}

// NewFamily creates a family.
func NewFamily(name string, codes ...Code) Family {
	return Family{Name: name, Codes: codes}
}

// Contains reports whether the code belongs to the family.
func (f Family) Contains(c Code) bool {
	for _, fc := range f.Codes {
		if fc == c {
			return true
		}
	}
	return false
}

// Declared families.
var (
	FamilyWelcome = NewFamily("welcome",
		WELCpr00, WELCst00, WELCst01,
		WELCus00, WELCus01, WELCus02, WELCus03, WELCus04, WELCus05,
		WELCsr00, WELCsr01, WELCsr02, WELCsr03, WELCsr04, WELCsr05,
		WELCok00)

	FamilyBlocked = NewFamily("blocked", BLOKwd00)

	FamilyGradeC      = NewFamily("grade_c", GRDCok00, GRDCok01, GRDCok02)
	FamilyGradeB      = NewFamily("grade_b", GRDBok00, GRDBok01)
	FamilyGradeA      = NewFamily("grade_a", GRDAok00)
	FamilyGradePoints = NewFamily("grade_points", PNTSrt00, PNTSrt99)
)

// ══════════════════════════════════════════════════════════════════════════════
// LADDERS
// ══════════════════════════════════════════════════════════════════════════════

// Stage is one escalation step. It is eligible while the history contains
// none of the Guard codes.
type Stage struct {
	Guard []Code
	Send  Code
}

// Once is a stage guarded only by its own code.
func Once(c Code) Stage {
	return Stage{Guard: []Code{c}, Send: c}
}

// Ladder is an ordered list of stages for one situation.
type Ladder []Stage

// Next returns the first stage whose guard is clear.
func (l Ladder) Next(h *HistoryIndex) (Code, bool) {
	for _, st := range l {
		if h.HasNone(st.Guard...) {
			return st.Send, true
		}
	}
	return "", false
}

// Codes lists every code the ladder can send.
func (l Ladder) Codes() []Code {
	out := make([]Code, 0, len(l))
	for _, st := range l {
		out = append(out, st.Send)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// PER-ITEM CODES
// ══════════════════════════════════════════════════════════════════════════════

// Track distinguishes the regular reminder track ("R") from the track used
// after repeated failed attempts ("X").
type Track string

const (
	TrackRegular  Track = "R"
	TrackRepeated Track = "X"
)

// StuckStage is the stage number of the last-resort reminder.
const StuckStage = 99

// itemPrefix is the three-character head of codes about an item.
func itemPrefix(it progress.Item) string {
	switch it.Kind {
	case progress.ItemOrientation:
		return "USR"
	case progress.ItemSkillsReview:
		return "SKL"
	case progress.ItemHomework:
		return fmt.Sprintf("H%d%d", it.Unit, it.Objective)
	case progress.ItemReviewExam:
		return fmt.Sprintf("RE%d", it.Unit)
	case progress.ItemUnitExam:
		return fmt.Sprintf("UE%d", it.Unit)
	case progress.ItemFinal:
		return "FIN"
	default:
		return "???"
	}
}

// itemSuffix is the two-letter category of codes about an item.
func itemSuffix(it progress.Item) string {
	switch it.Kind {
	case progress.ItemOrientation:
		return "us"
	case progress.ItemSkillsReview:
		return "sr"
	case progress.ItemHomework:
		return "hw"
	case progress.ItemReviewExam:
		return "re"
	case progress.ItemUnitExam:
		return "ue"
	default:
		return "fe"
	}
}

// ItemCode builds the reminder code for an item, e.g. ItemCode(Homework(2,3), TrackRegular, 4) = "H23Rhw04".
func ItemCode(it progress.Item, track Track, stage int) Code {
	return Code(fmt.Sprintf("%s%s%s%02d", itemPrefix(it), track, itemSuffix(it), stage))
}

// OnTimeCode builds the on-time encouragement code for an item.
func OnTimeCode(it progress.Item, variant int) Code {
	return Code(fmt.Sprintf("%sRok%02d", itemPrefix(it), variant))
}
