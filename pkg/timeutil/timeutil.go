// Package timeutil provides calendar-date helpers used by the notification engine.
// Dates are represented as time.Time values at midnight UTC so that day
// arithmetic never crosses a DST boundary. Conversion from a wall-clock time
// in the campus timezone happens once, in Today / Day.
package timeutil

import (
	"time"
)

// Common date formats.
const (
	// FormatDate is the storage format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatHumanDate is used in message bodies ("Monday, October 5").
	FormatHumanDate = "Monday, January 2"
	// FormatShortDate is a compact format (Oct 5).
	FormatShortDate = "Jan 2"
)

// Date returns the calendar date y-m-d.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day returns the calendar date of t as seen in t's own location.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in loc (UTC when loc is nil).
func Today(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(time.Now().In(loc))
}

// AddDays moves a date by n calendar days.
func AddDays(d time.Time, n int) time.Time {
	return Day(d).AddDate(0, 0, n)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// AddWeekdays moves a date forward by n weekdays, skipping Saturdays and Sundays.
// Negative n moves backwards.
func AddWeekdays(d time.Time, n int) time.Time {
	cur := Day(d)
	step := 1
	if n < 0 {
		step = -1
		n = -n
	}
	for n > 0 {
		cur = cur.AddDate(0, 0, step)
		if !IsWeekend(cur) {
			n--
		}
	}
	return cur
}

// WeekdaysBetween counts weekdays in the half-open interval (from, to].
// Returns 0 when to is not after from.
func WeekdaysBetween(from, to time.Time) int {
	start, end := Day(from), Day(to)
	if !end.After(start) {
		return 0
	}

	days := DaysBetween(start, end)
	weeks := days / 7
	count := weeks * 5

	cur := start.AddDate(0, 0, weeks*7)
	for cur.Before(end) {
		cur = cur.AddDate(0, 0, 1)
		if !IsWeekend(cur) {
			count++
		}
	}
	return count
}

// IsSameDay reports whether two times fall on the same calendar date.
func IsSameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// FormatDateStr formats a date as YYYY-MM-DD.
func FormatDateStr(d time.Time) string {
	return d.Format(FormatDate)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(FormatDate, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// DueDayPhrase renders a due date relative to today: "today", the weekday
// name when within four days, and the full date otherwise.
func DueDayPhrase(today, due time.Time) string {
	switch days := DaysBetween(today, due); {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days > 1 && days <= 4:
		return due.Weekday().String()
	default:
		return due.Format(FormatHumanDate)
	}
}
