package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	a := Date(2024, time.October, 1)
	b := Date(2024, time.October, 11)

	assert.Equal(t, 10, DaysBetween(a, b))
	assert.Equal(t, -10, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a.Add(23*time.Hour)))
}

func TestAddWeekdays(t *testing.T) {
	// 2024-10-04 is a Friday.
	fri := Date(2024, time.October, 4)

	assert.Equal(t, Date(2024, time.October, 7), AddWeekdays(fri, 1))
	assert.Equal(t, Date(2024, time.October, 9), AddWeekdays(fri, 3))
	assert.Equal(t, Date(2024, time.October, 3), AddWeekdays(fri, -1))
	assert.Equal(t, fri, AddWeekdays(fri, 0))

	mon := Date(2024, time.October, 7)
	assert.Equal(t, fri, AddWeekdays(mon, -1))
}

func TestWeekdaysBetween(t *testing.T) {
	mon := Date(2024, time.October, 7)

	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"same day", mon, 0},
		{"next day", Date(2024, time.October, 8), 1},
		{"to friday", Date(2024, time.October, 11), 4},
		{"over weekend", Date(2024, time.October, 14), 5},
		{"two weeks", Date(2024, time.October, 21), 10},
		{"ends on sunday", Date(2024, time.October, 13), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekdaysBetween(mon, tt.to))
		})
	}

	assert.Equal(t, 0, WeekdaysBetween(Date(2024, time.October, 21), mon))
}

func TestDay_UsesOwnLocation(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*60*60)
	evening := time.Date(2024, time.October, 4, 22, 30, 0, 0, loc)

	assert.Equal(t, Date(2024, time.October, 4), Day(evening))
	assert.True(t, Day(time.Time{}).IsZero())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-12-06")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.December, 6), d)

	_, err = ParseDate("12/06/2024")
	assert.Error(t, err)
}

func TestDueDayPhrase(t *testing.T) {
	today := Date(2024, time.October, 7) // Monday

	assert.Equal(t, "today", DueDayPhrase(today, today))
	assert.Equal(t, "tomorrow", DueDayPhrase(today, Date(2024, time.October, 8)))
	assert.Equal(t, "Thursday", DueDayPhrase(today, Date(2024, time.October, 10)))
	assert.Equal(t, "Monday, October 14", DueDayPhrase(today, Date(2024, time.October, 14)))
}
