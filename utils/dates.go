// utils/dates.go
package utils

import "time"

const DisplayDateLayout = "02.01.2006"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// DateOnly keeps the calendar date of t as seen in its own location,
// pinned to UTC midnight so that dates from different zones compare.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	start = DateOnly(start)
	end = DateOnly(end)
	return int(end.Sub(start).Hours() / 24)
}

// Today returns the current calendar date in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	return DateOnly(now.In(loc))
}

func FormatDate(t time.Time) string {
	return t.Format(DisplayDateLayout)
}
