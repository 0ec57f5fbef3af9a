// Package timeutil provides UTC calendar math for the achievement engine.
// All leaderboard periods and streak comparisons are computed in UTC with
// half-open [start, end) windows so boundary events are never counted twice.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns Monday 00:00 UTC of the ISO week containing t.
func StartOfWeek(t time.Time) time.Time {
	u := StartOfDay(t)
	weekday := int(u.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return u.AddDate(0, 0, -(weekday - 1))
}

// StartOfMonth returns the first of the month, 00:00 UTC.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayWindow returns the half-open [start, end) window for the UTC day of t.
func DayWindow(t time.Time) (start, end time.Time) {
	start = StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// WeekWindow returns the half-open [Monday 00:00, next Monday 00:00) window
// for the ISO week of t.
func WeekWindow(t time.Time) (start, end time.Time) {
	start = StartOfWeek(t)
	return start, start.AddDate(0, 0, 7)
}

// MonthWindow returns the half-open [1st 00:00, 1st of next month 00:00)
// window for the calendar month of t.
func MonthWindow(t time.Time) (start, end time.Time) {
	start = StartOfMonth(t)
	return start, start.AddDate(0, 1, 0)
}

// RollingWindow returns the half-open window covering the last n UTC days
// ending with (and including) the day of t.
func RollingWindow(t time.Time, n int) (start, end time.Time) {
	if n < 1 {
		n = 1
	}
	_, end = DayWindow(t)
	return end.AddDate(0, 0, -n), end
}

// Canonical period label formats.
const (
	// FormatDay is the daily period label (YYYY-MM-DD).
	FormatDay = "2006-01-02"
	// FormatMonth is the monthly period label (YYYY-MM).
	FormatMonth = "2006-01"
)

// DayLabel returns the canonical daily period label for t (YYYY-MM-DD, UTC).
func DayLabel(t time.Time) string {
	return t.UTC().Format(FormatDay)
}

// WeekLabel returns the canonical ISO week label for t (YYYY-Www).
// Uses the standard Thursday-anchored ISO 8601 week numbering, so the year
// part can differ from the calendar year near January 1st.
func WeekLabel(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthLabel returns the canonical monthly period label for t (YYYY-MM, UTC).
func MonthLabel(t time.Time) string {
	return t.UTC().Format(FormatMonth)
}

// IsSameDay reports whether t1 and t2 fall on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// IsNextDay reports whether t2 falls on the UTC day immediately after t1.
func IsNextDay(t1, t2 time.Time) bool {
	return IsSameDay(StartOfDay(t1).AddDate(0, 0, 1), t2)
}

// DaysBetween returns the number of whole UTC days from t1's day to t2's
// day. Negative when t2 precedes t1.
func DaysBetween(t1, t2 time.Time) int {
	d1 := StartOfDay(t1)
	d2 := StartOfDay(t2)
	return int(d2.Sub(d1).Hours() / 24)
}
