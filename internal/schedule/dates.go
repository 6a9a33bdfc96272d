package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Accepted record-store date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate parses an ISO-8601 date or date-time and returns the calendar day
// it names, as UTC midnight. Time of day is discarded.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// Day truncates t to its calendar date in t's own location and returns it as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// MonthWindow returns every date of the calendar month containing t.
func MonthWindow(t time.Time) []time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)
	days := make([]time.Time, 0, 31)
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// ParseMonth parses "YYYY-MM" into the first day of that month.
func ParseMonth(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q; expected YYYY-MM", raw)
	}
	return t, nil
}

var germanDayNames = [7]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"}

// RowLabel formats a grid row label, e.g. "Mo 03.11.".
func RowLabel(d time.Time) string {
	return fmt.Sprintf("%s %s", germanDayNames[d.Weekday()], d.Format("02.01."))
}

// ClosedDays is a fixed weekly pattern of non-operating days.
type ClosedDays [7]bool

func NewClosedDays(days ...time.Weekday) ClosedDays {
	var c ClosedDays
	for _, d := range days {
		c[d] = true
	}
	return c
}

// DefaultClosedDays: the shop opens Monday, Thursday, Friday and Saturday.
func DefaultClosedDays() ClosedDays {
	return NewClosedDays(time.Sunday, time.Tuesday, time.Wednesday)
}

func (c ClosedDays) IsClosed(d time.Time) bool {
	return c[d.Weekday()]
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "so": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "mo": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "di": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "mi": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "do": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "fr": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sa": time.Saturday,
}

// ParseClosedDays builds a pattern from weekday names (English or German abbreviations).
func ParseClosedDays(names []string) (ClosedDays, error) {
	var c ClosedDays
	for _, n := range names {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return c, fmt.Errorf("unknown weekday %q", n)
		}
		c[wd] = true
	}
	return c, nil
}
