// Package datetime formats and shifts wall-clock timestamps in the fixed
// "YYYY-MM-DD HH:MM:SS" form exchanged with the language model.
package datetime

import (
	"strconv"
	"strings"
	"time"
)

// Layout is the textual timestamp format. It carries no zone offset; values
// are interpreted in the clock's location.
const Layout = "2006-01-02 15:04:05"

// FallbackOffsetHours is applied to "now" when a timestamp cannot be parsed.
const FallbackOffsetHours = 3

var weekdaysVi = [...]string{
	"Chủ Nhật",
	"Thứ Hai",
	"Thứ Ba",
	"Thứ Tư",
	"Thứ Năm",
	"Thứ Sáu",
	"Thứ Bảy",
}

// Clock reads the current time in a fixed location.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

// NewClock returns a Clock backed by time.Now. A nil location means time.Local.
func NewClock(loc *time.Location) Clock {
	return NewClockFunc(time.Now, loc)
}

// NewClockFunc returns a Clock that reads the current instant from now.
func NewClockFunc(now func() time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return Clock{now: now, loc: loc}
}

// Fixed returns a Clock frozen at t, in t's location.
func Fixed(t time.Time) Clock {
	return NewClockFunc(func() time.Time { return t }, t.Location())
}

// Location returns the clock's location.
func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// Now returns the current time in the clock's location.
func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().In(c.Location())
	}
	return c.now().In(c.Location())
}

// Format renders t in the clock's location using Layout.
func (c Clock) Format(t time.Time) string {
	return t.In(c.Location()).Format(Layout)
}

// OffsetHours returns now shifted by the given number of hours.
func (c Clock) OffsetHours(hours int) string {
	return c.Format(addHours(c.Now(), hours))
}

// OffsetHoursFrom shifts a Layout timestamp by the given number of hours.
// Unparseable input yields now + FallbackOffsetHours instead of an error.
func (c Clock) OffsetHoursFrom(value string, hours int) string {
	if shifted, ok := ShiftHours(value, hours, c.Location()); ok {
		return shifted
	}
	return c.OffsetHours(FallbackOffsetHours)
}

// Parse reads a Layout timestamp in the clock's location.
func (c Clock) Parse(value string) (time.Time, bool) {
	return parseComponents(value, c.Location())
}

// ShiftHours parses value in loc, adds hours of wall-clock time and formats
// the result. ok is false when value is not a Layout timestamp.
func ShiftHours(value string, hours int, loc *time.Location) (string, bool) {
	t, ok := parseComponents(value, loc)
	if !ok {
		return "", false
	}
	return addHours(t, hours).Format(Layout), true
}

// WeekdayVi returns the Vietnamese name of t's weekday.
func WeekdayVi(t time.Time) string {
	return weekdaysVi[t.Weekday()]
}

// addHours moves the wall clock, so DST transitions keep the hour arithmetic
// the user sees.
func addHours(t time.Time, hours int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+hours, t.Minute(), t.Second(), 0, t.Location())
}

// parseComponents accepts "YYYY-MM-DD HH:MM[:SS]" with a space or 'T'
// separator. Out-of-range components roll over the way time.Date does.
func parseComponents(value string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	value = strings.TrimSpace(value)
	datePart, timePart, found := strings.Cut(value, " ")
	if !found {
		datePart, timePart, found = strings.Cut(value, "T")
	}
	if !found {
		return time.Time{}, false
	}

	date, ok := splitInts(datePart, "-", 3, 3)
	if !ok {
		return time.Time{}, false
	}
	clock, ok := splitInts(strings.TrimSpace(timePart), ":", 2, 3)
	if !ok {
		return time.Time{}, false
	}
	if len(clock) == 2 {
		clock = append(clock, 0)
	}

	return time.Date(date[0], time.Month(date[1]), date[2], clock[0], clock[1], clock[2], 0, loc), true
}

func splitInts(s, sep string, minParts, maxParts int) ([]int, bool) {
	parts := strings.Split(s, sep)
	if len(parts) < minParts || len(parts) > maxParts {
		return nil, false
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return nil, false
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
