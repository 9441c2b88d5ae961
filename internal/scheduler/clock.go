package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of a calendar date.
const DateLayout = "2006-01-02"

// Date is a civil calendar date without a location, e.g. 2024-01-02.
type Date string

// ParseDate validates s and returns it in canonical form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date(t.Format(DateLayout)), nil
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// At combines the date with a time of day in loc.
func (d Date) At(tod TimeOfDay, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, string(d), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", string(d))
	}
	h, m, s := tod.Clock()
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, loc), nil
}

func (d Date) String() string { return string(d) }

// TimeOfDay counts seconds since midnight.
type TimeOfDay int

// EndOfDay is the exclusive upper bound for a TimeOfDay.
const EndOfDay TimeOfDay = 24 * 60 * 60

// ParseTimeOfDay accepts HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, part := range parts {
		if len(part) != 2 || !isDigit(part[0]) || !isDigit(part[1]) {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
		}
		v := int(part[0]-'0')*10 + int(part[1]-'0')
		if v > limits[i] {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
		}
		values[i] = v
	}
	return NewTimeOfDay(values[0], values[1], values[2]), nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// NewTimeOfDay builds a TimeOfDay from clock components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// TimeOfDayOf returns the wall clock time of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

// Clock splits the value into hour, minute and second.
func (t TimeOfDay) Clock() (hour, minute, second int) {
	v := int(t)
	return v / 3600, (v % 3600) / 60, v % 60
}

// Valid reports whether t lies within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < EndOfDay
}

// String renders HH:MM, or HH:MM:SS when seconds are present.
func (t TimeOfDay) String() string {
	h, m, s := t.Clock()
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
