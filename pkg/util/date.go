package util

import (
	"strconv"
	"time"
)

var timeLayouts = []string{time.DateOnly, time.RFC3339Nano, "2006-01-02T15:04:05"}

// ParseTime accepts a calendar date, an RFC 3339 timestamp or positive unix
// seconds. Zone-less values are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseDate is ParseTime reduced to the calendar date. Empty input yields
// def.
func ParseDate(s string, def time.Time) (time.Time, bool) {
	if s == "" {
		return DateOnly(def), true
	}
	t, ok := ParseTime(s)
	if !ok {
		return time.Time{}, false
	}
	return DateOnly(t), true
}

// DateOnly returns midnight UTC of t's calendar date in t's own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b, negative when b is earlier.
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}
