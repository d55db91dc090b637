package macro

import "time"

// FirstWeekday returns the first wd of the month.
func FirstWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset)
}

// LastWeekday returns the last wd of the month.
func LastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// NthWeekday returns the n-th (1-based) wd of the month. ok is false when
// the month has fewer than n such days or n < 1.
func NthWeekday(year int, month time.Month, wd time.Weekday, n int) (time.Time, bool) {
	if n < 1 || month < time.January || month > time.December {
		return time.Time{}, false
	}
	d := FirstWeekday(year, month, wd).AddDate(0, 0, 7*(n-1))
	if d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}
