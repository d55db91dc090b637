package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	for _, in := range []string{
		"2024-10-10T10:10:10Z",
		"2024-10-10T10:10:10",
		"2024-10-10T06:10:10-04:00",
		strconv.FormatInt(want.Unix(), 10),
	} {
		got, ok := ParseTime(in)
		if !ok {
			t.Fatalf("expected %q to parse", in)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: unexpected time %v", in, got)
		}
	}
	for _, in := range []string{"", "yesterday", "-5", "2024-13-01"} {
		if _, ok := ParseTime(in); ok {
			t.Fatalf("expected %q to fail", in)
		}
	}
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 3, 14, 22, 0, 0, 0, time.UTC)
	got, ok := ParseDate("", now)
	if !ok || !got.Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected today's date, got %v", got)
	}
	got, ok = ParseDate("2025-03-18T15:30:00Z", now)
	if !ok || got.Day() != 18 || got.Hour() != 0 {
		t.Fatalf("unexpected date %v", got)
	}
	if _, ok := ParseDate("03/18/2025", now); ok {
		t.Fatalf("expected failure")
	}
}

func TestDaysBetween(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	a := time.Date(2025, 3, 7, 23, 30, 0, 0, ny)
	b := time.Date(2025, 3, 10, 0, 5, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 3 {
		t.Fatalf("expected 3 days, got %d", got)
	}
	if got := DaysBetween(b, a); got != -3 {
		t.Fatalf("expected -3 days, got %d", got)
	}
	if got := DaysBetween(a, a.Add(time.Hour)); got != 1 {
		t.Fatalf("expected calendar day change to count, got %d", got)
	}
}

func TestSplitListAndTickers(t *testing.T) {
	got := NormalizeTickers(SplitList(" spy, qqq ,,SPY,aapl "))
	want := []string{"SPY", "QQQ", "AAPL"}
	if len(got) != len(want) {
		t.Fatalf("unexpected tickers %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected tickers %v", got)
		}
	}
	if SplitList("  ") != nil {
		t.Fatalf("expected nil for blank list")
	}
	ints := ParseIntList("20, x, 50")
	if len(ints) != 2 || ints[0] != 20 || ints[1] != 50 {
		t.Fatalf("unexpected ints %v", ints)
	}
	if ParseIntDefault("abc", 7) != 7 {
		t.Fatalf("expected default")
	}
}
