package repository

import "time"

// Lookback is a history range understood by the market data providers.
type Lookback string

const (
	Lookback1y Lookback = "1y"
	Lookback2y Lookback = "2y"
	Lookback5y Lookback = "5y"
)

// Interval is the bar resolution. Only daily bars are analysed.
type Interval string

const IntervalDaily Interval = "1d"

// IsValidLookback returns true if lb is a supported range.
func IsValidLookback(lb Lookback) bool {
	switch lb {
	case Lookback1y, Lookback2y, Lookback5y:
		return true
	default:
		return false
	}
}

// DefaultLookback returns the default range.
func DefaultLookback() Lookback { return Lookback1y }

// NormalizeLookback converts raw string to a valid range (or default).
func NormalizeLookback(s string) Lookback {
	if s == "" {
		return DefaultLookback()
	}
	lb := Lookback(s)
	if IsValidLookback(lb) {
		return lb
	}
	return DefaultLookback()
}

// Start returns the first calendar day covered by lb when it ends at end.
func (lb Lookback) Start(end time.Time) time.Time {
	switch lb {
	case Lookback2y:
		return end.AddDate(-2, 0, 0)
	case Lookback5y:
		return end.AddDate(-5, 0, 0)
	default:
		return end.AddDate(-1, 0, 0)
	}
}
