package indicators

import (
	"fmt"

	"TrendScanner/internal/domain/models"
)

// ValidateSeries checks that every bar carries finite High/Low/Close values
// and that dates are strictly increasing.
func ValidateSeries(series models.PriceSeries) error {
	if len(series.Bars) == 0 {
		return fmt.Errorf("%w: %s has no bars", models.ErrMalformedSeries, series.Ticker)
	}
	for i, b := range series.Bars {
		if !b.Complete() {
			return fmt.Errorf("%w: %s bar %d (%s) has non-finite prices", models.ErrMalformedSeries, series.Ticker, i, b.Date.Format("2006-01-02"))
		}
		if i > 0 && !b.Date.After(series.Bars[i-1].Date) {
			return fmt.Errorf("%w: %s dates not increasing at bar %d", models.ErrMalformedSeries, series.Ticker, i)
		}
	}
	return nil
}

// lastValue returns the final element of a talib output.
func lastValue(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

// warmedUp converts a talib output into pointers, nil for the first period-1 slots.
func warmedUp(v []float64, period int) []*float64 {
	out := make([]*float64, len(v))
	for i := range v {
		if i < period-1 {
			continue
		}
		x := v[i]
		out[i] = &x
	}
	return out
}
