package indicators

import (
	"fmt"
	"strconv"

	"github.com/markcheno/go-talib"

	"TrendScanner/internal/domain/models"
)

// Engine computes indicator snapshots with a fixed parameter set.
type Engine struct {
	params models.EngineParams
}

// NewEngine returns an engine bound to params.
func NewEngine(params models.EngineParams) *Engine {
	return &Engine{params: params}
}

// Params returns the parameters the engine was built with.
func (e *Engine) Params() models.EngineParams { return e.params }

// Snapshot computes SMA, RSI (Wilder), ATR (simple mean of true range) and the
// Donchian channel of the previous bar for the last bar of series.
// The series is read only.
func (e *Engine) Snapshot(series models.PriceSeries) (models.IndicatorSnapshot, error) {
	if err := ValidateSeries(series); err != nil {
		return models.IndicatorSnapshot{}, err
	}
	p := e.params
	n := series.Len()
	if n < p.MinBars() {
		return models.IndicatorSnapshot{}, fmt.Errorf("%w: %s has %d bars, need %d", models.ErrInsufficientHistory, series.Ticker, n, p.MinBars())
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	last := n - 1

	return models.IndicatorSnapshot{
		Ticker:          series.Ticker,
		AsOf:            series.Bars[last].Date,
		Price:           closes[last],
		MAShort:         lastValue(talib.Sma(closes, p.MAShort)),
		MAMedium:        lastValue(talib.Sma(closes, p.MAMedium)),
		MALong:          lastValue(talib.Sma(closes, p.MALong)),
		RSI:             lastValue(talib.Rsi(closes, p.RSIPeriod)),
		ATR:             lastValue(talib.Sma(talib.TRange(highs, lows, closes), p.ATRPeriod)),
		ChannelHighPrev: talib.Max(highs, p.ChannelPeriod)[last-1],
		ChannelLowPrev:  talib.Min(lows, p.ChannelPeriod)[last-1],
	}, nil
}

// Overlay returns the bars with simple moving averages aligned to them.
// Without explicit periods the short and medium windows are used.
func (e *Engine) Overlay(series models.PriceSeries, periods ...int) (models.SeriesOverlay, error) {
	if err := ValidateSeries(series); err != nil {
		return models.SeriesOverlay{}, err
	}
	if len(periods) == 0 {
		periods = []int{e.params.MAShort, e.params.MAMedium}
	}
	closes := series.Closes()
	out := models.SeriesOverlay{
		Ticker: series.Ticker,
		Bars:   series.Bars,
		SMA:    make(map[string][]*float64, len(periods)),
	}
	for _, period := range periods {
		if period < 2 {
			return models.SeriesOverlay{}, fmt.Errorf("%w: sma period %d", models.ErrInvalidParams, period)
		}
		key := "ma" + strconv.Itoa(period)
		if period > len(closes) {
			out.SMA[key] = make([]*float64, len(closes))
			continue
		}
		out.SMA[key] = warmedUp(talib.Sma(closes, period), period)
	}
	return out, nil
}
