package risk

import (
	"fmt"
	"math"
	"strings"

	"TrendScanner/internal/domain/models"
	"TrendScanner/pkg/logger"
)

// Filter vetoes directional candidates that are too volatile or stretched.
// A fault while evaluating approves the candidate and tags the reason, so a
// broken filter never hides every signal.
type Filter struct {
	atrCeiling float64
	overbought float64
	oversold   float64
	log        *logger.Logger
}

func NewFilter(params models.EngineParams, log *logger.Logger) *Filter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Filter{
		atrCeiling: params.ATRCeiling,
		overbought: params.RSIOverbought,
		oversold:   params.RSIOversold,
		log:        log,
	}
}

// Evaluate returns whether the candidate is approved and why not.
// The reason is "-" when approved.
func (f *Filter) Evaluate(direction models.TrendDirection, snap models.IndicatorSnapshot) (approved bool, reason string) {
	if direction == models.TrendNone {
		return true, models.VetoNone
	}
	defer func() {
		if r := recover(); r != nil {
			f.failOpen(snap, fmt.Errorf("panic: %v", r))
			approved, reason = true, models.VetoFilterError
		}
	}()

	failures, err := f.check(direction, snap)
	if err != nil {
		f.failOpen(snap, err)
		return true, models.VetoFilterError
	}
	if len(failures) == 0 {
		return true, models.VetoNone
	}
	return false, strings.Join(failures, ", ")
}

func (f *Filter) check(direction models.TrendDirection, snap models.IndicatorSnapshot) ([]string, error) {
	if snap.Price <= 0 || math.IsNaN(snap.Price) {
		return nil, fmt.Errorf("non-positive price %v", snap.Price)
	}
	ratio := snap.ATR / snap.Price
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, fmt.Errorf("atr ratio not finite (atr=%v price=%v)", snap.ATR, snap.Price)
	}
	if math.IsNaN(snap.RSI) {
		return nil, fmt.Errorf("rsi not a number")
	}

	var failures []string
	if ratio > f.atrCeiling {
		failures = append(failures, models.VetoVolatility)
	}
	switch direction {
	case models.TrendBull:
		if snap.RSI > f.overbought {
			failures = append(failures, models.VetoOverbought)
		}
	case models.TrendBear:
		if snap.RSI < f.oversold {
			failures = append(failures, models.VetoOversold)
		}
	}
	return failures, nil
}

func (f *Filter) failOpen(snap models.IndicatorSnapshot, err error) {
	f.log.Warn("risk filter not applied",
		logger.String("ticker", snap.Ticker),
		logger.Error(err),
	)
}
