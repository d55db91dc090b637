package models

import (
	"fmt"
	"sort"
)

// EngineParams holds every threshold the scan engine reads. Values are
// copied into each component at construction and never mutated afterwards.
type EngineParams struct {
	Name string `yaml:"name" json:"name"`

	MAShort  int `yaml:"ma_short" json:"ma_short" validate:"gte=2"`
	MAMedium int `yaml:"ma_medium" json:"ma_medium" validate:"gtfield=MAShort"`
	MALong   int `yaml:"ma_long" json:"ma_long" validate:"gtfield=MAMedium"`

	RSIPeriod      int `yaml:"rsi_period" json:"rsi_period" validate:"gte=2"`
	ATRPeriod      int `yaml:"atr_period" json:"atr_period" validate:"gte=1"`
	ChannelPeriod  int `yaml:"channel_period" json:"channel_period" validate:"gte=2"`
	HistoryPadding int `yaml:"history_padding" json:"history_padding" validate:"gte=2"`

	PullbackTol   float64 `yaml:"pullback_tol" json:"pullback_tol" validate:"gte=0,lt=1"`
	SpreadCallPct float64 `yaml:"spread_call_pct" json:"spread_call_pct" validate:"gt=0,lt=1"`
	SpreadPutPct  float64 `yaml:"spread_put_pct" json:"spread_put_pct" validate:"gt=0,lt=1"`
	RSIBandLow    float64 `yaml:"rsi_band_low" json:"rsi_band_low" validate:"gte=0,lte=100"`
	RSIBandHigh   float64 `yaml:"rsi_band_high" json:"rsi_band_high" validate:"gtfield=RSIBandLow,lte=100"`

	RSIOverbought float64 `yaml:"rsi_overbought" json:"rsi_overbought" validate:"gte=0,lte=100"`
	RSIOversold   float64 `yaml:"rsi_oversold" json:"rsi_oversold" validate:"gte=0,ltfield=RSIOverbought"`
	ATRCeiling    float64 `yaml:"atr_ceiling" json:"atr_ceiling" validate:"gt=0"`

	NewsWindowDays int `yaml:"news_window_days" json:"news_window_days" validate:"gte=0"`
	MonthsAhead    int `yaml:"months_ahead" json:"months_ahead" validate:"gte=1,lte=36"`
}

// MinBars is the shortest series the indicator engine accepts.
func (p EngineParams) MinBars() int { return p.MALong + p.HistoryPadding }

// Validate checks the relations between parameters that the engine depends on.
func (p EngineParams) Validate() error {
	switch {
	case p.MAShort < 2 || p.MAMedium <= p.MAShort || p.MALong <= p.MAMedium:
		return fmt.Errorf("%w: moving average windows must be increasing (%d/%d/%d)", ErrInvalidParams, p.MAShort, p.MAMedium, p.MALong)
	case p.RSIPeriod < 2 || p.ATRPeriod < 1:
		return fmt.Errorf("%w: rsi_period and atr_period must be positive", ErrInvalidParams)
	case p.ChannelPeriod < 2:
		return fmt.Errorf("%w: channel_period must be at least 2", ErrInvalidParams)
	case p.HistoryPadding < 2:
		return fmt.Errorf("%w: history_padding must be at least 2", ErrInvalidParams)
	case p.ChannelPeriod+1 > p.MinBars() || p.RSIPeriod+1 > p.MinBars() || p.ATRPeriod+1 > p.MinBars():
		// the channel is read one bar back and RSI/ATR need a prior close
		return fmt.Errorf("%w: channel_period, rsi_period and atr_period must each be below %d bars of history",
			ErrInvalidParams, p.MinBars())
	case p.PullbackTol < 0 || p.PullbackTol >= 1:
		return fmt.Errorf("%w: pullback_tol out of range", ErrInvalidParams)
	case p.SpreadCallPct <= 0 || p.SpreadCallPct >= 1 || p.SpreadPutPct <= 0 || p.SpreadPutPct >= 1:
		return fmt.Errorf("%w: spread offsets must be in (0,1)", ErrInvalidParams)
	case p.RSIBandLow < 0 || p.RSIBandHigh > 100 || p.RSIBandLow >= p.RSIBandHigh:
		return fmt.Errorf("%w: rsi band must satisfy 0 <= low < high <= 100", ErrInvalidParams)
	case p.RSIOversold < 0 || p.RSIOverbought > 100 || p.RSIOversold >= p.RSIOverbought:
		return fmt.Errorf("%w: rsi extremes must satisfy 0 <= oversold < overbought <= 100", ErrInvalidParams)
	case p.ATRCeiling <= 0:
		return fmt.Errorf("%w: atr_ceiling must be positive", ErrInvalidParams)
	case p.NewsWindowDays < 0:
		return fmt.Errorf("%w: news_window_days must not be negative", ErrInvalidParams)
	case p.MonthsAhead < 1:
		return fmt.Errorf("%w: months_ahead must be at least 1", ErrInvalidParams)
	}
	return nil
}

// DefaultParams returns the stock thresholds.
func DefaultParams() EngineParams {
	return EngineParams{
		Name:           PresetDefault,
		MAShort:        20,
		MAMedium:       50,
		MALong:         200,
		RSIPeriod:      14,
		ATRPeriod:      14,
		ChannelPeriod:  20,
		HistoryPadding: 5,
		PullbackTol:    0.02,
		SpreadCallPct:  0.04,
		SpreadPutPct:   0.04,
		RSIBandLow:     40,
		RSIBandHigh:    60,
		RSIOverbought:  75,
		RSIOversold:    25,
		ATRCeiling:     0.06,
		NewsWindowDays: 3,
		MonthsAhead:    6,
	}
}

// ConservativeParams tightens the pullback zone and the risk vetoes.
func ConservativeParams() EngineParams {
	p := DefaultParams()
	p.Name = PresetConservative
	p.PullbackTol = 0.01
	p.RSIBandLow = 45
	p.RSIBandHigh = 55
	p.RSIOverbought = 70
	p.RSIOversold = 30
	p.ATRCeiling = 0.04
	p.NewsWindowDays = 5
	return p
}

const (
	PresetDefault      = "default"
	PresetConservative = "conservative"
)

// Presets holds named parameter sets.
type Presets map[string]EngineParams

// BuiltinPresets returns a fresh copy of the shipped presets.
func BuiltinPresets() Presets {
	return Presets{
		PresetDefault:      DefaultParams(),
		PresetConservative: ConservativeParams(),
	}
}

// Get resolves a preset by name; an empty name selects the default preset.
func (ps Presets) Get(name string) (EngineParams, error) {
	if name == "" {
		name = PresetDefault
	}
	p, ok := ps[name]
	if !ok {
		return EngineParams{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// Names returns preset names in sorted order.
func (ps Presets) Names() []string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
