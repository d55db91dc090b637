package models

import (
	"math"
	"time"
)

// IndicatorSnapshot holds the indicator readings at the most recent bar.
// ChannelHighPrev and ChannelLowPrev are taken one bar earlier so that
// today's range is not part of the channel it is compared against.
type IndicatorSnapshot struct {
	Ticker          string    `json:"ticker"`
	AsOf            time.Time `json:"as_of"`
	Price           float64   `json:"price"`
	MAShort         float64   `json:"ma_short"`
	MAMedium        float64   `json:"ma_medium"`
	MALong          float64   `json:"ma_long"`
	RSI             float64   `json:"rsi"`
	ATR             float64   `json:"atr"`
	ChannelHighPrev float64   `json:"channel_high_prev"`
	ChannelLowPrev  float64   `json:"channel_low_prev"`
}

// Degenerate reports whether the snapshot cannot be classified safely.
func (s IndicatorSnapshot) Degenerate() bool {
	if s.Price <= 0 {
		return true
	}
	for _, v := range []float64{s.Price, s.MAShort, s.MAMedium, s.MALong, s.RSI, s.ATR, s.ChannelHighPrev, s.ChannelLowPrev} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
