package models

// Sentiment labels.
const (
	SentimentEuphoria = "euphoria / strong bull"
	SentimentBullish  = "bullish bias"
	SentimentNeutral  = "neutral / balanced"
	SentimentBearish  = "bearish bias"
	SentimentPanic    = "panic / strong bear"
	SentimentNoData   = "no data"
)

// MarketSentiment is the market-wide aggregate of approved records.
// Defined is false when no approved record was available; Score is then zero.
type MarketSentiment struct {
	Defined           bool    `json:"defined"`
	Score             float64 `json:"score"`
	Label             string  `json:"label"`
	BullCount         int     `json:"bull_count"`
	BearCount         int     `json:"bear_count"`
	NeutralCount      int     `json:"neutral_count"`
	Total             int     `json:"total"`
	AvgSignalStrength float64 `json:"avg_signal_strength"`
	DirBalance        float64 `json:"dir_balance"`
	Composite         float64 `json:"composite"`
}
