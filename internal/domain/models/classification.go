package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrendDirection is the primary trend state of an instrument.
type TrendDirection string

const (
	TrendBull TrendDirection = "bull"
	TrendBear TrendDirection = "bear"
	TrendNone TrendDirection = "none"
)

// SetupLabel names the suggested options structure.
type SetupLabel string

const (
	LabelLongCall       SetupLabel = "long call (outright)"
	LabelBullCallSpread SetupLabel = "bull call spread"
	LabelLongPut        SetupLabel = "long put (outright)"
	LabelBearPutSpread  SetupLabel = "bear put spread"
	LabelWait           SetupLabel = "wait"
)

// AllLabels lists every setup label in display order.
var AllLabels = []SetupLabel{LabelLongCall, LabelBullCallSpread, LabelLongPut, LabelBearPutSpread, LabelWait}

// Rationale tags which sub-state produced the label.
type Rationale string

const (
	RationaleBreakout Rationale = "breakout"
	RationalePullback Rationale = "pullback"
	RationaleNone     Rationale = "none"
)

// ExpiryHorizon is the suggested time to expiration.
type ExpiryHorizon string

const (
	ExpiryShort  ExpiryHorizon = "short (15-30d)"
	ExpiryMedium ExpiryHorizon = "medium (30-45d)"
	ExpiryNone   ExpiryHorizon = "none"
)

// Risk veto reasons.
const (
	VetoNone        = "-"
	VetoVolatility  = "volatility extreme"
	VetoOverbought  = "RSI overbought"
	VetoOversold    = "RSI oversold"
	VetoFilterError = "filter error (not applied)"
)

// StrikeHint is the heuristic strike suggestion. Short is zero for outright positions.
type StrikeHint struct {
	Long  decimal.Decimal `json:"long"`
	Short decimal.Decimal `json:"short"`
	Text  string          `json:"text"`
}

// IsSpread reports whether the hint carries a second leg.
func (h StrikeHint) IsSpread() bool { return !h.Short.IsZero() }

// ClassificationRecord is the per-instrument outcome of one scan cycle.
type ClassificationRecord struct {
	Ticker         string            `json:"ticker"`
	AsOf           time.Time         `json:"as_of"`
	Price          float64           `json:"price"`
	Trend          TrendDirection    `json:"trend_direction"`
	Label          SetupLabel        `json:"setup_label"`
	Rationale      Rationale         `json:"rationale"`
	Note           string            `json:"note"`
	Expiry         ExpiryHorizon     `json:"expiry_horizon"`
	Strikes        StrikeHint        `json:"strike_hint"`
	Score          int               `json:"directional_score"`
	RiskApproved   bool              `json:"risk_approved"`
	RiskVetoReason string            `json:"risk_veto_reason"`
	Snapshot       IndicatorSnapshot `json:"snapshot"`
}

// Actionable reports whether the record suggests opening a position.
func (r ClassificationRecord) Actionable() bool {
	return r.Label != LabelWait && r.RiskApproved
}
