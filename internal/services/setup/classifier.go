package setup

import (
	"fmt"

	"github.com/shopspring/decimal"

	"TrendScanner/internal/domain/models"
)

// Rationale notes shown next to the tag.
const (
	NoteBullBreakout = "explosive breakout above the 20-day channel"
	NoteBullPullback = "pullback (correction) toward the 20-day average"
	NoteBearBreakout = "support lost below the 20-day channel"
	NoteBearPullback = "relief bounce to sell into"
	NoteTrendWait    = "trend intact, no entry"
	NoteNoTrend      = "no clear trend"
)

// Classifier is the trend/setup state machine. It keeps no state between calls.
type Classifier struct {
	p models.EngineParams
}

func NewClassifier(params models.EngineParams) *Classifier {
	return &Classifier{p: params}
}

// Direction returns the primary trend of snap.
func Direction(snap models.IndicatorSnapshot) models.TrendDirection {
	switch {
	case snap.Price > snap.MALong && snap.MAMedium > snap.MALong:
		return models.TrendBull
	case snap.Price < snap.MALong && snap.MAMedium < snap.MALong:
		return models.TrendBear
	default:
		return models.TrendNone
	}
}

// IsBreakout reports whether price left the previous bar's channel in the trend direction.
func (c *Classifier) IsBreakout(dir models.TrendDirection, snap models.IndicatorSnapshot) bool {
	switch dir {
	case models.TrendBull:
		return snap.Price > snap.ChannelHighPrev
	case models.TrendBear:
		return snap.Price < snap.ChannelLowPrev
	}
	return false
}

// IsPullback reports whether price sits near the short average with neutral momentum.
func (c *Classifier) IsPullback(dir models.TrendDirection, snap models.IndicatorSnapshot) bool {
	inBand := snap.RSI > c.p.RSIBandLow && snap.RSI < c.p.RSIBandHigh
	switch dir {
	case models.TrendBull:
		return inBand && snap.Price <= snap.MAShort*(1+c.p.PullbackTol)
	case models.TrendBear:
		return inBand && snap.Price >= snap.MAShort*(1-c.p.PullbackTol)
	}
	return false
}

// Classify maps snap to a setup record. Breakout is checked before pullback,
// so at most one of them is reported. Risk fields are left approved; the
// risk filter decides them.
func (c *Classifier) Classify(ticker string, snap models.IndicatorSnapshot) (models.ClassificationRecord, error) {
	if snap.Degenerate() {
		return models.ClassificationRecord{}, fmt.Errorf("%w: %s price=%v", models.ErrDegenerateSnapshot, ticker, snap.Price)
	}

	rec := models.ClassificationRecord{
		Ticker:         ticker,
		AsOf:           snap.AsOf,
		Price:          snap.Price,
		Trend:          Direction(snap),
		Label:          models.LabelWait,
		Rationale:      models.RationaleNone,
		Note:           NoteTrendWait,
		Expiry:         models.ExpiryNone,
		Strikes:        models.StrikeHint{Text: "-"},
		RiskApproved:   true,
		RiskVetoReason: models.VetoNone,
		Snapshot:       snap,
	}
	price := decimal.NewFromFloat(snap.Price)

	switch rec.Trend {
	case models.TrendBull:
		switch {
		case c.IsBreakout(models.TrendBull, snap):
			c.outright(&rec, price, models.LabelLongCall, NoteBullBreakout, 2)
		case c.IsPullback(models.TrendBull, snap):
			short := price.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(c.p.SpreadCallPct)))
			c.spread(&rec, price, short, models.LabelBullCallSpread, NoteBullPullback, 1)
		}
	case models.TrendBear:
		switch {
		case c.IsBreakout(models.TrendBear, snap):
			c.outright(&rec, price, models.LabelLongPut, NoteBearBreakout, -2)
		case c.IsPullback(models.TrendBear, snap):
			short := price.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(c.p.SpreadPutPct)))
			c.spread(&rec, price, short, models.LabelBearPutSpread, NoteBearPullback, -1)
		}
	default:
		rec.Note = NoteNoTrend
	}
	return rec, nil
}

func (c *Classifier) outright(rec *models.ClassificationRecord, price decimal.Decimal, label models.SetupLabel, note string, score int) {
	rec.Label = label
	rec.Rationale = models.RationaleBreakout
	rec.Note = note
	rec.Expiry = models.ExpiryShort
	rec.Strikes = models.StrikeHint{Long: price, Text: "$" + strikeText(price) + " (ATM)"}
	rec.Score = score
}

func (c *Classifier) spread(rec *models.ClassificationRecord, long, short decimal.Decimal, label models.SetupLabel, note string, score int) {
	rec.Label = label
	rec.Rationale = models.RationalePullback
	rec.Note = note
	rec.Expiry = models.ExpiryMedium
	rec.Strikes = models.StrikeHint{
		Long:  long,
		Short: short.Round(2),
		Text:  fmt.Sprintf("C:$%s / V:$%s", strikeText(long), strikeText(short)),
	}
	rec.Score = score
}

// strikeText prints whole dollars, ties to even.
func strikeText(d decimal.Decimal) string {
	return d.StringFixedBank(0)
}
