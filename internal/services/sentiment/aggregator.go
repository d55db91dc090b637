package sentiment

import (
	"math"

	"TrendScanner/internal/domain/models"
)

const (
	balanceWeight  = 0.6
	strengthWeight = 0.4
	maxScore       = 2.0
)

// Aggregate combines the risk-approved records of one cycle into a 0-100
// score. Records not approved are ignored. With nothing to aggregate the
// result is undefined rather than neutral.
func Aggregate(records []models.ClassificationRecord) models.MarketSentiment {
	var bull, bear, neutral, sum int
	for _, r := range records {
		if !r.RiskApproved {
			continue
		}
		switch {
		case r.Score > 0:
			bull++
		case r.Score < 0:
			bear++
		default:
			neutral++
		}
		sum += r.Score
	}
	total := bull + bear + neutral
	if total == 0 {
		return models.MarketSentiment{Label: models.SentimentNoData}
	}
	return Compose(bull, bear, neutral, float64(sum)/float64(total))
}

// Compose builds the sentiment from direction counts and the mean
// directional score (in [-2, 2]) of the same records.
func Compose(bull, bear, neutral int, avg float64) models.MarketSentiment {
	total := bull + bear + neutral
	if total == 0 {
		return models.MarketSentiment{Label: models.SentimentNoData}
	}
	balance := float64(bull-bear) / float64(total)
	m := balanceWeight*balance + strengthWeight*(avg/maxScore)
	score := clamp((m+1)*50, 0, 100)

	return models.MarketSentiment{
		Defined:           true,
		Score:             score,
		Label:             Label(score),
		BullCount:         bull,
		BearCount:         bear,
		NeutralCount:      neutral,
		Total:             total,
		AvgSignalStrength: avg,
		DirBalance:        balance,
		Composite:         m,
	}
}

// Label maps a score to its band. Extreme bands include their boundary.
func Label(score float64) string {
	switch {
	case score >= 80:
		return models.SentimentEuphoria
	case score >= 60:
		return models.SentimentBullish
	case score <= 20:
		return models.SentimentPanic
	case score <= 40:
		return models.SentimentBearish
	default:
		return models.SentimentNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
