package service

import (
	"time"

	"TrendScanner/internal/domain/models"
)

// IndicatorEngine derives the indicator snapshot for the last bar of a series.
type IndicatorEngine interface {
	Snapshot(series models.PriceSeries) (models.IndicatorSnapshot, error)
	Overlay(series models.PriceSeries, periods ...int) (models.SeriesOverlay, error)
}

// SetupClassifier maps a snapshot to a setup record.
type SetupClassifier interface {
	Classify(ticker string, snap models.IndicatorSnapshot) (models.ClassificationRecord, error)
}

// RiskFilter vetoes directional candidates.
type RiskFilter interface {
	Evaluate(direction models.TrendDirection, snap models.IndicatorSnapshot) (bool, string)
}

// MacroCalendar estimates macro release dates and the alerts around them.
type MacroCalendar interface {
	GenerateEvents(monthsAhead int) []models.MacroEvent
	Alerts(reference time.Time) []models.Alert
}
