package models

// Requests for scanner HTTP endpoints. An empty preset or lookback falls back
// to the scanner defaults.

type ScanQuery struct {
	Tickers      string `query:"tickers" json:"tickers" validate:"max=2048"`
	Preset       string `query:"preset" json:"preset" validate:"max=32"`
	Lookback     string `query:"lookback" json:"lookback" validate:"omitempty,oneof=1y 2y 5y"`
	HideWait     bool   `query:"hide_wait" json:"hide_wait"`
	ApprovedOnly bool   `query:"approved_only" json:"approved_only"`
	Labels       string `query:"labels" json:"labels"`
}

// Custom reports whether the query asks for something other than the
// scheduled universe.
func (q ScanQuery) Custom() bool {
	return q.Tickers != "" || q.Preset != "" || q.Lookback != ""
}

type ScanJobRequest struct {
	Tickers  []string `json:"tickers" validate:"required,min=1,max=200,dive,required,max=12"`
	Preset   string   `json:"preset" validate:"max=32"`
	Lookback string   `json:"lookback" validate:"omitempty,oneof=1y 2y 5y"`
}

type AlertsQuery struct {
	Date   string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Preset string `query:"preset" json:"preset" validate:"max=32"`
}

type CalendarQuery struct {
	Months int    `query:"months" json:"months" default:"6" validate:"gte=1,lte=36"`
	Preset string `query:"preset" json:"preset" validate:"max=32"`
}

type SeriesQuery struct {
	Lookback string `query:"lookback" json:"lookback" default:"1y" validate:"oneof=1y 2y 5y"`
	Periods  string `query:"periods" json:"periods"`
	Preset   string `query:"preset" json:"preset" validate:"max=32"`
}
