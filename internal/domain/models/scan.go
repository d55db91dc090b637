package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanRequest describes one scan cycle.
type ScanRequest struct {
	Tickers  []string
	Preset   string
	Lookback string
	Interval string
}

// ScanResult is the output of one cycle. Records follow the order of the
// requested tickers; instruments that could not be analysed are listed in
// Skipped with the reason.
type ScanResult struct {
	RunID         uuid.UUID              `json:"run_id"`
	GeneratedAt   time.Time              `json:"generated_at"`
	ReferenceDate time.Time              `json:"reference_date"`
	Preset        string                 `json:"preset"`
	Records       []ClassificationRecord `json:"records"`
	Sentiment     MarketSentiment        `json:"sentiment"`
	Alerts        []Alert                `json:"alerts"`
	Skipped       map[string]string      `json:"skipped,omitempty"`
}

// Approved returns the records that passed the risk filter.
func (r *ScanResult) Approved() []ClassificationRecord {
	out := make([]ClassificationRecord, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.RiskApproved {
			out = append(out, rec)
		}
	}
	return out
}

// CountByLabel tallies records per setup label.
func (r *ScanResult) CountByLabel() map[SetupLabel]int {
	out := make(map[SetupLabel]int, len(AllLabels))
	for _, rec := range r.Records {
		out[rec.Label]++
	}
	return out
}

// RecordFilter narrows a record list for presentation.
type RecordFilter struct {
	HideWait     bool
	ApprovedOnly bool
	Labels       []SetupLabel
}

// Apply returns the records matching the filter, keeping their order.
func (f RecordFilter) Apply(records []ClassificationRecord) []ClassificationRecord {
	allowed := make(map[SetupLabel]struct{}, len(f.Labels))
	for _, l := range f.Labels {
		allowed[l] = struct{}{}
	}
	out := make([]ClassificationRecord, 0, len(records))
	for _, rec := range records {
		if f.HideWait && rec.Label == LabelWait {
			continue
		}
		if f.ApprovedOnly && !rec.RiskApproved {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[rec.Label]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// Job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// ScanJobStatus tracks an asynchronous scan.
type ScanJobStatus struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Request   ScanRequest `json:"request"`
	Error     string      `json:"error,omitempty"`
	Result    *ScanResult `json:"result,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SeriesOverlay is chart data for one instrument. SMA values are nil
// until the window has enough bars.
type SeriesOverlay struct {
	Ticker string                `json:"ticker"`
	Bars   []Bar                 `json:"bars"`
	SMA    map[string][]*float64 `json:"sma"`
}
