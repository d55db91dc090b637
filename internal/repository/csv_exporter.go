package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
)

var csvHeader = []string{
	"ticker", "as_of", "price", "trend", "setup", "strikes", "expiry",
	"rationale", "note", "score", "risk_approved", "veto_reason", "rsi", "atr",
}

// WriteCSV writes records with a header row, in the given order.
func WriteCSV(w io.Writer, records []models.ClassificationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Ticker,
			r.AsOf.Format(time.DateOnly),
			strconv.FormatFloat(r.Price, 'f', 2, 64),
			string(r.Trend),
			string(r.Label),
			r.Strikes.Text,
			string(r.Expiry),
			string(r.Rationale),
			r.Note,
			strconv.Itoa(r.Score),
			strconv.FormatBool(r.RiskApproved),
			r.RiskVetoReason,
			strconv.FormatFloat(r.Snapshot.RSI, 'f', 1, 64),
			strconv.FormatFloat(r.Snapshot.ATR, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFileSink rewrites a CSV file with every cycle.
type CSVFileSink struct {
	path string
}

var _ domrepo.ResultSink = (*CSVFileSink)(nil)

func NewCSVFileSink(path string) *CSVFileSink {
	return &CSVFileSink{path: path}
}

func (s *CSVFileSink) Name() string { return "csv" }

// Deliver writes to a temp file next to path and renames it into place.
func (s *CSVFileSink) Deliver(_ context.Context, res *models.ScanResult) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csv dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".scan-*.csv")
	if err != nil {
		return fmt.Errorf("csv temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, res.Records); err != nil {
		tmp.Close()
		return fmt.Errorf("csv write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("csv rename: %w", err)
	}
	return nil
}

func (s *CSVFileSink) Close() error { return nil }
