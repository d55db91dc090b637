package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
	pkgch "TrendScanner/pkg/clickhouse"
)

const scanRecordColumns = 20

// CHScanSink appends every classification record of a cycle to ClickHouse.
type CHScanSink struct {
	db    *sql.DB
	table string
}

var _ domrepo.ResultSink = (*CHScanSink)(nil)

func NewCHScanSink(ch *pkgch.Client, database string) *CHScanSink {
	return &CHScanSink{db: ch.DB(), table: pkgch.Table(database, pkgch.ScanRecordsTable)}
}

func (s *CHScanSink) Name() string { return "clickhouse" }

func buildRecordInsert(table string, res *models.ScanResult, records []models.ClassificationRecord) (string, []interface{}) {
	if len(records) == 0 {
		return "", nil
	}
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", scanRecordColumns), ", ") + ")"
	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*scanRecordColumns)
	for _, r := range records {
		approved := uint8(0)
		if r.RiskApproved {
			approved = 1
		}
		values = append(values, placeholders)
		args = append(args,
			res.RunID.String(),
			res.GeneratedAt.UTC(),
			res.ReferenceDate.UTC(),
			res.Preset,
			r.Ticker,
			r.AsOf.UTC(),
			r.Price,
			string(r.Trend),
			string(r.Label),
			string(r.Rationale),
			string(r.Expiry),
			r.Strikes.Text,
			int8(r.Score),
			approved,
			r.RiskVetoReason,
			r.Snapshot.RSI,
			r.Snapshot.ATR,
			r.Snapshot.MAShort,
			r.Snapshot.MAMedium,
			r.Snapshot.MALong,
		)
	}
	q := fmt.Sprintf(`INSERT INTO %s (run_id, generated_at, reference_date, preset, ticker, as_of, price, trend, label, rationale, expiry, strikes, score, risk_approved, veto_reason, rsi, atr, ma_short, ma_medium, ma_long) VALUES %s`,
		table, strings.Join(values, ","))
	return q, args
}

func (s *CHScanSink) Deliver(ctx context.Context, res *models.ScanResult) error {
	q, args := buildRecordInsert(s.table, res, res.Records)
	if q == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert scan records: %w", err)
	}
	return nil
}

func (s *CHScanSink) Close() error {
	return nil // Managed by pkg
}
