package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
	pkgch "TrendScanner/pkg/clickhouse"
	applogger "TrendScanner/pkg/logger"
)

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	db       *sql.DB
	database string
	table    string
	init     func(ctx context.Context) error
	l        *applogger.Logger
}

var _ domrepo.BarStore = (*CHBarStore)(nil)

func NewCHBarStore(ch *pkgch.Client, database string) *CHBarStore {
	return &CHBarStore{
		db:       ch.DB(),
		database: database,
		table:    pkgch.Table(database, pkgch.DailyBarsTable),
		init: func(ctx context.Context) error {
			return ch.InitSchema(ctx, pkgch.SchemaStatements(database))
		},
		l: applogger.NewNop(),
	}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHBarStore) Init(ctx context.Context) error {
	return s.init(ctx)
}

const barInsertChunk = 2000

// buildBarInsert renders a multi-row insert for bars; incomplete bars are skipped.
func buildBarInsert(table, ticker string, bars []models.Bar) (string, []interface{}) {
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*7)
	for _, b := range bars {
		if !b.Complete() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, ticker, b.Date.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (ticker, date, open, high, low, close, volume) VALUES %s", table, strings.Join(values, ","))
	return q, args
}

func (s *CHBarStore) StoreBars(ctx context.Context, series []models.PriceSeries) error {
	start := time.Now()
	rows := 0
	for _, ps := range series {
		for from := 0; from < len(ps.Bars); from += barInsertChunk {
			to := from + barInsertChunk
			if to > len(ps.Bars) {
				to = len(ps.Bars)
			}
			q, args := buildBarInsert(s.table, ps.Ticker, ps.Bars[from:to])
			if q == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
				s.l.Error("clickhouse store_bars error",
					applogger.String("table", s.table),
					applogger.String("ticker", ps.Ticker),
					applogger.Error(err),
				)
				return fmt.Errorf("store bars %s: %w", ps.Ticker, err)
			}
			rows += len(args) / 7
		}
	}
	s.l.Debug("clickhouse store_bars ok",
		applogger.String("table", s.table),
		applogger.Int("series", len(series)),
		applogger.Int("rows", rows),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHBarStore) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT date, argMax(open, ingested_at), argMax(high, ingested_at), argMax(low, ingested_at),
               argMax(close, ingested_at), argMax(volume, ingested_at)
        FROM %s
        WHERE ticker = ? AND date >= ? AND date <= ?
        GROUP BY date
        ORDER BY date ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse get_bars query error",
			applogger.String("table", s.table),
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 512)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = b.Date.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse get_bars ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHBarStore) Close() error {
	return nil // Managed by pkg
}

// BarStoreMarketData serves daily bars from a BarStore.
type BarStoreMarketData struct {
	store domrepo.BarStore
	now   func() time.Time
}

var _ domrepo.MarketData = (*BarStoreMarketData)(nil)

func NewBarStoreMarketData(store domrepo.BarStore) *BarStoreMarketData {
	return &BarStoreMarketData{store: store, now: time.Now}
}

func (m *BarStoreMarketData) FetchDaily(ctx context.Context, tickers []string, lookback domrepo.Lookback, interval domrepo.Interval) (map[string]models.PriceSeries, map[string]error) {
	out := make(map[string]models.PriceSeries, len(tickers))
	errs := make(map[string]error)
	if interval != "" && interval != domrepo.IntervalDaily {
		for _, t := range tickers {
			errs[t] = fmt.Errorf("unsupported interval: %s", interval)
		}
		return out, errs
	}
	end := m.now().UTC()
	from := lookback.Start(end)
	for _, t := range tickers {
		bars, err := m.store.GetBars(ctx, t, from, end)
		if err != nil {
			errs[t] = err
			continue
		}
		if len(bars) == 0 {
			continue
		}
		out[t] = models.PriceSeries{Ticker: t, Bars: bars}
	}
	return out, errs
}
