package clickhouse

import "fmt"

const (
	DailyBarsTable   = "daily_bars"
	ScanRecordsTable = "scan_records"
)

// SchemaStatements returns the idempotent DDL for database.
func SchemaStatements(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    ticker LowCardinality(String),
    date Date,
    open Float64,
    high Float64,
    low Float64,
    close Float64,
    volume Float64,
    ingested_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (ticker, date)`, database, DailyBarsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    run_id UUID,
    generated_at DateTime64(3),
    reference_date Date,
    preset LowCardinality(String),
    ticker LowCardinality(String),
    as_of Date,
    price Float64,
    trend LowCardinality(String),
    label LowCardinality(String),
    rationale LowCardinality(String),
    expiry LowCardinality(String),
    strikes String,
    score Int8,
    risk_approved UInt8,
    veto_reason String,
    rsi Float64,
    atr Float64,
    ma_short Float64,
    ma_medium Float64,
    ma_long Float64
) ENGINE = MergeTree
PARTITION BY toYYYYMM(reference_date)
ORDER BY (reference_date, ticker, run_id)`, database, ScanRecordsTable),
	}
}

// Table qualifies name with database.
func Table(database, name string) string {
	return database + "." + name
}
