// Package clickhouse opens the ClickHouse pool used for bar history and
// scan records, and owns their DDL.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// Client wraps the database/sql pool opened through the driver options.
type Client struct {
	db  *sql.DB
	cfg ClientConfig
}

// NewClient opens the pool and pings the server once.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" {
		return nil, errors.New("clickhouse: host is required")
	}

	db := ch.OpenDB(cfg.options())
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		var ex *ch.Exception
		if errors.As(err, &ex) {
			return nil, fmt.Errorf("clickhouse ping: [%d] %s", ex.Code, ex.Message)
		}
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{db: db, cfg: cfg}, nil
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InitSchema runs idempotent DDL, each statement bounded by the write
// timeout.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for i, stmt := range stmts {
		if err := c.exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema statement %d: %w", i, err)
		}
	}
	return nil
}

func (c *Client) exec(ctx context.Context, stmt string) error {
	if c.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()
	}
	_, err := c.db.ExecContext(ctx, stmt)
	return err
}
