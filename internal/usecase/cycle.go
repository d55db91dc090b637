package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"TrendScanner/internal/domain/models"
	drepo "TrendScanner/internal/domain/repository"
	"TrendScanner/pkg/logger"
)

// Deliverer hands a finished cycle to the delivery pipeline.
type Deliverer interface {
	Submit(ctx context.Context, res *models.ScanResult) error
}

// ScanCycle runs the configured universe, keeps the latest result and
// forwards it for delivery. Cycles never overlap.
type ScanCycle struct {
	scanner     *Scanner
	store       drepo.ResultStore
	invalidator drepo.Invalidator
	delivery    Deliverer
	log         *logger.Logger
	request     models.ScanRequest
	mu          sync.Mutex
}

func NewScanCycle(scanner *Scanner, store drepo.ResultStore, invalidator drepo.Invalidator, delivery Deliverer, log *logger.Logger, request models.ScanRequest) *ScanCycle {
	return &ScanCycle{
		scanner:     scanner,
		store:       store,
		invalidator: invalidator,
		delivery:    delivery,
		log:         log,
		request:     request,
	}
}

// Run executes one cycle.
func (c *ScanCycle) Run(ctx context.Context) (*models.ScanResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run(ctx)
}

func (c *ScanCycle) run(ctx context.Context) (*models.ScanResult, error) {
	res, err := c.scanner.Scan(ctx, c.request)
	if err != nil {
		return nil, fmt.Errorf("scan cycle: %w", err)
	}
	if err := c.store.SaveLatest(ctx, res); err != nil {
		c.log.Error("save latest result", logger.Error(err))
	}
	if c.delivery != nil {
		if err := c.delivery.Submit(ctx, res); err != nil {
			c.log.Warn("result delivery deferred",
				logger.String("run_id", res.RunID.String()),
				logger.Error(err))
		}
	}
	return res, nil
}

// Refresh drops cached market data for the universe and runs a new cycle.
func (c *ScanCycle) Refresh(ctx context.Context) (*models.ScanResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.invalidator != nil {
		req, err := c.scanner.Resolve(c.request)
		if err != nil {
			return nil, err
		}
		if err := c.invalidator.Invalidate(ctx, req.Tickers); err != nil {
			c.log.Warn("invalidate market data cache", logger.Error(err))
		}
	}
	return c.run(ctx)
}

// Latest returns the most recent stored cycle.
func (c *ScanCycle) Latest(ctx context.Context) (*models.ScanResult, error) {
	res, err := c.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, models.ErrNoResult) {
			return nil, err
		}
		return nil, fmt.Errorf("load latest: %w", err)
	}
	return res, nil
}

// LatestOrRun returns the stored cycle, running one when none exists yet.
func (c *ScanCycle) LatestOrRun(ctx context.Context) (*models.ScanResult, error) {
	res, err := c.Latest(ctx)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, models.ErrNoResult) {
		c.log.Warn("latest result unavailable, rescanning", logger.Error(err))
	}
	return c.Run(ctx)
}
