package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TrendScanner/internal/domain/models"
	drepo "TrendScanner/internal/domain/repository"
	"TrendScanner/pkg/logger"
	"TrendScanner/pkg/queue"
)

const ScanJobType = "scan.adhoc"

// ScanJobPayload is the queued message body.
type ScanJobPayload struct {
	JobID    string   `json:"job_id"`
	Tickers  []string `json:"tickers"`
	Preset   string   `json:"preset"`
	Lookback string   `json:"lookback"`
}

// ScanJobs queues custom-universe scans and runs them from the queue.
type ScanJobs struct {
	scanner  *Scanner
	statuses drepo.JobStatusStore
	queue    queue.Publisher
	log      *logger.Logger
	now      func() time.Time
}

var _ queue.Job = (*ScanJobs)(nil)

func NewScanJobs(scanner *Scanner, statuses drepo.JobStatusStore, q queue.Publisher, log *logger.Logger) *ScanJobs {
	return &ScanJobs{scanner: scanner, statuses: statuses, queue: q, log: log, now: time.Now}
}

func (j *ScanJobs) Type() string { return ScanJobType }

// Submit validates req, records it as queued and enqueues it.
func (j *ScanJobs) Submit(ctx context.Context, req models.ScanRequest) (*models.ScanJobStatus, error) {
	req, err := j.scanner.Resolve(req)
	if err != nil {
		return nil, err
	}
	now := j.now().UTC()
	st := &models.ScanJobStatus{
		ID:        uuid.NewString(),
		Status:    models.JobQueued,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := j.statuses.SaveJob(ctx, st); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	payload := ScanJobPayload{JobID: st.ID, Tickers: req.Tickers, Preset: req.Preset, Lookback: req.Lookback}
	if err := j.queue.Publish(ctx, ScanJobType, payload); err != nil {
		j.finish(ctx, st, nil, err)
		return nil, fmt.Errorf("enqueue scan job: %w", err)
	}
	j.log.Info("scan job queued", logger.String("job_id", st.ID), logger.Int("tickers", len(req.Tickers)))
	return st, nil
}

// Status returns the job state.
func (j *ScanJobs) Status(ctx context.Context, id string) (*models.ScanJobStatus, error) {
	st, err := j.statuses.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return st, nil
}

// Handle runs a queued scan. Scan failures are terminal and stored on the
// job; only status store failures are returned so the queue retries them.
func (j *ScanJobs) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.Decode[ScanJobPayload](payload)
	if err != nil {
		return fmt.Errorf("scan job payload: %w", err)
	}

	st, err := j.statuses.GetJob(ctx, p.JobID)
	if err != nil {
		if !errors.Is(err, models.ErrJobNotFound) {
			return err
		}
		st = &models.ScanJobStatus{ID: p.JobID, CreatedAt: j.now().UTC()}
	}
	st.Request = models.ScanRequest{Tickers: p.Tickers, Preset: p.Preset, Lookback: p.Lookback}
	st.Status = models.JobRunning
	st.UpdatedAt = j.now().UTC()
	if err := j.statuses.SaveJob(ctx, st); err != nil {
		return err
	}

	res, scanErr := j.scanner.Scan(ctx, st.Request)
	return j.finish(ctx, st, res, scanErr)
}

func (j *ScanJobs) finish(ctx context.Context, st *models.ScanJobStatus, res *models.ScanResult, scanErr error) error {
	st.UpdatedAt = j.now().UTC()
	if scanErr != nil {
		st.Status = models.JobFailed
		st.Error = scanErr.Error()
		j.log.Warn("scan job failed", logger.String("job_id", st.ID), logger.Error(scanErr))
	} else {
		st.Status = models.JobCompleted
		st.Result = res
	}
	return j.statuses.SaveJob(ctx, st)
}
