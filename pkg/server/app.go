package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"TrendScanner/internal/domain/models"
	"TrendScanner/internal/middleware"
	"TrendScanner/internal/repository"
	"TrendScanner/internal/service/scheduler"
	"TrendScanner/internal/usecase"
	"TrendScanner/pkg/config"
	xhttp "TrendScanner/pkg/http"
	applogger "TrendScanner/pkg/logger"
)

// Consumer runs queued scan jobs in the background.
type Consumer interface {
	Start() error
	Stop(ctx context.Context) error
}

// Closer releases an infrastructure client on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	cycle      *usecase.ScanCycle
	pipeline   *middleware.DeliveryPipeline
	scheduler  *scheduler.Scheduler
	httpServer *xhttp.Server
	consumer   Consumer
	closers    []Closer
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	cycle *usecase.ScanCycle,
	pipeline *middleware.DeliveryPipeline,
	sched *scheduler.Scheduler,
	httpServer *xhttp.Server,
	consumer Consumer,
	closers []Closer,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		cycle:      cycle,
		pipeline:   pipeline,
		scheduler:  sched,
		httpServer: httpServer,
		consumer:   consumer,
		closers:    closers,
	}
}

// Run starts the application and blocks until interrupted or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.pipeline.Start(ctx)

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("scan job consumer start error", applogger.Error(err))
			return a.shutdown(err)
		}
		a.log.Info("scan job consumer started", applogger.Int("workers", a.cfg.Queue.Workers))
	}

	id, err := a.scheduler.Add("scan-cycle", a.cfg.Scanner.Schedule, func(ctx context.Context) error {
		_, err := a.cycle.Run(ctx)
		return err
	})
	if err != nil {
		return a.shutdown(err)
	}
	a.scheduler.Start()
	a.log.Info("scan cycle scheduled",
		applogger.String("schedule", a.cfg.Scanner.Schedule),
		applogger.Time("next_run", a.scheduler.Next(id)),
		applogger.Int("tickers", len(a.cfg.Scanner.Tickers)),
		applogger.String("preset", a.cfg.Scanner.Preset),
	)

	if a.cfg.Scanner.RunOnStart {
		go func() {
			if _, err := a.cycle.Run(ctx); err != nil {
				a.log.Error("initial scan cycle failed", applogger.Error(err))
			}
		}()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return a.shutdown(err)
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(nil)
}

// shutdown stops intake first, then delivery, then infrastructure clients.
func (a *App) shutdown(cause error) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.scheduler.Stop(ctx)
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("scan job consumer stop error", applogger.Error(err))
		}
	}
	if n := a.pipeline.Pending(); n > 0 {
		a.log.Warn("undelivered results dropped on shutdown", applogger.Int("pending", n))
	}
	a.pipeline.Stop()

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn(c.Name+" close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return cause
}

// RunOnce executes a single cycle, prints the table to w and optionally
// writes the records to csvPath. Results still flow through the sinks.
func (a *App) RunOnce(ctx context.Context, csvPath string, w io.Writer) error {
	a.pipeline.Start(ctx)
	res, err := a.cycle.Run(ctx)
	if err == nil {
		err = PrintResult(w, res, time.Now())
		if err == nil && csvPath != "" {
			err = repository.NewCSVFileSink(csvPath).Deliver(ctx, res)
			if err == nil {
				a.log.Info("csv written", applogger.String("path", csvPath), applogger.Int("records", len(res.Records)))
			}
		}
	}
	if serr := a.shutdown(nil); err == nil {
		err = serr
	}
	return err
}

// PrintResult renders res as an aligned text table followed by the
// sentiment summary, macro alerts and skipped instruments.
func PrintResult(w io.Writer, res *models.ScanResult, now time.Time) error {
	fmt.Fprintf(w, "Scan %s  preset=%s  as of %s (%s)\n\n",
		res.RunID, res.Preset, res.ReferenceDate.Format(time.DateOnly),
		humanize.RelTime(res.GeneratedAt, now, "ago", "from now"))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tPRICE\tTREND\tSETUP\tSTRIKES\tEXPIRY\tSCORE\tRISK\tNOTE")
	for _, r := range res.Records {
		risk := "ok"
		if !r.RiskApproved {
			risk = "veto: " + r.RiskVetoReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Ticker, humanize.CommafWithDigits(r.Price, 2), r.Trend, r.Label,
			orDash(r.Strikes.Text), r.Expiry, r.Score, risk, r.Note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := res.Sentiment
	if s.Defined {
		fmt.Fprintf(w, "\nSentiment: %s (%.1f)  bull=%d bear=%d neutral=%d\n",
			s.Label, s.Score, s.BullCount, s.BearCount, s.NeutralCount)
	} else {
		fmt.Fprintf(w, "\nSentiment: %s\n", s.Label)
	}

	if len(res.Alerts) > 0 {
		fmt.Fprintln(w, "\nMacro alerts:")
		for _, al := range res.Alerts {
			fmt.Fprintf(w, "  - %s\n    %s\n", al.Message, al.Guidance)
		}
	}

	if len(res.Skipped) > 0 {
		skipped := make([]string, 0, len(res.Skipped))
		for t, reason := range res.Skipped {
			skipped = append(skipped, t+" ("+reason+")")
		}
		sort.Strings(skipped)
		fmt.Fprintf(w, "\nSkipped %d: %s\n", len(skipped), strings.Join(skipped, ", "))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
