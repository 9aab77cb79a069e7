// Package scheduler wires up the cron job that periodically triggers the
// ingestion pipeline.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"newsdigest/internal/ingest"
)

// Ingester runs one ingestion.
type Ingester interface {
	Ingest(ctx context.Context) (*ingest.Report, error)
}

// Scheduler wraps robfig/cron and triggers ingestion runs.
type Scheduler struct {
	cron       *cron.Cron
	ingester   Ingester
	spec       string // cron spec, e.g. "@hourly"
	runOnStart bool
	logger     *slog.Logger
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithRunOnStart also triggers one run right after Start, so the feed is
// populated without waiting for the first tick.
func WithRunOnStart() Option { return func(s *Scheduler) { s.runOnStart = true } }

// New creates a Scheduler firing on spec. A tick that arrives while the
// previous run is still going is skipped.
func New(ingester Ingester, spec string, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		ingester: ingester,
		spec:     spec,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() {
		s.runIngest(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron started", "spec", s.spec, "next", s.cron.Entry(id).Next)

	if s.runOnStart {
		go s.cron.Entry(id).WrappedJob.Run()
	}
	return nil
}

// Stop halts the scheduler and waits for a running ingestion to finish or
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("cron stopped")
	case <-ctx.Done():
		s.logger.Warn("cron stop timed out with a run in progress")
	}
}

func (s *Scheduler) runIngest(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("scheduled ingestion started")
	report, err := s.ingester.Ingest(ctx)
	if err != nil {
		s.logger.Error("scheduled ingestion failed", "kind", ingest.KindOf(err), "error", err)
		return
	}
	s.logger.Info("scheduled ingestion complete",
		"saved", report.Count, "fetched", report.TotalFetched, "failed_sites", len(report.Failed))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
