package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsdigest/internal/events"
	"newsdigest/internal/model"
	"newsdigest/internal/store"
)

// ─── Errors ──────────────────────────────────────────────────────────────────

// Kind classifies a total pipeline failure.
type Kind string

const (
	KindConfig           Kind = "config"
	KindStoreUnavailable Kind = "store_unavailable"
	KindCanceled         Kind = "canceled"
	KindInternal         Kind = "internal"
)

// PipelineError is returned when a run could not complete at all. Site and
// record level failures never produce one.
type PipelineError struct {
	Kind Kind
	Err  error
}

func (e *PipelineError) Error() string { return fmt.Sprintf("ingest %s: %v", e.Kind, e.Err) }

func (e *PipelineError) Unwrap() error { return e.Err }

// KindOf returns the Kind of a PipelineError in err's chain, KindInternal
// otherwise.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// ErrNoSites is reported when the run has nothing to fetch.
var ErrNoSites = errors.New("no sites configured")

// ─── Collaborators ───────────────────────────────────────────────────────────

// Runner fetches and assembles candidates for a list of sites.
type Runner interface {
	Run(ctx context.Context, sites []model.WebsiteConfig) Result
}

// BatchWriter persists candidates and returns the stored records.
type BatchWriter interface {
	Store(ctx context.Context, candidates []model.Candidate) []model.Article
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Invalidator drops cached read results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Notifier announces a completed run.
type Notifier interface {
	PublishIngested(ctx context.Context, ev events.ArticlesIngested) error
}

// Report summarizes one completed run.
type Report struct {
	Articles     []model.Article `json:"articles"`
	Count        int             `json:"count"`
	TotalFetched int             `json:"totalFetched"`
	Failed       []string        `json:"failedSites"`
	Timestamp    time.Time       `json:"timestamp"`
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service runs the full pipeline: fetch, assemble, validate, upsert.
type Service struct {
	sites    []model.WebsiteConfig
	runner   Runner
	writer   BatchWriter
	store    Pinger
	cache    Invalidator
	notifier Notifier
	onRun    func(status string, d time.Duration)
	now      func() time.Time
	logger   *slog.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithInvalidator clears the read cache after every completed run.
func WithInvalidator(c Invalidator) ServiceOption { return func(s *Service) { s.cache = c } }

// WithNotifier publishes an event after every completed run.
func WithNotifier(n Notifier) ServiceOption { return func(s *Service) { s.notifier = n } }

// WithRunObserver is called once per run with "ok" or the failure kind.
func WithRunObserver(fn func(status string, d time.Duration)) ServiceOption {
	return func(s *Service) { s.onRun = fn }
}

// WithServiceClock replaces time.Now for report timestamps.
func WithServiceClock(now func() time.Time) ServiceOption { return func(s *Service) { s.now = now } }

// NewService wires the pipeline.
func NewService(
	sites []model.WebsiteConfig,
	runner Runner,
	writer BatchWriter,
	st Pinger,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		sites:  sites,
		runner: runner,
		writer: writer,
		store:  st,
		now:    time.Now,
		logger: logger.With("component", "ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest runs the pipeline once. It fails only when the run cannot happen
// at all; failing sites and invalid or unwritable records are reported
// through the logs and Report.Failed.
func (s *Service) Ingest(ctx context.Context) (*Report, error) {
	start := time.Now()
	report, err := s.ingest(ctx)

	status := "ok"
	if err != nil {
		status = string(KindOf(err))
		s.logger.Error("ingestion failed", "kind", status, "error", err)
	}
	if s.onRun != nil {
		s.onRun(status, time.Since(start))
	}
	return report, err
}

func (s *Service) ingest(ctx context.Context) (*Report, error) {
	if err := s.store.Ping(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, &PipelineError{Kind: KindCanceled, Err: ctx.Err()}
		}
		return nil, &PipelineError{Kind: KindStoreUnavailable, Err: err}
	}
	if len(s.sites) == 0 {
		return nil, &PipelineError{Kind: KindConfig, Err: ErrNoSites}
	}

	s.logger.Info("ingestion started", "sites", len(s.sites))
	res := s.runner.Run(ctx, s.sites)
	if err := res.Err(); err != nil {
		s.logger.Warn("some sites failed", "failed", len(res.Failures), "error", err)
	}
	if ctx.Err() != nil {
		return nil, &PipelineError{Kind: KindCanceled, Err: ctx.Err()}
	}

	for _, c := range res.Candidates {
		if missing := missingFields(c); len(missing) > 0 {
			s.logger.Warn("candidate has missing fields", "source", c.Source, "missing", missing)
		}
	}

	articles := s.writer.Store(ctx, res.Candidates)
	if articles == nil {
		articles = []model.Article{}
	}

	report := &Report{
		Articles:     articles,
		Count:        len(articles),
		TotalFetched: len(res.Candidates),
		Failed:       make([]string, 0, len(res.Failures)),
		Timestamp:    s.now().UTC(),
	}
	for _, f := range res.Failures {
		report.Failed = append(report.Failed, f.Site)
	}

	s.afterRun(ctx, report)

	s.logger.Info("ingestion complete",
		"saved", report.Count, "fetched", report.TotalFetched, "failed_sites", len(report.Failed))
	return report, nil
}

// afterRun performs the follow-ups of a completed run. None of them can fail
// the run.
func (s *Service) afterRun(ctx context.Context, r *Report) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("cache invalidation failed", "error", err)
		}
	}
	if s.notifier != nil {
		seen := make(map[string]bool)
		sources := make([]string, 0)
		for _, a := range r.Articles {
			if !seen[a.Source] {
				seen[a.Source] = true
				sources = append(sources, a.Source)
			}
		}
		ev := events.ArticlesIngested{
			Count:        r.Count,
			TotalFetched: r.TotalFetched,
			Failed:       r.Failed,
			Sources:      sources,
			Timestamp:    r.Timestamp,
		}
		if err := s.notifier.PublishIngested(ctx, ev); err != nil {
			s.logger.Warn("publish "+events.ChannelArticlesIngested+" failed", "error", err)
		}
	}
}

// missingFields lists the empty fields worth flagging before storage. Date is
// included even though the store substitutes a default for it.
func missingFields(c model.Candidate) []string {
	var missing []string
	if c.Title == "" {
		missing = append(missing, store.FieldTitle)
	}
	if c.Link == "" {
		missing = append(missing, store.FieldLink)
	}
	if c.PublishedDate == "" {
		missing = append(missing, "date")
	}
	if c.Summary == "" {
		missing = append(missing, store.FieldSummary)
	}
	return missing
}
