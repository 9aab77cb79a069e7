package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"newsdigest/internal/model"
	"newsdigest/internal/retry"
)

// DefaultSiteDelay spaces consecutive sites to respect the extraction API's
// rate limits.
const DefaultSiteDelay = 2 * time.Second

// SiteFetcher returns the raw fields for one site. A non-nil error is
// terminal for that site.
type SiteFetcher interface {
	FetchSite(ctx context.Context, site model.WebsiteConfig) (model.RawExtraction, error)
}

// SiteFailure records a site that produced no candidate.
type SiteFailure struct {
	Site string `json:"site"`
	Err  error  `json:"-"`
}

// Result is the outcome of one orchestrator run.
type Result struct {
	Candidates []model.Candidate
	Failures   []SiteFailure
}

// Err combines the site failures, nil when every site succeeded.
func (r Result) Err() error {
	var merr *multierror.Error
	for _, f := range r.Failures {
		merr = multierror.Append(merr, f.Err)
	}
	return merr.ErrorOrNil()
}

// Orchestrator fetches sites one at a time and assembles candidates.
type Orchestrator struct {
	fetcher SiteFetcher
	delay   time.Duration
	sleep   retry.Sleeper
	logger  *slog.Logger
	onSite  func(site string, ok bool, d time.Duration)
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSiteDelay sets the wait between consecutive sites.
func WithSiteDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.delay = d }
}

// WithSleeper replaces the inter-site wait.
func WithSleeper(s retry.Sleeper) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithSiteObserver is called after every site with its outcome and duration.
func WithSiteObserver(fn func(site string, ok bool, d time.Duration)) OrchestratorOption {
	return func(o *Orchestrator) { o.onSite = fn }
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(fetcher SiteFetcher, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		fetcher: fetcher,
		delay:   DefaultSiteDelay,
		sleep:   retry.Sleep,
		logger:  logger.With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes sites in order. A failing site is logged and skipped; the run
// itself never fails. Cancelling ctx ends the run early with whatever was
// collected so far.
func (o *Orchestrator) Run(ctx context.Context, sites []model.WebsiteConfig) Result {
	var res Result

	for i, site := range sites {
		if i > 0 && o.delay > 0 {
			if err := o.sleep(ctx, o.delay); err != nil {
				o.logger.Warn("run interrupted", "remaining_sites", len(sites)-i, "error", err)
				break
			}
		}
		if ctx.Err() != nil {
			o.logger.Warn("run interrupted", "remaining_sites", len(sites)-i, "error", ctx.Err())
			break
		}

		start := time.Now()
		o.logger.Info("starting fetch", "site", site.Name)
		raw, err := o.fetcher.FetchSite(ctx, site)
		if o.onSite != nil {
			o.onSite(site.Name, err == nil, time.Since(start))
		}
		if err != nil {
			o.logger.Error("site failed after all retries, continuing", "site", site.Name, "error", err)
			res.Failures = append(res.Failures, SiteFailure{Site: site.Name, Err: err})
			continue
		}

		res.Candidates = append(res.Candidates, Assemble(raw, site))
		o.logger.Info("fetched site", "site", site.Name)
	}

	o.logger.Info("run complete",
		"sites", len(sites), "fetched", len(res.Candidates), "failed", len(res.Failures))
	return res
}
