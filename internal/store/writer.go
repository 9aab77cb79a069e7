package store

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"newsdigest/internal/model"
)

// DefaultConcurrency bounds parallel upserts within one batch.
const DefaultConcurrency = 4

// Outcome labels one candidate's fate in a batch.
type Outcome string

const (
	OutcomeStored  Outcome = "stored"
	OutcomeInvalid Outcome = "invalid"
	OutcomeFailed  Outcome = "failed"
)

// Writer filters, transforms and upserts candidate batches.
type Writer struct {
	backend     Backend
	now         func() time.Time
	concurrency int
	logger      *slog.Logger
	observe     func(Outcome)
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) WriterOption { return func(w *Writer) { w.now = now } }

// WithConcurrency sets the number of parallel upserts; values < 1 mean 1.
func WithConcurrency(n int) WriterOption { return func(w *Writer) { w.concurrency = n } }

// WithOutcomeObserver is called once per candidate.
func WithOutcomeObserver(fn func(Outcome)) WriterOption { return func(w *Writer) { w.observe = fn } }

// NewWriter constructs a Writer over backend.
func NewWriter(backend Backend, logger *slog.Logger, opts ...WriterOption) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		backend:     backend,
		now:         time.Now,
		concurrency: DefaultConcurrency,
		logger:      logger.With("component", "store"),
	}
	for _, o := range opts {
		o(w)
	}
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	return w
}

// Store persists the valid candidates and returns the stored articles in
// input order. Invalid candidates and failed upserts are logged and skipped;
// Store itself never fails.
func (w *Writer) Store(ctx context.Context, candidates []model.Candidate) []model.Article {
	valid := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if missing := Validate(c); len(missing) > 0 {
			w.logger.Warn("dropping article with missing fields",
				"source", c.Source, "title", c.Title, "missing", missing)
			w.record(OutcomeInvalid)
			continue
		}
		valid = append(valid, c)
	}
	w.logger.Info("storing articles", "valid", len(valid), "total", len(candidates))

	results := make([]*model.Article, len(valid))
	now := w.now()

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, c := range valid {
		g.Go(func() error {
			rec := ApplyDefaults(c, nil, now)
			stored, err := w.backend.Upsert(ctx, rec)
			if err != nil {
				w.logger.Error("failed to store article, skipping",
					"source", rec.Source, "title", rec.Title, "error", err)
				w.record(OutcomeFailed)
				return nil
			}
			w.logger.Debug("stored article", "source", stored.Source, "title", stored.Title)
			w.record(OutcomeStored)
			results[i] = &stored
			return nil
		})
	}
	_ = g.Wait()

	saved := make([]model.Article, 0, len(results))
	for _, r := range results {
		if r != nil {
			saved = append(saved, *r)
		}
	}
	w.logger.Info("stored articles", "count", len(saved))
	return saved
}

func (w *Writer) record(o Outcome) {
	if w.observe != nil {
		w.observe(o)
	}
}
