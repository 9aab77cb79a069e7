// Package query serves read access to persisted articles for the front end.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"newsdigest/internal/metrics"
	"newsdigest/internal/model"
	"newsdigest/internal/store"
)

const (
	// DefaultWindowDays is the ListRecent lookback.
	DefaultWindowDays = 10
	// DefaultGroupLimit is the ListGroupedByDate limit.
	DefaultGroupLimit = 30
	// groupFetchFactor scales the grouped limit into a record count.
	groupFetchFactor = 10
)

// Reader is the read half of store.Backend.
type Reader interface {
	FindSince(ctx context.Context, since time.Time) ([]model.Article, error)
	FindLatest(ctx context.Context, limit int) ([]model.Article, error)
}

// Cache stores serialized query results. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context) error
}

// DateGroup is one bucket of ListGroupedByDate.
type DateGroup struct {
	Date     string          `json:"date"`
	Articles []model.Article `json:"articles"`
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service answers article queries, optionally through a Cache.
type Service struct {
	reader Reader
	cache  Cache
	now    func() time.Time
	logger *slog.Logger

	// generation advances on every Invalidate; a load that straddles one is
	// not written back.
	generation atomic.Uint64
}

// Option customizes a Service.
type Option func(*Service)

// WithCache enables the read cache.
func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService returns a Service reading from reader.
func NewService(reader Reader, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{reader: reader, now: time.Now, logger: logger.With("component", "query")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListRecent returns articles created within the last windowDays days,
// newest first. windowDays <= 0 means DefaultWindowDays.
func (s *Service) ListRecent(ctx context.Context, windowDays int) ([]model.Article, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	since := s.now().Add(-time.Duration(windowDays) * 24 * time.Hour)
	articles, err := cached(ctx, s, fmt.Sprintf("recent:%d", windowDays), func() ([]model.Article, error) {
		return s.reader.FindSince(ctx, since)
	})
	if err != nil {
		return nil, err
	}
	return createdAfter(articles, since), nil
}

// createdAfter drops records a cached result picked up before they aged out
// of the window.
func createdAfter(articles []model.Article, since time.Time) []model.Article {
	out := articles[:0:0]
	for _, a := range articles {
		if a.CreatedAt.After(since) {
			out = append(out, a)
		}
	}
	if out == nil {
		out = []model.Article{}
	}
	return out
}

// ListGroupedByDate returns the latest limit*10 articles bucketed by their
// date group. Buckets appear in order of their newest article. limit <= 0
// means DefaultGroupLimit.
func (s *Service) ListGroupedByDate(ctx context.Context, limit int) ([]DateGroup, error) {
	if limit <= 0 {
		limit = DefaultGroupLimit
	}
	return cached(ctx, s, fmt.Sprintf("grouped:%d", limit), func() ([]DateGroup, error) {
		articles, err := s.reader.FindLatest(ctx, limit*groupFetchFactor)
		if err != nil {
			return nil, err
		}
		return GroupByDate(articles), nil
	})
}

// Invalidate drops every cached result. It is a no-op without a cache.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	s.generation.Add(1)
	return s.cache.Invalidate(ctx)
}

// GroupByDate buckets articles by store.DateGroupOf, keeping first-seen
// bucket order and the input order within each bucket.
func GroupByDate(articles []model.Article) []DateGroup {
	groups := make([]DateGroup, 0)
	index := make(map[string]int)
	for _, a := range articles {
		key := store.DateGroupOf(a)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Date: key})
		}
		groups[i].Articles = append(groups[i].Articles, a)
	}
	return groups
}

// cached returns the cached value for key on a hit, otherwise calls load and
// stores its result. Cache errors fall back to load; load errors are returned
// as is. A result loaded across an Invalidate is returned but not stored.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}
	gen := s.generation.Load()

	data, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCache("error")
		s.logger.Warn("cache read failed, reading store", "key", key, "error", err)
	case ok:
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			metrics.RecordCache("hit")
			return v, nil
		}
		s.logger.Warn("cache entry undecodable, reading store", "key", key)
	default:
		metrics.RecordCache("miss")
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if s.generation.Load() != gen {
		s.logger.Debug("cache invalidated during load, not storing", "key", key)
		return v, nil
	}
	if data, err := json.Marshal(v); err != nil {
		s.logger.Warn("cache encode failed", "key", key, "error", err)
	} else if err := s.cache.Set(ctx, key, data); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}
