package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"newsdigest/internal/model"
)

type key struct{ source, title string }

// Memory is an in-process Backend. It is used for local runs and tests.
type Memory struct {
	mu       sync.RWMutex
	articles map[key]model.Article
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{articles: make(map[key]model.Article)}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close(context.Context) error { return nil }

// Upsert implements Backend.
func (m *Memory) Upsert(ctx context.Context, rec model.Article) (model.Article, error) {
	if err := ctx.Err(); err != nil {
		return model.Article{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{rec.Source, rec.Title}
	if existing, ok := m.articles[k]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.DateGroup = existing.DateGroup
	}
	m.articles[k] = rec
	return rec, nil
}

// FindSince implements Backend.
func (m *Memory) FindSince(ctx context.Context, since time.Time) ([]model.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]model.Article, 0, len(m.articles))
	for _, a := range m.articles {
		if a.CreatedAt.After(since) {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

// FindLatest implements Backend.
func (m *Memory) FindLatest(ctx context.Context, limit int) ([]model.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]model.Article, 0, len(m.articles))
	for _, a := range m.articles {
		out = append(out, a)
	}
	m.mu.RUnlock()
	sortNewestFirst(out)
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored articles.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.articles)
}

func sortNewestFirst(list []model.Article) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
