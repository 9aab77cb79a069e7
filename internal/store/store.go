// Package store validates candidate articles and persists them with
// idempotent (source, title) upserts.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"newsdigest/internal/model"
)

// ErrUnavailable wraps connectivity failures of a backend.
var ErrUnavailable = errors.New("store unavailable")

// Backend is a document store with an atomic upsert keyed by
// (source, title).
//
// Upsert inserts rec when no article with the same key exists. Otherwise it
// overwrites the mutable fields and keeps the stored ID, CreatedAt and
// DateGroup. It returns the article as stored.
type Backend interface {
	Ping(ctx context.Context) error
	Upsert(ctx context.Context, rec model.Article) (model.Article, error)
	// FindSince returns articles with CreatedAt strictly after since, newest
	// first.
	FindSince(ctx context.Context, since time.Time) ([]model.Article, error)
	// FindLatest returns at most limit articles, newest first.
	FindLatest(ctx context.Context, limit int) ([]model.Article, error)
	Close(ctx context.Context) error
}

// Required fields, in reporting order.
const (
	FieldTitle   = "title"
	FieldLink    = "link"
	FieldSummary = "summary"
	FieldSource  = "source"
)

// Validate returns the names of required fields that are empty after
// trimming. A nil result means c can be stored.
func Validate(c model.Candidate) []string {
	var missing []string
	if strings.TrimSpace(c.Title) == "" {
		missing = append(missing, FieldTitle)
	}
	if strings.TrimSpace(c.Link) == "" {
		missing = append(missing, FieldLink)
	}
	if strings.TrimSpace(c.Summary) == "" {
		missing = append(missing, FieldSummary)
	}
	if strings.TrimSpace(c.Source) == "" {
		missing = append(missing, FieldSource)
	}
	return missing
}

// ApplyDefaults builds the record to write for c at time now. Strings are
// trimmed, Author defaults to "Unknown", PublishedDate to now's date.
//
// With existing == nil the record gets a fresh ID, CreatedAt = now and the
// matching DateGroup. Otherwise those three come from existing.
func ApplyDefaults(c model.Candidate, existing *model.Article, now time.Time) model.Article {
	now = now.UTC()

	author := strings.TrimSpace(c.Author)
	if author == "" {
		author = "Unknown"
	}
	published := strings.TrimSpace(c.PublishedDate)
	if published == "" {
		published = model.DateOf(now)
	}

	rec := model.Article{
		ID:               uuid.NewString(),
		Title:            strings.TrimSpace(c.Title),
		Link:             strings.TrimSpace(c.Link),
		PublishedDate:    published,
		Author:           author,
		Summary:          strings.TrimSpace(c.Summary),
		Source:           strings.TrimSpace(c.Source),
		DiscussionPoints: strings.TrimSpace(c.DiscussionPoints),
		CreatedAt:        now,
		UpdatedAt:        now,
		DateGroup:        model.DateOf(now),
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.DateGroup = existing.DateGroup
		if rec.DateGroup == "" {
			rec.DateGroup = model.DateOf(existing.CreatedAt)
		}
	}
	return rec
}

// DateGroupOf returns a's DateGroup, derived from CreatedAt when unset, and
// "Unknown" when neither is available.
func DateGroupOf(a model.Article) string {
	if a.DateGroup != "" {
		return a.DateGroup
	}
	if !a.CreatedAt.IsZero() {
		return model.DateOf(a.CreatedAt)
	}
	return "Unknown"
}
