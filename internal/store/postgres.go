package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"newsdigest/internal/model"
)

// PgxIface is the subset of *pgxpool.Pool used by Postgres. pgxmock pools
// satisfy it too.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
	   id                TEXT PRIMARY KEY,
	   title             TEXT NOT NULL,
	   link              TEXT NOT NULL,
	   published_date    TEXT NOT NULL,
	   author            TEXT NOT NULL DEFAULT 'Unknown',
	   summary           TEXT NOT NULL,
	   source            TEXT NOT NULL,
	   discussion_points TEXT NOT NULL DEFAULT '',
	   created_at        TIMESTAMPTZ NOT NULL,
	   updated_at        TIMESTAMPTZ NOT NULL,
	   date_group        TEXT NOT NULL,
	   CONSTRAINT articles_source_title_key UNIQUE (source, title)
	 )`,
	`CREATE INDEX IF NOT EXISTS articles_created_at_idx ON articles (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS articles_date_group_idx ON articles (date_group, created_at DESC)`,
}

const articleColumns = `id, title, link, published_date, author, summary, source,
	discussion_points, created_at, updated_at, date_group`

// Postgres stores articles in a single table with a unique (source, title)
// constraint.
type Postgres struct {
	pool PgxIface
}

// NewPostgres wraps an open pool.
func NewPostgres(pool PgxIface) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the articles table and its indexes when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Ping implements Backend.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: postgres ping: %v", ErrUnavailable, err)
	}
	return nil
}

// Close implements Backend.
func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

// Upsert implements Backend with INSERT ... ON CONFLICT, which is atomic on
// the (source, title) key. id, created_at and date_group are only written on
// insert.
func (p *Postgres) Upsert(ctx context.Context, rec model.Article) (model.Article, error) {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO articles (`+articleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (source, title) DO UPDATE SET
		   link              = EXCLUDED.link,
		   published_date    = EXCLUDED.published_date,
		   author            = EXCLUDED.author,
		   summary           = EXCLUDED.summary,
		   discussion_points = EXCLUDED.discussion_points,
		   updated_at        = EXCLUDED.updated_at
		 RETURNING `+articleColumns,
		rec.ID, rec.Title, rec.Link, rec.PublishedDate, rec.Author, rec.Summary,
		rec.Source, rec.DiscussionPoints, rec.CreatedAt, rec.UpdatedAt, rec.DateGroup,
	)
	out, err := scanArticle(row)
	if err != nil {
		return model.Article{}, fmt.Errorf("upsert article: %w", err)
	}
	return out, nil
}

// FindSince implements Backend.
func (p *Postgres) FindSince(ctx context.Context, since time.Time) ([]model.Article, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+articleColumns+`
		 FROM articles
		 WHERE created_at > $1
		 ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent articles: %w", err)
	}
	return collect(rows)
}

// FindLatest implements Backend.
func (p *Postgres) FindLatest(ctx context.Context, limit int) ([]model.Article, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+articleColumns+`
		 FROM articles
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query latest articles: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]model.Article, error) {
	defer rows.Close()

	articles := make([]model.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func scanArticle(row pgx.Row) (model.Article, error) {
	var a model.Article
	err := row.Scan(
		&a.ID, &a.Title, &a.Link, &a.PublishedDate, &a.Author, &a.Summary, &a.Source,
		&a.DiscussionPoints, &a.CreatedAt, &a.UpdatedAt, &a.DateGroup,
	)
	return a, err
}
