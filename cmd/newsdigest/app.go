package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"newsdigest/internal/config"
	"newsdigest/internal/db"
	"newsdigest/internal/events"
	"newsdigest/internal/extractor"
	"newsdigest/internal/ingest"
	"newsdigest/internal/metrics"
	"newsdigest/internal/query"
	"newsdigest/internal/retry"
	"newsdigest/internal/sites"
	"newsdigest/internal/store"
)

// app holds the long-lived components built from a Config.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend store.Backend
	rdb     *redis.Client
	query   *query.Service
	ingest  *ingest.Service
}

// newApp opens every connection and wires the pipeline. The caller owns the
// result and must call close.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	siteList, err := sites.Load(cfg.SitesFile)
	if err != nil {
		return nil, fmt.Errorf("sites: %w", err)
	}

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, backend: backend}

	var ingestOpts []ingest.ServiceOption
	var queryOpts []query.Option
	if cfg.RedisURL != "" {
		logger.Info("connecting to redis")
		rdb, err := db.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.rdb = rdb
		queryOpts = append(queryOpts, query.WithCache(query.NewRedisCache(rdb, "", cfg.CacheTTL)))
		ingestOpts = append(ingestOpts, ingest.WithNotifier(events.NewPublisher(rdb)))
	}

	a.query = query.NewService(backend, logger, queryOpts...)

	client := extractor.New(extractor.Config{
		BaseURL: cfg.ExtractorBaseURL,
		APIKey:  cfg.APIKey,
		Window:  cfg.FetchWindow,
		Timeout: cfg.FetchTimeout,
		Retry:   retry.DefaultPolicy,
	}, logger)

	orchestrator := ingest.NewOrchestrator(client, logger,
		ingest.WithSiteDelay(cfg.SiteDelay),
		ingest.WithSiteObserver(func(site string, ok bool, d time.Duration) {
			metrics.RecordSite(site, ok, d.Seconds())
		}),
	)
	writer := store.NewWriter(backend, logger,
		store.WithConcurrency(cfg.WriteConcurrency),
		store.WithOutcomeObserver(func(o store.Outcome) { metrics.RecordUpsert(string(o)) }),
	)

	ingestOpts = append(ingestOpts,
		ingest.WithInvalidator(a.query),
		ingest.WithRunObserver(func(status string, d time.Duration) {
			metrics.RecordRun(status, d.Seconds())
		}),
	)
	a.ingest = ingest.NewService(siteList, orchestrator, writer, backend, logger, ingestOpts...)

	logger.Info("pipeline ready", "sites", len(siteList), "store", cfg.StoreBackend,
		"window", cfg.FetchWindow, "cache", a.rdb != nil)
	return a, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		logger.Info("connecting to postgres")
		pool, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return pg, nil

	case config.BackendMongo:
		logger.Info("connecting to mongodb")
		client, err := db.OpenMongo(ctx, db.MongoConfig{
			URI:      cfg.MongoURI,
			User:     cfg.MongoUser,
			Password: cfg.MongoPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("mongodb: %w", err)
		}
		m := store.NewMongo(client, cfg.MongoDatabase)
		if err := m.EnsureIndexes(ctx); err != nil {
			_ = m.Close(context.Background())
			return nil, fmt.Errorf("mongodb: %w", err)
		}
		return m, nil

	case config.BackendMemory:
		logger.Warn("using in-memory store; articles are lost on exit")
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// close releases every connection opened by newApp.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("redis close", "error", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(ctx); err != nil {
			a.logger.Warn("store close", "error", err)
		}
	}
}
