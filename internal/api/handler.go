// Package api implements the HTTP surface of newsdigest.
//
// Routes:
//
//	GET  /articles            → articles created in the recent window
//	GET  /articles/grouped    → latest articles bucketed by date (?limit=N)
//	GET  /ingest              → run the ingestion pipeline once (rate limited)
//	GET  /health              → liveness and store reachability
//	GET  /metrics             → Prometheus metrics
//
// /api/articles and /api/update-articles are kept as aliases for existing
// front ends.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"newsdigest/internal/ingest"
	"newsdigest/internal/model"
	"newsdigest/internal/query"
)

// Version is reported by /health.
const Version = "1.0.0"

// DefaultIngestBudget bounds an /ingest run started over HTTP. It covers
// eight sites with every retry and inter-site wait.
const DefaultIngestBudget = 10 * time.Minute

// ─── Dependencies ────────────────────────────────────────────────────────────

// Articles is the read side used by the handlers.
type Articles interface {
	ListRecent(ctx context.Context, windowDays int) ([]model.Article, error)
	ListGroupedByDate(ctx context.Context, limit int) ([]query.DateGroup, error)
}

// Ingester runs the pipeline once.
type Ingester interface {
	Ingest(ctx context.Context) (*ingest.Report, error)
}

// Pinger checks store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ─── Response types ──────────────────────────────────────────────────────────

type articlesResponse struct {
	Success  bool            `json:"success"`
	Articles []model.Article `json:"articles"`
	Count    int             `json:"count"`
}

type groupsResponse struct {
	Success bool              `json:"success"`
	Groups  []query.DateGroup `json:"groups"`
	Count   int               `json:"count"`
}

type ingestResponse struct {
	Success bool `json:"success"`
	*ingest.Report
}

type errorResponse struct {
	Success   bool       `json:"success"`
	Error     string     `json:"error"`
	Details   string     `json:"details,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	ErrorType string     `json:"errorType,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Store   string `json:"store"`
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	articles     Articles
	ingester     Ingester
	store        Pinger
	windowDays   int
	ingestBudget time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithIngestBudget bounds a run triggered through /ingest.
func WithIngestBudget(d time.Duration) HandlerOption {
	return func(h *Handler) { h.ingestBudget = d }
}

// NewHandler returns a configured Handler. windowDays is the /articles
// lookback.
func NewHandler(articles Articles, ingester Ingester, store Pinger, windowDays int, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		articles:     articles,
		ingester:     ingester,
		store:        store,
		windowDays:   windowDays,
		ingestBudget: DefaultIngestBudget,
		now:          time.Now,
		logger:       logger.With("component", "http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.ingestBudget <= 0 {
		h.ingestBudget = DefaultIngestBudget
	}
	return h
}

// ListArticles handles GET /articles.
func (h *Handler) ListArticles(c echo.Context) error {
	articles, err := h.articles.ListRecent(c.Request().Context(), h.windowDays)
	if err != nil {
		h.logger.Error("list articles failed", "window_days", h.windowDays, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "Failed to fetch articles",
			Details: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, articlesResponse{Success: true, Articles: articles, Count: len(articles)})
}

// ListGrouped handles GET /articles/grouped.
func (h *Handler) ListGrouped(c echo.Context) error {
	limit := query.DefaultGroupLimit
	if s := c.QueryParam("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 1000 {
			return c.JSON(http.StatusBadRequest, errorResponse{
				Error:   "Invalid limit",
				Details: "limit must be an integer between 1 and 1000",
			})
		}
		limit = v
	}

	groups, err := h.articles.ListGroupedByDate(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("list grouped articles failed", "limit", limit, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "Failed to fetch articles",
			Details: err.Error(),
		})
	}
	count := 0
	for _, g := range groups {
		count += len(g.Articles)
	}
	return c.JSON(http.StatusOK, groupsResponse{Success: true, Groups: groups, Count: count})
}

// Ingest handles GET|POST /ingest. The run is detached from the request: a
// caller that disconnects or times out does not stop it, and what was fetched
// is still persisted. The run is bounded by the handler's ingest budget.
func (h *Handler) Ingest(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.ingestBudget)
	defer cancel()

	report, err := h.ingester.Ingest(ctx)
	if c.Request().Context().Err() != nil {
		h.logger.Warn("ingest caller went away before the run finished", "error", c.Request().Context().Err())
	}
	if err != nil {
		ts := h.now().UTC()
		details := err.Error()
		var pe *ingest.PipelineError
		if errors.As(err, &pe) {
			details = pe.Err.Error()
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error:     "Failed to update articles",
			Details:   details,
			Timestamp: &ts,
			ErrorType: string(ingest.KindOf(err)),
		})
	}
	return c.JSON(http.StatusOK, ingestResponse{Success: true, Report: report})
}

// Health handles GET /health. An unreachable store answers 503.
func (h *Handler) Health(c echo.Context) error {
	resp := healthResponse{Status: "ok", Service: "newsdigest", Version: Version, Store: "ok"}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Store = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}
