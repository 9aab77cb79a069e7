package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// ServerConfig tunes the router.
type ServerConfig struct {
	// IngestPerMinute is the sustained /ingest rate per client IP.
	IngestPerMinute float64
	// IngestBurst is the number of back-to-back /ingest calls allowed.
	IngestBurst int
}

// NewRouter builds the echo instance with every route mounted.
func NewRouter(h *Handler, cfg ServerConfig, logger *slog.Logger) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				logger.Info("request completed",
					"method", v.Method, "uri", v.URI, "status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				logger.Error("request failed",
					"method", v.Method, "uri", v.URI, "status", v.Status,
					"latency_ms", v.Latency.Milliseconds(), "error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/articles", h.ListArticles)
	e.GET("/api/articles", h.ListArticles)
	e.GET("/articles/grouped", h.ListGrouped)

	limit := ingestLimiter(cfg)
	for _, p := range []string{"/ingest", "/api/update-articles"} {
		e.GET(p, h.Ingest, limit)
		e.POST(p, h.Ingest, limit)
	}
	return e
}

// ingestLimiter bounds how often a client can trigger a run, since every run
// spends paid extraction API calls.
func ingestLimiter(cfg ServerConfig) echo.MiddlewareFunc {
	perMin := cfg.IngestPerMinute
	if perMin <= 0 {
		perMin = 6
	}
	burst := cfg.IngestBurst
	if burst < 1 {
		burst = 1
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perMin / 60),
			Burst:     burst,
			ExpiresIn: 10 * time.Minute,
		}),
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, errorResponse{
				Error:   "Too many requests",
				Details: "ingestion rate limit exceeded",
			})
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, errorResponse{
				Error:   "Unable to identify client",
				Details: err.Error(),
			})
		},
	})
}
