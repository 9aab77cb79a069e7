package extractor_test

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/internal/extractor"
	"newsdigest/internal/model"
	"newsdigest/internal/retry"
)

const secretKey = "s3cr3t-key"

var site = model.WebsiteConfig{URL: "https://example.com/blog", Name: "Example", BaseURL: "https://example.com"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noWaitRetrier() *retry.Retrier {
	return retry.New(retry.DefaultPolicy, quietLogger(),
		retry.WithSleeper(func(context.Context, time.Duration) error { return nil }))
}

func newClient(t *testing.T, srv *httptest.Server, opts ...func(*extractor.Config)) *extractor.Client {
	t.Helper()
	cfg := extractor.Config{BaseURL: srv.URL, APIKey: secretKey}
	for _, o := range opts {
		o(&cfg)
	}
	return extractor.New(cfg, quietLogger(), extractor.WithRetrier(noWaitRetrier()))
}

func TestFetchSite_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/fields", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, secretKey, q.Get("api_key"))
		assert.Equal(t, site.URL, q.Get("url"))
		assert.Contains(t, q.Get("fields[latest_title]"), "most recent article")
		assert.NotEmpty(t, q.Get("fields[latest_discussion_points]"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"result": {"latest_title": "Hello", "latest_link": "/blog/1", "latest_discussion_points": ["a", "b"]}}`)
	}))
	defer srv.Close()

	raw, err := newClient(t, srv).FetchSite(context.Background(), site)
	require.NoError(t, err)
	assert.Equal(t, "Hello", raw.Text(model.FieldTitle))
	assert.Equal(t, "/blog/1", raw.Text(model.FieldLink))
	assert.Equal(t, model.RawList, raw.Get(model.FieldDiscussionPoints).Kind)
}

func TestFetchSite_BareObjectAndGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		io.WriteString(gz, `{"latest_title": "Zipped"}`)
		gz.Close()
	}))
	defer srv.Close()

	raw, err := newClient(t, srv).FetchSite(context.Background(), site)
	require.NoError(t, err)
	assert.Equal(t, "Zipped", raw.Text(model.FieldTitle))
}

func TestFetchSite_TodayFirstWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("fields[latest_title]"), "last 30 days")
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := newClient(t, srv, func(c *extractor.Config) { c.Window = extractor.WindowTodayFirst }).
		FetchSite(context.Background(), site)
	require.NoError(t, err)
}

func TestFetchSite_SucceedsOnThirdAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream busy", http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"result": {"latest_title": "Third time"}}`)
	}))
	defer srv.Close()

	raw, err := newClient(t, srv).FetchSite(context.Background(), site)
	require.NoError(t, err)
	assert.Equal(t, "Third time", raw.Text(model.FieldTitle))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchSite_TerminalFailureAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).FetchSite(context.Background(), site)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var xe *extractor.Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, "Example", xe.Site)
	assert.Equal(t, 3, xe.Attempts)

	var se *extractor.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.NotContains(t, err.Error(), secretKey)
}

func TestFetchSite_ErrorBodyCutOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", 255) + strings.Repeat("é", 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).FetchSite(context.Background(), site)

	var se *extractor.StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, utf8.ValidString(se.Body), "body %q", se.Body)
	assert.True(t, strings.HasPrefix(body, strings.TrimSuffix(se.Body, "…")))
	assert.Less(t, len(se.Body), len(body))
}

func TestFetchSite_TimeoutCountsAsAttempt(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newClient(t, srv, func(c *extractor.Config) { c.Timeout = 20 * time.Millisecond }).
		FetchSite(context.Background(), site)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(3), calls.Load())
	assert.NotContains(t, err.Error(), secretKey)
}

func TestFetchSite_TransportErrorIsRedacted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := newClient(t, srv).FetchSite(context.Background(), site)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), secretKey)
	assert.False(t, strings.Contains(err.Error(), "api_key"))
}

func TestFetchSite_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	_, err := newClient(t, srv).FetchSite(context.Background(), site)
	require.Error(t, err)
}

func TestFetchSite_MissingAPIKey(t *testing.T) {
	c := extractor.New(extractor.Config{}, quietLogger())
	_, err := c.FetchSite(context.Background(), site)
	assert.True(t, errors.Is(err, extractor.ErrMissingAPIKey))
}

func TestParseWindow(t *testing.T) {
	w, err := extractor.ParseWindow("")
	require.NoError(t, err)
	assert.Equal(t, extractor.WindowLatest, w)

	w, err = extractor.ParseWindow("today_first")
	require.NoError(t, err)
	assert.Equal(t, extractor.WindowTodayFirst, w)

	_, err = extractor.ParseWindow("yesterday")
	assert.Error(t, err)
}
