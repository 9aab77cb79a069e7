// Package extractor talks to the AI field-extraction API (webscraping.ai).
// One request per site returns the fields of the site's latest article.
package extractor

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"newsdigest/internal/model"
	"newsdigest/internal/retry"
)

const (
	// DefaultBaseURL is the public webscraping.ai endpoint.
	DefaultBaseURL = "https://api.webscraping.ai"
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 60 * time.Second

	fieldsPath   = "/ai/fields"
	maxBodyBytes = 4 << 20
	maxErrorBody = 256
)

// ErrMissingAPIKey is returned when the client has no API key configured.
var ErrMissingAPIKey = errors.New("extraction API key is not configured")

// Error is the terminal failure for one site after all attempts.
type Error struct {
	Site     string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %d attempt(s): %v", e.Site, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError reports a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("extraction API returned %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Window  Window
	Timeout time.Duration
	Retry   retry.Policy
}

// Client fetches raw fields for a site.
type Client struct {
	baseURL string
	apiKey  string
	window  Window
	timeout time.Duration
	hc      *http.Client
	retrier *retry.Retrier
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithRetrier replaces the retrier built from Config.Retry.
func WithRetrier(r *retry.Retrier) Option { return func(c *Client) { c.retrier = r } }

// New constructs a Client. Zero values in cfg fall back to the defaults.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "extractor")

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Window == "" {
		cfg.Window = WindowLatest
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		window:  cfg.Window,
		timeout: cfg.Timeout,
		hc:      &http.Client{},
		logger:  logger,
	}
	for _, o := range opts {
		o(c)
	}
	if c.retrier == nil {
		c.retrier = retry.New(cfg.Retry, logger)
	}
	return c
}

// FetchSite requests the latest-article fields for site, retrying per the
// configured policy. The returned error is always an *Error.
func (c *Client) FetchSite(ctx context.Context, site model.WebsiteConfig) (model.RawExtraction, error) {
	if c.apiKey == "" {
		return nil, &Error{Site: site.Name, Attempts: 0, Err: ErrMissingAPIKey}
	}

	var (
		raw      model.RawExtraction
		attempts int
	)
	err := c.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		c.logger.Debug("fetching site", "site", site.Name, "attempt", attempt)
		out, err := c.fetchOnce(ctx, site)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		var ae *retry.AttemptsError
		if errors.As(err, &ae) {
			err = ae.Err
		}
		return nil, &Error{Site: site.Name, Attempts: attempts, Err: err}
	}
	return raw, nil
}

func (c *Client) fetchOnce(ctx context.Context, site model.WebsiteConfig) (model.RawExtraction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(site.URL), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", redact(err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip,deflate,compress")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", redact(err))
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", redact(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	return decode(body)
}

// requestURL builds the /ai/fields query. The API key is a query parameter,
// so errors carrying this URL must go through redact.
func (c *Client) requestURL(siteURL string) string {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("url", siteURL)
	for _, f := range c.window.Fields() {
		params.Set("fields["+f.Name+"]", f.Instruction)
	}
	return c.baseURL + fieldsPath + "?" + params.Encode()
}

// decode accepts the {"result": {...}} envelope or a bare field object.
func decode(body []byte) (model.RawExtraction, error) {
	var envelope struct {
		Result model.RawExtraction `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if envelope.Result != nil {
		return envelope.Result, nil
	}

	var bare model.RawExtraction
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	return bare, nil
}

// readBody reads at most maxBodyBytes. net/http only decompresses
// transparently when it set Accept-Encoding itself, so compressed bodies are
// decoded here.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = io.LimitReader(resp.Body, maxBodyBytes)
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}

// redact strips the request URL (which carries the API key) from transport
// errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
