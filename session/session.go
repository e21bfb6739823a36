// Package session issues authenticated, rate limited requests against the
// reddit API and turns the responses into reddit objects.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/time/rate"

	"reddit-live/pkg/reddit"
)

const (
	// DefaultBaseURL is the OAuth API host.
	DefaultBaseURL = "https://oauth.reddit.com"
	// DefaultRequestsPerMinute stays under reddit's 100 QPM OAuth allowance.
	DefaultRequestsPerMinute = 60

	maxResponseBytes = 8 << 20
)

// Config controls how requests are issued.
type Config struct {
	BaseURL           string
	UserAgent         string
	RequestsPerMinute int
	Timeout           time.Duration
	MaxAttempts       uint
	RetryDelay        time.Duration
}

// Client implements reddit.Requester over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	agent   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *Metrics

	attempts   uint
	retryDelay time.Duration
}

var _ reddit.Requester = (*Client)(nil)

// New creates a client. httpClient is expected to add authentication, see
// NewHTTPClient. metrics may be nil.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger, metrics *Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
		burst = max(1, cfg.RequestsPerMinute/10)
	}

	return &Client{
		http:       httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		agent:      cfg.UserAgent,
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
		metrics:    metrics,
		attempts:   cfg.MaxAttempts,
		retryDelay: cfg.RetryDelay,
	}
}

// Get issues a GET request for path with the given query parameters.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (any, error) {
	return c.request(ctx, http.MethodGet, path, params, nil)
}

// Post issues a form encoded POST request for path.
func (c *Client) Post(ctx context.Context, path string, data url.Values) (any, error) {
	return c.request(ctx, http.MethodPost, path, nil, data)
}

func (c *Client) endpoint(path string, params url.Values) string {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("raw_json", "1")
	return c.baseURL + "/" + strings.TrimPrefix(path, "/") + "?" + q.Encode()
}

func (c *Client) request(ctx context.Context, method, path string, params, form url.Values) (any, error) {
	target := c.endpoint(path, params)
	var decoded any

	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(fmt.Errorf("rate limiter: %w", err))
			}
			v, err := c.attempt(ctx, method, path, target, form)
			if err != nil {
				return err
			}
			decoded = v
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(c.retryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying reddit request after error", "method", method, "path", path, "attempt", n, "error", err)
			if c.metrics != nil {
				c.metrics.RetriesTotal.Inc()
			}
		}),
		retry.RetryIf(retryable),
	)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	return reddit.Objectify(c, decoded), nil
}

func (c *Client) attempt(ctx context.Context, method, path, target string, form url.Values) (any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader = http.NoBody
	if method == http.MethodPost {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	}
	if err != nil {
		c.observe(method, "error")
		c.logger.Warn("Reddit request failed", "method", method, "path", path, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	c.observe(method, strconv.Itoa(resp.StatusCode))
	c.recordRateLimit(resp.Header)
	c.logger.Debug("Reddit request completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Warn("Reddit request returned retryable status", "path", path, "status_code", resp.StatusCode)
		}
		return nil, apiErr
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
	}
	if errs := redditErrors(v); len(errs) > 0 {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Errors: errs}
	}
	return v, nil
}

func (c *Client) observe(method, status string) {
	if c.metrics != nil {
		c.metrics.RequestsTotal.WithLabelValues(method, status).Inc()
	}
}

func (c *Client) recordRateLimit(h http.Header) {
	if c.metrics == nil {
		return
	}
	remaining := h.Get("X-Ratelimit-Remaining")
	if remaining == "" {
		return
	}
	if f, err := strconv.ParseFloat(remaining, 64); err == nil {
		c.metrics.RateLimitRemaining.Set(f)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsTransient reports whether err is worth retrying at a higher level, for
// example on the next poll.
func IsTransient(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && retryable(err)
}
