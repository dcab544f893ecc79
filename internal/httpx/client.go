// Package httpx is the shared fetch layer for all source adapters. It owns
// the timeout, retry and pacing behavior so individual adapters don't grow
// bespoke loops.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/anniezty/chinawire/internal/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Transient reports whether err is worth retrying: network failures,
// HTTP 429 and 5xx. Upstream sources return all three under burst load.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*StatusError); ok {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// Client wraps http.Client with per-source tolerances. Slow proxied sources
// get longer read timeouts; everything stays bounded.
type Client struct {
	http      *http.Client
	userAgent string
	headers   map[string]string
	retry     RetryPolicy
	pageDelay time.Duration
	minBody   int
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent overrides the default browser user agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHeader adds a header to every request (cookie auth, Accept, etc).
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithRetry replaces the default retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithPageDelay sets the pause inserted between paginated requests.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) { c.pageDelay = d }
}

// WithMinBody treats responses shorter than n bytes as malformed.
// RSSHub-style proxies serve tiny error pages with status 200.
func WithMinBody(n int) Option {
	return func(c *Client) { c.minBody = n }
}

// NewClient builds a client with an explicit (connect, read) timeout pair.
func NewClient(connectTimeout, readTimeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		userAgent: defaultUserAgent,
		headers:   make(map[string]string),
		retry:     DefaultRetry,
		pageDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pace blocks for the configured inter-page delay. Adapters call it before
// every paginated request after the first; sources throttle bursts with 429s
// or empty bodies, so the delay is load-bearing.
func (c *Client) Pace(ctx context.Context) {
	if c.pageDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.pageDelay):
	}
}

// Get fetches url with retries and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, "")
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.do(ctx, http.MethodGet, url, nil, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// PostJSON posts payload as JSON to url and decodes the response into v.
func (c *Client) PostJSON(ctx context.Context, url string, payload, v any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request for %s: %w", url, err)
	}
	body, err := c.do(ctx, http.MethodPost, url, raw, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, accept string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retry.Delay(attempt - 1)
			logger.Debug("retrying request", "url", url, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.once(ctx, method, url, payload, accept)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !Transient(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("fetch %s failed after %d attempts: %w", url, c.retry.MaxAttempts, lastErr)
}

func (c *Client) once(ctx context.Context, method, url string, payload []byte, accept string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	if c.minBody > 0 && len(body) < c.minBody {
		return nil, fmt.Errorf("body of %s too short (%d bytes), likely an error page", url, len(body))
	}
	return body, nil
}
