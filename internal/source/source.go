// Package source normalizes wildly different fetch mechanisms — RSS feeds,
// GraphQL gateways, Drupal AJAX views, authenticated Next.js pages and plain
// HTML listings — into one article schema behind a single adapter contract.
package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
	"github.com/anniezty/chinawire/internal/httpx"
)

// Outcome is the result of one adapter run. A run never aborts the caller:
// transport failures degrade into fewer records, and Err only reports the
// first failure for logging.
type Outcome struct {
	Records        []article.Article
	PagesFetched   int
	SkippedPages   int
	SkippedRecords int
	Err            error
}

// Partial reports whether the run lost pages or records along the way.
func (o Outcome) Partial() bool {
	return o.SkippedPages > 0 || o.SkippedRecords > 0
}

// Adapter fetches raw items from one source family and maps them to
// normalized records already restricted to the window. Implementations must
// filter by effective timestamp themselves when the upstream endpoint cannot.
type Adapter interface {
	Key() string
	Fetch(ctx context.Context, w article.Window, maxPages int) Outcome
}

// New builds the adapter for one registry entry.
func New(spec config.SourceSpec, cfg *config.Config) (Adapter, error) {
	switch spec.Kind {
	case config.KindFeed:
		return &FeedAdapter{spec: spec, client: newClient(spec, cfg)}, nil
	case config.KindGraphQL:
		client := newClient(spec, cfg,
			httpx.WithHeader("Accept", "*/*"))
		return &GraphQLAdapter{spec: spec, client: client}, nil
	case config.KindAJAX:
		client := newClient(spec, cfg,
			httpx.WithHeader("X-Requested-With", "XMLHttpRequest"),
			httpx.WithHeader("Accept", "application/json, text/javascript, */*; q=0.01"))
		return &AJAXAdapter{spec: spec, client: client}, nil
	case config.KindCookieHTML:
		cookie := readCookie(spec.CookieEnv)
		opts := []httpx.Option{}
		if cookie != "" {
			opts = append(opts, httpx.WithHeader("Cookie", cookie))
		}
		return &CookieHTMLAdapter{spec: spec, client: newClient(spec, cfg, opts...), cookie: cookie}, nil
	case config.KindListing:
		return &ListingAdapter{spec: spec, client: newClient(spec, cfg)}, nil
	default:
		return nil, fmt.Errorf("source %q: unknown adapter kind %q", spec.Key, spec.Kind)
	}
}

// Build constructs adapters for every registry entry, in registry order.
func Build(reg *config.Registry, cfg *config.Config) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(reg.Sources))
	for _, spec := range reg.Sources {
		a, err := New(spec, cfg)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

func newClient(spec config.SourceSpec, cfg *config.Config, extra ...httpx.Option) *httpx.Client {
	read := cfg.ReadTimeout
	retry := httpx.RetryPolicy{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryDelay,
		Multiplier:  2,
		Jitter:      500 * time.Millisecond,
	}
	opts := []httpx.Option{}
	if spec.Slow {
		// Proxied feeds hold the connection open, then stream quickly.
		read = cfg.SlowReadTimeout
		retry = httpx.SlowSourceRetry
		opts = append(opts, httpx.WithMinBody(500))
	}
	delay := cfg.PageDelay
	if spec.PageDelaySeconds > 0 {
		delay = time.Duration(spec.PageDelaySeconds) * time.Second
	}
	opts = append(opts, httpx.WithRetry(retry), httpx.WithPageDelay(delay))
	opts = append(opts, extra...)
	return httpx.NewClient(cfg.ConnectTimeout, read, opts...)
}

func readCookie(env string) string {
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

func maxPagesOrDefault(spec config.SourceSpec, maxPages int) int {
	if spec.MaxPages > 0 && (maxPages <= 0 || spec.MaxPages < maxPages) {
		return spec.MaxPages
	}
	if maxPages <= 0 {
		return 5
	}
	return maxPages
}
