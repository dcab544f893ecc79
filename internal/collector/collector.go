// Package collector runs one collection pass: every registered source in
// registry order, strictly sequentially, then merge, dedupe and relevance
// filtering. One broken source never aborts the run; its failure is logged,
// counted and the pass moves on.
package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
	"github.com/anniezty/chinawire/internal/dedupe"
	"github.com/anniezty/chinawire/internal/httpx"
	"github.com/anniezty/chinawire/internal/logger"
	"github.com/anniezty/chinawire/internal/metrics"
	"github.com/anniezty/chinawire/internal/relevance"
	"github.com/anniezty/chinawire/internal/source"
)

// Options selects what one collection pass covers.
type Options struct {
	Window article.Window
	// Sources restricts the pass to these registry keys; empty means all.
	Sources []string
	// MaxPages overrides per-source pagination bounds; 0 keeps defaults.
	MaxPages int
	// USChinaOnly applies the relevance threshold to non-exempt records.
	USChinaOnly bool
}

const googleNewsSearch = "https://news.google.com/rss/search"

type Collector struct {
	reg        *config.Registry
	cfg        *config.Config
	scorer     *relevance.Scorer
	client     *httpx.Client // Google News fallback fetches
	metrics    *metrics.Metrics
	searchBase string
}

func New(reg *config.Registry, cfg *config.Config) (*Collector, error) {
	scorer, err := relevance.NewScorer(reg.Relevance, cfg.RelevanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("relevance config: %w", err)
	}
	return &Collector{
		reg:        reg,
		cfg:        cfg,
		scorer:     scorer,
		client:     httpx.NewClient(cfg.ConnectTimeout, cfg.ReadTimeout, httpx.WithRetry(httpx.DefaultRetry)),
		metrics:    metrics.Global,
		searchBase: googleNewsSearch,
	}, nil
}

// Run executes one pass and returns the filtered record set. The returned
// error reflects setup problems only; per-source failures degrade to
// partial results.
func (c *Collector) Run(ctx context.Context, opts Options) ([]article.Article, error) {
	adapters, err := source.Build(c.reg, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("build adapters: %w", err)
	}

	include := allowlist(opts.Sources)
	var merged []article.Article

	for _, a := range adapters {
		if include != nil && !include[a.Key()] {
			continue
		}
		out := a.Fetch(ctx, opts.Window, opts.MaxPages)
		c.metrics.RecordSource(out.Err != nil && len(out.Records) == 0)
		c.metrics.RecordPages(out.PagesFetched, out.SkippedPages)

		records := inWindow(out.Records, opts.Window)
		c.metrics.RecordRecords(len(records), out.SkippedRecords)

		switch {
		case out.Err != nil:
			logger.Warn("source degraded", "source", a.Key(),
				"records", len(records), "skipped_pages", out.SkippedPages, "error", out.Err)
		case out.Partial():
			logger.Info("source collected with gaps", "source", a.Key(),
				"records", len(records), "pages", out.PagesFetched,
				"skipped_records", out.SkippedRecords)
		default:
			logger.Info("source collected", "source", a.Key(),
				"records", len(records), "pages", out.PagesFetched)
		}

		if len(records) < c.reg.Harvest.MinPerSource && c.fallbackEnabled() {
			extra := c.fallback(ctx, a.Key(), opts.Window)
			if len(extra) > 0 {
				logger.Info("fallback backfill", "source", a.Key(), "records", len(extra))
				records = append(records, extra...)
			}
		}
		merged = append(merged, records...)
	}

	before := len(merged)
	merged = dedupe.ByURL(merged)
	c.metrics.RecordDuplicates(before - len(merged))

	before = len(merged)
	merged = c.scorer.Filter(merged, opts.USChinaOnly)
	merged = relevance.CapPerSource(merged, opts.Window, c.reg.Harvest.MaxPerSource)
	c.metrics.RecordFilteredOut(before - len(merged))

	logger.Info("collection pass complete", "records", len(merged))
	return merged, nil
}

func allowlist(keys []string) map[string]bool {
	if len(keys) == 0 {
		return nil
	}
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

// inWindow re-checks the generic time filter. Adapters filter on their own,
// but a fetched-time fallback can only be applied consistently here.
func inWindow(records []article.Article, w article.Window) []article.Article {
	out := records[:0:0]
	for _, r := range records {
		if w.Contains(r.EffectiveTime()) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Collector) fallbackEnabled() bool {
	return c.reg.Harvest.FallbackEnabled && c.reg.GoogleNews.Enabled
}

// fallback queries the Google News RSS search, scoped to the source's
// domain when per_domain is set. Best-effort backfill: failures return
// nothing.
func (c *Collector) fallback(ctx context.Context, key string, w article.Window) []article.Article {
	spec, ok := c.reg.Source(key)
	if !ok || len(spec.Endpoints) == 0 {
		return nil
	}
	domain := article.DomainOf(spec.Endpoints[0])
	if domain == "" {
		return nil
	}

	keywords := strings.Join(c.reg.GoogleNews.BaseKeywords, " OR ")
	var query string
	switch {
	case c.reg.GoogleNews.PerDomain && keywords != "":
		query = fmt.Sprintf("site:%s (%s)", domain, keywords)
	case c.reg.GoogleNews.PerDomain:
		query = fmt.Sprintf("site:%s", domain)
	case keywords != "":
		query = keywords
	default:
		return nil
	}
	searchURL := fmt.Sprintf("%s?q=%s&hl=en-US&gl=US&ceid=US:en",
		c.searchBase, url.QueryEscape(query))

	c.metrics.IncrementFallbackQueries()
	body, err := c.client.Get(ctx, searchURL)
	if err != nil {
		logger.Warn("fallback query failed", "source", key, "error", err)
		return nil
	}
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		logger.Warn("fallback feed malformed", "source", key, "error", err)
		return nil
	}

	var out []article.Article
	for _, item := range feed.Items {
		if item.Link == "" || item.PublishedParsed == nil {
			continue
		}
		published := item.PublishedParsed.UTC()
		if !w.Contains(published) {
			continue
		}
		rec := article.New(key,
			article.CleanHTML(item.Title),
			article.CleanHTML(item.Description),
			item.Link, searchURL, &published)
		rec.KeepFilter = spec.KeepFilter
		rec.KeepLimit = spec.KeepLimit
		out = append(out, rec)
	}
	return out
}
