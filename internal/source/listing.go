package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
	"github.com/anniezty/chinawire/internal/httpx"
	"github.com/anniezty/chinawire/internal/logger"
)

const defaultDetailLookups = 3

// ListingAdapter scrapes a plain HTML article listing. Cards that lack a
// publish date or summary trigger one extra fetch of the article page, where
// the missing fields are read from embedded structured data with a text
// pattern fallback. Detail fetches are capped per page to bound request
// volume.
type ListingAdapter struct {
	spec   config.SourceSpec
	client *httpx.Client
}

func (a *ListingAdapter) Key() string { return a.spec.Key }

func (a *ListingAdapter) Fetch(ctx context.Context, w article.Window, maxPages int) Outcome {
	log := logger.WithSource(a.spec.Key)
	pages := maxPagesOrDefault(a.spec, maxPages)
	endpoint := a.spec.Endpoints[0]
	base, err := url.Parse(endpoint)
	if err != nil {
		return Outcome{Err: fmt.Errorf("bad endpoint %q: %w", endpoint, err)}
	}

	lookupCap := a.spec.DetailLookups
	if lookupCap <= 0 {
		lookupCap = defaultDetailLookups
	}

	var out Outcome
	seen := make(map[string]bool)

	for page := 0; page < pages; page++ {
		if page > 0 {
			a.client.Pace(ctx)
		}
		pageURL := endpoint
		if page > 0 {
			sep := "?"
			if strings.Contains(endpoint, "?") {
				sep = "&"
			}
			pageURL = fmt.Sprintf("%s%spage=%d", endpoint, sep, page)
		}

		body, err := a.client.Get(ctx, pageURL)
		if err != nil {
			log.Warn("listing page failed", "page", page, "error", err)
			out.SkippedPages++
			if out.Err == nil {
				out.Err = err
			}
			break
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
		if err != nil {
			log.Warn("listing parse failed", "page", page, "error", err)
			out.SkippedPages++
			if out.Err == nil {
				out.Err = err
			}
			break
		}
		out.PagesFetched++

		cards := extractCards(doc, base)
		if len(cards) == 0 {
			break
		}

		lookups := 0
		pastWindow := false
		for _, c := range cards {
			if seen[c.url] {
				continue
			}
			seen[c.url] = true

			if (c.published == nil || c.summary == "") && lookups < lookupCap {
				lookups++
				a.client.Pace(ctx)
				a.fillFromDetail(ctx, &c)
			}
			if c.published == nil {
				out.SkippedRecords++
				continue
			}
			if c.published.Before(w.From) {
				pastWindow = true
				continue
			}
			if c.published.After(w.To) {
				continue
			}

			rec := article.New(a.spec.Key, c.title, c.summary, c.url, endpoint, c.published)
			rec.KeepFilter = a.spec.KeepFilter
			rec.KeepLimit = a.spec.KeepLimit
			out.Records = append(out.Records, rec)
		}
		if pastWindow {
			break
		}
	}
	return out
}

// fillFromDetail fetches the article page once and fills whatever of
// published/summary is still missing. Failures leave the card unchanged.
func (a *ListingAdapter) fillFromDetail(ctx context.Context, c *card) {
	body, err := a.client.Get(ctx, c.url)
	if err != nil {
		logger.WithSource(a.spec.Key).Debug("detail lookup failed", "url", c.url, "error", err)
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return
	}

	if c.published == nil {
		c.published = detailDate(doc)
	}
	if c.summary == "" {
		c.summary = detailSummary(doc)
	}
}

// jsonLDDate walks ld+json blocks for a datePublished field.
func jsonLDDate(doc *goquery.Document) *time.Time {
	var found *time.Time
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var blob struct {
			DatePublished string `json:"datePublished"`
		}
		if err := json.Unmarshal([]byte(sel.Text()), &blob); err != nil {
			return true
		}
		if t := parseTime(blob.DatePublished); t != nil {
			found = t
			return false
		}
		return true
	})
	return found
}

func detailDate(doc *goquery.Document) *time.Time {
	if t := jsonLDDate(doc); t != nil {
		return t
	}
	if attr, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		if t := parseTime(attr); t != nil {
			return t
		}
	}
	if attr, ok := doc.Find("time").First().Attr("datetime"); ok {
		if t := parseTime(attr); t != nil {
			return t
		}
	}
	// Last resort: scan the visible page text for a date string.
	return findDateInText(doc.Find("article").First().Text())
}

func detailSummary(doc *goquery.Document) string {
	if attr, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if s := article.CleanHTML(attr); s != "" {
			return s
		}
	}
	if attr, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if s := article.CleanHTML(attr); s != "" {
			return s
		}
	}
	return article.CleanHTML(doc.Find("article p").First().Text())
}
