package source

import (
	"context"
	"net/url"

	"github.com/mmcdole/gofeed"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
	"github.com/anniezty/chinawire/internal/httpx"
	"github.com/anniezty/chinawire/internal/logger"
)

// FeedAdapter polls one or more RSS/Atom feeds. Feeds are single-page, so
// maxPages bounds nothing here; the window filter is applied per item since
// feed endpoints cannot filter by date themselves.
type FeedAdapter struct {
	spec   config.SourceSpec
	client *httpx.Client
}

func (a *FeedAdapter) Key() string { return a.spec.Key }

func (a *FeedAdapter) Fetch(ctx context.Context, w article.Window, maxPages int) Outcome {
	log := logger.WithSource(a.spec.Key)
	parser := gofeed.NewParser()
	var out Outcome

	for i, feedURL := range a.spec.Endpoints {
		if i > 0 {
			a.client.Pace(ctx)
		}
		body, err := a.client.Get(ctx, feedURL)
		if err != nil {
			log.Warn("feed fetch failed", "url", feedURL, "error", err)
			out.SkippedPages++
			if out.Err == nil {
				out.Err = err
			}
			continue
		}
		feed, err := parser.ParseString(string(body))
		if err != nil {
			log.Warn("feed parse failed", "url", feedURL, "error", err)
			out.SkippedPages++
			if out.Err == nil {
				out.Err = err
			}
			continue
		}
		out.PagesFetched++

		for _, item := range feed.Items {
			rec, ok := a.itemToRecord(item, feedURL)
			if !ok {
				out.SkippedRecords++
				continue
			}
			if !w.Contains(rec.EffectiveTime()) {
				continue
			}
			out.Records = append(out.Records, rec)
		}
		log.Debug("feed loaded", "url", feedURL, "items", len(feed.Items))
	}
	return out
}

func (a *FeedAdapter) itemToRecord(item *gofeed.Item, feedURL string) (article.Article, bool) {
	link := resolveFeedLink(feedURL, item.Link)
	if link == "" {
		return article.Article{}, false
	}
	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published == nil && item.Published != "" {
		published = parseTime(item.Published)
	}
	if published != nil {
		u := published.UTC()
		published = &u
	}

	summary := item.Description
	if summary == "" && item.Content != "" {
		summary = item.Content
	}

	rec := article.New(
		a.spec.Key,
		article.CleanHTML(item.Title),
		article.CleanHTML(summary),
		link,
		feedURL,
		published,
	)
	rec.KeepFilter = a.spec.KeepFilter
	rec.KeepLimit = a.spec.KeepLimit
	return rec, true
}

// resolveFeedLink makes item links absolute. Most feeds emit absolute
// URLs already, but some site generators write paths relative to the
// feed endpoint. Unlike listing cards, feed items may legitimately link
// off-host (aggregator feeds do), so no host check here.
func resolveFeedLink(feedURL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return href
	}
	base, err := url.Parse(feedURL)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
