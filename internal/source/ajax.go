package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
	"github.com/anniezty/chinawire/internal/httpx"
	"github.com/anniezty/chinawire/internal/logger"
)

// ajaxCommand is one entry of a Drupal views/ajax response: a JSON array of
// render commands whose "insert" entries carry HTML fragments.
type ajaxCommand struct {
	Command string `json:"command"`
	Data    string `json:"data"`
}

// AJAXAdapter pages through a Drupal AJAX view endpoint. Pages come
// newest-first and unfiltered, so the adapter stops paginating once it sees
// a record older than the window start.
type AJAXAdapter struct {
	spec   config.SourceSpec
	client *httpx.Client
}

func (a *AJAXAdapter) Key() string { return a.spec.Key }

func (a *AJAXAdapter) Fetch(ctx context.Context, w article.Window, maxPages int) Outcome {
	log := logger.WithSource(a.spec.Key)
	pages := maxPagesOrDefault(a.spec, maxPages)
	endpoint := a.spec.Endpoints[0]

	base, err := url.Parse(endpoint)
	if err != nil {
		return Outcome{Err: fmt.Errorf("bad endpoint %q: %w", endpoint, err)}
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
			log.Warn("ajax page failed", "page", page, "error", err)
			out.SkippedPages++
			if out.Err == nil {
				out.Err = err
			}
			break
		}

		fragment, err := joinAjaxFragments(body)
		if err != nil {
			log.Warn("ajax response malformed", "page", page, "error", err)
			out.SkippedPages++
			if out.Err == nil {
				out.Err = err
			}
			break
		}
		out.PagesFetched++

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err != nil {
			out.SkippedPages++
			if out.Err == nil {
				out.Err = err
			}
			break
		}
		cards := extractCards(doc, base)
		if len(cards) == 0 {
			break
		}

		pastWindow := false
		for _, c := range cards {
			if seen[c.url] {
				continue
			}
			seen[c.url] = true
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

// joinAjaxFragments concatenates the HTML carried by insert commands. Some
// deployments return a bare HTML page instead of the command array; that is
// handled by passing the body through unchanged.
func joinAjaxFragments(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "[") {
		return trimmed, nil
	}
	var commands []ajaxCommand
	if err := json.Unmarshal(body, &commands); err != nil {
		return "", fmt.Errorf("parse ajax commands: %w", err)
	}
	var b strings.Builder
	for _, cmd := range commands {
		if cmd.Command == "insert" && cmd.Data != "" {
			b.WriteString(cmd.Data)
		}
	}
	return b.String(), nil
}
