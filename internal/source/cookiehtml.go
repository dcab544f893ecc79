package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
	"github.com/anniezty/chinawire/internal/httpx"
	"github.com/anniezty/chinawire/internal/logger"
)

const nextDataMarker = `<script id="__NEXT_DATA__" type="application/json">`

type nextStory struct {
	ID          string `json:"id"`
	Headline    string `json:"headline"`
	Caption     string `json:"caption"`
	Permalink   string `json:"permalink"`
	RelativeURL string `json:"relativeURL"`
	Timestamp   string `json:"timestamp"`
}

type nextTopicData struct {
	Topic struct {
		Slug string `json:"slug"`
	} `json:"topic"`
	Subtopic struct {
		Slug string `json:"slug"`
	} `json:"subtopic"`
	HydratedStories []nextStory `json:"hydratedStories"`
	NextPageToken   string      `json:"nextPageToken"`
}

type nextLanding struct {
	BuildID string `json:"buildId"`
	Props   struct {
		PageProps struct {
			Data nextTopicData `json:"data"`
		} `json:"pageProps"`
	} `json:"props"`
}

type nextPagePayload struct {
	PageProps struct {
		Data nextTopicData `json:"data"`
	} `json:"pageProps"`
}

// CookieHTMLAdapter scrapes a Next.js site behind cookie auth: the landing
// page embeds the first page of stories plus a build id, later pages come
// from the JSON data route. This source is an optional enricher, so missing
// credentials soft-disable it instead of failing the run.
type CookieHTMLAdapter struct {
	spec   config.SourceSpec
	client *httpx.Client
	cookie string
}

func (a *CookieHTMLAdapter) Key() string { return a.spec.Key }

func (a *CookieHTMLAdapter) Fetch(ctx context.Context, w article.Window, maxPages int) Outcome {
	log := logger.WithSource(a.spec.Key)
	if a.cookie == "" {
		log.Warn("cookie not provided; skipping source", "env", a.spec.CookieEnv)
		return Outcome{}
	}

	pages := maxPagesOrDefault(a.spec, maxPages)
	landing := a.spec.Endpoints[0]
	base, err := url.Parse(landing)
	if err != nil {
		return Outcome{Err: fmt.Errorf("bad endpoint %q: %w", landing, err)}
	}

	var out Outcome
	body, err := a.client.Get(ctx, landing)
	if err != nil {
		log.Warn("landing page failed", "error", err)
		out.SkippedPages++
		out.Err = err
		return out
	}

	payload, err := extractNextData(string(body))
	if err != nil {
		log.Warn("next.js payload missing or malformed", "error", err)
		out.SkippedPages++
		out.Err = err
		return out
	}
	if payload.BuildID == "" || payload.Props.PageProps.Data.Subtopic.Slug == "" {
		log.Warn("next.js payload incomplete; skipping source")
		out.SkippedPages++
		out.Err = fmt.Errorf("incomplete next.js payload from %s", landing)
		return out
	}

	seen := make(map[string]bool)
	data := payload.Props.PageProps.Data
	lastToken := ""

	for page := 0; page < pages; page++ {
		if page > 0 {
			a.client.Pace(ctx)
		}
		out.PagesFetched++
		fresh := 0
		for _, story := range data.HydratedStories {
			if story.ID == "" || seen[story.ID] {
				continue
			}
			seen[story.ID] = true
			fresh++

			published := parseTime(story.Timestamp)
			if published == nil {
				out.SkippedRecords++
				continue
			}
			if !w.Contains(*published) {
				continue
			}

			storyURL := story.Permalink
			if storyURL == "" {
				storyURL = story.RelativeURL
			}
			if storyURL == "" {
				out.SkippedRecords++
				continue
			}
			if !strings.HasPrefix(storyURL, "http") {
				storyURL = base.Scheme + "://" + base.Host + storyURL
			}

			rec := article.New(
				a.spec.Key,
				article.CleanHTML(story.Headline),
				article.CleanHTML(story.Caption),
				storyURL,
				landing,
				published,
			)
			rec.KeepFilter = a.spec.KeepFilter
			rec.KeepLimit = a.spec.KeepLimit
			out.Records = append(out.Records, rec)
		}

		token := data.NextPageToken
		if token == "" || token == lastToken || fresh == 0 {
			break
		}
		lastToken = token

		pageURL := fmt.Sprintf("%s://%s/_next/data/%s/topic/%s.json?slug=%s&pageToken=%s",
			base.Scheme, base.Host, payload.BuildID,
			url.PathEscape(data.Subtopic.Slug),
			url.QueryEscape(data.Topic.Slug),
			url.QueryEscape(token))

		var next nextPagePayload
		if err := a.client.GetJSON(ctx, pageURL, &next); err != nil {
			log.Warn("topic page failed", "page", page+1, "error", err)
			out.SkippedPages++
			if out.Err == nil {
				out.Err = err
			}
			break
		}
		data = next.PageProps.Data
	}
	return out
}

// extractNextData pulls the embedded __NEXT_DATA__ JSON out of the page.
func extractNextData(html string) (*nextLanding, error) {
	start := strings.Index(html, nextDataMarker)
	if start == -1 {
		return nil, fmt.Errorf("__NEXT_DATA__ script not found")
	}
	start += len(nextDataMarker)
	end := strings.Index(html[start:], "</script>")
	if end == -1 {
		return nil, fmt.Errorf("__NEXT_DATA__ script not terminated")
	}
	var payload nextLanding
	if err := json.Unmarshal([]byte(html[start:start+end]), &payload); err != nil {
		return nil, fmt.Errorf("parse __NEXT_DATA__: %w", err)
	}
	return &payload, nil
}
