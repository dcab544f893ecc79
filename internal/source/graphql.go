package source

import (
	"context"
	"strings"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
	"github.com/anniezty/chinawire/internal/httpx"
	"github.com/anniezty/chinawire/internal/logger"
)

// articlesQuery fetches one page of section articles from a Dow Jones style
// content gateway, newest first.
const articlesQuery = `
query ArticlesByContentType($searchQuery: SearchQuery!, $contentType: [SearchContentType], $page: Int) {
  articlesByContentType(searchQuery: $searchQuery, contentType: $contentType, page: $page) {
    headline { text }
    sourceUrl
    publishedDateTimeUtc
    liveDateTimeUtc
    articleFlashline { text }
    flattenedSummary {
      flashline { text }
      headline { text }
      description {
        content { text }
      }
      list {
        items {
          text
        }
      }
    }
  }
}
`

type gqlText struct {
	Text string `json:"text"`
}

type gqlArticle struct {
	Headline             gqlText `json:"headline"`
	SourceURL            string  `json:"sourceUrl"`
	PublishedDateTimeUtc string  `json:"publishedDateTimeUtc"`
	LiveDateTimeUtc      string  `json:"liveDateTimeUtc"`
	ArticleFlashline     gqlText `json:"articleFlashline"`
	FlattenedSummary     *struct {
		Flashline   gqlText `json:"flashline"`
		Description struct {
			Content []gqlText `json:"content"`
		} `json:"description"`
		List struct {
			Items []gqlText `json:"items"`
		} `json:"list"`
	} `json:"flattenedSummary"`
}

type gqlResponse struct {
	Data struct {
		Articles []gqlArticle `json:"articlesByContentType"`
	} `json:"data"`
}

// GraphQLAdapter pages through a GraphQL content gateway. Results come
// newest-first, so pagination stops as soon as a page's oldest record falls
// before the window start.
type GraphQLAdapter struct {
	spec   config.SourceSpec
	client *httpx.Client
}

func (a *GraphQLAdapter) Key() string { return a.spec.Key }

func (a *GraphQLAdapter) Fetch(ctx context.Context, w article.Window, maxPages int) Outcome {
	log := logger.WithSource(a.spec.Key)
	pages := maxPagesOrDefault(a.spec, maxPages)
	endpoint := a.spec.Endpoints[0]

	var out Outcome
	seen := make(map[string]bool)

	for page := 0; page < pages; page++ {
		if page > 0 {
			a.client.Pace(ctx)
		}
		req := map[string]any{
			"query": articlesQuery,
			"variables": map[string]any{
				"searchQuery": map[string]any{
					"sort": []map[string]string{{"key": "LiveDate", "order": "desc"}},
				},
				"page": page,
			},
		}
		var resp gqlResponse
		if err := a.client.PostJSON(ctx, endpoint, req, &resp); err != nil {
			log.Warn("graphql page failed", "page", page, "error", err)
			out.SkippedPages++
			if out.Err == nil {
				out.Err = err
			}
			// A failed page does not prove later pages are useless, but
			// continuing against a struggling gateway rarely helps.
			break
		}
		out.PagesFetched++
		if len(resp.Data.Articles) == 0 {
			break
		}

		pastWindow := false
		for _, ga := range resp.Data.Articles {
			published := parseTime(ga.PublishedDateTimeUtc)
			if published == nil {
				published = parseTime(ga.LiveDateTimeUtc)
			}
			if published == nil {
				out.SkippedRecords++
				continue
			}
			if published.Before(w.From) {
				pastWindow = true
				continue
			}
			if published.After(w.To) {
				continue
			}

			url := ga.SourceURL
			if url == "" || seen[url] {
				continue
			}
			seen[url] = true

			rec := article.New(
				a.spec.Key,
				article.CleanHTML(ga.Headline.Text),
				gqlSummaryText(ga),
				url,
				endpoint,
				published,
			)
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

// gqlSummaryText flattens the nested summary blocks into one plain string.
func gqlSummaryText(ga gqlArticle) string {
	var parts []string
	if fs := ga.FlattenedSummary; fs != nil {
		if fs.Flashline.Text != "" {
			parts = append(parts, fs.Flashline.Text)
		}
		for _, c := range fs.Description.Content {
			if c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
		for _, item := range fs.List.Items {
			if item.Text != "" {
				parts = append(parts, item.Text)
			}
		}
	}
	if ga.ArticleFlashline.Text != "" {
		parts = append(parts, ga.ArticleFlashline.Text)
	}
	return article.CleanHTML(strings.Join(parts, " "))
}
