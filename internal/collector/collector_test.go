package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		ConnectTimeout:  time.Second,
		ReadTimeout:     5 * time.Second,
		SlowReadTimeout: 5 * time.Second,
		RetryAttempts:   2,
		RetryDelay:      time.Millisecond,
		PageDelay:       time.Millisecond,
		MaxPagesDefault: 5,
	}
}

func testWindow() article.Window {
	return article.NewWindow(
		time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC),
	)
}

func feedBody(titles ...string) string {
	items := ""
	for i, title := range titles {
		items += fmt.Sprintf(`<item><title>%s</title><link>https://example.com/%s-%d</link>
<pubDate>Sun, 02 Nov 2025 08:00:00 GMT</pubDate></item>`, title, title, i)
	}
	return `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>` + items + `</channel></rss>`
}

func TestRunSurvivesFailingSource(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody("China-tariff-update", "Beijing-export-note")))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer bad.Close()

	reg := &config.Registry{
		Sources: []config.SourceSpec{
			{Key: "broken", Kind: config.KindFeed, Endpoints: []string{bad.URL}},
			{Key: "healthy", Kind: config.KindFeed, Endpoints: []string{good.URL}},
		},
	}
	c, err := New(reg, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Run(context.Background(), Options{Window: testWindow()})
	if err != nil {
		t.Fatalf("run aborted: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("records = %d, want 2 from the healthy source", len(out))
	}
	for _, a := range out {
		if a.SourceKey != "healthy" {
			t.Errorf("unexpected record from %q", a.SourceKey)
		}
	}
}

func TestRunSourceAllowlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody("story")))
	}))
	defer srv.Close()

	reg := &config.Registry{
		Sources: []config.SourceSpec{
			{Key: "a", Kind: config.KindFeed, Endpoints: []string{srv.URL}},
			{Key: "b", Kind: config.KindFeed, Endpoints: []string{srv.URL}},
		},
	}
	c, err := New(reg, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Run(context.Background(), Options{Window: testWindow(), Sources: []string{"b"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].SourceKey != "b" {
		t.Errorf("allowlist not applied: %+v", out)
	}
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Both sources serve an item with the same link.
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><title>Shared story</title><link>https://example.com/shared</link>
<pubDate>Sun, 02 Nov 2025 08:00:00 GMT</pubDate></item></channel></rss>`))
	}))
	defer srv.Close()

	reg := &config.Registry{
		Sources: []config.SourceSpec{
			{Key: "first", Kind: config.KindFeed, Endpoints: []string{srv.URL}},
			{Key: "second", Kind: config.KindFeed, Endpoints: []string{srv.URL}},
		},
	}
	c, err := New(reg, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Run(context.Background(), Options{Window: testWindow()})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("records = %d, want 1 after dedup", len(out))
	}
	if out[0].SourceKey != "first" {
		t.Errorf("first-seen copy not retained: %q", out[0].SourceKey)
	}
}

func TestRunRelevanceRestriction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody("China-tariffs-rise", "Local-bake-sale")))
	}))
	defer srv.Close()

	reg := &config.Registry{
		Sources: []config.SourceSpec{
			{Key: "mixed", Kind: config.KindFeed, Endpoints: []string{srv.URL}},
		},
		Relevance: config.Relevance{Positive: []string{`china`, `tariff`}},
	}
	c, err := New(reg, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Run(context.Background(), Options{Window: testWindow(), USChinaOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("records = %d, want 1 after relevance filter", len(out))
	}
}

func TestRunFallbackBackfill(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody())) // zero items, below min_per_source
	}))
	defer empty.Close()
	gnews := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			t.Error("fallback query missing q parameter")
		}
		w.Write([]byte(feedBody("Backfilled-china-story")))
	}))
	defer gnews.Close()

	reg := &config.Registry{
		Sources: []config.SourceSpec{
			{Key: "sparse", Kind: config.KindFeed, Endpoints: []string{empty.URL}},
		},
		GoogleNews: config.GoogleNews{Enabled: true, BaseKeywords: []string{"China", "tariffs"}},
		Harvest:    config.Harvest{MinPerSource: 1, FallbackEnabled: true},
	}
	c, err := New(reg, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	c.searchBase = gnews.URL

	out, err := c.Run(context.Background(), Options{Window: testWindow()})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("records = %d, want 1 backfilled", len(out))
	}
	if out[0].SourceKey != "sparse" {
		t.Errorf("backfilled record keeps the source key, got %q", out[0].SourceKey)
	}
}
