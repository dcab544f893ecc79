package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/trending"
)

func day(d int) *time.Time {
	ts := time.Date(2025, 11, d, 12, 0, 0, 0, time.UTC)
	return &ts
}

func TestArticleRowsSortedNewestFirst(t *testing.T) {
	in := []article.Article{
		{Title: "Older", URL: "u1", RawSource: "https://feeds.reuters.com/x", Published: day(1)},
		{Title: "Newest", URL: "u2", RawSource: "https://feeds.a.dj.com/x", Published: day(3)},
		{Title: "Middle", URL: "u3", RawSource: "https://apnews.com/rss", Published: day(2)},
	}
	rows := ArticleRows(in, map[string]bool{"u3": true})
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][4] != "Newest" || rows[1][4] != "Middle" || rows[2][4] != "Older" {
		t.Errorf("rows not sorted by date desc: %v", rows)
	}
	if rows[1][0] != "Y" || rows[0][0] != "" {
		t.Errorf("nested mark wrong: %v", rows)
	}
	if rows[0][3] != "WSJ" || rows[2][3] != "Reuters" {
		t.Errorf("outlet column wrong: %v", rows)
	}
	if rows[0][2] != "2025-11-03" {
		t.Errorf("date column = %q", rows[0][2])
	}
}

func TestTrendRows(t *testing.T) {
	trends := []trending.Trend{{
		Category: "Trade & Commerce",
		Headline: "Tariff pause agreed",
		Outlets:  []string{"Reuters", "WSJ", "Bloomberg"},
		Date:     *day(3),
		URLs:     []string{"u1", "u2", "u3"},
	}}
	rows := TrendRows(trends)
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[0]
	if r[2] != "3" {
		t.Errorf("source count = %q", r[2])
	}
	if r[3] != "Reuters, WSJ, Bloomberg" {
		t.Errorf("outlets = %q", r[3])
	}
	if !strings.Contains(r[5], "u2") {
		t.Errorf("urls = %q", r[5])
	}
}

func TestCSVDirWritesFile(t *testing.T) {
	dir := t.TempDir()
	sink := CSVDir{Dir: dir}
	err := sink.Write("articles", ArticleHeader, [][]string{
		{"", "https://example.com/a", "2025-11-02", "Reuters", "A headline, with comma", "Summary"},
	})
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "articles.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("csv rows = %d, want header + 1", len(records))
	}
	if records[0][0] != "Nested?" || records[0][5] != "Nut Graph" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][4] != "A headline, with comma" {
		t.Errorf("comma field not quoted round-trip: %q", records[1][4])
	}
}

func TestSeenStoreFilterAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	now := time.Date(2025, 11, 2, 8, 0, 0, 0, time.UTC)

	s := LoadSeenStore(path)
	first := s.FilterNew([]article.Article{
		{URL: "https://example.com/a"},
		{URL: "https://example.com/b"},
	}, now)
	if len(first) != 2 {
		t.Fatalf("first batch = %d, want 2", len(first))
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	// A later run sees the stored URLs and passes only the new one.
	s2 := LoadSeenStore(path)
	second := s2.FilterNew([]article.Article{
		{URL: "https://example.com/a"},
		{URL: "https://example.com/c"},
	}, now.Add(24*time.Hour))
	if len(second) != 1 || second[0].URL != "https://example.com/c" {
		t.Errorf("cross-batch dedup failed: %+v", second)
	}
	if s2.Len() != 3 {
		t.Errorf("store size = %d, want 3", s2.Len())
	}
}

func TestSeenStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	if err := os.WriteFile(path, []byte("oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := LoadSeenStore(path)
	if s.Len() != 0 {
		t.Errorf("corrupt store not reset")
	}
}
