package relevance

import (
	"fmt"
	"testing"
	"time"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(config.Relevance{
		Positive: []string{`\bchina\b`, `\btariff`, `\bbeijing\b`},
		Negative: []string{`\bsports?\b`, `\bcelebrity\b`},
	}, DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewScorerRejectsMalformedPattern(t *testing.T) {
	_, err := NewScorer(config.Relevance{Positive: []string{`(unclosed`}}, 0)
	if err == nil {
		t.Fatal("expected compilation error")
	}
}

func TestScoreWeights(t *testing.T) {
	s := newTestScorer(t)
	tests := []struct {
		name           string
		title, summary string
		rawSource      string
		want           float64
	}{
		{"title positive", "China raises tariffs", "", "https://example.com/feed", 1.0},
		{"summary positive only", "Markets wobble", "Beijing signals new controls", "https://example.com/feed", 0.6},
		{"title positive and negative", "China sports diplomacy", "", "https://example.com/feed", 0.4},
		{"summary negative", "China policy shift", "A celebrity attended the forum", "https://example.com/feed", 0.6},
		{"mainstream bump", "Markets wobble", "", "https://feeds.reuters.com/reuters/worldNews", 0.1},
		{"no match", "Local election results", "", "https://example.com/feed", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := article.Article{Title: tt.title, Summary: tt.summary, RawSource: tt.rawSource}
			if got := s.Score(a); got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterThresholdAndExemptions(t *testing.T) {
	s := newTestScorer(t)
	in := []article.Article{
		{Title: "China raises tariffs", URL: "u1"},                 // 1.0, kept
		{Title: "Markets wobble", URL: "u2"},                       // 0.0, dropped
		{Title: "Markets wobble", URL: "u3", KeepFilter: true},     // exempt, kept
		{Title: "China sports diplomacy", URL: "u4"},               // 0.4, dropped
	}
	out := s.Filter(in, true)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].URL != "u1" || out[1].URL != "u3" {
		t.Errorf("wrong survivors: %s %s", out[0].URL, out[1].URL)
	}

	// Unrestricted runs pass everything through.
	if all := s.Filter(in, false); len(all) != len(in) {
		t.Errorf("unrestricted run filtered records: %d of %d", len(all), len(in))
	}
}

func longWindow() article.Window {
	return article.NewWindow(
		time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	)
}

func TestCapPerSourceKeepsMostRecent(t *testing.T) {
	w := longWindow()
	var in []article.Article
	for i := 0; i < 250; i++ {
		ts := w.From.Add(time.Duration(i) * time.Hour)
		in = append(in, article.Article{
			SourceKey: "bulk",
			URL:       fmt.Sprintf("https://example.com/%d", i),
			Published: &ts,
		})
	}
	out := CapPerSource(in, w, 200)
	if len(out) != 200 {
		t.Fatalf("len = %d, want 200", len(out))
	}
	// The 50 oldest records are the ones evicted.
	for _, a := range out {
		if a.Published.Before(w.From.Add(50 * time.Hour)) {
			t.Fatalf("old record survived cap: %v", a.Published)
		}
	}
}

func TestCapPerSourceShortWindowUncapped(t *testing.T) {
	w := article.NewWindow(
		time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC),
	)
	var in []article.Article
	for i := 0; i < 250; i++ {
		ts := w.From.Add(time.Duration(i) * time.Minute)
		in = append(in, article.Article{SourceKey: "bulk", Published: &ts})
	}
	if out := CapPerSource(in, w, 200); len(out) != 250 {
		t.Errorf("short window capped: %d", len(out))
	}
}

func TestCapPerSourceKeepLimitExempt(t *testing.T) {
	w := longWindow()
	var in []article.Article
	for i := 0; i < 10; i++ {
		ts := w.From.Add(time.Duration(i) * time.Hour)
		in = append(in, article.Article{SourceKey: "s", Published: &ts, KeepLimit: i < 5})
	}
	out := CapPerSource(in, w, 3)
	// 5 exempt + 3 capped non-exempt.
	if len(out) != 8 {
		t.Errorf("len = %d, want 8", len(out))
	}
	for _, a := range out {
		if a.KeepLimit {
			continue
		}
		if a.Published.Before(w.From.Add(7 * time.Hour)) {
			t.Errorf("cap kept an old record over a recent one: %v", a.Published)
		}
	}
}

func TestCapMonotonic(t *testing.T) {
	// Raising the cap can only admit more records, never fewer.
	w := longWindow()
	var in []article.Article
	for i := 0; i < 50; i++ {
		ts := w.From.Add(time.Duration(i) * time.Hour)
		in = append(in, article.Article{SourceKey: "s", Published: &ts})
	}
	prev := -1
	for _, limit := range []int{10, 20, 30, 60} {
		n := len(CapPerSource(in, w, limit))
		if n < prev {
			t.Fatalf("cap %d kept %d, fewer than smaller cap kept %d", limit, n, prev)
		}
		prev = n
	}
}
