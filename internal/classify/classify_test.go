package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
)

func testRules(t *testing.T) *RuleClassifier {
	t.Helper()
	c, err := NewRuleClassifier([]config.CategoryRule{
		{Name: "Trade & Tariffs", Patterns: []string{`\btariff`, `\btrade war\b`, `\bexport controls?\b`}},
		{Name: "Technology", Patterns: []string{`\bchips?\b`, `\bsemiconductor`, `\bAI\b`}},
		{Name: "Security", Patterns: []string{`\btaiwan\b`, `\bmilitary\b`, `\bnavy\b`}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRuleClassifierFirstMatchWins(t *testing.T) {
	c := testRules(t)
	ctx := context.Background()
	tests := []struct {
		title, summary, want string
	}{
		{"New tariffs hit Chinese EVs", "", "Trade & Tariffs"},
		{"Nvidia curbs bite", "Semiconductor exports to China fall", "Technology"},
		{"Navy transits the strait", "", "Security"},
		// Tariff pattern matches first even though chips also matches.
		{"Tariffs on chips announced", "", "Trade & Tariffs"},
		{"Panda loan extended", "Zoo celebrates", Uncategorized},
	}
	for _, tt := range tests {
		a := article.Article{Title: tt.title, Summary: tt.summary}
		if got := c.Classify(ctx, a); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestRuleClassifierSummaryFallback(t *testing.T) {
	c := testRules(t)
	a := article.Article{Title: "Weekly briefing", Summary: "Taiwan drills dominate the agenda"}
	if got := c.Classify(context.Background(), a); got != "Security" {
		t.Errorf("summary match failed: %q", got)
	}
}

func TestNewRuleClassifierRejectsBadPattern(t *testing.T) {
	_, err := NewRuleClassifier([]config.CategoryRule{
		{Name: "Broken", Patterns: []string{`[unclosed`}},
	})
	if err == nil {
		t.Fatal("expected compile error")
	}
}

type countingBudget struct {
	allowed bool
	records int
}

func (b *countingBudget) Allow() bool { return b.allowed }
func (b *countingBudget) Record()     { b.records++ }

func modelClassifierAt(t *testing.T, baseURL string, b *countingBudget) *ModelClassifier {
	t.Helper()
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL + "/v1"
	return &ModelClassifier{
		client: openai.NewClientWithConfig(cfg),
		model:  "gpt-4o-mini",
		rules:  testRules(t),
		budget: b,
	}
}

func TestModelClassifierRecordsOnlyCompletedCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := &countingBudget{allowed: true}
	m := modelClassifierAt(t, srv.URL, b)
	a := article.Article{Title: "Panda loan extended", Summary: "Zoo celebrates"}
	if got := m.Classify(context.Background(), a); got != Uncategorized {
		t.Errorf("failed call classified as %q, want %q", got, Uncategorized)
	}
	if b.records != 0 {
		t.Errorf("failed call burned budget: records = %d, want 0", b.records)
	}
}

func TestModelClassifierRecordsSuccessfulCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Security"}}]}`))
	}))
	defer srv.Close()

	b := &countingBudget{allowed: true}
	m := modelClassifierAt(t, srv.URL, b)
	a := article.Article{Title: "Panda loan extended", Summary: "Zoo celebrates"}
	if got := m.Classify(context.Background(), a); got != "Security" {
		t.Errorf("Classify = %q, want Security", got)
	}
	if b.records != 1 {
		t.Errorf("records = %d, want 1", b.records)
	}
}

func TestKnownAndNames(t *testing.T) {
	c := testRules(t)
	names := c.Names()
	if len(names) != 3 || names[0] != "Trade & Tariffs" {
		t.Errorf("names = %v", names)
	}
	if !c.Known("Security") || c.Known("Gossip") {
		t.Error("Known misreports configured categories")
	}
}
