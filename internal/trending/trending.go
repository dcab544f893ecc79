// Package trending finds events covered by several outlets at once. Records
// are compared pairwise with a cheap text-similarity tier, escalating
// ambiguous pairs to an external semantic judge when one is available and
// within budget, then grouped greedily per category and ranked by breadth
// of coverage.
package trending

import (
	"context"
	"sort"
	"time"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/budget"
	"github.com/anniezty/chinawire/internal/gemini"
	"github.com/anniezty/chinawire/internal/logger"
	"github.com/anniezty/chinawire/internal/metrics"
)

const (
	// DefaultThreshold is the similarity at or above which a pair is
	// considered the same event without consulting the judge.
	DefaultThreshold = 0.55

	// dissimilarBound short-circuits clearly unrelated pairs.
	dissimilarBound = 0.3

	// escalateBound is the lower edge of the ambiguous band that may be
	// referred to the semantic judge.
	escalateBound = 0.40

	// judgeDelay paces consecutive judge calls.
	judgeDelay = 500 * time.Millisecond

	DefaultMinOutlets = 2
	DefaultTopN       = 3
)

// Trend is one promoted event group.
type Trend struct {
	Category string
	Headline string // anchor member's headline
	Outlets  []string
	Date     time.Time
	URLs     []string
}

// SourceCount is the number of distinct outlets covering the event.
func (t Trend) SourceCount() int { return len(t.Outlets) }

// Clusterer compares and groups articles. Zero-value options pick the
// defaults; Judge may be nil, in which case ambiguous pairs resolve by
// threshold alone.
type Clusterer struct {
	Threshold  float64
	MinOutlets int
	TopN       int
	Judge      gemini.Judge
	Budget     budget.Budget

	sleep func(time.Duration)
}

func NewClusterer(threshold float64, judge gemini.Judge, b budget.Budget) *Clusterer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if b == nil {
		b = budget.Unlimited{}
	}
	return &Clusterer{
		Threshold:  threshold,
		MinOutlets: DefaultMinOutlets,
		TopN:       DefaultTopN,
		Judge:      judge,
		Budget:     b,
		sleep:      time.Sleep,
	}
}

// cleaned caches the normalized comparison strings for one record.
type cleaned struct {
	title    string
	combined string
}

func precompute(articles []article.Article) []cleaned {
	out := make([]cleaned, len(articles))
	for i, a := range articles {
		out[i].title = cleanText(a.Title)
		out[i].combined = cleanText(a.Title + " " + a.Summary)
	}
	return out
}

// sameEvent runs the two-tier comparison for one pair. Title similarity
// decides clear-cut pairs on its own; the combined title+summary text
// decides the rest, with the ambiguous middle band referred to the judge.
func (c *Clusterer) sameEvent(ctx context.Context, a, b article.Article, ca, cb cleaned) bool {
	title := Ratio(ca.title, cb.title)
	if title >= c.Threshold {
		return true
	}
	if title < dissimilarBound {
		return false
	}

	combined := Ratio(ca.combined, cb.combined)
	if combined >= c.Threshold {
		return true
	}
	if combined < escalateBound {
		return false
	}

	// Ambiguous band. A definitive judge answer overrides the text
	// verdict; anything else falls back to the threshold, which the
	// pair has already failed.
	if c.Judge != nil && c.Budget.Allow() {
		c.sleep(judgeDelay)
		verdict, err := c.Judge.Same(ctx, a, b)
		c.Budget.Record()
		metrics.Global.IncrementJudgeCalls()
		if err != nil {
			logger.Warn("semantic judge failed", "error", err)
		}
		switch verdict {
		case gemini.SameEvent:
			return true
		case gemini.DifferentEvent:
			return false
		}
	}
	return false
}

// Group is an intermediate event cluster before promotion.
type Group struct {
	Category string
	Members  []article.Article
}

// Groups clusters records per category with single-pass greedy anchoring:
// each unassigned record opens a group and claims every later unassigned
// record similar to it. A record similar to a claimed member but not to the
// anchor stays out; that missed link is accepted in exchange for a single
// pass over the pairs.
func (c *Clusterer) Groups(ctx context.Context, articles []article.Article) []Group {
	byCat := make(map[string][]int)
	var catOrder []string
	for i, a := range articles {
		if _, ok := byCat[a.Category]; !ok {
			catOrder = append(catOrder, a.Category)
		}
		byCat[a.Category] = append(byCat[a.Category], i)
	}

	clean := precompute(articles)
	var groups []Group

	for _, cat := range catOrder {
		idxs := byCat[cat]
		assigned := make([]bool, len(idxs))
		for x := range idxs {
			if assigned[x] {
				continue
			}
			assigned[x] = true
			g := Group{Category: cat, Members: []article.Article{articles[idxs[x]]}}
			for y := x + 1; y < len(idxs); y++ {
				if assigned[y] {
					continue
				}
				i, j := idxs[x], idxs[y]
				if c.sameEvent(ctx, articles[i], articles[j], clean[i], clean[j]) {
					assigned[y] = true
					g.Members = append(g.Members, articles[j])
				}
			}
			groups = append(groups, g)
		}
	}
	return groups
}

// Trending promotes groups covered by enough distinct outlets and keeps the
// top-N per category by outlet count. Ties rank by recency.
func (c *Clusterer) Trending(ctx context.Context, articles []article.Article) []Trend {
	minOutlets := c.MinOutlets
	if minOutlets <= 0 {
		minOutlets = DefaultMinOutlets
	}
	topN := c.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	byCat := make(map[string][]Trend)
	var catOrder []string
	for _, g := range c.Groups(ctx, articles) {
		t := promote(g)
		if t.SourceCount() < minOutlets {
			continue
		}
		if _, ok := byCat[t.Category]; !ok {
			catOrder = append(catOrder, t.Category)
		}
		byCat[t.Category] = append(byCat[t.Category], t)
	}

	var out []Trend
	for _, cat := range catOrder {
		trends := byCat[cat]
		sort.SliceStable(trends, func(i, j int) bool {
			if trends[i].SourceCount() != trends[j].SourceCount() {
				return trends[i].SourceCount() > trends[j].SourceCount()
			}
			return trends[i].Date.After(trends[j].Date)
		})
		if len(trends) > topN {
			trends = trends[:topN]
		}
		out = append(out, trends...)
	}
	return out
}

// promote flattens a group into a Trend: the anchor's headline, the set of
// distinct outlets, the most recent member date and every member URL.
func promote(g Group) Trend {
	t := Trend{Category: g.Category, Headline: g.Members[0].Title}
	seen := make(map[string]bool)
	for _, m := range g.Members {
		t.URLs = append(t.URLs, m.URL)
		outlet := article.OutletName(m.RawSource)
		if !seen[outlet] {
			seen[outlet] = true
			t.Outlets = append(t.Outlets, outlet)
		}
		if ts := m.EffectiveTime(); ts.After(t.Date) {
			t.Date = ts
		}
	}
	return t
}
