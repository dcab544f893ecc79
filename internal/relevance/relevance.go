// Package relevance scores articles against keyword patterns and enforces
// the per-source volume quota. Scoring is only consulted when the run is
// restricted to U.S.-China coverage; unrestricted runs pass everything
// through untouched.
package relevance

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/config"
)

const (
	// DefaultThreshold is the minimum score a record needs to survive a
	// topic-restricted run.
	DefaultThreshold = 0.6

	// DefaultMaxPerSource caps one source's contribution on long windows.
	DefaultMaxPerSource = 200

	// capWindowDays is the window length above which the per-source cap
	// applies. Short windows are bounded in volume on their own.
	capWindowDays = 7
)

// Mainstream wire and broadsheet outlets get a small score bump: their
// China coverage is usually on-topic even when the headline avoids the
// keywords.
var mainstreamOutlets = map[string]bool{
	"Reuters":   true,
	"AP":        true,
	"WSJ":       true,
	"NYT":       true,
	"WaPo":      true,
	"Bloomberg": true,
	"FT":        true,
	"BBC":       true,
	"Economist": true,
	"Nikkei":    true,
	"SCMP":      true,
	"Axios":     true,
}

// Scorer holds the compiled keyword patterns. Pattern compilation failures
// are configuration errors and surface at construction, before any network
// work happens.
type Scorer struct {
	positive  []*regexp.Regexp
	negative  []*regexp.Regexp
	threshold float64
}

func NewScorer(rel config.Relevance, threshold float64) (*Scorer, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	pos, err := compileAll(rel.Positive)
	if err != nil {
		return nil, fmt.Errorf("positive keywords: %w", err)
	}
	neg, err := compileAll(rel.Negative)
	if err != nil {
		return nil, fmt.Errorf("negative keywords: %w", err)
	}
	return &Scorer{positive: pos, negative: neg, threshold: threshold}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Score computes the weighted keyword score for one record. Title hits
// weigh more than summary hits, negative hits subtract, and mainstream
// outlets get a small constant bump.
func (s *Scorer) Score(a article.Article) float64 {
	var score float64
	if matchesAny(s.positive, a.Title) {
		score += 1.0
	}
	if matchesAny(s.positive, a.Summary) {
		score += 0.6
	}
	if matchesAny(s.negative, a.Title) {
		score -= 0.6
	}
	if matchesAny(s.negative, a.Summary) {
		score -= 0.4
	}
	if mainstreamOutlets[article.OutletName(a.RawSource)] {
		score += 0.1
	}
	return score
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	if text == "" {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Filter applies the topic restriction. When usChinaOnly is false every
// record passes. Records flagged KeepFilter were already vetted by their
// adapter and bypass the threshold.
func (s *Scorer) Filter(articles []article.Article, usChinaOnly bool) []article.Article {
	if !usChinaOnly {
		return articles
	}
	out := articles[:0:0]
	for _, a := range articles {
		if a.KeepFilter || s.Score(a) >= s.threshold {
			out = append(out, a)
		}
	}
	return out
}

// CapPerSource limits each source's contribution to the most recent
// maxPerSource records, but only on windows longer than seven days.
// KeepLimit records do not count toward nor get evicted by the cap.
func CapPerSource(articles []article.Article, w article.Window, maxPerSource int) []article.Article {
	if w.Days() <= capWindowDays {
		return articles
	}
	if maxPerSource <= 0 {
		maxPerSource = DefaultMaxPerSource
	}

	bySource := make(map[string][]int)
	for i, a := range articles {
		if a.KeepLimit {
			continue
		}
		bySource[a.SourceKey] = append(bySource[a.SourceKey], i)
	}

	drop := make(map[int]bool)
	for _, idxs := range bySource {
		if len(idxs) <= maxPerSource {
			continue
		}
		ranked := append([]int(nil), idxs...)
		sort.SliceStable(ranked, func(x, y int) bool {
			return articles[ranked[x]].EffectiveTime().After(articles[ranked[y]].EffectiveTime())
		})
		for _, i := range ranked[maxPerSource:] {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		return articles
	}

	out := articles[:0:0]
	for i, a := range articles {
		if !drop[i] {
			out = append(out, a)
		}
	}
	return out
}
