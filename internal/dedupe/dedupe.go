// Package dedupe removes exact duplicates from merged article batches.
// Cross-batch deduplication lives in the export seen-store; this package
// only handles collisions within a single run, where the same URL can come
// from several feeds of one source or from overlapping sources.
package dedupe

import (
	"github.com/anniezty/chinawire/internal/article"
)

// ByURL keeps the first occurrence of each URL, preserving input order.
// Sources run in registry order, so "first seen" favors the source listed
// earlier, which is also the one fetched earlier in time.
func ByURL(articles []article.Article) []article.Article {
	if len(articles) == 0 {
		return articles
	}
	seen := make(map[string]bool, len(articles))
	out := articles[:0:0]
	for _, a := range articles {
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		out = append(out, a)
	}
	return out
}
