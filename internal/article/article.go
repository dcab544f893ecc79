// Package article defines the normalized record every source adapter
// produces and the collection window all adapters honor.
package article

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article is the unit flowing through the whole pipeline. Adapters create it,
// downstream stages only read it; Category is attached by the classifier as
// an additive annotation.
type Article struct {
	ID        string
	SourceKey string
	Title     string
	Summary   string
	URL       string
	Published *time.Time
	Fetched   time.Time
	RawSource string

	// Category is assigned after collection, before trending.
	Category string

	// KeepFilter marks records whose adapter already guarantees topical
	// relevance; they bypass the relevance score threshold.
	KeepFilter bool
	// KeepLimit marks records exempt from the per-source cap.
	KeepLimit bool
}

// URLID derives the stable record identity from the canonical URL.
// Two records with the same URL always collide.
func URLID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}

// New builds an Article with its identity derived from url.
func New(sourceKey, title, summary, url, rawSource string, published *time.Time) Article {
	return Article{
		ID:        URLID(url),
		SourceKey: sourceKey,
		Title:     title,
		Summary:   summary,
		URL:       url,
		Published: published,
		Fetched:   time.Now().UTC(),
		RawSource: rawSource,
	}
}

// EffectiveTime returns the published time when known, otherwise the fetch
// time. Window checks and per-source ranking both use it.
func (a Article) EffectiveTime() time.Time {
	if a.Published != nil {
		return *a.Published
	}
	return a.Fetched
}

// Window is a closed UTC date interval. The end is extended to the last
// second of its day so a date-only range covers the whole final day.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow normalizes both bounds to UTC and extends the end to 23:59:59.
func NewWindow(from, to time.Time) Window {
	from = from.UTC()
	to = to.UTC()
	to = time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
	return Window{From: from, To: to}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.From) && !t.After(w.To)
}

// Days is the inclusive length of the window in days.
func (w Window) Days() int {
	return int(w.To.Sub(w.From).Hours()/24) + 1
}
