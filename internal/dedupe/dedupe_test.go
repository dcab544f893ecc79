package dedupe

import (
	"testing"
	"time"

	"github.com/anniezty/chinawire/internal/article"
)

func mk(source, url string) article.Article {
	ts := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)
	return article.New(source, "title", "summary", url, "", &ts)
}

func TestByURLKeepsFirstSeen(t *testing.T) {
	in := []article.Article{
		mk("reuters", "https://example.com/a"),
		mk("wsj", "https://example.com/b"),
		mk("nikkei", "https://example.com/a"),
		mk("reuters", "https://example.com/c"),
		mk("axios", "https://example.com/b"),
	}
	out := ByURL(in)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[0].SourceKey != "reuters" || out[0].URL != "https://example.com/a" {
		t.Errorf("first duplicate not kept: %+v", out[0])
	}
	if out[1].SourceKey != "wsj" || out[2].URL != "https://example.com/c" {
		t.Errorf("input order not preserved: %v %v", out[1].URL, out[2].URL)
	}
}

func TestByURLIdempotent(t *testing.T) {
	in := []article.Article{
		mk("a", "https://example.com/1"),
		mk("b", "https://example.com/1"),
		mk("c", "https://example.com/2"),
	}
	once := ByURL(in)
	twice := ByURL(once)
	if len(once) != len(twice) {
		t.Fatalf("second pass changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].URL != twice[i].URL {
			t.Errorf("record %d changed on second pass", i)
		}
	}
}

func TestByURLEmpty(t *testing.T) {
	if out := ByURL(nil); len(out) != 0 {
		t.Errorf("nil input produced %d records", len(out))
	}
}
