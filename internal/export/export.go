// Package export writes run results to tabular sinks. The CSV layout keeps
// the column order downstream spreadsheets expect, so reordering columns
// here is a breaking change for consumers.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/trending"
)

// Sink accepts one named table per call.
type Sink interface {
	Write(name string, header []string, rows [][]string) error
}

// CSVDir writes each table as <dir>/<name>.csv.
type CSVDir struct {
	Dir string
}

func (d CSVDir) Write(name string, header []string, rows [][]string) error {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(d.Dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.Flush()
	return w.Error()
}

// ArticleHeader is the canonical article-table column order.
var ArticleHeader = []string{"Nested?", "URL", "Date", "Outlet", "Headline", "Nut Graph"}

// ArticleRows renders articles newest-first. URLs present in nested are
// members of a trending group and marked in the first column.
func ArticleRows(articles []article.Article, nested map[string]bool) [][]string {
	sorted := append([]article.Article(nil), articles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveTime().After(sorted[j].EffectiveTime())
	})

	rows := make([][]string, 0, len(sorted))
	for _, a := range sorted {
		mark := ""
		if nested[a.URL] {
			mark = "Y"
		}
		rows = append(rows, []string{
			mark,
			a.URL,
			a.EffectiveTime().Format(time.DateOnly),
			article.OutletName(a.RawSource),
			a.Title,
			a.Summary,
		})
	}
	return rows
}

// TrendHeader is the trending-table column order.
var TrendHeader = []string{"Category", "Headline", "SourceCount", "Outlets", "Date", "URLs"}

func TrendRows(trends []trending.Trend) [][]string {
	rows := make([][]string, 0, len(trends))
	for _, t := range trends {
		rows = append(rows, []string{
			t.Category,
			t.Headline,
			strconv.Itoa(t.SourceCount()),
			strings.Join(t.Outlets, ", "),
			t.Date.Format(time.DateOnly),
			strings.Join(t.URLs, " | "),
		})
	}
	return rows
}

// NestedURLs collects every member URL of the given trends.
func NestedURLs(trends []trending.Trend) map[string]bool {
	nested := make(map[string]bool)
	for _, t := range trends {
		for _, u := range t.URLs {
			nested[u] = true
		}
	}
	return nested
}
