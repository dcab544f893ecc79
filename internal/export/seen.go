package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anniezty/chinawire/internal/article"
	"github.com/anniezty/chinawire/internal/logger"
)

// SeenStore remembers every exported URL across runs so scheduled batches
// append only new records. Read-merge-append, no locking: concurrent runs
// against one store must be serialized by the scheduler.
type SeenStore struct {
	path string
	urls map[string]string // url -> first-seen date
}

func LoadSeenStore(path string) *SeenStore {
	s := &SeenStore{path: path, urls: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("seen store unreadable; starting empty", "path", path, "error", err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s.urls); err != nil {
		logger.Warn("seen store corrupt; starting empty", "path", path, "error", err)
		s.urls = make(map[string]string)
	}
	return s
}

// Seen reports whether url was exported by an earlier run.
func (s *SeenStore) Seen(url string) bool {
	_, ok := s.urls[url]
	return ok
}

// FilterNew returns the records not yet in the store and registers them.
func (s *SeenStore) FilterNew(articles []article.Article, now time.Time) []article.Article {
	out := articles[:0:0]
	day := now.UTC().Format(time.DateOnly)
	for _, a := range articles {
		if s.Seen(a.URL) {
			continue
		}
		s.urls[a.URL] = day
		out = append(out, a)
	}
	return out
}

func (s *SeenStore) Len() int { return len(s.urls) }

func (s *SeenStore) Save() error {
	data, err := json.MarshalIndent(s.urls, "", "  ")
	if err != nil {
		return fmt.Errorf("encode seen store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create seen store dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write seen store: %w", err)
	}
	return nil
}
