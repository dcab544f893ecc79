// Package budget tracks daily usage of paid classification and judgment
// APIs. The counter persists to disk so separately scheduled runs within
// the same day share one allowance.
package budget

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anniezty/chinawire/internal/logger"
)

// Budget gates calls to a metered external API.
type Budget interface {
	// Allow reports whether one more call fits in today's allowance.
	Allow() bool
	// Record counts one completed call against the allowance.
	Record()
}

// Unlimited never refuses. Used when no budget file is configured.
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }
func (Unlimited) Record()     {}

type state struct {
	Date string `json:"date"`
	Used int    `json:"used"`
}

// FileBudget is a JSON-file-backed daily counter. The counter resets when
// the stored date (UTC) no longer matches today. Disk errors degrade to an
// in-memory counter rather than blocking API use.
type FileBudget struct {
	mu     sync.Mutex
	path   string
	perDay int
	st     state
	now    func() time.Time
}

func NewFileBudget(path string, perDay int) *FileBudget {
	b := &FileBudget{path: path, perDay: perDay, now: time.Now}
	b.load()
	return b
}

func (b *FileBudget) load() {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("budget file unreadable; starting fresh", "path", b.path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &b.st); err != nil {
		logger.Warn("budget file corrupt; starting fresh", "path", b.path, "error", err)
		b.st = state{}
	}
}

func (b *FileBudget) save() {
	data, err := json.MarshalIndent(b.st, "", "  ")
	if err != nil {
		return
	}
	if dir := filepath.Dir(b.path); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		logger.Warn("budget file not saved", "path", b.path, "error", err)
	}
}

func (b *FileBudget) today() string {
	return b.now().UTC().Format("2006-01-02")
}

// resetIfStale zeroes the counter on the first call of a new day.
// Callers hold b.mu.
func (b *FileBudget) resetIfStale() {
	if today := b.today(); b.st.Date != today {
		b.st = state{Date: today}
	}
}

func (b *FileBudget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfStale()
	return b.st.Used < b.perDay
}

func (b *FileBudget) Record() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfStale()
	b.st.Used++
	b.save()
}

// Remaining reports today's unused allowance, for run summaries.
func (b *FileBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfStale()
	if left := b.perDay - b.st.Used; left > 0 {
		return left
	}
	return 0
}

// String implements fmt.Stringer for log lines.
func (b *FileBudget) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("%d/%d used on %s", b.st.Used, b.perDay, b.st.Date)
}
