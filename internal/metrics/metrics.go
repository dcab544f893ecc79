package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	SourcesAttempted   int64
	SourcesFailed      int64
	PagesFetched       int64
	PagesSkipped       int64
	RecordsCollected   int64
	RecordsSkipped     int64
	DuplicatesFiltered int64
	RecordsFilteredOut int64
	FallbackQueries    int64
	JudgeCalls         int64
	TrendsFound        int64

	// Timings
	LastRunDuration    time.Duration
	AverageRunDuration time.Duration
	TotalRunDuration   time.Duration
	RunCount           int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) RecordSource(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourcesAttempted++
	if failed {
		m.SourcesFailed++
	}
}

func (m *Metrics) RecordPages(fetched, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PagesFetched += int64(fetched)
	m.PagesSkipped += int64(skipped)
}

func (m *Metrics) RecordRecords(collected, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordsCollected += int64(collected)
	m.RecordsSkipped += int64(skipped)
}

func (m *Metrics) RecordDuplicates(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered += int64(n)
}

func (m *Metrics) RecordFilteredOut(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordsFilteredOut += int64(n)
}

func (m *Metrics) IncrementFallbackQueries() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FallbackQueries++
}

func (m *Metrics) IncrementJudgeCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JudgeCalls++
}

func (m *Metrics) RecordTrends(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TrendsFound += int64(n)
}

func (m *Metrics) RecordRunDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.RunCount++

	if m.RunCount > 0 {
		m.AverageRunDuration = m.TotalRunDuration / time.Duration(m.RunCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"sources_attempted":       m.SourcesAttempted,
		"sources_failed":          m.SourcesFailed,
		"pages_fetched":           m.PagesFetched,
		"pages_skipped":           m.PagesSkipped,
		"records_collected":       m.RecordsCollected,
		"records_skipped":         m.RecordsSkipped,
		"duplicates_filtered":     m.DuplicatesFiltered,
		"records_filtered_out":    m.RecordsFilteredOut,
		"fallback_queries":        m.FallbackQueries,
		"judge_calls":             m.JudgeCalls,
		"trends_found":            m.TrendsFound,
		"last_run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms": m.AverageRunDuration.Milliseconds(),
		"last_run_time":           m.LastRunTime.Format(time.RFC3339),
		"last_error_time":         m.LastErrorTime.Format(time.RFC3339),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}
