// Package telemetry collects local search metrics: per-mode query counts,
// latency buckets, degraded and zero-result rates. Nothing is reported
// externally.
package telemetry

import (
	"sync"
	"time"
)

// LatencyBucket is one histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// SearchEvent describes one completed search request.
type SearchEvent struct {
	Mode        string
	ResultCount int
	Latency     time.Duration
	Degraded    bool
	Reranked    bool
	Timestamp   time.Time
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	TotalQueries int64                   `json:"total_queries"`
	ModeCounts   map[string]int64        `json:"mode_counts"`
	Latencies    map[LatencyBucket]int64 `json:"latencies"`
	ZeroResults  int64                   `json:"zero_results"`
	Degraded     int64                   `json:"degraded"`
	Reranked     int64                   `json:"reranked"`
	Uptime       time.Duration           `json:"uptime"`
}

// ZeroResultPercentage returns the share of queries with no results.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResults) / float64(s.TotalQueries) * 100
}

// SearchMetrics aggregates search events in memory and optionally flushes
// daily aggregates to a MetricsStore.
type SearchMetrics struct {
	mu sync.Mutex

	modeCounts   map[string]int64
	latencies    map[LatencyBucket]int64
	totalQueries int64
	zeroResults  int64
	degraded     int64
	reranked     int64
	startTime    time.Time

	store       MetricsStore
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewSearchMetrics creates an in-memory collector. A nil store disables
// persistence; flushInterval <= 0 disables the background flush.
func NewSearchMetrics(store MetricsStore, flushInterval time.Duration) *SearchMetrics {
	m := &SearchMetrics{
		modeCounts: make(map[string]int64),
		latencies:  make(map[LatencyBucket]int64),
		startTime:  time.Now(),
		store:      store,
		stopCh:     make(chan struct{}),
	}
	if store != nil && flushInterval > 0 {
		m.flushTicker = time.NewTicker(flushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *SearchMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one search event. Thread-safe and non-blocking.
func (m *SearchMetrics) Record(event SearchEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.totalQueries++
	m.modeCounts[event.Mode]++
	m.latencies[LatencyToBucket(event.Latency)]++
	if event.ResultCount == 0 {
		m.zeroResults++
	}
	if event.Degraded {
		m.degraded++
	}
	if event.Reranked {
		m.reranked++
	}
}

// Snapshot copies the current aggregates.
func (m *SearchMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	modes := make(map[string]int64, len(m.modeCounts))
	for k, v := range m.modeCounts {
		modes[k] = v
	}
	lats := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		lats[k] = v
	}
	return &Snapshot{
		TotalQueries: m.totalQueries,
		ModeCounts:   modes,
		Latencies:    lats,
		ZeroResults:  m.zeroResults,
		Degraded:     m.degraded,
		Reranked:     m.reranked,
		Uptime:       time.Since(m.startTime),
	}
}

// Flush persists and resets the daily aggregates.
func (m *SearchMetrics) Flush() error {
	m.mu.Lock()
	if m.store == nil || m.closed {
		m.mu.Unlock()
		return nil
	}
	date := time.Now().Format("2006-01-02")
	modes := m.modeCounts
	lats := m.latencies
	m.modeCounts = make(map[string]int64)
	m.latencies = make(map[LatencyBucket]int64)
	m.mu.Unlock()

	if err := m.store.SaveModeCounts(date, modes); err != nil {
		return err
	}
	return m.store.SaveLatencyCounts(date, lats)
}

// Close stops the flush loop and persists what remains.
func (m *SearchMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.flushTicker != nil {
		m.flushTicker.Stop()
	}
	close(m.stopCh)
	store := m.store
	date := time.Now().Format("2006-01-02")
	modes := m.modeCounts
	lats := m.latencies
	m.mu.Unlock()

	if store == nil {
		return nil
	}
	if err := store.SaveModeCounts(date, modes); err != nil {
		return err
	}
	return store.SaveLatencyCounts(date, lats)
}
