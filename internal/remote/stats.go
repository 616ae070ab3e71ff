package remote

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// FetchSnapshot is a point-in-time aggregate of remote fetch latencies
// plus lookup-outcome counters. Fallbacks counts records resolved via
// an alternative address shape, Placeholders counts lookups that ended
// in a synthesized record; both run over the client lifetime, not the
// latency window.
type FetchSnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`

	Fallbacks    int64 `json:"fallbacks"`
	Placeholders int64 `json:"placeholders"`
}

// FetchStats tracks recent HTTP fetch latencies within a rolling window
// and counts degraded lookup outcomes.
type FetchStats struct {
	mu           sync.Mutex
	samples      []sample
	maxAge       time.Duration
	fallbacks    int64
	placeholders int64
}

func NewFetchStats(maxAge time.Duration) *FetchStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &FetchStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

func (s *FetchStats) Record(durationMs int64) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: durationMs,
	})
}

// RecordFallback counts a record resolved via an alternative shape.
func (s *FetchStats) RecordFallback() {
	s.mu.Lock()
	s.fallbacks++
	s.mu.Unlock()
}

// RecordPlaceholder counts a lookup that ended in a synthesized record.
func (s *FetchStats) RecordPlaceholder() {
	s.mu.Lock()
	s.placeholders++
	s.mu.Unlock()
}

func (s *FetchStats) Snapshot() FetchSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return FetchSnapshot{
			Fallbacks:    s.fallbacks,
			Placeholders: s.placeholders,
		}
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return FetchSnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),

		Fallbacks:    s.fallbacks,
		Placeholders: s.placeholders,
	}
}

func (s *FetchStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
