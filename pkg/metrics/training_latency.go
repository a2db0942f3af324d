// Package metrics tracks operation latencies with percentiles.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps a sliding window of recent latencies.
type LatencyTracker struct {
	mu         sync.Mutex
	samples    []int64 // microseconds
	maxSamples int
	sorted     bool
}

func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &LatencyTracker{
		samples:    make([]int64, 0, windowSize),
		maxSamples: windowSize,
	}
}

// Record adds one measurement, dropping the oldest tenth of the window when full.
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if len(lt.samples) >= lt.maxSamples {
		drop := lt.maxSamples / 10
		if drop < 1 {
			drop = 1
		}
		lt.samples = lt.samples[drop:]
	}
	lt.samples = append(lt.samples, d.Microseconds())
	lt.sorted = false
}

func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	n := len(lt.samples)
	if n == 0 {
		return LatencyStats{}
	}
	if !lt.sorted {
		sort.Slice(lt.samples, func(i, j int) bool { return lt.samples[i] < lt.samples[j] })
		lt.sorted = true
	}

	var sum int64
	for _, v := range lt.samples {
		sum += v
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }

	return LatencyStats{
		Count: n,
		Min:   us(lt.samples[0]),
		Max:   us(lt.samples[n-1]),
		Avg:   us(sum / int64(n)),
		P50:   us(lt.percentile(0.50)),
		P95:   us(lt.percentile(0.95)),
		P99:   us(lt.percentile(0.99)),
	}
}

// percentile expects the lock held and samples sorted.
func (lt *LatencyTracker) percentile(p float64) int64 {
	idx := int(float64(len(lt.samples)-1) * p)
	return lt.samples[idx]
}

type LatencyStats struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// ToMap renders the stats in milliseconds.
func (s LatencyStats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"count":  s.Count,
		"min_ms": ms(s.Min),
		"max_ms": ms(s.Max),
		"avg_ms": ms(s.Avg),
		"p50_ms": ms(s.P50),
		"p95_ms": ms(s.P95),
		"p99_ms": ms(s.P99),
	}
}

// =============================================================================
// Registry
// =============================================================================

// LatencyRegistry holds one tracker per operation name.
type LatencyRegistry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	window   int
}

func NewLatencyRegistry(windowSize int) *LatencyRegistry {
	return &LatencyRegistry{
		trackers: make(map[string]*LatencyTracker),
		window:   windowSize,
	}
}

func (r *LatencyRegistry) Record(name string, d time.Duration) {
	r.mu.RLock()
	tracker, ok := r.trackers[name]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if tracker, ok = r.trackers[name]; !ok {
			tracker = NewLatencyTracker(r.window)
			r.trackers[name] = tracker
		}
		r.mu.Unlock()
	}
	tracker.Record(d)
}

func (r *LatencyRegistry) Stats(name string) LatencyStats {
	r.mu.RLock()
	tracker, ok := r.trackers[name]
	r.mu.RUnlock()
	if !ok {
		return LatencyStats{}
	}
	return tracker.Stats()
}

// Snapshot returns every tracker's stats keyed by operation name.
func (r *LatencyRegistry) Snapshot() map[string]map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]map[string]any, len(r.trackers))
	for name, tracker := range r.trackers {
		result[name] = tracker.Stats().ToMap()
	}
	return result
}
