package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyTrackerPercentiles(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 100; i >= 1; i-- {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	assert.Equal(t, 100, s.Count)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 100*time.Millisecond, s.Max)
	assert.Equal(t, 50*time.Millisecond, s.P50)
	assert.Equal(t, 95*time.Millisecond, s.P95)
	assert.Equal(t, 99*time.Millisecond, s.P99)
	assert.Equal(t, 50.0, s.ToMap()["p50_ms"])
}

func TestLatencyTrackerSlidesWindow(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 1; i <= 11; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	assert.Equal(t, 10, s.Count)
	assert.Equal(t, 2*time.Millisecond, s.Min)
}

func TestLatencyRegistryConcurrentRecord(t *testing.T) {
	r := NewLatencyRegistry(50)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				r.Record("calendar.create.cloud", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, r.Stats("calendar.create.cloud").Count)
	assert.Zero(t, r.Stats("unknown").Count)
	assert.Contains(t, r.Snapshot(), "calendar.create.cloud")
}
