package measurement

import (
	"time"

	"github.com/tsbench/tsbench/internal/common/logging"
)

// Counters are the per thread totals of one key.
type Counters struct {
	OkOperations   int64
	FailOperations int64
	OkPoints       int64
	FailPoints     int64
	// Sum of successful operation latencies in milliseconds
	ThreadLatency float64
}

// Observer receives every recorded operation as it happens.
type Observer interface {
	Observe(key Key, ok bool, points int, latency time.Duration)
}

// ClientMetrics accumulates the measurements of one worker. It is not safe for concurrent use; each worker owns
// one and hands it to GlobalMetrics.Merge after it stops. Latencies also go to the shared sketches.
type ClientMetrics struct {
	sketches *Sketches
	observer Observer
	counters map[Key]*Counters
}

// NewClientMetrics returns metrics recording into sketches. observer may be nil.
func NewClientMetrics(sketches *Sketches, observer Observer) *ClientMetrics {
	return &ClientMetrics{
		sketches: sketches,
		observer: observer,
		counters: map[Key]*Counters{},
	}
}

func (m *ClientMetrics) get(key Key) *Counters {
	c, ok := m.counters[key]
	if !ok {
		c = &Counters{}
		m.counters[key] = c
	}
	return c
}

// RecordOK records a successful operation. A negative latency is clamped to zero.
func (m *ClientMetrics) RecordOK(key Key, points int, latency time.Duration) {
	if latency < 0 {
		logging.Warnf("Operation %s reported a negative latency %s, recording zero", key, latency)
		latency = 0
	}
	millis := float64(latency) / float64(time.Millisecond)
	c := m.get(key)
	c.OkOperations++
	c.OkPoints += int64(points)
	c.ThreadLatency += millis
	if sketch := m.sketches.Get(key); sketch != nil {
		if err := sketch.Add(millis); err != nil {
			logging.WithError(err).Warnf("Dropping latency of %s", key)
		}
	}
	if m.observer != nil {
		m.observer.Observe(key, true, points, latency)
	}
}

// RecordFailure records a failed operation. failedPoints is the number of points that were not written, zero
// for queries.
func (m *ClientMetrics) RecordFailure(key Key, failedPoints int, latency time.Duration) {
	c := m.get(key)
	c.FailOperations++
	c.FailPoints += int64(failedPoints)
	if m.observer != nil {
		m.observer.Observe(key, false, failedPoints, max(latency, 0))
	}
}

// Counters returns the totals of key, or zero counters if nothing was recorded.
func (m *ClientMetrics) Counters(key Key) Counters {
	if c, ok := m.counters[key]; ok {
		return *c
	}
	return Counters{}
}

// Operations returns the total number of recorded operations, successful or not.
func (m *ClientMetrics) Operations() int64 {
	var n int64
	for _, c := range m.counters {
		n += c.OkOperations + c.FailOperations
	}
	return n
}
