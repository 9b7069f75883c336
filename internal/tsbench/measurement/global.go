package measurement

import (
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// LatencyStats are in milliseconds.
type LatencyStats struct {
	Avg    float64 `json:"avg"`
	Min    float64 `json:"min"`
	P10    float64 `json:"p10"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	P999   float64 `json:"p999"`
	Max    float64 `json:"max"`
}

// OperationStats are the run wide results of one key.
type OperationStats struct {
	OkOperations   int64 `json:"okOperations"`
	FailOperations int64 `json:"failOperations"`
	OkPoints       int64 `json:"okPoints"`
	FailPoints     int64 `json:"failPoints"`
	// Largest per thread latency sum, in milliseconds
	SlowestThreadLatency float64 `json:"slowestThreadLatency"`
	// Sum of all thread latency sums, in milliseconds
	TotalLatency float64 `json:"totalLatency"`
	// Successful points per second of elapsed time
	Throughput float64      `json:"throughput"`
	Latency    LatencyStats `json:"latency"`
}

// GlobalMetrics is the merge of every worker's ClientMetrics.
type GlobalMetrics struct {
	Operations       map[Key]*OperationStats
	CreateSchemaTime time.Duration
	Elapsed          time.Duration
}

func NewGlobalMetrics() *GlobalMetrics {
	return &GlobalMetrics{Operations: map[Key]*OperationStats{}}
}

func (g *GlobalMetrics) get(key Key) *OperationStats {
	s, ok := g.Operations[key]
	if !ok {
		s = &OperationStats{}
		g.Operations[key] = s
	}
	return s
}

// Merge folds one worker's counters in. Operation and point counts are summed. The thread latency sum is both
// added to TotalLatency and compared against SlowestThreadLatency.
func (g *GlobalMetrics) Merge(c *ClientMetrics) {
	for key, counters := range c.counters {
		s := g.get(key)
		s.OkOperations += counters.OkOperations
		s.FailOperations += counters.FailOperations
		s.OkPoints += counters.OkPoints
		s.FailPoints += counters.FailPoints
		s.SlowestThreadLatency = max(s.SlowestThreadLatency, counters.ThreadLatency)
		s.TotalLatency += counters.ThreadLatency
	}
}

// Finalize computes throughput and latency statistics. Every key of sketches gets an entry, so operations that
// never ran still show up with zeros. Latency statistics stay zero for keys without successful operations.
func (g *GlobalMetrics) Finalize(elapsed time.Duration, sketches *Sketches) {
	g.Elapsed = elapsed
	for _, key := range sketches.Keys() {
		g.get(key)
	}
	for key, s := range g.Operations {
		if elapsed > 0 {
			s.Throughput = float64(s.OkPoints) / elapsed.Seconds()
		}
		if s.OkOperations == 0 {
			continue
		}
		s.Latency.Avg = s.TotalLatency / float64(s.OkOperations)
		sketch := sketches.Get(key)
		if sketch == nil {
			continue
		}
		s.Latency.Min = sketch.Quantile(0)
		s.Latency.P10 = sketch.Quantile(0.10)
		s.Latency.P25 = sketch.Quantile(0.25)
		s.Latency.Median = sketch.Quantile(0.50)
		s.Latency.P75 = sketch.Quantile(0.75)
		s.Latency.P90 = sketch.Quantile(0.90)
		s.Latency.P95 = sketch.Quantile(0.95)
		s.Latency.P99 = sketch.Quantile(0.99)
		s.Latency.P999 = sketch.Quantile(0.999)
		s.Latency.Max = sketch.Quantile(1)
	}
}

// Keys returns the keys with results, sorted by kind then variant.
func (g *GlobalMetrics) Keys() []Key {
	keys := maps.Keys(g.Operations)
	slices.SortFunc(keys, compareKeys)
	return keys
}
