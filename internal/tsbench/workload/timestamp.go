package workload

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
	"github.com/tsbench/tsbench/internal/tsbench/configuration"
)

// TimestampPolicy decides which step offsets a batch contains, in emission order, and maps offsets to timestamps.
// It keeps per-device state for the Poisson mode and is not safe for concurrent use.
type TimestampPolicy struct {
	base       int64
	step       int64
	batchSize  int64
	outOfOrder bool
	mode       configuration.OverflowMode
	ratio      float64
	jitter     bool

	jitterRand   *rand.Rand
	overflowRand *rand.Rand
	delta        *poissonDelta
	maxOffset    map[int]int64
}

func NewTimestampPolicy(config *configuration.TestConfig) *TimestampPolicy {
	return &TimestampPolicy{
		base:         config.StartTimestamp(),
		step:         config.PointStep,
		batchSize:    int64(config.BatchSize),
		outOfOrder:   config.OutOfOrder,
		mode:         config.OverflowMode,
		ratio:        config.OverflowRatio,
		jitter:       config.OutOfOrder || config.RandomTimestampInterval,
		jitterRand:   rand.New(rand.NewSource(config.DataSeed)),
		overflowRand: rand.New(rand.NewSource(config.DataSeed + 1)),
		delta:        newPoissonDelta(config.Lambda, config.MaxK),
		maxOffset:    map[int]int64{},
	}
}

// Offsets returns the step offsets of the loopIndex-th batch of a device, in the order the records are emitted.
func (p *TimestampPolicy) Offsets(deviceID int, loopIndex int64) ([]int64, error) {
	if !p.outOfOrder {
		return p.ordered(loopIndex), nil
	}
	switch p.mode {
	case configuration.OverflowPoisson:
		return p.poisson(deviceID), nil
	case configuration.OverflowLocalReorder:
		return p.localReorder(loopIndex), nil
	default:
		return nil, bencherrors.NewGenerationError("unsupported overflow mode %d", int(p.mode))
	}
}

func (p *TimestampPolicy) ordered(loopIndex int64) []int64 {
	offsets := make([]int64, p.batchSize)
	for i := range offsets {
		offsets[i] = loopIndex*p.batchSize + int64(i)
	}
	return offsets
}

// localReorder emits the record at the barrier first, then the rest of the batch in order.
func (p *TimestampPolicy) localReorder(loopIndex int64) []int64 {
	barrier := int64(float64(p.batchSize) * p.ratio)
	if barrier >= p.batchSize {
		barrier = p.batchSize - 1
	}
	first := loopIndex * p.batchSize
	offsets := make([]int64, 0, p.batchSize)
	offsets = append(offsets, first+barrier)
	for i := int64(0); i < barrier; i++ {
		offsets = append(offsets, first+i)
	}
	for i := barrier + 1; i < p.batchSize; i++ {
		offsets = append(offsets, first+i)
	}
	return offsets
}

// poisson emits, with probability ratio, a late offset lagging the device's maximum by a Poisson distributed
// delta; otherwise it advances the maximum. Late offsets may be negative.
func (p *TimestampPolicy) poisson(deviceID int) []int64 {
	offsets := make([]int64, p.batchSize)
	current := p.maxOffset[deviceID]
	for i := range offsets {
		if p.overflowRand.Float64() < p.ratio {
			offsets[i] = current - int64(p.delta.sample(p.overflowRand))
		} else {
			current++
			offsets[i] = current
		}
	}
	p.maxOffset[deviceID] = current
	return offsets
}

// Timestamp returns the timestamp of a step offset, plus a jitter in [0, step) when jitter is enabled.
func (p *TimestampPolicy) Timestamp(offset int64) int64 {
	ts := p.base + p.step*offset
	if p.jitter {
		ts += int64(p.jitterRand.Float64() * float64(p.step))
	}
	return ts
}

// poissonDelta samples from a Poisson distribution truncated to [1, maxK].
type poissonDelta struct {
	cumulative []float64
}

func newPoissonDelta(lambda float64, maxK int) *poissonDelta {
	if lambda <= 0 || maxK <= 0 {
		return &poissonDelta{cumulative: []float64{1}}
	}
	dist := distuv.Poisson{Lambda: lambda}
	cumulative := make([]float64, maxK)
	total := 0.0
	for k := 1; k <= maxK; k++ {
		total += dist.Prob(float64(k))
		cumulative[k-1] = total
	}
	for i := range cumulative {
		cumulative[i] /= total
	}
	return &poissonDelta{cumulative: cumulative}
}

func (d *poissonDelta) sample(rng *rand.Rand) int {
	u := rng.Float64()
	i := sort.Search(len(d.cumulative), func(i int) bool { return u < d.cumulative[i] })
	if i == len(d.cumulative) {
		i--
	}
	return i + 1
}
