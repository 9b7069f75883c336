package workload

import (
	"math"
	"math/rand"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
)

const charTable = "1234567890abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Synthesizer computes typed sample values. It owns the generator used by random functions and text values,
// so it is not safe for concurrent use.
type Synthesizer struct {
	rng           *rand.Rand
	decimalDigits int
	scale         float64
}

func NewSynthesizer(seed int64, decimalDigits int) *Synthesizer {
	return &Synthesizer{
		rng:           rand.New(rand.NewSource(seed)),
		decimalDigits: decimalDigits,
		scale:         math.Pow10(decimalDigits),
	}
}

// Value returns the value of a sensor of type dt whose function is f, at timestamp t.
// The result is one of bool, int32, int64, float32, float64 or string.
func (s *Synthesizer) Value(f FunctionParam, dt schema.DataType, t int64) any {
	if dt == schema.Text {
		return s.text()
	}
	number := f.Value(t, s.rng)
	switch dt {
	case schema.Boolean:
		return number > 500
	case schema.Int32:
		return int32(number)
	case schema.Int64:
		return int64(number)
	case schema.Float:
		return float32(s.round(number))
	default:
		return s.round(number)
	}
}

func (s *Synthesizer) round(v float64) float64 {
	return math.Round(v*s.scale) / s.scale
}

func (s *Synthesizer) text() string {
	n := max(s.decimalDigits, 1)
	b := make([]byte, n)
	for i := range b {
		b[i] = charTable[s.rng.Intn(len(charTable))]
	}
	return string(b)
}

// ValueCache is a periodic table of precomputed values indexed by [sensor][offset mod bufferLength].
// It is read-only after construction and safe to share between workers.
type ValueCache struct {
	values       [][]any
	bufferLength int64
}

// CacheSpec is everything BuildValueCache needs.
type CacheSpec struct {
	Types         []schema.DataType
	Functions     []FunctionParam
	BufferLength  int
	Seed          int64
	DecimalDigits int
	// Timestamp of the point at a given offset; functions are evaluated there
	Timestamp func(offset int64) int64
}

// BuildValueCache evaluates every sensor's function at every offset in [0, BufferLength). The table is a pure
// function of spec: two builds from the same spec are identical.
func BuildValueCache(spec CacheSpec) (*ValueCache, error) {
	if spec.BufferLength <= 0 {
		return nil, bencherrors.NewConfigError("workloadBufferSize", spec.BufferLength, "must be positive")
	}
	if len(spec.Types) != len(spec.Functions) {
		return nil, bencherrors.NewGenerationError("%d sensor types but %d sensor functions", len(spec.Types), len(spec.Functions))
	}

	synth := NewSynthesizer(spec.Seed, spec.DecimalDigits)
	values := make([][]any, len(spec.Types))
	for sensor := range spec.Types {
		row := make([]any, spec.BufferLength)
		for offset := range spec.BufferLength {
			row[offset] = synth.Value(spec.Functions[sensor], spec.Types[sensor], spec.Timestamp(int64(offset)))
		}
		values[sensor] = row
	}
	return &ValueCache{values: values, bufferLength: int64(spec.BufferLength)}, nil
}

// Lookup returns the value of sensor at offset. Negative offsets map by their absolute value.
func (c *ValueCache) Lookup(sensor int, offset int64) any {
	if offset < 0 {
		offset = -offset
	}
	return c.values[sensor][offset%c.bufferLength]
}

func (c *ValueCache) BufferLength() int {
	return int(c.bufferLength)
}

func (c *ValueCache) SensorCount() int {
	return len(c.values)
}
