package scheduler

import (
	"strconv"
	"strings"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
)

const proportionField = "operationProportion"

// ProportionTable holds the cumulative weight of every Kind. Thresholds are non-decreasing and the
// last one, the total weight, is positive.
type ProportionTable struct {
	thresholds []int
}

// ParseProportionTable parses a colon separated ratio with exactly one integer weight per Kind, e.g. "1:0:1:0".
func ParseProportionTable(ratio string) (*ProportionTable, error) {
	parts := strings.Split(ratio, ":")
	if len(parts) != len(Kinds) {
		return nil, bencherrors.NewConfigError(proportionField, ratio,
			"expected %d weights (INGESTION:TIME_RANGE:AGG_RANGE:RANGED_UDF), got %d", len(Kinds), len(parts))
	}

	thresholds := make([]int, len(parts))
	cumulative := 0
	for i, p := range parts {
		weight, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || weight < 0 {
			return nil, bencherrors.NewConfigError(proportionField, ratio, "weight %q is not a non-negative integer", p)
		}
		cumulative += weight
		thresholds[i] = cumulative
	}
	if cumulative == 0 {
		return nil, bencherrors.NewConfigError(proportionField, ratio, "the sum of operation proportions is zero")
	}
	return &ProportionTable{thresholds: thresholds}, nil
}

// Thresholds returns a copy of the cumulative weights.
func (t *ProportionTable) Thresholds() []int {
	out := make([]int, len(t.thresholds))
	copy(out, t.thresholds)
	return out
}

func (t *ProportionTable) Total() int {
	return t.thresholds[len(t.thresholds)-1]
}

// Weight returns the configured weight of k.
func (t *ProportionTable) Weight(k Kind) int {
	if k == 0 {
		return t.thresholds[0]
	}
	return t.thresholds[k] - t.thresholds[k-1]
}

// Share returns the fraction of operations that are of kind k.
func (t *ProportionTable) Share(k Kind) float64 {
	return float64(t.Weight(k)) / float64(t.Total())
}

func (t *ProportionTable) kindAt(position int) Kind {
	for i, threshold := range t.thresholds {
		if position < threshold {
			return Kinds[i]
		}
	}
	return Kinds[len(Kinds)-1]
}

// OperationScheduler turns a ProportionTable into a deterministic cyclic sequence of kinds. The sequence has
// period Total(). An OperationScheduler belongs to a single worker and is not safe for concurrent use.
type OperationScheduler struct {
	table  *ProportionTable
	cursor int
}

func New(table *ProportionTable) *OperationScheduler {
	return &OperationScheduler{table: table}
}

// Next returns the kind of the next operation and advances the cursor, wrapping to zero at the end of a cycle.
func (s *OperationScheduler) Next() Kind {
	kind := s.table.kindAt(s.cursor)
	s.cursor++
	if s.cursor == s.table.Total() {
		s.cursor = 0
	}
	return kind
}

// IsCycleComplete is true exactly when the last call to Next finished a full rotation, and before the first call.
func (s *OperationScheduler) IsCycleComplete() bool {
	return s.cursor == 0
}
