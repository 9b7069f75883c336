package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
)

func TestParseProportionTable(t *testing.T) {
	table, err := ParseProportionTable("1:0:1:0")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, table.Thresholds())
	assert.Equal(t, 2, table.Total())
	assert.Equal(t, 1, table.Weight(Ingest))
	assert.Equal(t, 0, table.Weight(RangeQuery))
	assert.Equal(t, 1, table.Weight(AggRangeQuery))
	assert.Equal(t, 0.5, table.Share(AggRangeQuery))
}

func TestParseProportionTable_Invalid(t *testing.T) {
	tests := map[string]string{
		"zero total":   "0:0:0:0",
		"too few":      "1:1:1",
		"too many":     "1:1:1:1:1",
		"not a number": "1:a:1:1",
		"negative":     "1:-1:1:1",
		"empty":        "",
		"fractional":   "0.5:1:1:1",
	}
	for name, ratio := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProportionTable(ratio)
			require.Error(t, err)
			var configErr *bencherrors.ErrConfig
			require.ErrorAs(t, err, &configErr)
			assert.Equal(t, "operationProportion", configErr.Field)
		})
	}
}

func TestOperationScheduler_Alternates(t *testing.T) {
	table, err := ParseProportionTable("1:0:1:0")
	require.NoError(t, err)
	s := New(table)

	assert.True(t, s.IsCycleComplete())
	for i := range 20 {
		kind := s.Next()
		if i%2 == 0 {
			assert.Equal(t, Ingest, kind)
			assert.False(t, s.IsCycleComplete())
		} else {
			assert.Equal(t, AggRangeQuery, kind)
			assert.True(t, s.IsCycleComplete())
		}
	}
}

func TestOperationScheduler_SingleKind(t *testing.T) {
	tests := map[string]Kind{
		"1:0:0:0": Ingest,
		"0:1:0:0": RangeQuery,
		"0:0:0:3": FunctionRangeQuery,
	}
	for ratio, expected := range tests {
		t.Run(ratio, func(t *testing.T) {
			table, err := ParseProportionTable(ratio)
			require.NoError(t, err)
			s := New(table)
			for range 100 {
				assert.Equal(t, expected, s.Next())
			}
		})
	}
}

func TestOperationScheduler_PeriodicWithTotalWeight(t *testing.T) {
	table, err := ParseProportionTable("2:1:0:3")
	require.NoError(t, err)
	s := New(table)

	cycle := func() []Kind {
		var kinds []Kind
		for {
			kinds = append(kinds, s.Next())
			if s.IsCycleComplete() {
				return kinds
			}
		}
	}

	expected := []Kind{Ingest, Ingest, RangeQuery, FunctionRangeQuery, FunctionRangeQuery, FunctionRangeQuery}
	assert.Equal(t, expected, cycle())
	assert.Equal(t, expected, cycle())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "INGESTION", Ingest.String())
	assert.Equal(t, "TIME_RANGE", RangeQuery.String())
	assert.Equal(t, "AGG_RANGE", AggRangeQuery.String())
	assert.Equal(t, "RANGED_UDF", FunctionRangeQuery.String())
	assert.True(t, AggRangeQuery.HasVariants())
	assert.False(t, RangeQuery.HasVariants())
}
