package measurement

import (
	"strings"

	"github.com/tsbench/tsbench/internal/tsbench/scheduler"
)

// Key identifies one measured series: an operation kind and its variant. Ingest and range queries always use
// scheduler.NoVariant; aggregate queries use the aggregate function and function queries the UDF name.
type Key struct {
	Kind    scheduler.Kind
	Variant string
}

func (k Key) String() string {
	if k.Variant == scheduler.NoVariant {
		return k.Kind.String()
	}
	return k.Kind.String() + "-" + k.Variant
}

// Keys returns every key a run with the given aggregate function and UDFs can record, in report order.
func Keys(aggregateFunction string, udfs []string) []Key {
	keys := []Key{
		{Kind: scheduler.Ingest, Variant: scheduler.NoVariant},
		{Kind: scheduler.RangeQuery, Variant: scheduler.NoVariant},
		{Kind: scheduler.AggRangeQuery, Variant: aggregateFunction},
	}
	for _, udf := range udfs {
		keys = append(keys, Key{Kind: scheduler.FunctionRangeQuery, Variant: udf})
	}
	return keys
}

func compareKeys(a, b Key) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	return strings.Compare(a.Variant, b.Variant)
}
