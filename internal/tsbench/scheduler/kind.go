package scheduler

import "strconv"

// Kind is one of the benchmarked operation types.
type Kind int

const (
	Ingest Kind = iota
	RangeQuery
	AggRangeQuery
	FunctionRangeQuery
)

// Kinds lists every Kind in the order its weight appears in an operation proportion string.
var Kinds = []Kind{Ingest, RangeQuery, AggRangeQuery, FunctionRangeQuery}

// NoVariant is the variant key of kinds that are not subdivided by function name.
const NoVariant = "NONE"

func (k Kind) String() string {
	switch k {
	case Ingest:
		return "INGESTION"
	case RangeQuery:
		return "TIME_RANGE"
	case AggRangeQuery:
		return "AGG_RANGE"
	case FunctionRangeQuery:
		return "RANGED_UDF"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// IsQuery reports whether k reads from the database.
func (k Kind) IsQuery() bool {
	return k != Ingest
}

// HasVariants reports whether metrics of k are split by function name.
func (k Kind) HasVariants() bool {
	return k == AggRangeQuery || k == FunctionRangeQuery
}
