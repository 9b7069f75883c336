package schema

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
)

type DataType int

const (
	Boolean DataType = iota
	Int32
	Int64
	Float
	Double
	Text
)

// AllDataTypes is the order in which data type proportions are configured.
var AllDataTypes = []DataType{Boolean, Int32, Int64, Float, Double, Text}

var dataTypeNames = map[DataType]string{
	Boolean: "BOOLEAN",
	Int32:   "INT32",
	Int64:   "INT64",
	Float:   "FLOAT",
	Double:  "DOUBLE",
	Text:    "TEXT",
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(d)) + ")"
}

func (d DataType) IsNumeric() bool {
	return d != Boolean && d != Text
}

func (d DataType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *DataType) UnmarshalText(text []byte) error {
	parsed, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func ParseDataType(s string) (DataType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for dt, name := range dataTypeNames {
		if name == upper {
			return dt, nil
		}
	}
	return 0, errors.Errorf("unknown data type %q", s)
}

// TypeAssignment maps a sensor index onto a data type by partitioning [0,1) into one cumulative
// bucket per data type.
type TypeAssignment struct {
	bounds []float64
}

// ParseTypeAssignment parses a ratio string with one weight per entry of AllDataTypes, e.g. "1:1:1:1:1:1".
func ParseTypeAssignment(ratio string) (*TypeAssignment, error) {
	parts := strings.Split(ratio, ":")
	if len(parts) != len(AllDataTypes) {
		return nil, bencherrors.NewConfigError("dataTypeProportion", ratio,
			"expected %d weights (BOOLEAN:INT32:INT64:FLOAT:DOUBLE:TEXT), got %d", len(AllDataTypes), len(parts))
	}
	weights := make([]float64, len(parts))
	total := 0.0
	for i, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || w < 0 {
			return nil, bencherrors.NewConfigError("dataTypeProportion", ratio, "weight %q is not a non-negative number", p)
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return nil, bencherrors.NewConfigError("dataTypeProportion", ratio, "total weight must be positive")
	}

	// divide once per bound so a position k/n on a boundary compares equal to it
	bounds := make([]float64, len(weights))
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		bounds[i] = cumulative / total
	}
	bounds[len(bounds)-1] = 1
	return &TypeAssignment{bounds: bounds}, nil
}

// TypeOf returns the data type of the sensor at index within sensorCount sensors.
func (a *TypeAssignment) TypeOf(index, sensorCount int) DataType {
	position := float64(index) / float64(sensorCount)
	for i, bound := range a.bounds {
		if position < bound {
			return AllDataTypes[i]
		}
	}
	return AllDataTypes[len(AllDataTypes)-1]
}

// Possible reports whether any sensor can be assigned dt, i.e. whether its bucket is non-empty.
func (a *TypeAssignment) Possible(dt DataType, sensorCount int) bool {
	for i := 0; i < sensorCount; i++ {
		if a.TypeOf(i, sensorCount) == dt {
			return true
		}
	}
	return false
}
