package db

import (
	"fmt"
	"math"
	"strings"
)

// Backends without server side functions (memory, redis) evaluate aggregates and UDFs here.

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func numericValues(values []any) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := numeric(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// aggregate evaluates an aggregate over one series' values in timestamp order.
func aggregate(function string, values []any) (any, error) {
	fn := strings.ToLower(function)
	switch fn {
	case "count":
		return int64(len(values)), nil
	case "first_value", "first":
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	case "last_value", "last":
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	}

	nums := numericValues(values)
	if len(nums) == 0 {
		return nil, nil
	}
	switch fn {
	case "sum":
		return sum(nums), nil
	case "avg", "mean":
		return sum(nums) / float64(len(nums)), nil
	case "min", "min_value":
		return minOf(nums), nil
	case "max", "max_value":
		return maxOf(nums), nil
	case "stddev", "stddev_pop":
		return math.Sqrt(variance(nums)), nil
	case "variance", "var_pop":
		return variance(nums), nil
	case "spread":
		return maxOf(nums) - minOf(nums), nil
	default:
		return nil, fmt.Errorf("unsupported function %q", function)
	}
}

// applyFunction evaluates a UDF over its input series. Single input UDFs fall back to aggregate.
func applyFunction(function string, inputs [][]any) (any, error) {
	if len(inputs) == 1 {
		return aggregate(function, inputs[0])
	}
	switch strings.ToLower(function) {
	case "corr":
		if len(inputs) != 2 {
			return nil, fmt.Errorf("corr takes 2 inputs, got %d", len(inputs))
		}
		return correlation(numericValues(inputs[0]), numericValues(inputs[1])), nil
	default:
		return nil, fmt.Errorf("unsupported function %q with %d inputs", function, len(inputs))
	}
}

func sum(nums []float64) float64 {
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total
}

func minOf(nums []float64) float64 {
	m := nums[0]
	for _, n := range nums[1:] {
		m = math.Min(m, n)
	}
	return m
}

func maxOf(nums []float64) float64 {
	m := nums[0]
	for _, n := range nums[1:] {
		m = math.Max(m, n)
	}
	return m
}

func variance(nums []float64) float64 {
	mean := sum(nums) / float64(len(nums))
	total := 0.0
	for _, n := range nums {
		total += (n - mean) * (n - mean)
	}
	return total / float64(len(nums))
}

func correlation(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return math.NaN()
	}
	a, b = a[:n], b[:n]
	meanA, meanB := sum(a)/float64(n), sum(b)/float64(n)
	var cov, varA, varB float64
	for i := range n {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	return cov / math.Sqrt(varA*varB)
}

// udfInputs splits the queried sensors of a device into the UDF's input groups: sensor i feeds input i % inputs.
// Only complete groups are returned.
func udfInputs(sensors []string, inputs int) [][]string {
	if inputs <= 0 {
		return nil
	}
	var groups [][]string
	for i := 0; i+inputs <= len(sensors); i += inputs {
		groups = append(groups, sensors[i:i+inputs])
	}
	return groups
}

// functionName is the name the backend calls a UDF by.
func functionName(name, className string) string {
	if className != "" {
		return className
	}
	return name
}
