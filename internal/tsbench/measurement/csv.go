package measurement

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

var csvHeader = []string{
	"operation", "variant",
	"okOperations", "okPoints", "failOperations", "failPoints", "throughput",
	"avg", "min", "p10", "p25", "median", "p75", "p90", "p95", "p99", "p999", "max",
	"slowestThreadLatency",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func csvRecord(op OperationResult) []string {
	l := op.Latency
	return []string{
		op.Operation, op.Variant,
		strconv.FormatInt(op.OkOperations, 10),
		strconv.FormatInt(op.OkPoints, 10),
		strconv.FormatInt(op.FailOperations, 10),
		strconv.FormatInt(op.FailPoints, 10),
		formatFloat(op.Throughput),
		formatFloat(l.Avg), formatFloat(l.Min), formatFloat(l.P10), formatFloat(l.P25), formatFloat(l.Median),
		formatFloat(l.P75), formatFloat(l.P90), formatFloat(l.P95), formatFloat(l.P99), formatFloat(l.P999),
		formatFloat(l.Max),
		formatFloat(op.SlowestThreadLatency),
	}
}

// WriteCSV writes one row per operation. Latencies are in milliseconds.
func WriteCSV(w io.Writer, result TestResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return errors.WithStack(err)
	}
	for _, op := range result.Results.Operations {
		if err := writer.Write(csvRecord(op)); err != nil {
			return errors.WithStack(err)
		}
	}
	writer.Flush()
	return errors.WithStack(writer.Error())
}

func WriteCSVToFile(result TestResult, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating result directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := WriteCSV(f, result); err != nil {
		_ = f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}
