package measurement

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/tsbench/tsbench/internal/tsbench/scheduler"
)

// PrintReport renders the result matrix and the latency matrix as console tables.
func PrintReport(w io.Writer, result TestResult) {
	_, _ = fmt.Fprintf(w, "Create schema cost %s\n", result.Results.CreateSchemaTime)
	_, _ = fmt.Fprintf(w, "Test elapsed time %s\n", result.Metadata.TestDuration)

	_, _ = fmt.Fprintln(w, "Result Matrix")
	matrix := tablewriter.NewWriter(w)
	matrix.SetHeader([]string{"Operation", "okOperation", "okPoint", "failOperation", "failPoint", "throughput(point/s)"})
	for _, op := range result.Results.Operations {
		matrix.Append([]string{
			label(op),
			strconv.FormatInt(op.OkOperations, 10),
			strconv.FormatInt(op.OkPoints, 10),
			strconv.FormatInt(op.FailOperations, 10),
			strconv.FormatInt(op.FailPoints, 10),
			formatFloat(op.Throughput),
		})
	}
	matrix.Render()

	_, _ = fmt.Fprintln(w, "Latency (ms) Matrix")
	latency := tablewriter.NewWriter(w)
	latency.SetHeader([]string{"Operation", "AVG", "MIN", "P10", "P25", "MEDIAN", "P75", "P90", "P95", "P99", "P999", "MAX", "SLOWEST_THREAD"})
	for _, op := range result.Results.Operations {
		l := op.Latency
		latency.Append([]string{
			label(op),
			formatFloat(l.Avg), formatFloat(l.Min), formatFloat(l.P10), formatFloat(l.P25), formatFloat(l.Median),
			formatFloat(l.P75), formatFloat(l.P90), formatFloat(l.P95), formatFloat(l.P99), formatFloat(l.P999),
			formatFloat(l.Max), formatFloat(op.SlowestThreadLatency),
		})
	}
	latency.Render()
}

func label(op OperationResult) string {
	if op.Variant == "" || op.Variant == scheduler.NoVariant {
		return op.Operation
	}
	return op.Operation + "-" + op.Variant
}
