package estimation

import (
	"fmt"
	"time"

	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/scheduler"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
)

// per record: the timestamp plus the device name
const recordOverheadBytes = 8 + 8

var valueBytes = map[schema.DataType]int64{
	schema.Boolean: 1,
	schema.Int32:   4,
	schema.Int64:   8,
	schema.Float:   4,
	schema.Double:  8,
}

type Estimation struct {
	Batches                    int64
	Points                     int64
	Queries                    int64
	EstimatedDatabaseSizeBytes int64
	// Lower bound implied by opInterval pacing; zero when operations are not paced
	MinimumDuration time.Duration
}

func Estimate(config configuration.TestConfig) (Estimation, error) {
	table, err := scheduler.ParseProportionTable(config.OperationProportion)
	if err != nil {
		return Estimation{}, err
	}
	types, err := schema.ParseTypeAssignment(config.DataTypeProportion)
	if err != nil {
		return Estimation{}, err
	}

	clients := int64(config.ClientNumber)
	ingestOps := config.Loop * int64(table.Weight(scheduler.Ingest))
	batches := ingestOps * clients
	if config.ClientBind {
		// every bound client writes each of its active devices per ingest operation
		batches = ingestOps * int64(config.ActiveDeviceNumber())
	}
	records := batches * int64(config.BatchSize)
	points := records * int64(config.SensorNumber)

	var rowBytes int64 = recordOverheadBytes
	for i := range config.SensorNumber {
		dt := types.TypeOf(i, config.SensorNumber)
		if dt == schema.Text {
			rowBytes += int64(max(config.DecimalDigits, 1))
		} else {
			rowBytes += valueBytes[dt]
		}
	}

	queriesPerLoop := int64(table.Weight(scheduler.RangeQuery)) +
		int64(table.Weight(scheduler.AggRangeQuery)) +
		int64(table.Weight(scheduler.FunctionRangeQuery))*int64(len(config.UDFs))

	return Estimation{
		Batches:                    batches,
		Points:                     points,
		Queries:                    config.Loop * clients * queriesPerLoop,
		EstimatedDatabaseSizeBytes: records * rowBytes,
		MinimumDuration:            time.Duration(config.Loop*int64(table.Total())) * config.OpInterval,
	}, nil
}

func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
