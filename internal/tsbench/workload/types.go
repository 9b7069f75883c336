package workload

import (
	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
)

// Record is one timestamped row; Values follow the sensor order of the owning device.
type Record struct {
	Timestamp int64
	Values    []any
}

// Batch is one device's records for a single ingest call. Every record holds one value per sensor.
type Batch struct {
	Device  *schema.DeviceSchema
	Records []Record
}

// PointCount is the number of values written by the batch.
func (b *Batch) PointCount() int {
	return len(b.Records) * len(b.Device.Sensors)
}

// RangeQuery selects raw points of the given devices and sensors with Start <= timestamp <= End.
// Devices are restricted copies holding only the queried sensors.
type RangeQuery struct {
	Devices []*schema.DeviceSchema
	Start   int64
	End     int64
}

// AggRangeQuery applies Function to every queried series over the window.
type AggRangeQuery struct {
	RangeQuery
	Function string
}

// FunctionRangeQuery applies a user defined function. Each device's sensors are grouped by UDF input:
// sensor i feeds input i % len(UDF.AcceptedTypes).
type FunctionRangeQuery struct {
	RangeQuery
	UDF configuration.UDFConfig
}
