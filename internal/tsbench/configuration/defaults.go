package configuration

import (
	"time"

	"github.com/tsbench/tsbench/internal/tsbench/schema"
)

const (
	defaultPointStep   = 7000
	defaultDeviceCount = 2
)

var defaultStartTime = time.Date(2018, time.August, 30, 0, 0, 0, 0, time.FixedZone("CST", 8*60*60))

// Default returns the configuration used for every field that no config source sets.
func Default() TestConfig {
	return TestConfig{
		OperationProportion: "1:1:1:1",
		Loop:                10000,
		ClientNumber:        2,
		ClientBind:          true,
		LogPrintInterval:    5 * time.Second,
		QuietMode:           true,
		CreateSchema:        true,

		GroupNumber:        1,
		GroupNamePrefix:    "group_",
		GroupStrategy:      schema.GroupByHash,
		DeviceNumber:       defaultDeviceCount,
		RealInsertRate:     1.0,
		SensorNumber:       5,
		DataTypeProportion: "1:1:1:1:1:1",

		BatchSize:          1000,
		WorkloadBufferSize: 100,
		StartTime:          defaultStartTime,
		TimestampPrecision: Millisecond,
		PointStep:          defaultPointStep,
		OverflowMode:       OverflowPoisson,
		OverflowRatio:      1.0,
		Lambda:             3,
		MaxK:               10,
		DecimalDigits:      2,
		DataSeed:           666,
		FunctionRatios: FunctionRatios{
			Constant: 0.352,
			Linear:   0.054,
			Random:   0.512,
			Sin:      0.036,
			Square:   0.054,
		},

		QuerySeed:              1516580959202,
		QueryDeviceNum:         1,
		QuerySensorNum:         1,
		QueryInterval:          defaultDeviceCount * defaultPointStep,
		StepSize:               1,
		QueryAggregateFunction: "count",
		UDFs: []UDFConfig{
			{
				Name:          "stddev",
				AcceptedTypes: [][]schema.DataType{{schema.Int32, schema.Int64, schema.Float, schema.Double}},
			},
		},

		WriteTimeout: 120 * time.Second,
		ReadTimeout:  300 * time.Second,

		Injection: InjectionConfig{
			PacketSize: 10,
			Seed:       666,
		},
		Database: DatabaseConfig{
			Type:   DatabaseMemory,
			SQLite: SQLiteConfig{Path: "tsbench.db"},
		},
		Results: ResultsConfig{
			Directory: "results",
			Console:   true,
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
	}
}

// Redacted returns a copy safe to persist next to results: every password is blanked.
func (c TestConfig) Redacted() TestConfig {
	redact := func(m map[string]string) map[string]string {
		if m == nil {
			return nil
		}
		out := make(map[string]string, len(m))
		for k, v := range m {
			if k == "password" && v != "" {
				v = "***"
			}
			out[k] = v
		}
		return out
	}
	c.Database.Postgres = redact(c.Database.Postgres)
	c.Database.Timescale = redact(c.Database.Timescale)
	c.Database.ClickHouse = redact(c.Database.ClickHouse)
	c.Results.Postgres = redact(c.Results.Postgres)
	if c.Database.Redis.Password != "" {
		c.Database.Redis.Password = "***"
	}
	return c
}

// TotalBatchPoints is the number of values in one ingest batch.
func (c TestConfig) TotalBatchPoints() int {
	return c.BatchSize * c.SensorNumber
}

// ActiveDeviceNumber is the number of devices that are written and queried, given RealInsertRate.
func (c TestConfig) ActiveDeviceNumber() int {
	n := int(float64(c.DeviceNumber) * c.RealInsertRate)
	if float64(n) < float64(c.DeviceNumber)*c.RealInsertRate {
		n++
	}
	return n
}

// StartTimestamp is StartTime expressed in TimestampPrecision.
func (c TestConfig) StartTimestamp() int64 {
	return c.TimestampPrecision.Timestamp(c.StartTime)
}

// UDFNames returns the names of the configured UDFs in configuration order.
func (c TestConfig) UDFNames() []string {
	names := make([]string, len(c.UDFs))
	for i, udf := range c.UDFs {
		names[i] = udf.Name
	}
	return names
}
