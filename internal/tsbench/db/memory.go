package db

import (
	"context"
	"sync"

	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

type memoryPoint struct {
	timestamp int64
	value     any
}

// MemoryDatabase keeps every series in process. It is used for dry runs and tests.
type MemoryDatabase struct {
	mu      sync.RWMutex
	series  map[string][]memoryPoint
	devices map[string]*schema.DeviceSchema
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		series:  map[string][]memoryPoint{},
		devices: map[string]*schema.DeviceSchema{},
	}
}

func seriesKey(device, sensor string) string {
	return device + "." + sensor
}

func (m *MemoryDatabase) Init(_ context.Context) error {
	return nil
}

func (m *MemoryDatabase) Cleanup(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series = map[string][]memoryPoint{}
	m.devices = map[string]*schema.DeviceSchema{}
	return nil
}

func (m *MemoryDatabase) Close() error {
	return nil
}

func (m *MemoryDatabase) RegisterSchema(_ context.Context, devices []*schema.DeviceSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, device := range devices {
		m.devices[device.Device] = device
	}
	return nil
}

// RegisteredDevices returns the number of devices whose schema has been registered.
func (m *MemoryDatabase) RegisteredDevices() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}

// PointCount returns the number of stored points across all series.
func (m *MemoryDatabase) PointCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, points := range m.series {
		n += len(points)
	}
	return n
}

func (m *MemoryDatabase) InsertBatch(ctx context.Context, batch *workload.Batch) Status {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for sensor, name := range batch.Device.Sensors {
		key := seriesKey(batch.Device.Device, name)
		for _, record := range batch.Records {
			m.series[key] = append(m.series[key], memoryPoint{timestamp: record.Timestamp, value: record.Values[sensor]})
		}
	}
	return Succeeded(batch.PointCount())
}

func (m *MemoryDatabase) window(device, sensor string, start, end int64) []any {
	var values []any
	for _, p := range m.series[seriesKey(device, sensor)] {
		if p.timestamp >= start && p.timestamp <= end {
			values = append(values, p.value)
		}
	}
	return values
}

func (m *MemoryDatabase) RangeQuery(ctx context.Context, query *workload.RangeQuery) Status {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	points := 0
	for _, device := range query.Devices {
		for _, sensor := range device.Sensors {
			points += len(m.window(device.Device, sensor, query.Start, query.End))
		}
	}
	return Succeeded(points)
}

func (m *MemoryDatabase) AggRangeQuery(ctx context.Context, query *workload.AggRangeQuery) Status {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	points := 0
	for _, device := range query.Devices {
		for _, sensor := range device.Sensors {
			if _, err := aggregate(query.Function, m.window(device.Device, sensor, query.Start, query.End)); err != nil {
				return Failed(err)
			}
			points++
		}
	}
	return Succeeded(points)
}

func (m *MemoryDatabase) FunctionRangeQuery(ctx context.Context, query *workload.FunctionRangeQuery) Status {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn := functionName(query.UDF.Name, query.UDF.ClassName)
	points := 0
	for _, device := range query.Devices {
		for _, group := range udfInputs(device.Sensors, len(query.UDF.AcceptedTypes)) {
			inputs := make([][]any, len(group))
			for i, sensor := range group {
				inputs[i] = m.window(device.Device, sensor, query.Start, query.End)
			}
			if _, err := applyFunction(fn, inputs); err != nil {
				return Failed(err)
			}
			points++
		}
	}
	return Succeeded(points)
}
