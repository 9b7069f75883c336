package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

func TestMemoryDatabase(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryDatabase()
	device := testDevice("d_0")

	require.NoError(t, m.RegisterSchema(ctx, []*schema.DeviceSchema{device, testDevice("d_1")}))
	assert.Equal(t, 2, m.RegisteredDevices())

	status := m.InsertBatch(ctx, testBatch(device, 10))
	require.True(t, status.OK)
	assert.Equal(t, 20, status.Points)
	assert.Equal(t, 20, m.PointCount())

	window := workload.RangeQuery{Devices: []*schema.DeviceSchema{device}, Start: 2000, End: 5000}

	status = m.RangeQuery(ctx, &window)
	require.True(t, status.OK)
	assert.Equal(t, 8, status.Points)

	status = m.AggRangeQuery(ctx, &workload.AggRangeQuery{RangeQuery: window, Function: "avg"})
	require.True(t, status.OK)
	assert.Equal(t, 2, status.Points)

	status = m.FunctionRangeQuery(ctx, &workload.FunctionRangeQuery{
		RangeQuery: window,
		UDF: configuration.UDFConfig{
			Name:          "corr",
			AcceptedTypes: [][]schema.DataType{{schema.Int64}, {schema.Double}},
		},
	})
	require.True(t, status.OK)
	assert.Equal(t, 1, status.Points)

	require.NoError(t, m.Cleanup(ctx))
	assert.Equal(t, 0, m.PointCount())
	assert.Equal(t, 0, m.RegisteredDevices())
}

func TestMemoryDatabase_UnsupportedAggregate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryDatabase()
	device := testDevice("d_0")
	m.InsertBatch(ctx, testBatch(device, 3))

	status := m.AggRangeQuery(ctx, &workload.AggRangeQuery{
		RangeQuery: workload.RangeQuery{Devices: []*schema.DeviceSchema{device}, Start: 0, End: 3000},
		Function:   "median",
	})

	assert.False(t, status.OK)
	assert.Error(t, status.Err)
}

func TestMemoryDatabase_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := NewMemoryDatabase().InsertBatch(ctx, testBatch(testDevice("d_0"), 1))

	assert.False(t, status.OK)
	assert.ErrorIs(t, status.Err, context.Canceled)
}
