package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/db"
	"github.com/tsbench/tsbench/internal/tsbench/measurement"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

func testConfig(t *testing.T) configuration.TestConfig {
	config := configuration.Default()
	config.Loop = 5
	config.ClientNumber = 2
	config.DeviceNumber = 4
	config.SensorNumber = 4
	config.BatchSize = 10
	config.WorkloadBufferSize = 20
	config.LogPrintInterval = 0
	config.QuietMode = true
	config.WriteTimeout = 10 * time.Second
	config.ReadTimeout = 10 * time.Second
	config.Results.Directory = t.TempDir()
	config.Results.CSV = true
	config.Results.Console = true
	return config
}

func operation(t *testing.T, result *measurement.TestResult, name string) measurement.OperationResult {
	t.Helper()
	for _, op := range result.Results.Operations {
		if op.Operation == name {
			return op
		}
	}
	require.Failf(t, "missing operation", "%s not in result", name)
	return measurement.OperationResult{}
}

func TestRunner_Run(t *testing.T) {
	config := testConfig(t)
	memory := db.NewMemoryDatabase()
	var out bytes.Buffer

	result, err := NewRunner(config, WithDatabase(memory), WithOutput(&out)).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	// 5 loops x 2 clients x 2 owned devices
	ingest := operation(t, result, "INGESTION")
	assert.Equal(t, int64(20), ingest.OkOperations)
	assert.Equal(t, int64(20*10*4), ingest.OkPoints)
	assert.Zero(t, ingest.FailOperations)
	assert.Equal(t, 800, memory.PointCount())
	assert.Equal(t, 4, memory.RegisteredDevices())

	for _, name := range []string{"TIME_RANGE", "AGG_RANGE", "RANGED_UDF"} {
		op := operation(t, result, name)
		assert.Equal(t, int64(10), op.OkOperations, name)
		assert.Zero(t, op.FailOperations, name)
	}
	assert.Equal(t, "count", operation(t, result, "AGG_RANGE").Variant)
	assert.Equal(t, "stddev", operation(t, result, "RANGED_UDF").Variant)

	assert.Contains(t, out.String(), "Create schema cost")
	assert.Contains(t, out.String(), "Result Matrix")
	assert.Contains(t, out.String(), "AGG_RANGE-count")

	data, err := os.ReadFile(measurement.ResultPath(config.Results.Directory, result.Metadata.RunID, "json"))
	require.NoError(t, err)
	var written measurement.TestResult
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, result.Metadata.RunID, written.Metadata.RunID)
	assert.Len(t, written.Results.Operations, 4)

	assert.FileExists(t, measurement.ResultPath(config.Results.Directory, result.Metadata.RunID, "csv"))
}

func TestRunner_Unbound(t *testing.T) {
	config := testConfig(t)
	config.ClientBind = false
	config.ClientNumber = 3
	config.OperationProportion = "1:0:0:0"
	config.Results.Console = false
	memory := db.NewMemoryDatabase()

	result, err := NewRunner(config, WithDatabase(memory)).Run(context.Background())
	require.NoError(t, err)

	// one batch per ingest operation, drawn from the shared source
	assert.Equal(t, int64(15), operation(t, result, "INGESTION").OkOperations)
	assert.Equal(t, 15*10*4, memory.PointCount())
}

func TestRunner_NoResultDirectory(t *testing.T) {
	config := testConfig(t)
	dir := config.Results.Directory
	config.Results.Directory = ""
	config.Results.Console = false

	_, err := NewRunner(config, WithDatabase(db.NewMemoryDatabase())).Run(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunner_InvalidConfig(t *testing.T) {
	config := testConfig(t)
	config.OperationProportion = "1:1"

	_, err := NewRunner(config, WithDatabase(db.NewMemoryDatabase())).Run(context.Background())
	require.Error(t, err)
	var configErr *bencherrors.ErrConfig
	assert.ErrorAs(t, err, &configErr)
}

func TestRunner_InvalidWorkloadLeavesDatabaseUntouched(t *testing.T) {
	tests := map[string]func(*configuration.TestConfig){
		"udf without compatible sensor type": func(c *configuration.TestConfig) {
			c.DataTypeProportion = "0:0:0:0:0:1"
		},
		"query devices beyond written devices": func(c *configuration.TestConfig) {
			c.RealInsertRate = 0.25
			c.QueryDeviceNum = 2
		},
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			config := testConfig(t)
			config.DeleteData = true
			modify(&config)
			database := &failingDatabase{MemoryDatabase: db.NewMemoryDatabase()}

			result, err := NewRunner(config, WithDatabase(database)).Run(context.Background())
			require.Error(t, err)
			assert.Nil(t, result)
			var configErr *bencherrors.ErrConfig
			assert.ErrorAs(t, err, &configErr)
			assert.False(t, database.cleaned)
			assert.Zero(t, database.RegisteredDevices())
		})
	}
}

type failingDatabase struct {
	*db.MemoryDatabase
	cleaned bool
}

func (f *failingDatabase) Cleanup(ctx context.Context) error {
	f.cleaned = true
	return f.MemoryDatabase.Cleanup(ctx)
}

func (f *failingDatabase) InsertBatch(context.Context, *workload.Batch) db.Status {
	return db.Failed(errors.New("disk full"))
}

func TestRunner_FailedOperationsAreRecorded(t *testing.T) {
	config := testConfig(t)
	config.DeleteData = true
	config.Results.Console = false
	database := &failingDatabase{MemoryDatabase: db.NewMemoryDatabase()}

	result, err := NewRunner(config, WithDatabase(database)).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, database.cleaned)

	ingest := operation(t, result, "INGESTION")
	assert.Zero(t, ingest.OkOperations)
	assert.Equal(t, int64(20), ingest.FailOperations)
	assert.Equal(t, int64(20*10*4), ingest.FailPoints)
	assert.Zero(t, ingest.Latency.Avg)
}

func TestRunner_SkipsSchemaCreation(t *testing.T) {
	config := testConfig(t)
	config.CreateSchema = false
	config.Results.Console = false
	memory := db.NewMemoryDatabase()

	result, err := NewRunner(config, WithDatabase(memory)).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, memory.RegisteredDevices())
	assert.Equal(t, "0s", result.Results.CreateSchemaTime)
}

func TestRunner_CancelledContext(t *testing.T) {
	config := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(config, WithDatabase(db.NewMemoryDatabase())).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)

	matches, err := filepath.Glob(filepath.Join(config.Results.Directory, "*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
