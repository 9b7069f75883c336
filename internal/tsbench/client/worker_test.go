package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock "k8s.io/utils/clock/testing"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/db"
	"github.com/tsbench/tsbench/internal/tsbench/measurement"
	"github.com/tsbench/tsbench/internal/tsbench/scheduler"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

var (
	ingestKey = measurement.Key{Kind: scheduler.Ingest, Variant: scheduler.NoVariant}
	rangeKey  = measurement.Key{Kind: scheduler.RangeQuery, Variant: scheduler.NoVariant}
	aggKey    = measurement.Key{Kind: scheduler.AggRangeQuery, Variant: "count"}
)

// stubDatabase stores into memory unless a hook overrides the call.
type stubDatabase struct {
	*db.MemoryDatabase
	inserts    atomic.Int64
	queries    atomic.Int64
	insert     func(ctx context.Context, batch *workload.Batch) db.Status
	rangeQuery func(ctx context.Context, call int64) db.Status
	aggQuery   func(ctx context.Context) db.Status
}

func newStubDatabase() *stubDatabase {
	return &stubDatabase{MemoryDatabase: db.NewMemoryDatabase()}
}

func (s *stubDatabase) InsertBatch(ctx context.Context, batch *workload.Batch) db.Status {
	s.inserts.Add(1)
	if s.insert != nil {
		return s.insert(ctx, batch)
	}
	return s.MemoryDatabase.InsertBatch(ctx, batch)
}

func (s *stubDatabase) RangeQuery(ctx context.Context, query *workload.RangeQuery) db.Status {
	call := s.queries.Add(1)
	if s.rangeQuery != nil {
		return s.rangeQuery(ctx, call)
	}
	return s.MemoryDatabase.RangeQuery(ctx, query)
}

func (s *stubDatabase) AggRangeQuery(ctx context.Context, query *workload.AggRangeQuery) db.Status {
	s.queries.Add(1)
	if s.aggQuery != nil {
		return s.aggQuery(ctx)
	}
	return s.MemoryDatabase.AggRangeQuery(ctx, query)
}

type stubQueries struct {
	udfs []configuration.UDFConfig
	next int
}

func (q *stubQueries) NextRangeQuery() (*workload.RangeQuery, error) {
	return &workload.RangeQuery{}, nil
}

func (q *stubQueries) NextAggRangeQuery() (*workload.AggRangeQuery, error) {
	return &workload.AggRangeQuery{Function: "count"}, nil
}

func (q *stubQueries) NextFunctionRangeQuery() (*workload.FunctionRangeQuery, error) {
	udf := q.udfs[q.next%len(q.udfs)]
	q.next++
	return &workload.FunctionRangeQuery{UDF: udf}, nil
}

type stubBatches struct {
	err error
}

func (b *stubBatches) NextBatches() ([]*workload.Batch, error) {
	if b.err != nil {
		return nil, b.err
	}
	device := &schema.DeviceSchema{Group: "group_0", Device: "d_0", Sensors: []string{"s_0", "s_1"}, Types: []schema.DataType{schema.Int64, schema.Int64}}
	return []*workload.Batch{{
		Device: device,
		Records: []workload.Record{
			{Timestamp: 1, Values: []any{int64(1), int64(2)}},
			{Timestamp: 2, Values: []any{int64(3), int64(4)}},
		},
	}}, nil
}

func testConfig(proportion string) *configuration.TestConfig {
	config := configuration.Default()
	config.OperationProportion = proportion
	config.Loop = 3
	config.QuietMode = true
	config.OpInterval = 0
	config.WriteTimeout = time.Second
	config.ReadTimeout = time.Second
	return &config
}

func newTestWorker(t *testing.T, config *configuration.TestConfig, deps Dependencies) *Worker {
	t.Helper()
	table, err := scheduler.ParseProportionTable(config.OperationProportion)
	require.NoError(t, err)
	sketches, err := measurement.NewSketches(measurement.Keys(config.QueryAggregateFunction, config.UDFNames()))
	require.NoError(t, err)
	if deps.Queries == nil {
		deps.Queries = &stubQueries{udfs: config.UDFs}
	}
	if deps.Batches == nil {
		deps.Batches = &stubBatches{}
	}
	deps.Metrics = measurement.NewClientMetrics(sketches, nil)
	return NewWorker(0, config, table, deps)
}

func runNow(ctx context.Context, w *Worker) error {
	var ready sync.WaitGroup
	ready.Add(1)
	start := make(chan struct{})
	close(start)
	return w.Run(ctx, &ready, start)
}

func TestWorker_ReadTimeoutRecordsFailureAndContinues(t *testing.T) {
	config := testConfig("0:1:0:0")
	config.ReadTimeout = 20 * time.Millisecond
	database := newStubDatabase()
	database.rangeQuery = func(ctx context.Context, call int64) db.Status {
		if call == 1 {
			<-ctx.Done()
			return db.Failed(ctx.Err())
		}
		return db.Succeeded(7)
	}
	w := newTestWorker(t, config, Dependencies{Database: database})

	require.NoError(t, runNow(context.Background(), w))

	counters := w.Metrics().Counters(rangeKey)
	assert.Equal(t, int64(1), counters.FailOperations)
	assert.Equal(t, int64(0), counters.FailPoints)
	assert.Equal(t, int64(2), counters.OkOperations)
	assert.Equal(t, int64(14), counters.OkPoints)
	assert.Equal(t, 100.0, w.Progress())
}

func TestWorker_TimedReturnsTimeoutError(t *testing.T) {
	config := testConfig("0:1:0:0")
	w := newTestWorker(t, config, Dependencies{Database: newStubDatabase()})
	unblock := make(chan struct{})
	defer close(unblock)

	status := w.timed(context.Background(), rangeKey, 10*time.Millisecond, func(context.Context) db.Status {
		<-unblock
		return db.Succeeded(1)
	})

	assert.False(t, status.OK)
	assert.True(t, bencherrors.IsTimeout(status.Err))
	assert.GreaterOrEqual(t, status.Elapsed, 10*time.Millisecond)
}

func TestWorker_AlternatesIngestAndAggregate(t *testing.T) {
	config := testConfig("1:0:1:0")
	database := newStubDatabase()
	w := newTestWorker(t, config, Dependencies{Database: database})

	require.NoError(t, runNow(context.Background(), w))

	assert.Equal(t, int64(3), database.inserts.Load())
	assert.Equal(t, int64(3), database.queries.Load())
	assert.Equal(t, int64(3), w.Metrics().Counters(ingestKey).OkOperations)
	assert.Equal(t, int64(12), w.Metrics().Counters(ingestKey).OkPoints)
	assert.Equal(t, int64(3), w.Metrics().Counters(aggKey).OkOperations)
}

func TestWorker_FailedIngestCountsFailedPoints(t *testing.T) {
	config := testConfig("1:0:0:0")
	database := newStubDatabase()
	database.insert = func(context.Context, *workload.Batch) db.Status {
		return db.Failed(assert.AnError)
	}
	w := newTestWorker(t, config, Dependencies{Database: database})

	require.NoError(t, runNow(context.Background(), w))

	assert.Equal(t, measurement.Counters{FailOperations: 3, FailPoints: 12}, w.Metrics().Counters(ingestKey))
}

func TestWorker_RecoversFromPanic(t *testing.T) {
	config := testConfig("0:0:1:0")
	database := newStubDatabase()
	var calls atomic.Int64
	database.aggQuery = func(context.Context) db.Status {
		if calls.Add(1) == 2 {
			panic("boom")
		}
		return db.Succeeded(1)
	}
	w := newTestWorker(t, config, Dependencies{Database: database})

	require.NoError(t, runNow(context.Background(), w))

	counters := w.Metrics().Counters(aggKey)
	assert.Equal(t, int64(2), counters.OkOperations)
	assert.Equal(t, int64(1), counters.FailOperations)
}

func TestWorker_RunsEveryUDF(t *testing.T) {
	config := testConfig("0:0:0:1")
	config.UDFs = []configuration.UDFConfig{
		{Name: "stddev", AcceptedTypes: [][]schema.DataType{{schema.Int64}}},
		{Name: "max", AcceptedTypes: [][]schema.DataType{{schema.Int64}}},
	}
	w := newTestWorker(t, config, Dependencies{Database: newStubDatabase()})

	require.NoError(t, runNow(context.Background(), w))

	for _, udf := range []string{"stddev", "max"} {
		key := measurement.Key{Kind: scheduler.FunctionRangeQuery, Variant: udf}
		assert.Equal(t, int64(3), w.Metrics().Counters(key).OkOperations, udf)
	}
}

func TestWorker_GenerationErrorIsFatal(t *testing.T) {
	config := testConfig("1:0:0:0")
	batches := &stubBatches{err: bencherrors.NewGenerationError("unsupported overflow mode 7")}
	w := newTestWorker(t, config, Dependencies{Database: newStubDatabase(), Batches: batches})

	err := runNow(context.Background(), w)

	require.Error(t, err)
	assert.True(t, bencherrors.IsFatal(err))
}

func TestWorker_AppliesInjector(t *testing.T) {
	config := testConfig("1:0:0:0")
	database := newStubDatabase()
	w := newTestWorker(t, config, Dependencies{Database: database, Injector: dropAll{}})

	require.NoError(t, runNow(context.Background(), w))

	assert.Equal(t, int64(0), database.inserts.Load())
}

type dropAll struct{}

func (dropAll) Inject(batch *workload.Batch) *workload.Batch {
	return &workload.Batch{Device: batch.Device}
}

func TestWorker_Pacing(t *testing.T) {
	config := testConfig("1:0:0:0")
	config.OpInterval = 100 * time.Millisecond
	fakeClock := clock.NewFakeClock(time.Now())
	database := newStubDatabase()
	w := newTestWorker(t, config, Dependencies{Database: database, Clock: fakeClock})

	done := make(chan error, 1)
	go func() { done <- runNow(context.Background(), w) }()

	for i := int64(1); i <= 3; i++ {
		require.Eventually(t, fakeClock.HasWaiters, time.Second, time.Millisecond)
		assert.Equal(t, i, database.inserts.Load())
		fakeClock.Step(config.OpInterval)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not finish")
	}
	assert.Equal(t, int64(3), database.inserts.Load())
}

func TestWorker_WaitsForStart(t *testing.T) {
	config := testConfig("1:0:0:0")
	database := newStubDatabase()
	w := newTestWorker(t, config, Dependencies{Database: database})

	var ready sync.WaitGroup
	ready.Add(1)
	start := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), &ready, start) }()

	ready.Wait()
	assert.Equal(t, int64(0), database.inserts.Load())
	close(start)
	require.NoError(t, <-done)
	assert.Equal(t, int64(3), database.inserts.Load())
}

func TestWorker_CancelledBeforeStart(t *testing.T) {
	w := newTestWorker(t, testConfig("1:0:0:0"), Dependencies{Database: newStubDatabase()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ready sync.WaitGroup
	ready.Add(1)
	err := w.Run(ctx, &ready, make(chan struct{}))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0.0, w.Progress())
}
