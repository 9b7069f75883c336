package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

func TestSQLiteDatabase(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteDatabase(":memory:", "group_")
	require.NoError(t, s.Init(ctx))
	defer func() { assert.NoError(t, s.Close()) }()

	device := testDevice("d_0")
	require.NoError(t, s.RegisterSchema(ctx, []*schema.DeviceSchema{device, testDevice("d_1")}))

	status := s.InsertBatch(ctx, testBatch(device, 10))
	require.NoError(t, status.Err)
	assert.Equal(t, 20, status.Points)

	// rewriting existing timestamps is ignored rather than failing
	status = s.InsertBatch(ctx, testBatch(device, 2))
	require.NoError(t, status.Err)

	window := workload.RangeQuery{Devices: []*schema.DeviceSchema{device}, Start: 2000, End: 5000}

	status = s.RangeQuery(ctx, &window)
	require.NoError(t, status.Err)
	assert.Equal(t, 8, status.Points)

	status = s.AggRangeQuery(ctx, &workload.AggRangeQuery{RangeQuery: window, Function: "count"})
	require.NoError(t, status.Err)
	assert.Equal(t, 2, status.Points)

	status = s.FunctionRangeQuery(ctx, &workload.FunctionRangeQuery{
		RangeQuery: window,
		UDF: configuration.UDFConfig{
			Name:          "no_such_udf",
			AcceptedTypes: [][]schema.DataType{{schema.Int64}},
		},
	})
	assert.False(t, status.OK)

	require.NoError(t, s.Cleanup(ctx))
	status = s.RangeQuery(ctx, &window)
	assert.False(t, status.OK)
}

func TestSQLDatabase_CleanupRequiresPrefix(t *testing.T) {
	s := NewSQLiteDatabase(":memory:", "")
	require.NoError(t, s.Init(context.Background()))
	defer s.Close()

	assert.Error(t, s.Cleanup(context.Background()))
}

func TestTimescaleDatabase(t *testing.T) {
	ctx := context.Background()
	handle, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := newSQLDatabaseFromHandle(handle, timescaleDialect, "group_", createHypertable)
	defer s.Close()

	device := testDevice("d_0")

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "group_0"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT create_hypertable(")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.RegisterSchema(ctx, []*schema.DeviceSchema{device}))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "group_0"`)).
		WithArgs("d_0", int64(0), int64(0), 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	status := s.InsertBatch(ctx, testBatch(device, 1))
	require.NoError(t, status.Err)
	assert.Equal(t, 2, status.Points)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ts, "s_0", "s_1" FROM "group_0"`)).
		WithArgs("d_0", int64(0), int64(5000)).
		WillReturnRows(sqlmock.NewRows([]string{"ts", "s_0", "s_1"}).AddRow(0, 0, 0.0).AddRow(1000, 1, 0.5))
	status = s.RangeQuery(ctx, &workload.RangeQuery{Devices: []*schema.DeviceSchema{device}, Start: 0, End: 5000})
	require.NoError(t, status.Err)
	assert.Equal(t, 4, status.Points)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tablename FROM pg_tables")).
		WithArgs("group_").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("group_0").AddRow("group_1"))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "group_0"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "group_1"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Cleanup(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimescaleDatabase_InsertFailure(t *testing.T) {
	handle, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := newSQLDatabaseFromHandle(handle, timescaleDialect, "group_", nil)
	defer s.Close()

	mock.ExpectExec("INSERT INTO").WillReturnError(assert.AnError)
	status := s.InsertBatch(context.Background(), testBatch(testDevice("d_0"), 3))

	assert.False(t, status.OK)
	assert.ErrorIs(t, status.Err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
