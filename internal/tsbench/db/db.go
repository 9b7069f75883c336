package db

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

// Status is the outcome of one operation against the database.
type Status struct {
	OK bool
	// Wall time of the call; set by the caller that timed it
	Elapsed time.Duration
	// Points returned by a query. Ingest callers use the batch size instead.
	Points int
	Err    error
}

func Succeeded(points int) Status {
	return Status{OK: true, Points: points}
}

func Failed(err error) Status {
	return Status{Err: err}
}

// Database is implemented once per backend. Implementations must be safe for concurrent use by all workers.
type Database interface {
	// Init connects to the backend.
	Init(ctx context.Context) error
	// Cleanup removes data left by previous runs.
	Cleanup(ctx context.Context) error
	Close() error
	RegisterSchema(ctx context.Context, devices []*schema.DeviceSchema) error
	InsertBatch(ctx context.Context, batch *workload.Batch) Status
	RangeQuery(ctx context.Context, query *workload.RangeQuery) Status
	AggRangeQuery(ctx context.Context, query *workload.AggRangeQuery) Status
	FunctionRangeQuery(ctx context.Context, query *workload.FunctionRangeQuery) Status
}

// New returns the backend selected by config.Type. It does not connect; call Init. Cleanup only removes
// tables (or keys) whose group starts with groupPrefix.
func New(config configuration.DatabaseConfig, groupPrefix string) (Database, error) {
	switch config.Type {
	case configuration.DatabasePostgres:
		return NewPostgresDatabase(config.Postgres, groupPrefix), nil
	case configuration.DatabaseTimescale:
		return NewTimescaleDatabase(config.Timescale, groupPrefix), nil
	case configuration.DatabaseSQLite:
		return NewSQLiteDatabase(config.SQLite.Path, groupPrefix), nil
	case configuration.DatabaseClickHouse:
		return NewClickHouseDatabase(config.ClickHouse, groupPrefix), nil
	case configuration.DatabaseRedis:
		return NewRedisDatabase(config.Redis, groupPrefix), nil
	case configuration.DatabaseMemory, "":
		return NewMemoryDatabase(), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", config.Type)
	}
}

const schemaParallelism = 4

// tablesByGroup returns one representative device per group, in first-seen order. All devices of a run share
// the same sensors, so any device describes its group's columns.
func tablesByGroup(devices []*schema.DeviceSchema) []*schema.DeviceSchema {
	seen := map[string]bool{}
	var tables []*schema.DeviceSchema
	for _, device := range devices {
		if !seen[device.Group] {
			seen[device.Group] = true
			tables = append(tables, device)
		}
	}
	return tables
}

// createTables calls create once per group, at most schemaParallelism at a time.
func createTables(ctx context.Context, devices []*schema.DeviceSchema, create func(ctx context.Context, table *schema.DeviceSchema) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(schemaParallelism)
	for _, table := range tablesByGroup(devices) {
		g.Go(func() error {
			if err := create(ctx, table); err != nil {
				return fmt.Errorf("creating table for group %s: %w", table.Group, err)
			}
			return nil
		})
	}
	return g.Wait()
}
