package measurement

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/tsbench/tsbench/internal/common/database"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS tsbench_results (
    run_id                 uuid             NOT NULL,
    completed_at           timestamptz      NOT NULL,
    operation              text             NOT NULL,
    variant                text             NOT NULL,
    ok_operations          bigint           NOT NULL,
    ok_points              bigint           NOT NULL,
    fail_operations        bigint           NOT NULL,
    fail_points            bigint           NOT NULL,
    throughput             double precision NOT NULL,
    avg_latency            double precision NOT NULL,
    min_latency            double precision NOT NULL,
    p10_latency            double precision NOT NULL,
    p25_latency            double precision NOT NULL,
    median_latency         double precision NOT NULL,
    p75_latency            double precision NOT NULL,
    p90_latency            double precision NOT NULL,
    p95_latency            double precision NOT NULL,
    p99_latency            double precision NOT NULL,
    p999_latency           double precision NOT NULL,
    max_latency            double precision NOT NULL,
    slowest_thread_latency double precision NOT NULL,
    PRIMARY KEY (run_id, operation, variant)
)`

var resultColumns = []string{
	"run_id", "completed_at", "operation", "variant",
	"ok_operations", "ok_points", "fail_operations", "fail_points", "throughput",
	"avg_latency", "min_latency", "p10_latency", "p25_latency", "median_latency", "p75_latency",
	"p90_latency", "p95_latency", "p99_latency", "p999_latency", "max_latency",
	"slowest_thread_latency",
}

// ResultStore appends run results to a Postgres table so runs can be compared over time.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(ctx context.Context, connection map[string]string) (*ResultStore, error) {
	pool, err := database.OpenPgxPool(ctx, connection)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createResultsTable); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "creating results table")
	}
	return &ResultStore{pool: pool}, nil
}

func (s *ResultStore) Save(ctx context.Context, result TestResult) error {
	rows, err := resultRows(result)
	if err != nil {
		return err
	}
	_, err = s.pool.CopyFrom(ctx, pgx.Identifier{"tsbench_results"}, resultColumns, pgx.CopyFromRows(rows))
	return errors.Wrapf(err, "saving results of run %s", result.Metadata.RunID)
}

func (s *ResultStore) Close() {
	s.pool.Close()
}

func resultRows(result TestResult) ([][]any, error) {
	completedAt, err := time.Parse(time.RFC3339, result.Metadata.Timestamp)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing completion time of run %s", result.Metadata.RunID)
	}
	rows := make([][]any, 0, len(result.Results.Operations))
	for _, op := range result.Results.Operations {
		l := op.Latency
		rows = append(rows, []any{
			result.Metadata.RunID, completedAt, op.Operation, op.Variant,
			op.OkOperations, op.OkPoints, op.FailOperations, op.FailPoints, op.Throughput,
			l.Avg, l.Min, l.P10, l.P25, l.Median, l.P75, l.P90, l.P95, l.P99, l.P999, l.Max,
			op.SlowestThreadLatency,
		})
	}
	return rows, nil
}
