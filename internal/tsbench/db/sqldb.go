package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tsbench/tsbench/internal/common/database"
	"github.com/tsbench/tsbench/internal/common/logging"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

// hypertable chunks span one day of millisecond timestamps
const timescaleChunkInterval = 86_400_000

// SQLDatabase talks to a backend through database/sql. It serves TimescaleDB (lib/pq) and SQLite (modernc).
type SQLDatabase struct {
	driver  string
	dsn     string
	dialect dialect
	prefix  string
	// run after each table is created
	afterCreate func(ctx context.Context, db *sql.DB, table *schema.DeviceSchema) error
	// run once on a freshly opened handle
	setup func(ctx context.Context, db *sql.DB) error

	db *sql.DB
}

// NewTimescaleDatabase returns a TimescaleDB backend. Tables become hypertables partitioned on the timestamp.
func NewTimescaleDatabase(connection map[string]string, groupPrefix string) *SQLDatabase {
	return &SQLDatabase{
		driver:      "postgres",
		dsn:         database.CreateConnectionString(connection),
		dialect:     timescaleDialect,
		prefix:      groupPrefix,
		afterCreate: createHypertable,
	}
}

// NewSQLiteDatabase returns an embedded SQLite backend stored at path (":memory:" keeps it in process).
func NewSQLiteDatabase(path, groupPrefix string) *SQLDatabase {
	return &SQLDatabase{
		driver:  "sqlite",
		dsn:     path,
		dialect: sqliteDialect,
		prefix:  groupPrefix,
		setup: func(ctx context.Context, db *sql.DB) error {
			// one connection: writes are serialised and ":memory:" stays a single database
			db.SetMaxOpenConns(1)
			if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
				return fmt.Errorf("enabling WAL mode: %w", err)
			}
			return nil
		},
	}
}

func newSQLDatabaseFromHandle(db *sql.DB, d dialect, groupPrefix string, afterCreate func(context.Context, *sql.DB, *schema.DeviceSchema) error) *SQLDatabase {
	return &SQLDatabase{db: db, dialect: d, prefix: groupPrefix, afterCreate: afterCreate}
}

func createHypertable(ctx context.Context, db *sql.DB, table *schema.DeviceSchema) error {
	_, err := db.ExecContext(ctx,
		"SELECT create_hypertable($1, $2, chunk_time_interval => $3::bigint, if_not_exists => TRUE)",
		table.Group, timestampColumn, timescaleChunkInterval)
	return err
}

func (s *SQLDatabase) Init(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	err := retry.Do(
		func() error {
			db, err := sql.Open(s.driver, s.dsn)
			if err != nil {
				return err
			}
			if err := db.PingContext(ctx); err != nil {
				_ = db.Close()
				return err
			}
			s.db = db
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.WithError(err).Warnf("Connecting to %s failed (attempt %d)", s.driver, n+1)
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", s.driver, err)
	}
	if s.setup != nil {
		return s.setup(ctx, s.db)
	}
	return nil
}

// Cleanup drops every table whose name starts with the group prefix.
func (s *SQLDatabase) Cleanup(ctx context.Context) error {
	if s.prefix == "" {
		return errors.New("refusing to clean up without a group name prefix")
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.listTables, s.prefix)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			_ = rows.Close()
			return fmt.Errorf("listing tables: %w", err)
		}
		tables = append(tables, table)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, s.dialect.dropTable(table)); err != nil {
			return fmt.Errorf("dropping table %s: %w", table, err)
		}
	}
	logging.Infof("Dropped %d tables with prefix %s", len(tables), s.prefix)
	return nil
}

func (s *SQLDatabase) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLDatabase) RegisterSchema(ctx context.Context, devices []*schema.DeviceSchema) error {
	err := createTables(ctx, devices, func(ctx context.Context, table *schema.DeviceSchema) error {
		if _, err := s.db.ExecContext(ctx, s.dialect.createTable(table)); err != nil {
			return err
		}
		if s.afterCreate != nil {
			return s.afterCreate(ctx, s.db, table)
		}
		return nil
	})
	return err
}

func (s *SQLDatabase) InsertBatch(ctx context.Context, batch *workload.Batch) Status {
	statements, args := s.dialect.insertStatements(batch)
	for i, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement, args[i]...); err != nil {
			return Failed(fmt.Errorf("inserting %d records of %s: %w", len(batch.Records), batch.Device, err))
		}
	}
	return Succeeded(batch.PointCount())
}

// queryPoints runs query and returns rows*valuesPerRow.
func (s *SQLDatabase) queryPoints(ctx context.Context, query string, args []any, valuesPerRow int) (int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return n * valuesPerRow, nil
}

func (s *SQLDatabase) RangeQuery(ctx context.Context, query *workload.RangeQuery) Status {
	points := 0
	for _, device := range query.Devices {
		q, args := s.dialect.rangeQuery(device, query.Start, query.End)
		n, err := s.queryPoints(ctx, q, args, len(device.Sensors))
		if err != nil {
			return Failed(fmt.Errorf("range query on %s: %w", device, err))
		}
		points += n
	}
	return Succeeded(points)
}

func (s *SQLDatabase) AggRangeQuery(ctx context.Context, query *workload.AggRangeQuery) Status {
	points := 0
	for _, device := range query.Devices {
		q, args, err := s.dialect.aggQuery(device, query.Function, query.Start, query.End)
		if err != nil {
			return Failed(err)
		}
		n, err := s.queryPoints(ctx, q, args, len(device.Sensors))
		if err != nil {
			return Failed(fmt.Errorf("aggregate query on %s: %w", device, err))
		}
		points += n
	}
	return Succeeded(points)
}

func (s *SQLDatabase) FunctionRangeQuery(ctx context.Context, query *workload.FunctionRangeQuery) Status {
	fn := functionName(query.UDF.Name, query.UDF.ClassName)
	inputs := len(query.UDF.AcceptedTypes)
	points := 0
	for _, device := range query.Devices {
		q, args, err := s.dialect.functionQuery(device, fn, inputs, query.Start, query.End)
		if err != nil {
			return Failed(err)
		}
		if q == "" {
			continue
		}
		n, err := s.queryPoints(ctx, q, args, len(device.Sensors)/inputs)
		if err != nil {
			return Failed(fmt.Errorf("udf %s on %s: %w", query.UDF.Name, device, err))
		}
		points += n
	}
	return Succeeded(points)
}
