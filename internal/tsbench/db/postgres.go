package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsbench/tsbench/internal/common/database"
	"github.com/tsbench/tsbench/internal/common/logging"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

// PostgresDatabase implements the Database interface using PostgreSQL through a pgx pool.
// Batches are written with the COPY protocol.
type PostgresDatabase struct {
	config map[string]string
	prefix string
	pool   *pgxpool.Pool
}

// NewPostgresDatabase creates a new PostgresDatabase instance.
// The config map should contain connection parameters compatible with libpq:
//   - host: database host (e.g., "localhost")
//   - port: database port (e.g., "5432")
//   - user: database user (e.g., "postgres")
//   - password: database password
//   - dbname: database name (e.g., "tsbench")
//   - sslmode: SSL mode (e.g., "disable")
func NewPostgresDatabase(config map[string]string, groupPrefix string) *PostgresDatabase {
	return &PostgresDatabase{config: config, prefix: groupPrefix}
}

// Init opens the connection pool.
func (p *PostgresDatabase) Init(ctx context.Context) error {
	pool, err := database.OpenPgxPool(ctx, p.config)
	if err != nil {
		return fmt.Errorf("opening connection pool: %w", err)
	}
	p.pool = pool
	return nil
}

// Cleanup drops all tables whose name starts with the group prefix, so that a run starts from an empty
// database.
func (p *PostgresDatabase) Cleanup(ctx context.Context) error {
	if p.prefix == "" {
		return fmt.Errorf("refusing to clean up without a group name prefix")
	}
	rows, err := p.pool.Query(ctx, postgresDialect.listTables, p.prefix)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	for _, table := range tables {
		if _, err := p.pool.Exec(ctx, postgresDialect.dropTable(table)); err != nil {
			return fmt.Errorf("dropping table %s: %w", table, err)
		}
	}
	logging.Infof("Dropped %d tables with prefix %s", len(tables), p.prefix)
	return nil
}

// Close closes the database connection pool.
func (p *PostgresDatabase) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// RegisterSchema creates one table per group plus an index serving the per device window scans.
func (p *PostgresDatabase) RegisterSchema(ctx context.Context, devices []*schema.DeviceSchema) error {
	return createTables(ctx, devices, func(ctx context.Context, table *schema.DeviceSchema) error {
		if _, err := p.pool.Exec(ctx, postgresDialect.createTable(table)); err != nil {
			return err
		}
		index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s, %s)",
			postgresDialect.quote(table.Group+"_device_ts"), postgresDialect.quote(table.Group), deviceColumn, timestampColumn)
		_, err := p.pool.Exec(ctx, index)
		return err
	})
}

// InsertBatch copies the batch using the COPY protocol.
func (p *PostgresDatabase) InsertBatch(ctx context.Context, batch *workload.Batch) Status {
	columns := append([]string{deviceColumn, timestampColumn}, batch.Device.Sensors...)
	rows := make([][]interface{}, len(batch.Records))
	for i, record := range batch.Records {
		row := make([]interface{}, 0, len(columns))
		row = append(row, batch.Device.Device, record.Timestamp)
		rows[i] = append(row, record.Values...)
	}

	_, err := p.pool.CopyFrom(ctx, pgx.Identifier{batch.Device.Group}, columns, &copyFromRows{rows: rows})
	if err != nil {
		return Failed(fmt.Errorf("copying %d records of %s: %w", len(rows), batch.Device, err))
	}
	return Succeeded(batch.PointCount())
}

func (p *PostgresDatabase) queryPoints(ctx context.Context, query string, args []any, valuesPerRow int) (int, error) {
	rows, err := p.pool.Query(ctx, query, args...)
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

func (p *PostgresDatabase) RangeQuery(ctx context.Context, query *workload.RangeQuery) Status {
	points := 0
	for _, device := range query.Devices {
		q, args := postgresDialect.rangeQuery(device, query.Start, query.End)
		n, err := p.queryPoints(ctx, q, args, len(device.Sensors))
		if err != nil {
			return Failed(fmt.Errorf("range query on %s: %w", device, err))
		}
		points += n
	}
	return Succeeded(points)
}

func (p *PostgresDatabase) AggRangeQuery(ctx context.Context, query *workload.AggRangeQuery) Status {
	points := 0
	for _, device := range query.Devices {
		q, args, err := postgresDialect.aggQuery(device, query.Function, query.Start, query.End)
		if err != nil {
			return Failed(err)
		}
		n, err := p.queryPoints(ctx, q, args, len(device.Sensors))
		if err != nil {
			return Failed(fmt.Errorf("aggregate query on %s: %w", device, err))
		}
		points += n
	}
	return Succeeded(points)
}

func (p *PostgresDatabase) FunctionRangeQuery(ctx context.Context, query *workload.FunctionRangeQuery) Status {
	fn := functionName(query.UDF.Name, query.UDF.ClassName)
	inputs := len(query.UDF.AcceptedTypes)
	points := 0
	for _, device := range query.Devices {
		q, args, err := postgresDialect.functionQuery(device, fn, inputs, query.Start, query.End)
		if err != nil {
			return Failed(err)
		}
		if q == "" {
			continue
		}
		n, err := p.queryPoints(ctx, q, args, len(device.Sensors)/inputs)
		if err != nil {
			return Failed(fmt.Errorf("udf %s on %s: %w", query.UDF.Name, device, err))
		}
		points += n
	}
	return Succeeded(points)
}

// copyFromRows implements pgx.CopyFromSource for batch inserts.
type copyFromRows struct {
	rows [][]interface{}
	idx  int
}

func (c *copyFromRows) Next() bool {
	c.idx++
	return c.idx <= len(c.rows)
}

func (c *copyFromRows) Values() ([]interface{}, error) {
	if c.idx > len(c.rows) {
		return nil, fmt.Errorf("index out of range")
	}
	return c.rows[c.idx-1], nil
}

func (c *copyFromRows) Err() error {
	return nil
}
