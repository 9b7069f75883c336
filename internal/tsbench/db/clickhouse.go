package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/avast/retry-go"

	"github.com/tsbench/tsbench/internal/common/logging"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

// ClickHouseDatabase implements the Database interface using the native ClickHouse protocol. Each group is a
// MergeTree table ordered by (device, ts) and batches are sent with PrepareBatch.
type ClickHouseDatabase struct {
	config map[string]string
	prefix string
	conn   driver.Conn
}

// NewClickHouseDatabase creates a new ClickHouseDatabase instance. Recognised config keys are host, port,
// database, user and password.
func NewClickHouseDatabase(config map[string]string, groupPrefix string) *ClickHouseDatabase {
	return &ClickHouseDatabase{config: config, prefix: groupPrefix}
}

func (c *ClickHouseDatabase) options() *clickhouse.Options {
	host, port := c.config["host"], c.config["port"]
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "9000"
	}
	return &clickhouse.Options{
		Addr: []string{host + ":" + port},
		Auth: clickhouse.Auth{
			Database: c.config["database"],
			Username: c.config["user"],
			Password: c.config["password"],
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	}
}

func (c *ClickHouseDatabase) Init(ctx context.Context) error {
	err := retry.Do(
		func() error {
			conn, err := clickhouse.Open(c.options())
			if err != nil {
				return err
			}
			if err := conn.Ping(ctx); err != nil {
				_ = conn.Close()
				return err
			}
			c.conn = conn
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.WithError(err).Warnf("Connecting to clickhouse failed (attempt %d)", n+1)
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to clickhouse: %w", err)
	}
	return nil
}

func (c *ClickHouseDatabase) Cleanup(ctx context.Context) error {
	if c.prefix == "" {
		return errors.New("refusing to clean up without a group name prefix")
	}
	rows, err := c.conn.Query(ctx, clickHouseDialect.listTables, c.prefix)
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
		if err := c.conn.Exec(ctx, clickHouseDialect.dropTable(table)); err != nil {
			return fmt.Errorf("dropping table %s: %w", table, err)
		}
	}
	logging.Infof("Dropped %d tables with prefix %s", len(tables), c.prefix)
	return nil
}

func (c *ClickHouseDatabase) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *ClickHouseDatabase) RegisterSchema(ctx context.Context, devices []*schema.DeviceSchema) error {
	return createTables(ctx, devices, func(ctx context.Context, table *schema.DeviceSchema) error {
		return c.conn.Exec(ctx, clickHouseDialect.createTable(table))
	})
}

func (c *ClickHouseDatabase) InsertBatch(ctx context.Context, batch *workload.Batch) Status {
	query := fmt.Sprintf("INSERT INTO %s", clickHouseDialect.quote(batch.Device.Group))
	b, err := c.conn.PrepareBatch(ctx, query)
	if err != nil {
		return Failed(fmt.Errorf("preparing batch for %s: %w", batch.Device, err))
	}
	for _, record := range batch.Records {
		row := make([]any, 0, len(record.Values)+2)
		row = append(row, batch.Device.Device, record.Timestamp)
		row = append(row, record.Values...)
		if err := b.Append(row...); err != nil {
			_ = b.Abort()
			return Failed(fmt.Errorf("appending record of %s: %w", batch.Device, err))
		}
	}
	if err := b.Send(); err != nil {
		return Failed(fmt.Errorf("sending %d records of %s: %w", len(batch.Records), batch.Device, err))
	}
	return Succeeded(batch.PointCount())
}

func (c *ClickHouseDatabase) queryPoints(ctx context.Context, query string, args []any, valuesPerRow int) (int, error) {
	rows, err := c.conn.Query(ctx, query, args...)
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

func (c *ClickHouseDatabase) RangeQuery(ctx context.Context, query *workload.RangeQuery) Status {
	points := 0
	for _, device := range query.Devices {
		q, args := clickHouseDialect.rangeQuery(device, query.Start, query.End)
		n, err := c.queryPoints(ctx, q, args, len(device.Sensors))
		if err != nil {
			return Failed(fmt.Errorf("range query on %s: %w", device, err))
		}
		points += n
	}
	return Succeeded(points)
}

func (c *ClickHouseDatabase) AggRangeQuery(ctx context.Context, query *workload.AggRangeQuery) Status {
	points := 0
	for _, device := range query.Devices {
		q, args, err := clickHouseDialect.aggQuery(device, query.Function, query.Start, query.End)
		if err != nil {
			return Failed(err)
		}
		n, err := c.queryPoints(ctx, q, args, len(device.Sensors))
		if err != nil {
			return Failed(fmt.Errorf("aggregate query on %s: %w", device, err))
		}
		points += n
	}
	return Succeeded(points)
}

func (c *ClickHouseDatabase) FunctionRangeQuery(ctx context.Context, query *workload.FunctionRangeQuery) Status {
	fn := functionName(query.UDF.Name, query.UDF.ClassName)
	inputs := len(query.UDF.AcceptedTypes)
	points := 0
	for _, device := range query.Devices {
		q, args, err := clickHouseDialect.functionQuery(device, fn, inputs, query.Start, query.End)
		if err != nil {
			return Failed(err)
		}
		if q == "" {
			continue
		}
		n, err := c.queryPoints(ctx, q, args, len(device.Sensors)/inputs)
		if err != nil {
			return Failed(fmt.Errorf("udf %s on %s: %w", query.UDF.Name, device, err))
		}
		points += n
	}
	return Succeeded(points)
}
