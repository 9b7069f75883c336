package db

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

const (
	deviceColumn    = "device"
	timestampColumn = "ts"
	// postgres caps bind parameters per statement at 65535
	maxBindParameters = 65535
)

var functionPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect renders the statements shared by every SQL backend. Each group is stored in one wide table with a
// device column, a timestamp column and one column per sensor.
type dialect struct {
	quoteChar   byte
	placeholder func(n int) string
	typeNames   map[schema.DataType]string
	// appended to CREATE TABLE
	tableOptions string
	primaryKey   bool
	// appended to INSERT
	onConflict string
	// lists the tables whose name starts with the single bound parameter
	listTables string
}

var postgresDialect = dialect{
	quoteChar:   '"',
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	typeNames: map[schema.DataType]string{
		schema.Boolean: "BOOLEAN",
		schema.Int32:   "INTEGER",
		schema.Int64:   "BIGINT",
		schema.Float:   "REAL",
		schema.Double:  "DOUBLE PRECISION",
		schema.Text:    "TEXT",
	},
	listTables: "SELECT tablename FROM pg_tables WHERE schemaname = current_schema() AND starts_with(tablename, $1)",
}

var timescaleDialect = func() dialect {
	d := postgresDialect
	d.primaryKey = true
	d.onConflict = " ON CONFLICT DO NOTHING"
	return d
}()

var sqliteDialect = dialect{
	quoteChar:   '"',
	placeholder: func(int) string { return "?" },
	typeNames: map[schema.DataType]string{
		schema.Boolean: "INTEGER",
		schema.Int32:   "INTEGER",
		schema.Int64:   "INTEGER",
		schema.Float:   "REAL",
		schema.Double:  "REAL",
		schema.Text:    "TEXT",
	},
	primaryKey: true,
	onConflict: " ON CONFLICT DO NOTHING",
	listTables: "SELECT name FROM sqlite_master WHERE type = 'table' AND substr(name, 1, length(?1)) = ?1",
}

var clickHouseDialect = dialect{
	quoteChar:   '`',
	placeholder: func(int) string { return "?" },
	typeNames: map[schema.DataType]string{
		schema.Boolean: "Bool",
		schema.Int32:   "Int32",
		schema.Int64:   "Int64",
		schema.Float:   "Float32",
		schema.Double:  "Float64",
		schema.Text:    "String",
	},
	tableOptions: " ENGINE = MergeTree ORDER BY (device, ts)",
	listTables:   "SELECT name FROM system.tables WHERE database = currentDatabase() AND startsWith(name, ?)",
}

func (d dialect) quote(identifier string) string {
	q := string(d.quoteChar)
	return q + strings.ReplaceAll(identifier, q, q+q) + q
}

func (d dialect) createTable(table *schema.DeviceSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (%s %s NOT NULL, %s %s NOT NULL",
		d.quote(table.Group), deviceColumn, d.stringType(), timestampColumn, d.typeNames[schema.Int64])
	for i, sensor := range table.Sensors {
		fmt.Fprintf(&b, ", %s %s", d.quote(sensor), d.typeNames[table.Types[i]])
	}
	if d.primaryKey {
		fmt.Fprintf(&b, ", PRIMARY KEY (%s, %s)", deviceColumn, timestampColumn)
	}
	b.WriteString(")")
	b.WriteString(d.tableOptions)
	return b.String()
}

func (d dialect) stringType() string {
	return d.typeNames[schema.Text]
}

func (d dialect) dropTable(group string) string {
	return "DROP TABLE IF EXISTS " + d.quote(group)
}

func (d dialect) columns(device *schema.DeviceSchema) []string {
	columns := make([]string, 0, len(device.Sensors)+2)
	columns = append(columns, deviceColumn, timestampColumn)
	for _, sensor := range device.Sensors {
		columns = append(columns, d.quote(sensor))
	}
	return columns
}

// insertStatements renders multi-row INSERTs for the batch, splitting it so no statement exceeds the bind
// parameter limit.
func (d dialect) insertStatements(batch *workload.Batch) ([]string, [][]any) {
	columns := d.columns(batch.Device)
	rowsPerStatement := max(maxBindParameters/len(columns), 1)
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", d.quote(batch.Device.Group), strings.Join(columns, ", "))

	var statements []string
	var args [][]any
	for start := 0; start < len(batch.Records); start += rowsPerStatement {
		end := min(start+rowsPerStatement, len(batch.Records))
		var b strings.Builder
		b.WriteString(prefix)
		statementArgs := make([]any, 0, (end-start)*len(columns))
		for i, record := range batch.Records[start:end] {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("(")
			for c := range columns {
				if c > 0 {
					b.WriteString(",")
				}
				b.WriteString(d.placeholder(len(statementArgs) + c + 1))
			}
			b.WriteString(")")
			statementArgs = append(statementArgs, batch.Device.Device, record.Timestamp)
			statementArgs = append(statementArgs, record.Values...)
		}
		b.WriteString(d.onConflict)
		statements = append(statements, b.String())
		args = append(args, statementArgs)
	}
	return statements, args
}

func (d dialect) selectWindow(device *schema.DeviceSchema, selection []string, start, end int64) (string, []any) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s AND %s >= %s AND %s <= %s",
		strings.Join(selection, ", "), d.quote(device.Group),
		deviceColumn, d.placeholder(1), timestampColumn, d.placeholder(2), timestampColumn, d.placeholder(3))
	return query, []any{device.Device, start, end}
}

func (d dialect) rangeQuery(device *schema.DeviceSchema, start, end int64) (string, []any) {
	selection := append([]string{timestampColumn}, d.columns(device)[2:]...)
	return d.selectWindow(device, selection, start, end)
}

func (d dialect) aggQuery(device *schema.DeviceSchema, function string, start, end int64) (string, []any, error) {
	if !functionPattern.MatchString(function) {
		return "", nil, fmt.Errorf("invalid aggregate function name %q", function)
	}
	selection := make([]string, len(device.Sensors))
	for i, sensor := range device.Sensors {
		selection[i] = fmt.Sprintf("%s(%s)", function, d.quote(sensor))
	}
	query, args := d.selectWindow(device, selection, start, end)
	return query, args, nil
}

// functionQuery applies the UDF to every complete group of input sensors. It returns an empty query when the
// device has no complete group.
func (d dialect) functionQuery(device *schema.DeviceSchema, function string, inputs int, start, end int64) (string, []any, error) {
	if !functionPattern.MatchString(function) {
		return "", nil, fmt.Errorf("invalid udf name %q", function)
	}
	var selection []string
	for _, group := range udfInputs(device.Sensors, inputs) {
		quoted := make([]string, len(group))
		for i, sensor := range group {
			quoted[i] = d.quote(sensor)
		}
		selection = append(selection, fmt.Sprintf("%s(%s)", function, strings.Join(quoted, ", ")))
	}
	if len(selection) == 0 {
		return "", nil, nil
	}
	query, args := d.selectWindow(device, selection, start, end)
	return query, args, nil
}
