package configuration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Precision is the unit of emitted timestamps.
type Precision string

const (
	Millisecond Precision = "ms"
	Microsecond Precision = "us"
	Nanosecond  Precision = "ns"
)

func (p *Precision) UnmarshalText(text []byte) error {
	switch s := Precision(strings.ToLower(string(text))); s {
	case Millisecond, Microsecond, Nanosecond:
		*p = s
		return nil
	default:
		return fmt.Errorf("unknown timestamp precision %q, expected one of ms, us, ns", string(text))
	}
}

// PerMillisecond is the number of timestamp units in one millisecond.
func (p Precision) PerMillisecond() int64 {
	switch p {
	case Microsecond:
		return 1_000
	case Nanosecond:
		return 1_000_000
	default:
		return 1
	}
}

// Timestamp converts t to a timestamp in this precision.
func (p Precision) Timestamp(t time.Time) int64 {
	return t.UnixMilli() * p.PerMillisecond()
}

// Duration converts a span of timestamp units to a time.Duration.
func (p Precision) Duration(units int64) time.Duration {
	return time.Duration(units) * time.Millisecond / time.Duration(p.PerMillisecond())
}

// OverflowMode selects the out-of-order timestamp strategy used when OutOfOrder is set.
type OverflowMode int

const (
	// OverflowPoisson emits late points whose lag follows a Poisson distribution.
	OverflowPoisson OverflowMode = 0
	// OverflowLocalReorder hoists one record of each batch to the front.
	OverflowLocalReorder OverflowMode = 1
)

func (m *OverflowMode) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	switch s {
	case "poisson":
		*m = OverflowPoisson
		return nil
	case "local", "localreorder", "local-reorder":
		*m = OverflowLocalReorder
		return nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("unknown overflow mode %q", string(text))
	}
	// range checked by TestConfig.Validate
	*m = OverflowMode(i)
	return nil
}

func (m OverflowMode) String() string {
	switch m {
	case OverflowPoisson:
		return "poisson"
	case OverflowLocalReorder:
		return "local-reorder"
	default:
		return strconv.Itoa(int(m))
	}
}

type DatabaseType string

const (
	DatabasePostgres   DatabaseType = "postgres"
	DatabaseTimescale  DatabaseType = "timescale"
	DatabaseSQLite     DatabaseType = "sqlite"
	DatabaseClickHouse DatabaseType = "clickhouse"
	DatabaseRedis      DatabaseType = "redis"
	DatabaseMemory     DatabaseType = "memory"
)

var databaseTypes = []DatabaseType{
	DatabasePostgres, DatabaseTimescale, DatabaseSQLite, DatabaseClickHouse, DatabaseRedis, DatabaseMemory,
}

func (d *DatabaseType) UnmarshalText(text []byte) error {
	s := DatabaseType(strings.ToLower(string(text)))
	for _, known := range databaseTypes {
		if s == known {
			*d = s
			return nil
		}
	}
	return fmt.Errorf("unknown database type %q", string(text))
}
