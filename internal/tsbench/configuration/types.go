package configuration

import (
	"time"

	"github.com/tsbench/tsbench/internal/tsbench/schema"
)

// TestConfig is the complete, read-only configuration of one benchmark run.
type TestConfig struct {
	OperationProportion string        `json:"operationProportion" validate:"required"`
	Loop                int64         `json:"loop" validate:"gt=0"`
	ClientNumber        int           `json:"clientNumber" validate:"gt=0"`
	ClientBind          bool          `json:"clientBind"`
	OpInterval          time.Duration `json:"opInterval" validate:"gte=0"`
	LogPrintInterval    time.Duration `json:"logPrintInterval" validate:"gte=0"`
	QuietMode           bool          `json:"quietMode"`
	CreateSchema        bool          `json:"createSchema"`
	DeleteData          bool          `json:"deleteData"`

	GroupNumber        int                  `json:"groupNumber" validate:"gt=0"`
	GroupNamePrefix    string               `json:"groupNamePrefix"`
	GroupStrategy      schema.GroupStrategy `json:"groupStrategy"`
	DeviceNumber       int                  `json:"deviceNumber" validate:"gt=0"`
	RealInsertRate     float64              `json:"realInsertRate" validate:"gt=0,lte=1"`
	SensorNumber       int                  `json:"sensorNumber" validate:"gt=0"`
	DataTypeProportion string               `json:"dataTypeProportion" validate:"required"`

	BatchSize               int            `json:"batchSize" validate:"gt=0"`
	WorkloadBufferSize      int            `json:"workloadBufferSize" validate:"gt=0"`
	StartTime               time.Time      `json:"startTime"`
	TimestampPrecision      Precision      `json:"timestampPrecision"`
	PointStep               int64          `json:"pointStep" validate:"gt=0"`
	OutOfOrder              bool           `json:"outOfOrder"`
	OverflowMode            OverflowMode   `json:"overflowMode"`
	OverflowRatio           float64        `json:"overflowRatio" validate:"gte=0,lte=1"`
	Lambda                  float64        `json:"lambda" validate:"gt=0"`
	MaxK                    int            `json:"maxK" validate:"gt=0"`
	RandomTimestampInterval bool           `json:"randomTimestampInterval"`
	DecimalDigits           int            `json:"decimalDigits" validate:"gte=0,lte=9"`
	DataSeed                int64          `json:"dataSeed"`
	FunctionRatios          FunctionRatios `json:"functionRatios"`

	QuerySeed              int64       `json:"querySeed"`
	QueryDeviceNum         int         `json:"queryDeviceNum"`
	QuerySensorNum         int         `json:"querySensorNum"`
	QueryInterval          int64       `json:"queryInterval" validate:"gte=0"`
	StepSize               int64       `json:"stepSize" validate:"gte=0"`
	QueryAggregateFunction string      `json:"queryAggregateFunction" validate:"required"`
	UDFs                   []UDFConfig `json:"udfs" validate:"dive"`

	WriteTimeout time.Duration `json:"writeTimeout" validate:"gt=0"`
	ReadTimeout  time.Duration `json:"readTimeout" validate:"gt=0"`

	Injection InjectionConfig `json:"injection"`
	Database  DatabaseConfig  `json:"database"`
	Results   ResultsConfig   `json:"results"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// FunctionRatios weights the five synthesis function categories. Only relative values matter.
type FunctionRatios struct {
	Constant float64 `json:"constant" validate:"gte=0"`
	Linear   float64 `json:"linear" validate:"gte=0"`
	Random   float64 `json:"random" validate:"gte=0"`
	Sin      float64 `json:"sin" validate:"gte=0"`
	Square   float64 `json:"square" validate:"gte=0"`
}

func (f FunctionRatios) Total() float64 {
	return f.Constant + f.Linear + f.Random + f.Sin + f.Square
}

// UDFConfig describes a user defined function used by function range queries. AcceptedTypes has one
// entry per input series; each entry lists the data types that input accepts.
type UDFConfig struct {
	Name          string              `json:"name" validate:"required"`
	ClassName     string              `json:"className"`
	AcceptedTypes [][]schema.DataType `json:"acceptedTypes" validate:"required,min=1"`
	Arguments     map[string]string   `json:"arguments,omitempty"`
}

type InjectionConfig struct {
	PointMissingRate  float64 `json:"pointMissingRate" validate:"gte=0,lte=1"`
	PacketMissingRate float64 `json:"packetMissingRate" validate:"gte=0,lte=1"`
	PacketSize        int     `json:"packetSize" validate:"gte=0"`
	Seed              int64   `json:"seed"`
}

func (i InjectionConfig) Enabled() bool {
	return i.PointMissingRate > 0 || i.PacketMissingRate > 0
}

type DatabaseConfig struct {
	Type       DatabaseType      `json:"type"`
	Postgres   map[string]string `json:"postgres,omitempty"`
	Timescale  map[string]string `json:"timescale,omitempty"`
	SQLite     SQLiteConfig      `json:"sqlite"`
	ClickHouse map[string]string `json:"clickhouse,omitempty"`
	Redis      RedisConfig       `json:"redis"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

type RedisConfig struct {
	Addrs    []string `json:"addrs"`
	Password string   `json:"password,omitempty"`
	DB       int      `json:"db"`
}

type ResultsConfig struct {
	// Directory receiving the JSON result file and, if enabled, the CSV file. Empty disables both.
	Directory string            `json:"directory"`
	CSV       bool              `json:"csv"`
	Console   bool              `json:"console"`
	Postgres  map[string]string `json:"postgres,omitempty"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port" validate:"gte=0,lte=65535"`
}
