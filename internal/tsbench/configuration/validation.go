package configuration

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
	commonconfig "github.com/tsbench/tsbench/internal/common/config"
	"github.com/tsbench/tsbench/internal/tsbench/scheduler"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
)

// Validate checks struct tags and cross-field rules. Every violation is reported as a
// bencherrors.ErrConfig; all of them are returned together.
func (c *TestConfig) Validate() error {
	var result *multierror.Error
	appendErr := func(err error) {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	appendErr(validateTags(c))

	table, err := scheduler.ParseProportionTable(c.OperationProportion)
	appendErr(err)
	types, err := schema.ParseTypeAssignment(c.DataTypeProportion)
	appendErr(err)

	if c.GroupNumber > c.DeviceNumber {
		appendErr(bencherrors.NewConfigError("groupNumber", c.GroupNumber, "must not exceed deviceNumber (%d)", c.DeviceNumber))
	}
	if c.ClientBind && c.ClientNumber > c.DeviceNumber {
		appendErr(bencherrors.NewConfigError("clientNumber", c.ClientNumber,
			"must not exceed deviceNumber (%d) when clients are bound to devices", c.DeviceNumber))
	}
	if c.OutOfOrder && c.OverflowMode != OverflowPoisson && c.OverflowMode != OverflowLocalReorder {
		appendErr(bencherrors.NewConfigError("overflowMode", c.OverflowMode, "must be 0 (poisson) or 1 (local reorder)"))
	}
	if c.FunctionRatios.Total() <= 0 {
		appendErr(bencherrors.NewConfigError("functionRatios", c.FunctionRatios, "at least one ratio must be positive"))
	}
	if active := c.ActiveDeviceNumber(); c.QueryDeviceNum <= 0 || c.QueryDeviceNum > active {
		appendErr(bencherrors.NewConfigError("queryDeviceNum", c.QueryDeviceNum, "must be in [1, %d], the number of written devices", active))
	}
	if c.QuerySensorNum <= 0 || c.QuerySensorNum > c.SensorNumber {
		appendErr(bencherrors.NewConfigError("querySensorNum", c.QuerySensorNum, "must be in [1, sensorNumber (%d)]", c.SensorNumber))
	}
	if table != nil && table.Weight(scheduler.FunctionRangeQuery) > 0 && len(c.UDFs) == 0 {
		appendErr(bencherrors.NewConfigError("udfs", "[]", "at least one udf is required when RANGED_UDF has a positive weight"))
	}
	seen := map[string]bool{}
	for _, udf := range c.UDFs {
		if seen[udf.Name] {
			appendErr(bencherrors.NewConfigError("udfs", udf.Name, "udf names must be unique"))
		}
		seen[udf.Name] = true
	}
	if types != nil {
		appendErr(c.checkUDFAvailability(types))
	}
	if c.Injection.PacketMissingRate > 0 && c.Injection.PacketSize <= 0 {
		appendErr(bencherrors.NewConfigError("injection.packetSize", c.Injection.PacketSize, "must be positive when packetMissingRate is set"))
	}
	appendErr(c.Database.validate())
	if c.Metrics.Enabled && c.Metrics.Port == 0 {
		appendErr(bencherrors.NewConfigError("metrics.port", c.Metrics.Port, "must be set when metrics are enabled"))
	}

	return result.ErrorOrNil()
}

// CheckUDFAvailability fails if some UDF input accepts no data type that any sensor is assigned.
func (c *TestConfig) CheckUDFAvailability() error {
	types, err := schema.ParseTypeAssignment(c.DataTypeProportion)
	if err != nil {
		return err
	}
	return c.checkUDFAvailability(types)
}

func (c *TestConfig) checkUDFAvailability(types *schema.TypeAssignment) error {
	for _, udf := range c.UDFs {
		for input, accepted := range udf.AcceptedTypes {
			available := false
			for _, dt := range accepted {
				if types.Possible(dt, c.SensorNumber) {
					available = true
					break
				}
			}
			if !available {
				return bencherrors.NewConfigError("udfs", udf.Name,
					"no synthetic sensor has a data type accepted by input %d; check dataTypeProportion", input)
			}
		}
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	required := func(field string, m map[string]string) error {
		if len(m) == 0 {
			return bencherrors.NewConfigError(field, "", "connection parameters are required for database type %s", d.Type)
		}
		return nil
	}
	switch d.Type {
	case DatabasePostgres:
		return required("database.postgres", d.Postgres)
	case DatabaseTimescale:
		return required("database.timescale", d.Timescale)
	case DatabaseClickHouse:
		return required("database.clickhouse", d.ClickHouse)
	case DatabaseSQLite:
		if d.SQLite.Path == "" {
			return bencherrors.NewConfigError("database.sqlite.path", "", "must be set for database type sqlite")
		}
	case DatabaseRedis:
		if len(d.Redis.Addrs) == 0 {
			return bencherrors.NewConfigError("database.redis.addrs", "", "at least one address is required for database type redis")
		}
	case DatabaseMemory:
	default:
		return bencherrors.NewConfigError("database.type", d.Type, "unknown database type")
	}
	return nil
}

func validateTags(c *TestConfig) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	commonconfig.LogValidationErrors(err)

	var result *multierror.Error
	for _, fieldErr := range validationErrors {
		field := fieldErr.Namespace()
		if idx := strings.Index(field, "."); idx != -1 {
			field = field[idx+1:]
		}
		message := "is required"
		if fieldErr.Tag() != "required" {
			message = "must satisfy " + fieldErr.Tag()
			if fieldErr.Param() != "" {
				message += "=" + fieldErr.Param()
			}
		}
		result = multierror.Append(result, bencherrors.NewConfigError(field, fieldErr.Value(), "%s", message))
	}
	return result.ErrorOrNil()
}
