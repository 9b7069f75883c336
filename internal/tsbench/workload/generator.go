package workload

import (
	"math/rand"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/scheduler"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
)

// Generator produces ingest batches and query parameters for one client. It is not safe for concurrent use;
// the value cache it reads from is shared.
type Generator struct {
	config     *configuration.TestConfig
	schema     *schema.DataSchema
	cache      *ValueCache
	timestamps *TimestampPolicy
	queryRand  *rand.Rand
	queryLoops map[scheduler.Kind]int64
	udfLoop    int
}

// NewValueCache builds the value cache described by config.
func NewValueCache(config *configuration.TestConfig, catalogue *Catalogue) (*ValueCache, error) {
	types, err := schema.ParseTypeAssignment(config.DataTypeProportion)
	if err != nil {
		return nil, err
	}
	sensorTypes := make([]schema.DataType, config.SensorNumber)
	for i := range sensorTypes {
		sensorTypes[i] = types.TypeOf(i, config.SensorNumber)
	}
	functions, err := AssignFunctions(catalogue, config.FunctionRatios, config.SensorNumber, config.DataSeed)
	if err != nil {
		return nil, bencherrors.NewConfigError("functionRatios", config.FunctionRatios, "%v", err)
	}
	base := config.StartTimestamp()
	return BuildValueCache(CacheSpec{
		Types:         sensorTypes,
		Functions:     functions,
		BufferLength:  config.WorkloadBufferSize,
		Seed:          config.DataSeed,
		DecimalDigits: config.DecimalDigits,
		Timestamp: func(offset int64) int64 {
			return base + config.PointStep*offset
		},
	})
}

// NewGenerator validates the query parameters once and returns a generator whose query randomness is seeded
// with the query seed plus clientID.
func NewGenerator(config *configuration.TestConfig, ds *schema.DataSchema, cache *ValueCache, clientID int) (*Generator, error) {
	if config.QueryDeviceNum <= 0 || config.QueryDeviceNum > config.ActiveDeviceNumber() {
		return nil, bencherrors.NewConfigError("queryDeviceNum", config.QueryDeviceNum,
			"must be in [1, %d], the number of written devices", config.ActiveDeviceNumber())
	}
	if config.QuerySensorNum <= 0 || config.QuerySensorNum > config.SensorNumber {
		return nil, bencherrors.NewConfigError("querySensorNum", config.QuerySensorNum, "must be in [1, %d]", config.SensorNumber)
	}
	if err := config.CheckUDFAvailability(); err != nil {
		return nil, err
	}
	return &Generator{
		config:     config,
		schema:     ds,
		cache:      cache,
		timestamps: NewTimestampPolicy(config),
		queryRand:  rand.New(rand.NewSource(config.QuerySeed + int64(clientID))),
		queryLoops: map[scheduler.Kind]int64{},
	}, nil
}

// NextIngestBatch returns the loopIndex-th batch of device.
func (g *Generator) NextIngestBatch(device *schema.DeviceSchema, loopIndex int64) (*Batch, error) {
	offsets, err := g.timestamps.Offsets(device.DeviceID, loopIndex)
	if err != nil {
		return nil, err
	}
	batch := &Batch{Device: device, Records: make([]Record, len(offsets))}
	for i, offset := range offsets {
		values := make([]any, len(device.Sensors))
		for sensor := range values {
			values[sensor] = g.cache.Lookup(sensor, offset)
		}
		batch.Records[i] = Record{Timestamp: g.timestamps.Timestamp(offset), Values: values}
	}
	return batch, nil
}

func (g *Generator) NextRangeQuery() (*RangeQuery, error) {
	q := g.rangeQuery(scheduler.RangeQuery, g.queryDevices())
	return &q, nil
}

func (g *Generator) NextAggRangeQuery() (*AggRangeQuery, error) {
	return &AggRangeQuery{
		RangeQuery: g.rangeQuery(scheduler.AggRangeQuery, g.queryDevices()),
		Function:   g.config.QueryAggregateFunction,
	}, nil
}

// NextFunctionRangeQuery rotates through the configured UDFs.
func (g *Generator) NextFunctionRangeQuery() (*FunctionRangeQuery, error) {
	if len(g.config.UDFs) == 0 {
		return nil, bencherrors.NewGenerationError("no udfs are configured")
	}
	udf := g.config.UDFs[g.udfLoop%len(g.config.UDFs)]
	g.udfLoop++
	devices, err := g.udfQueryDevices(udf)
	if err != nil {
		return nil, err
	}
	return &FunctionRangeQuery{
		RangeQuery: g.rangeQuery(scheduler.FunctionRangeQuery, devices),
		UDF:        udf,
	}, nil
}

func (g *Generator) rangeQuery(kind scheduler.Kind, devices []*schema.DeviceSchema) RangeQuery {
	loop := g.queryLoops[kind]
	g.queryLoops[kind] = loop + 1
	start := g.config.StartTimestamp() + loop*g.config.StepSize*g.config.PointStep
	return RangeQuery{Devices: devices, Start: start, End: start + g.config.QueryInterval}
}

func (g *Generator) shuffledDevices() []int {
	ids := g.queryRand.Perm(g.config.ActiveDeviceNumber())
	return ids[:g.config.QueryDeviceNum]
}

func (g *Generator) queryDevices() []*schema.DeviceSchema {
	ids := g.shuffledDevices()
	devices := make([]*schema.DeviceSchema, len(ids))
	for i, id := range ids {
		device := g.schema.Devices()[id]
		order := g.queryRand.Perm(len(device.Sensors))[:g.config.QuerySensorNum]
		devices[i] = restrict(device, order)
	}
	return devices
}

// udfQueryDevices picks, for every UDF input, a sensor whose type the input accepts. If the randomly chosen
// accepted type has no sensor the next accepted type is tried.
func (g *Generator) udfQueryDevices(udf configuration.UDFConfig) ([]*schema.DeviceSchema, error) {
	ids := g.shuffledDevices()
	devices := make([]*schema.DeviceSchema, len(ids))
	for i, id := range ids {
		device := g.schema.Devices()[id]
		byType := map[schema.DataType][]int{}
		for sensor, dt := range device.Types {
			byType[dt] = append(byType[dt], sensor)
		}

		var order []int
		for range g.config.QuerySensorNum {
			for _, accepted := range udf.AcceptedTypes {
				start := g.queryRand.Intn(len(accepted))
				var candidates []int
				for j := range accepted {
					if c := byType[accepted[(start+j)%len(accepted)]]; len(c) > 0 {
						candidates = c
						break
					}
				}
				if len(candidates) == 0 {
					return nil, bencherrors.NewGenerationError("device %s has no sensor accepted by udf %s", device, udf.Name)
				}
				order = append(order, candidates[g.queryRand.Intn(len(candidates))])
			}
		}
		devices[i] = restrict(device, order)
	}
	return devices, nil
}

func restrict(device *schema.DeviceSchema, sensors []int) *schema.DeviceSchema {
	restricted := &schema.DeviceSchema{
		Group:    device.Group,
		Device:   device.Device,
		DeviceID: device.DeviceID,
		Sensors:  make([]string, len(sensors)),
		Types:    make([]schema.DataType, len(sensors)),
	}
	for i, sensor := range sensors {
		restricted.Sensors[i] = device.Sensors[sensor]
		restricted.Types[i] = device.Types[sensor]
	}
	return restricted
}

// BuildSchema lays out the devices described by config.
func BuildSchema(config *configuration.TestConfig) (*schema.DataSchema, error) {
	types, err := schema.ParseTypeAssignment(config.DataTypeProportion)
	if err != nil {
		return nil, err
	}
	return schema.Build(schema.Layout{
		DeviceNumber:    config.DeviceNumber,
		SensorNumber:    config.SensorNumber,
		GroupNumber:     config.GroupNumber,
		GroupNamePrefix: config.GroupNamePrefix,
		GroupStrategy:   config.GroupStrategy,
		ClientNumber:    config.ClientNumber,
		Types:           types,
	})
}
