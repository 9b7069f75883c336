package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/tsbench/tsbench/internal/common/logging"
	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

const (
	redisKeyPrefix = "tsbench:"
	// device schemas are stored as hashes of sensor to data type
	redisSchemaKey = redisKeyPrefix + "schema:"
	redisScanCount = 1000
)

// RedisDatabase stores each series in a sorted set scored by timestamp. Members are "<ts>:<value>" so points
// sharing a value stay distinct. Aggregates and UDFs are evaluated client side.
type RedisDatabase struct {
	config configuration.RedisConfig
	prefix string
	client redis.UniversalClient
}

func NewRedisDatabase(config configuration.RedisConfig, groupPrefix string) *RedisDatabase {
	return &RedisDatabase{config: config, prefix: groupPrefix}
}

func seriesRedisKey(group, device, sensor string) string {
	return redisKeyPrefix + group + ":" + device + ":" + sensor
}

func (r *RedisDatabase) Init(ctx context.Context) error {
	if r.client != nil {
		return nil
	}
	r.client = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    r.config.Addrs,
		Password: r.config.Password,
		DB:       r.config.DB,
	})
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	return nil
}

// Cleanup deletes every series and schema key of groups starting with the group prefix.
func (r *RedisDatabase) Cleanup(ctx context.Context) error {
	if r.prefix == "" {
		return errors.New("refusing to clean up without a group name prefix")
	}
	deleted := 0
	for _, pattern := range []string{redisKeyPrefix + r.prefix + "*", redisSchemaKey + r.prefix + "*"} {
		iter := r.client.Scan(ctx, 0, pattern, redisScanCount).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scanning %s: %w", pattern, err)
		}
		for start := 0; start < len(keys); start += redisScanCount {
			batch := keys[start:min(start+redisScanCount, len(keys))]
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("deleting keys: %w", err)
			}
		}
		deleted += len(keys)
	}
	logging.Infof("Deleted %d redis keys with prefix %s", deleted, r.prefix)
	return nil
}

func (r *RedisDatabase) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisDatabase) RegisterSchema(ctx context.Context, devices []*schema.DeviceSchema) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, device := range devices {
			fields := make([]any, 0, 2*len(device.Sensors))
			for i, sensor := range device.Sensors {
				fields = append(fields, sensor, device.Types[i].String())
			}
			pipe.HSet(ctx, redisSchemaKey+device.Group+":"+device.Device, fields...)
		}
		return nil
	})
	return err
}

func (r *RedisDatabase) InsertBatch(ctx context.Context, batch *workload.Batch) Status {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, sensor := range batch.Device.Sensors {
			members := make([]redis.Z, len(batch.Records))
			for j, record := range batch.Records {
				members[j] = redis.Z{
					Score:  float64(record.Timestamp),
					Member: strconv.FormatInt(record.Timestamp, 10) + ":" + fmt.Sprint(record.Values[i]),
				}
			}
			pipe.ZAdd(ctx, seriesRedisKey(batch.Device.Group, batch.Device.Device, sensor), members...)
		}
		return nil
	})
	if err != nil {
		return Failed(fmt.Errorf("inserting %d records of %s: %w", len(batch.Records), batch.Device, err))
	}
	return Succeeded(batch.PointCount())
}

// window returns the values of one series between start and end inclusive, in timestamp order.
func (r *RedisDatabase) window(ctx context.Context, device *schema.DeviceSchema, sensor string, start, end int64) ([]any, error) {
	members, err := r.client.ZRangeByScore(ctx, seriesRedisKey(device.Group, device.Device, sensor), &redis.ZRangeBy{
		Min: strconv.FormatInt(start, 10),
		Max: strconv.FormatInt(end, 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(members))
	for i, member := range members {
		values[i] = decodeRedisValue(member)
	}
	return values, nil
}

func decodeRedisValue(member string) any {
	_, raw, found := strings.Cut(member, ":")
	if !found {
		return member
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func (r *RedisDatabase) RangeQuery(ctx context.Context, query *workload.RangeQuery) Status {
	points := 0
	for _, device := range query.Devices {
		for _, sensor := range device.Sensors {
			values, err := r.window(ctx, device, sensor, query.Start, query.End)
			if err != nil {
				return Failed(fmt.Errorf("range query on %s.%s: %w", device, sensor, err))
			}
			points += len(values)
		}
	}
	return Succeeded(points)
}

func (r *RedisDatabase) AggRangeQuery(ctx context.Context, query *workload.AggRangeQuery) Status {
	points := 0
	for _, device := range query.Devices {
		for _, sensor := range device.Sensors {
			values, err := r.window(ctx, device, sensor, query.Start, query.End)
			if err != nil {
				return Failed(fmt.Errorf("aggregate query on %s.%s: %w", device, sensor, err))
			}
			if _, err := aggregate(query.Function, values); err != nil {
				return Failed(err)
			}
			points++
		}
	}
	return Succeeded(points)
}

func (r *RedisDatabase) FunctionRangeQuery(ctx context.Context, query *workload.FunctionRangeQuery) Status {
	fn := functionName(query.UDF.Name, query.UDF.ClassName)
	points := 0
	for _, device := range query.Devices {
		for _, group := range udfInputs(device.Sensors, len(query.UDF.AcceptedTypes)) {
			inputs := make([][]any, len(group))
			for i, sensor := range group {
				values, err := r.window(ctx, device, sensor, query.Start, query.End)
				if err != nil {
					return Failed(fmt.Errorf("udf %s on %s.%s: %w", query.UDF.Name, device, sensor, err))
				}
				inputs[i] = values
			}
			if _, err := applyFunction(fn, inputs); err != nil {
				return Failed(err)
			}
			points++
		}
	}
	return Succeeded(points)
}
