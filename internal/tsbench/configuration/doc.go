/*
Package configuration defines the input configuration for the tsbench load tester.

tsbench drives a deterministic, synthetic time-series workload against a database backend
through a weighted mix of ingestion and query operations, and reports per operation latency
and throughput.

# Configuration Structure

The main configuration type is TestConfig, which defines:

  - The operation mix, loop count, client count and pacing
  - The device, group and sensor layout, and how devices are bound to clients
  - Workload synthesis: batch size, timestamps, out-of-order modes, data types and functions
  - Query parameters: devices and sensors per query, window, aggregate function and UDFs
  - Data quality injection (missing points and packets)
  - The database backend, result sinks and the Prometheus exporter

# Example YAML Configuration

	operationProportion: "1:1:1:1"
	loop: 10000
	clientNumber: 2
	clientBind: true
	deviceNumber: 20
	sensorNumber: 10
	groupNumber: 2
	groupStrategy: mod
	batchSize: 100
	timestampPrecision: ms
	pointStep: 7000
	outOfOrder: true
	overflowMode: 1
	overflowRatio: 0.5
	queryAggregateFunction: count
	udfs:
	  - name: stddev
	    acceptedTypes:
	      - [INT32, INT64, FLOAT, DOUBLE]
	database:
	  type: postgres
	  postgres:
	    host: localhost
	    port: "5432"
	    dbname: tsbench

Fields that are not set keep the value returned by Default().

# Validation

TestConfig.Validate() checks struct tags and the cross-field rules: proportion strings, query
device and sensor counts against the population, the overflow mode and the database section.
Every violation is a bencherrors.ErrConfig and all of them are returned at once.
*/

package configuration
