// Package main provides tsbench, a load tester for time-series databases.
//
// tsbench synthesizes a reproducible workload of batched writes and range,
// aggregate and UDF queries, runs it from a pool of concurrent clients against
// one backend (PostgreSQL, TimescaleDB, SQLite, ClickHouse, Redis or an
// in-memory store) and reports per-operation throughput and latency
// percentiles.
package main
