package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
	"github.com/tsbench/tsbench/internal/common/logging"
	"github.com/tsbench/tsbench/internal/tsbench/client"
	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/db"
	"github.com/tsbench/tsbench/internal/tsbench/injector"
	"github.com/tsbench/tsbench/internal/tsbench/measurement"
	"github.com/tsbench/tsbench/internal/tsbench/scheduler"
	"github.com/tsbench/tsbench/internal/tsbench/schema"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

// Runner orchestrates one benchmark run. It prepares the database, starts all
// clients together, waits for them to finish and reports the merged metrics.
type Runner struct {
	config configuration.TestConfig
	// overrides the database selected by config.Database when set
	database db.Database
	// receives the console report
	out io.Writer
}

type Option func(*Runner)

// WithDatabase makes the runner use database instead of the configured backend.
func WithDatabase(database db.Database) Option {
	return func(r *Runner) {
		r.database = database
	}
}

// WithOutput sets where the console report is printed. Defaults to stdout.
func WithOutput(out io.Writer) Option {
	return func(r *Runner) {
		r.out = out
	}
}

func NewRunner(config configuration.TestConfig, opts ...Option) *Runner {
	r := &Runner{
		config: config,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the benchmark.
//
// It performs the following steps:
//  1. Validates the configuration and lays out the devices
//  2. Connects to the database, optionally removes old data and registers the schema
//  3. Creates one worker per client and releases them together once all are ready
//  4. Waits for every worker, then merges their metrics
//  5. Writes the result to every configured sink
//
// Only configuration and generation errors fail the run; a fatal error in one
// worker cancels the others.
func (r *Runner) Run(ctx context.Context) (*measurement.TestResult, error) {
	logging.Info("Starting tsbench run")
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	logging.Infof("Operation proportion %s, %d clients, %d loops", r.config.OperationProportion, r.config.ClientNumber, r.config.Loop)

	table, err := scheduler.ParseProportionTable(r.config.OperationProportion)
	if err != nil {
		return nil, err
	}
	ds, err := workload.BuildSchema(&r.config)
	if err != nil {
		return nil, err
	}

	logging.Info("Building value cache")
	catalogue, err := workload.BuiltinCatalogue()
	if err != nil {
		return nil, err
	}
	cache, err := workload.NewValueCache(&r.config, catalogue)
	if err != nil {
		return nil, err
	}

	logging.Info("Initialising database connection")
	database := r.database
	if database == nil {
		database, err = db.New(r.config.Database, r.config.GroupNamePrefix)
		if err != nil {
			return nil, bencherrors.NewConfigError("database.type", r.config.Database.Type, "%v", err)
		}
	}
	if err := database.Init(ctx); err != nil {
		return nil, fmt.Errorf("initialising database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logging.WithError(err).Warn("Closing database failed")
		}
	}()

	var createSchemaTime time.Duration
	if r.config.DeleteData {
		logging.Info("Removing data of previous runs")
		if err := database.Cleanup(ctx); err != nil {
			return nil, fmt.Errorf("cleaning up database: %w", err)
		}
	}
	if r.config.CreateSchema {
		logging.Infof("Registering schema for %d devices in %d groups", len(ds.Devices()), len(ds.Groups()))
		start := time.Now()
		if err := database.RegisterSchema(ctx, ds.Devices()); err != nil {
			return nil, fmt.Errorf("registering schema: %w", err)
		}
		createSchemaTime = time.Since(start)
		logging.Infof("Schema registered in %s", createSchemaTime)
	}

	sketches, err := measurement.NewSketches(measurement.Keys(r.config.QueryAggregateFunction, r.config.UDFNames()))
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var observer measurement.Observer
	var serveWG sync.WaitGroup
	serveCtx, stopServing := context.WithCancel(ctx)
	defer func() {
		stopServing()
		serveWG.Wait()
	}()
	if r.config.Metrics.Enabled {
		exporter := measurement.NewExporter()
		registry := prometheus.NewRegistry()
		registry.MustRegister(exporter)
		observer = exporter
		serveWG.Go(func() {
			if err := measurement.Serve(serveCtx, r.config.Metrics.Port, registry); err != nil {
				logging.WithError(err).Error("Metrics server failed")
			}
		})
	}

	workers, err := r.newWorkers(ds, cache, table, database, sketches, observer)
	if err != nil {
		return nil, err
	}

	var ready, wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, len(workers))
	ready.Add(len(workers))
	for i, worker := range workers {
		wg.Go(func() {
			if err := worker.Run(runCtx, &ready, start); err != nil {
				errs[i] = err
				if bencherrors.IsFatal(err) {
					logging.WithError(err).Errorf("Client %d failed, stopping run", worker.ID())
					cancel()
				}
			}
		})
	}

	ready.Wait()
	logging.Infof("All %d clients ready, starting workload", len(workers))
	testStart := time.Now()
	close(start)

	done := make(chan struct{})
	var progressWG sync.WaitGroup
	progressWG.Go(func() { r.logProgress(done, workers) })
	wg.Wait()
	close(done)
	progressWG.Wait()
	elapsed := time.Since(testStart)

	for _, err := range errs {
		if bencherrors.IsFatal(err) {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logging.Infof("Workload complete in %s, collecting metrics", elapsed)

	global := measurement.NewGlobalMetrics()
	for _, worker := range workers {
		global.Merge(worker.Metrics())
	}
	global.Finalize(elapsed, sketches)
	global.CreateSchemaTime = createSchemaTime

	result := measurement.BuildTestResult(uuid.New(), r.config, global, time.Now())
	if err := r.writeResult(ctx, result); err != nil {
		return &result, err
	}
	logging.Info("tsbench run completed successfully")
	return &result, nil
}

func (r *Runner) newWorkers(
	ds *schema.DataSchema,
	cache *workload.ValueCache,
	table *scheduler.ProportionTable,
	database db.Database,
	sketches *measurement.Sketches,
	observer measurement.Observer,
) ([]*client.Worker, error) {
	activeFloor := r.config.ActiveDeviceNumber()
	var shared client.BatchSource
	if !r.config.ClientBind {
		generator, err := workload.NewGenerator(&r.config, ds, cache, 0)
		if err != nil {
			return nil, err
		}
		shared = client.NewSharedSource(generator, ds.Devices(), activeFloor)
	}

	workers := make([]*client.Worker, r.config.ClientNumber)
	for i := range workers {
		generator, err := workload.NewGenerator(&r.config, ds, cache, i)
		if err != nil {
			return nil, err
		}
		batches := shared
		if batches == nil {
			batches = client.NewBoundSource(generator, ds.ClientDevices(i), activeFloor)
		}
		workers[i] = client.NewWorker(i, &r.config, table, client.Dependencies{
			Database: database,
			Batches:  batches,
			Queries:  generator,
			Metrics:  measurement.NewClientMetrics(sketches, observer),
			Injector: injector.New(r.config.Injection, i),
		})
	}
	return workers, nil
}

// logProgress logs the completion of every client at LogPrintInterval until done is closed. It only reads the
// workers' atomic progress counters.
func (r *Runner) logProgress(done <-chan struct{}, workers []*client.Worker) {
	if r.config.LogPrintInterval <= 0 {
		return
	}
	ticker := time.NewTicker(r.config.LogPrintInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, worker := range workers {
				logging.WithField("client", worker.ID()).Infof("%.2f%% workload is done", worker.Progress())
			}
		}
	}
}

// writeResult sends the result to every configured sink. A failing sink does not stop the others.
func (r *Runner) writeResult(ctx context.Context, result measurement.TestResult) error {
	var errs *multierror.Error
	if dir := r.config.Results.Directory; dir != "" {
		path := measurement.ResultPath(dir, result.Metadata.RunID, "json")
		if err := measurement.WriteTestResultToFile(result, path); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("writing result file: %w", err))
		} else {
			logging.Infof("Test results written to: %s", path)
		}
		if r.config.Results.CSV {
			path := measurement.ResultPath(dir, result.Metadata.RunID, "csv")
			if err := measurement.WriteCSVToFile(result, path); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("writing csv file: %w", err))
			} else {
				logging.Infof("CSV results written to: %s", path)
			}
		}
	}
	if len(r.config.Results.Postgres) > 0 {
		if err := saveResult(ctx, r.config.Results.Postgres, result); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("storing result in postgres: %w", err))
		}
	}
	if r.config.Results.Console {
		measurement.PrintReport(r.out, result)
	}
	return errs.ErrorOrNil()
}

func saveResult(ctx context.Context, connection map[string]string, result measurement.TestResult) error {
	store, err := measurement.NewResultStore(ctx, connection)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(ctx, result)
}
