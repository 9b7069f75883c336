package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"github.com/tsbench/tsbench/internal/common/bencherrors"
	"github.com/tsbench/tsbench/internal/common/logging"
	"github.com/tsbench/tsbench/internal/tsbench/configuration"
	"github.com/tsbench/tsbench/internal/tsbench/db"
	"github.com/tsbench/tsbench/internal/tsbench/injector"
	"github.com/tsbench/tsbench/internal/tsbench/measurement"
	"github.com/tsbench/tsbench/internal/tsbench/scheduler"
	"github.com/tsbench/tsbench/internal/tsbench/workload"
)

// At most failureLogBurst failures are logged at once per worker, then one per failureLogInterval.
const (
	failureLogInterval = time.Second
	failureLogBurst    = 5
)

// QuerySource yields query parameters. *workload.Generator implements it.
type QuerySource interface {
	NextRangeQuery() (*workload.RangeQuery, error)
	NextAggRangeQuery() (*workload.AggRangeQuery, error)
	NextFunctionRangeQuery() (*workload.FunctionRangeQuery, error)
}

type Dependencies struct {
	Database db.Database
	Batches  BatchSource
	Queries  QuerySource
	Metrics  *measurement.ClientMetrics
	// Optional; nil leaves batches untouched
	Injector injector.Injector
	// Optional; defaults to the real clock
	Clock clock.Clock
}

// Worker is one benchmark client. It runs config.Loop scheduler cycles against the database, pacing operations
// to config.OpInterval. Database failures, timeouts and panics are recorded as failed operations; only
// configuration and generation errors stop the worker.
type Worker struct {
	id        int
	config    *configuration.TestConfig
	scheduler *scheduler.OperationScheduler
	deps      Dependencies
	clock     clock.Clock
	failures  *rate.Limiter
	logger    *logging.Logger
	completed atomic.Int64
	// failures not logged because of the rate limit
	suppressed int
}

func NewWorker(id int, config *configuration.TestConfig, table *scheduler.ProportionTable, deps Dependencies) *Worker {
	c := deps.Clock
	if c == nil {
		c = clock.RealClock{}
	}
	return &Worker{
		id:        id,
		config:    config,
		scheduler: scheduler.New(table),
		deps:      deps,
		clock:     c,
		failures:  rate.NewLimiter(rate.Every(failureLogInterval), failureLogBurst),
		logger:    logging.WithField("client", id),
	}
}

func (w *Worker) ID() int {
	return w.id
}

func (w *Worker) Metrics() *measurement.ClientMetrics {
	return w.deps.Metrics
}

// Progress returns the percentage of loops completed. Safe to call while the worker runs.
func (w *Worker) Progress() float64 {
	if w.config.Loop <= 0 {
		return 100
	}
	return float64(w.completed.Load()) * 100 / float64(w.config.Loop)
}

// Run signals ready, waits for start to be closed and then executes the workload. It returns early with the
// context's error when ctx is cancelled.
func (w *Worker) Run(ctx context.Context, ready *sync.WaitGroup, start <-chan struct{}) error {
	ready.Done()
	select {
	case <-start:
	case <-ctx.Done():
		return ctx.Err()
	}

	for loop := int64(0); loop < w.config.Loop; loop++ {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			kind := w.scheduler.Next()
			opStart := w.clock.Now()
			if err := w.execute(ctx, kind); err != nil {
				return err
			}
			if err := w.pace(ctx, opStart); err != nil {
				return err
			}
			if w.scheduler.IsCycleComplete() {
				break
			}
		}
		w.completed.Store(loop + 1)
	}
	if w.suppressed > 0 {
		w.logger.Warnf("%d further failures were not logged", w.suppressed)
	}
	return nil
}

// pace sleeps for what is left of the operation interval.
func (w *Worker) pace(ctx context.Context, opStart time.Time) error {
	remaining := w.config.OpInterval - w.clock.Since(opStart)
	if remaining <= 0 {
		return nil
	}
	select {
	case <-w.clock.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) execute(ctx context.Context, kind scheduler.Kind) error {
	switch kind {
	case scheduler.Ingest:
		return w.ingest(ctx)
	case scheduler.RangeQuery:
		query, err := w.deps.Queries.NextRangeQuery()
		if err != nil {
			return err
		}
		w.query(ctx, measurement.Key{Kind: kind, Variant: scheduler.NoVariant}, func(ctx context.Context) db.Status {
			return w.deps.Database.RangeQuery(ctx, query)
		})
	case scheduler.AggRangeQuery:
		query, err := w.deps.Queries.NextAggRangeQuery()
		if err != nil {
			return err
		}
		w.query(ctx, measurement.Key{Kind: kind, Variant: query.Function}, func(ctx context.Context) db.Status {
			return w.deps.Database.AggRangeQuery(ctx, query)
		})
	case scheduler.FunctionRangeQuery:
		for range w.config.UDFs {
			query, err := w.deps.Queries.NextFunctionRangeQuery()
			if err != nil {
				return err
			}
			w.query(ctx, measurement.Key{Kind: kind, Variant: query.UDF.Name}, func(ctx context.Context) db.Status {
				return w.deps.Database.FunctionRangeQuery(ctx, query)
			})
		}
	default:
		return bencherrors.NewGenerationError("unknown operation kind %d", kind)
	}
	return nil
}

func (w *Worker) ingest(ctx context.Context) error {
	batches, err := w.deps.Batches.NextBatches()
	if err != nil {
		return err
	}
	key := measurement.Key{Kind: scheduler.Ingest, Variant: scheduler.NoVariant}
	for _, batch := range batches {
		if w.deps.Injector != nil {
			batch = w.deps.Injector.Inject(batch)
		}
		if len(batch.Records) == 0 {
			continue
		}
		status := w.timed(ctx, key, w.config.WriteTimeout, func(ctx context.Context) db.Status {
			return w.deps.Database.InsertBatch(ctx, batch)
		})
		points := batch.PointCount()
		if !status.OK {
			w.deps.Metrics.RecordFailure(key, points, status.Elapsed)
			w.logFailure(key, status)
			continue
		}
		w.deps.Metrics.RecordOK(key, points, status.Elapsed)
		if !w.config.QuietMode {
			millis := float64(status.Elapsed) / float64(time.Millisecond)
			w.logger.Infof("insert one batch latency (device: %s, group: %s), %.2f ms, throughput %.2f points/s",
				batch.Device.Device, batch.Device.Group, millis, float64(points)/status.Elapsed.Seconds())
		}
	}
	return nil
}

func (w *Worker) query(ctx context.Context, key measurement.Key, call func(ctx context.Context) db.Status) {
	status := w.timed(ctx, key, w.config.ReadTimeout, call)
	if !status.OK {
		w.deps.Metrics.RecordFailure(key, 0, status.Elapsed)
		w.logFailure(key, status)
		return
	}
	w.deps.Metrics.RecordOK(key, status.Points, status.Elapsed)
	if !w.config.QuietMode {
		millis := float64(status.Elapsed) / float64(time.Millisecond)
		w.logger.Infof("complete %s with latency %.2f ms, %d result points", key, millis, status.Points)
	}
}

// timed runs call with a deadline of timeout. When the deadline passes first, the call's context is cancelled and
// a timeout status is returned without waiting for the call; a late result is discarded. A panicking call is
// reported as a failure.
func (w *Worker) timed(ctx context.Context, key measurement.Key, timeout time.Duration, call func(ctx context.Context) db.Status) db.Status {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := w.clock.Now()
	result := make(chan db.Status, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- db.Failed(errors.Errorf("panic during %s: %v", key, r))
			}
		}()
		result <- call(opCtx)
	}()

	var status db.Status
	select {
	case status = <-result:
	case <-opCtx.Done():
		cancel()
		if ctx.Err() != nil {
			status = db.Failed(ctx.Err())
		} else {
			status = db.Failed(&bencherrors.ErrTimeout{
				Operation: key.String(),
				Timeout:   timeout,
				Elapsed:   w.clock.Since(start),
			})
		}
	}
	status.Elapsed = w.clock.Since(start)
	if !status.OK && status.Err == nil {
		status.Err = errors.New("operation reported failure without an error")
	}
	return status
}

func (w *Worker) logFailure(key measurement.Key, status db.Status) {
	if !w.failures.Allow() {
		w.suppressed++
		return
	}
	err := &bencherrors.ErrOperation{Operation: key.Kind.String(), Variant: key.Variant, Cause: status.Err}
	if bencherrors.IsTimeout(status.Err) {
		w.logger.WithError(err).Warn("Operation timed out")
		return
	}
	w.logger.WithError(err).Error("Operation failed")
}
