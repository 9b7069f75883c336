package measurement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsbench/tsbench/internal/common/logging"
)

const metricsPrefix = "tsbench_"

// Exporter publishes live operation counters and latencies to Prometheus while a run is in progress.
type Exporter struct {
	operations *prometheus.CounterVec
	points     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func NewExporter() *Exporter {
	labels := []string{"operation", "variant", "status"}
	return &Exporter{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "operations_total",
			Help: "Operations executed against the database under test",
		}, labels),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "points_total",
			Help: "Points written or read; failed operations count the points they did not write",
		}, labels),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricsPrefix + "operation_latency_seconds",
			Help:    "Latency of operations against the database under test",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 18),
		}, labels),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	e.operations.Describe(ch)
	e.points.Describe(ch)
	e.latency.Describe(ch)
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.operations.Collect(ch)
	e.points.Collect(ch)
	e.latency.Collect(ch)
}

func (e *Exporter) Observe(key Key, ok bool, points int, latency time.Duration) {
	status := "ok"
	if !ok {
		status = "fail"
	}
	labels := prometheus.Labels{"operation": key.Kind.String(), "variant": key.Variant, "status": status}
	e.operations.With(labels).Inc()
	e.points.With(labels).Add(float64(points))
	e.latency.With(labels).Observe(latency.Seconds())
}

// Serve exposes gatherer on /metrics until ctx is cancelled.
func Serve(ctx context.Context, port int, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.WithError(err).Warn("Metrics server did not shut down cleanly")
		}
	}()
	logging.Infof("Serving metrics on :%d/metrics", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
