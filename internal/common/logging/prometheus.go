package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// PrometheusHook implements zerolog.Hook
type PrometheusHook struct {
	counters map[zerolog.Level]prometheus.Counter
}

// NewPrometheusHook creates and registers Prometheus counters for each log level.
func NewPrometheusHook(registerer prometheus.Registerer) (*PrometheusHook, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tsbench_log_messages_total",
		Help: "Total number of log lines logged by level",
	}, []string{"level"})
	if err := registerer.Register(vec); err != nil {
		return nil, err
	}

	counters := make(map[zerolog.Level]prometheus.Counter)
	for _, level := range []zerolog.Level{
		zerolog.DebugLevel,
		zerolog.InfoLevel,
		zerolog.WarnLevel,
		zerolog.ErrorLevel,
	} {
		counters[level] = vec.WithLabelValues(level.String())
	}
	return &PrometheusHook{counters: counters}, nil
}

func (h *PrometheusHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if counter, ok := h.counters[level]; ok {
		counter.Inc()
	}
}
