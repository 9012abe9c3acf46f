package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "metoffice2influx"

// Metrics holds the Prometheus collectors for the ingestion cycle.
type Metrics struct {
	Cycles        *prometheus.CounterVec // labels: outcome
	PointsWritten prometheus.Counter
	PointsSkipped prometheus.Counter
	MirrorErrors  prometheus.Counter

	ThrottleBackoff prometheus.Histogram
	FetchDuration   prometheus.Histogram
	WriteDuration   prometheus.Histogram

	LastSuccess      prometheus.Gauge
	SchedulerRunning prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build as
// many instances as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Ingestion cycles by outcome.",
		}, []string{"outcome"}),
		PointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_written_total",
			Help:      "Measurement points accepted by the sink.",
		}),
		PointsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_skipped_total",
			Help:      "Measurement points dropped before writing because they had no fields.",
		}),
		MirrorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_errors_total",
			Help:      "Batches that failed to publish to the Kafka mirror.",
		}),
		ThrottleBackoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "throttle_backoff_seconds",
			Help:      "Suspension computed from provider throttle notices.",
			Buckets:   []float64{0, 10, 30, 60, 120, 300, 600, 1800, 3600, 86400},
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Provider request duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		WriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_duration_seconds",
			Help:      "Sink write duration.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that wrote to the sink.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 while the continuous scheduler is active, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Cycles,
		m.PointsWritten,
		m.PointsSkipped,
		m.MirrorErrors,
		m.ThrottleBackoff,
		m.FetchDuration,
		m.WriteDuration,
		m.LastSuccess,
		m.SchedulerRunning,
	}
}
