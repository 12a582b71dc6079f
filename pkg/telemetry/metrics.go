package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pvebulk/pvebulk/pkg/engine"
)

// Metrics provides Prometheus metrics for bulk runs. It implements
// engine.Recorder and dispatch.Recorder.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	lastRun       *prometheus.GaugeVec
	lastFailed    *prometheus.GaugeVec

	// Item metrics
	itemsProcessed *prometheus.CounterVec
	itemDuration   *prometheus.HistogramVec

	// Dispatch metrics
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of bulk runs completed",
			},
			[]string{"operation", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of bulk runs in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run of an operation finished",
			},
			[]string{"operation"},
		),
		lastFailed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_failed_items",
				Help:      "Number of failed items in the last run of an operation",
			},
			[]string{"operation"},
		),

		itemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_processed_total",
				Help:      "Total number of entity IDs processed",
			},
			[]string{"operation", "status"},
		),
		itemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "item_duration_seconds",
				Help:      "Duration of a single item in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),

		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Total number of platform commands executed",
			},
			[]string{"target", "result"},
		),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Duration of platform commands in seconds",
				Buckets:   buckets,
			},
			[]string{"target"},
		),
	}

	collectors := []prometheus.Collector{
		m.runsCompleted,
		m.runDuration,
		m.lastRun,
		m.lastFailed,
		m.itemsProcessed,
		m.itemDuration,
		m.dispatches,
		m.dispatchDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// ObserveItem records one finished item.
func (m *Metrics) ObserveItem(operation string, status engine.ItemStatus, duration time.Duration) {
	m.itemsProcessed.WithLabelValues(operation, string(status)).Inc()
	if status != engine.ItemSkipped {
		m.itemDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(summary *engine.Summary) {
	m.runsCompleted.WithLabelValues(summary.Operation, string(summary.Status())).Inc()
	m.runDuration.WithLabelValues(summary.Operation).Observe(summary.Duration.Seconds())
	m.lastRun.WithLabelValues(summary.Operation).Set(float64(summary.StartedAt.Add(summary.Duration).Unix()))
	m.lastFailed.WithLabelValues(summary.Operation).Set(float64(summary.Failed))
}

// ObserveDispatch records one executed command.
func (m *Metrics) ObserveDispatch(target string, exitCode int, duration time.Duration) {
	result := "success"
	switch {
	case exitCode < 0:
		result = "error"
	case exitCode > 0:
		result = "failure"
	}
	m.dispatches.WithLabelValues(target, result).Inc()
	m.dispatchDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// Registry returns the registry holding all metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics to the configured node exporter textfile.
// It is a no-op when no path is configured.
func (m *Metrics) WriteTextfile() error {
	if m.config.TextfilePath == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.config.TextfilePath, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
