package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	ServiceName string
	Environment string
}

// SyncMetrics records per-date pipeline outcomes.
type SyncMetrics struct {
	registry *prometheus.Registry

	rows         prometheus.Counter
	observations prometheus.Counter
	dropped      *prometheus.CounterVec
	points       *prometheus.CounterVec
	warnings     prometheus.Counter
	runs         *prometheus.CounterVec
	duration     prometheus.Histogram
	lastSuccess  prometheus.Gauge
}

func NewSyncMetrics(cfg Config) *SyncMetrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "inventory-sync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": serviceName, "env": environment}

	m := &SyncMetrics{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "inventory_sync_rows_total",
			Help:        "Raw upstream rows received.",
			ConstLabels: constLabels,
		}),
		observations: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "inventory_sync_observations_total",
			Help:        "Rows normalized into observations.",
			ConstLabels: constLabels,
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "inventory_sync_dropped_rows_total",
			Help:        "Rows dropped before merging.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "inventory_sync_points_total",
			Help:        "Inventory points committed.",
			ConstLabels: constLabels,
		}, []string{"region"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "inventory_sync_warnings_total",
			Help:        "Validator warnings.",
			ConstLabels: constLabels,
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "inventory_sync_runs_total",
			Help:        "Per-date runs by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "inventory_sync_date_duration_seconds",
			Help:        "Wall time to process one data date.",
			ConstLabels: constLabels,
			Buckets:     []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "inventory_sync_last_success_timestamp_seconds",
			Help:        "Unix time of the last committed date.",
			ConstLabels: constLabels,
		}),
	}
	m.registry.MustRegister(m.rows, m.observations, m.dropped, m.points, m.warnings, m.runs, m.duration, m.lastSuccess)
	return m
}

func (m *SyncMetrics) ObserveRows(rowsIn, normalized, droppedShape, droppedRegion int) {
	m.rows.Add(float64(rowsIn))
	m.observations.Add(float64(normalized))
	m.dropped.WithLabelValues("shape").Add(float64(droppedShape))
	m.dropped.WithLabelValues("unknown_region").Add(float64(droppedRegion))
}

func (m *SyncMetrics) ObservePoints(byRegion map[string]int, warnings int) {
	for region, n := range byRegion {
		m.points.WithLabelValues(region).Add(float64(n))
	}
	m.warnings.Add(float64(warnings))
}

func (m *SyncMetrics) ObserveRun(status string, seconds float64, finishedUnix float64) {
	m.runs.WithLabelValues(status).Inc()
	m.duration.Observe(seconds)
	if status == "success" {
		m.lastSuccess.Set(finishedUnix)
	}
}

func (m *SyncMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile exports the registry for the node exporter textfile collector.
func (m *SyncMetrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
