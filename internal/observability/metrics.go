// Package observability holds the Prometheus metrics and Pushgateway export
// shared by the service and the batch commands. Logging comes from the
// shared storm-data observability package.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climate_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// feature pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec   // labels: outcome={success,error,sink_error}
	StageDuration   *prometheus.HistogramVec // labels: stage={acquire,build,encode,publish,feature_store,notify}
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Dataset shape metrics, set on every successful build.
	DatasetRows    *prometheus.GaugeVec // labels: kind={local,teleconnection,joined,dropped,kept}
	PositiveLabels prometheus.Gauge

	// CDS acquisition metrics.
	CDSRequests *prometheus.CounterVec // labels: outcome={success,skipped,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600, 1800},
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		DatasetRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Row counts of the last build by kind.",
		}, []string{"kind"}),
		PositiveLabels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "positive_labels",
			Help:      "Rows labeled as thermal anomalies in the last build.",
		}),
		CDSRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cds_requests_total",
			Help:      "CDS retrievals by outcome.",
		}, []string{"outcome"}),
	}
}

// Collectors lists every metric for registration or pushing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.StageDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.DatasetRows,
		m.PositiveLabels,
		m.CDSRequests,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
