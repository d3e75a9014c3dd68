package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records export activity on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runDuration      prometheus.Histogram
	runsTotal        prometheus.Counter
	runFailures      prometheus.Counter
	tablesExported   prometheus.Counter
	tableFailures    prometheus.Counter
	rowsExported     prometheus.Counter
	bytesWritten     prometheus.Counter
	lastRunTime      prometheus.Gauge
	lastRunSuccess   prometheus.Gauge
	lastRunArtifacts prometheus.Gauge
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "csvexport"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of export runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of export runs attempted",
		}),
		runFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Total number of export runs that aborted",
		}),
		tablesExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_exported_total",
			Help:      "Total number of tables exported to an artifact",
		}),
		tableFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_failures_total",
			Help:      "Total number of tables skipped because their export failed",
		}),
		rowsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_exported_total",
			Help:      "Total number of rows written to artifacts",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total size of artifacts written in bytes",
		}),
		lastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp",
			Help:      "Timestamp of the last export run",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "Whether the last export run completed (1) or aborted (0)",
		}),
		lastRunArtifacts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_artifacts",
			Help:      "Number of artifacts produced by the last export run",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runDuration,
		m.runsTotal,
		m.runFailures,
		m.tablesExported,
		m.tableFailures,
		m.rowsExported,
		m.bytesWritten,
		m.lastRunTime,
		m.lastRunSuccess,
		m.lastRunArtifacts,
	)

	return m
}

func (m *Metrics) RecordTableSuccess(rows, sizeBytes int64) {
	if m == nil {
		return
	}
	m.tablesExported.Inc()
	m.rowsExported.Add(float64(rows))
	m.bytesWritten.Add(float64(sizeBytes))
}

func (m *Metrics) RecordTableFailure() {
	if m == nil {
		return
	}
	m.tableFailures.Inc()
}

// RecordRun records a finished run. ok is false when the run aborted before
// exporting its tables.
func (m *Metrics) RecordRun(duration time.Duration, artifacts int, ok bool) {
	if m == nil {
		return
	}
	m.runsTotal.Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunTime.SetToCurrentTime()
	m.lastRunArtifacts.Set(float64(artifacts))
	if ok {
		m.lastRunSuccess.Set(1)
	} else {
		m.runFailures.Inc()
		m.lastRunSuccess.Set(0)
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
