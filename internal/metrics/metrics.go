// Package metrics exposes the agent's pull-based Prometheus surface.
// Counters only increase (reset on process restart), so external
// rate/increase computations over time windows stay well-defined.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/driftwatch/internal/fim"
)

// PathClass labels events by whether they touched a critical path.
const (
	ClassCritical = "critical"
	ClassOrdinary = "ordinary"
)

// Metrics holds the agent's Prometheus collectors. Safe for concurrent
// increment from the scan path and concurrent read from the exporter.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal    *prometheus.CounterVec
	filesMonitored prometheus.Gauge
	dirsMonitored  prometheus.Gauge
	lastScanTime   prometheus.Gauge
	agentUptime    prometheus.Gauge
	scanDuration   prometheus.Histogram
	scansPartial   prometheus.Counter

	startTime time.Time
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fim_events_total",
			Help: "Total number of FIM events detected",
		}, []string{"event_type", "path"}),
		filesMonitored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fim_files_monitored",
			Help: "Number of files currently being monitored",
		}),
		dirsMonitored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fim_directories_monitored",
			Help: "Number of directories currently being monitored",
		}),
		lastScanTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fim_last_scan_timestamp",
			Help: "Timestamp of last FIM scan",
		}),
		agentUptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fim_agent_uptime_seconds",
			Help: "FIM agent uptime in seconds",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "fim_scan_duration_seconds",
			Help: "Time spent scanning files",
		}),
		scansPartial: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fim_scans_partial_total",
			Help: "Scan passes abandoned at the deadline before completion",
		}),
		startTime: time.Now(),
	}

	m.registry.MustRegister(
		m.eventsTotal,
		m.filesMonitored,
		m.dirsMonitored,
		m.lastScanTime,
		m.agentUptime,
		m.scanDuration,
		m.scansPartial,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordEvent counts one change event by kind and path class.
func (m *Metrics) RecordEvent(kind fim.ChangeKind, critical bool) {
	class := ClassOrdinary
	if critical {
		class = ClassCritical
	}
	m.eventsTotal.WithLabelValues(string(kind), class).Inc()
}

// ObserveScan records the outcome of one scan pass.
func (m *Metrics) ObserveScan(stats fim.ScanStats, at time.Time) {
	m.filesMonitored.Set(float64(stats.Files))
	m.dirsMonitored.Set(float64(stats.Dirs))
	m.lastScanTime.Set(float64(at.Unix()))
	m.scanDuration.Observe(stats.Duration.Seconds())
	if stats.Partial {
		m.scansPartial.Inc()
	}
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.agentUptime.Set(time.Since(m.startTime).Seconds())
}
