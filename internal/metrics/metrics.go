// Package metrics exposes provisioning and worker counters on a private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zapret"

// Result labels for downloads.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Worker lifecycle events.
const (
	EventStart   = "start"
	EventStop    = "stop"
	EventRecover = "recover"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	downloads       *prometheus.CounterVec
	downloadedBytes *prometheus.CounterVec
	batches         *prometheus.CounterVec
	workerEvents    *prometheus.CounterVec
	workerRunning   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_downloads_total",
			Help:      "Asset downloads by phase and result.",
		}, []string{"phase", "result"}),
		downloadedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_downloaded_bytes_total",
			Help:      "Bytes written to the content store by phase.",
		}, []string{"phase"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provision_batches_total",
			Help:      "Executed download batches by result.",
		}, []string{"result"}),
		workerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_events_total",
			Help:      "Worker start, stop and recover operations.",
		}, []string{"event"}),
		workerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_running",
			Help:      "1 while a worker pid is tracked.",
		}),
	}

	m.registry.MustRegister(
		m.downloads,
		m.downloadedBytes,
		m.batches,
		m.workerEvents,
		m.workerRunning,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Download(phase, result string, bytes int64) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(phase, result).Inc()
	if bytes > 0 {
		m.downloadedBytes.WithLabelValues(phase).Add(float64(bytes))
	}
}

func (m *Metrics) Batch(result string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result).Inc()
}

func (m *Metrics) Worker(event string) {
	if m == nil {
		return
	}
	m.workerEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) WorkerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.workerRunning.Set(1)
	} else {
		m.workerRunning.Set(0)
	}
}
