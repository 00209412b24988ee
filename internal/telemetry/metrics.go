// Package telemetry registers the service's Prometheus collectors:
// engine round trips, ingestion volume, and catalogue query executions.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors on a private registry so tests can run
// many instances without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	engineRequests *prometheus.CounterVec
	engineLatency  *prometheus.HistogramVec

	ingestDocuments *prometheus.CounterVec
	ingestBatches   *prometheus.CounterVec

	queryExecutions *prometheus.CounterVec
	queryLatency    *prometheus.HistogramVec
}

// New creates a Metrics with its own registry, including the standard Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		engineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ewbsearch",
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Engine HTTP round trips by method and status code.",
		}, []string{"method", "code"}),
		engineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ewbsearch",
			Subsystem: "engine",
			Name:      "request_duration_seconds",
			Help:      "Engine HTTP round trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ingestDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ewbsearch",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Documents sent to the engine per collection.",
		}, []string{"collection"}),
		ingestBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ewbsearch",
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Update batches sent to the engine per collection.",
		}, []string{"collection"}),
		queryExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ewbsearch",
			Subsystem: "query",
			Name:      "executions_total",
			Help:      "Catalogue query executions by query id and outcome.",
		}, []string{"query", "outcome"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ewbsearch",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Catalogue query latency by query id.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
	}
	reg.MustRegister(
		m.engineRequests, m.engineLatency,
		m.ingestDocuments, m.ingestBatches,
		m.queryExecutions, m.queryLatency,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for test scraping.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// InstrumentHTTPClient wraps a client's transport so every engine round
// trip is counted and timed.
func (m *Metrics) InstrumentHTTPClient(client *http.Client) *http.Client {
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	instrumented := promhttp.InstrumentRoundTripperCounter(m.engineRequests,
		promhttp.InstrumentRoundTripperDuration(m.engineLatency, transport))
	return &http.Client{
		Transport:     instrumented,
		Timeout:       client.Timeout,
		CheckRedirect: client.CheckRedirect,
		Jar:           client.Jar,
	}
}

// ObserveDocuments records documents shipped to a collection.
func (m *Metrics) ObserveDocuments(collection string, n int) {
	m.ingestDocuments.WithLabelValues(collection).Add(float64(n))
	m.ingestBatches.WithLabelValues(collection).Inc()
}

// ObserveQuery records one catalogue query execution.
func (m *Metrics) ObserveQuery(id string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.queryExecutions.WithLabelValues(id, outcome).Inc()
	m.queryLatency.WithLabelValues(id).Observe(d.Seconds())
}
