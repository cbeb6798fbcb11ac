// Package metrics provides Prometheus collectors for the market-data service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Histogram bucket layout shared by the collectors in this package.
const (
	BucketStart10ms = 0.01
	BucketFactor2   = 2.0
	BucketCount12   = 12
)

// UpstreamMetrics contains Prometheus metrics for the upstream data clients
// (geocoder, ACS, PEP, TIGERweb, Walk Score).
type UpstreamMetrics struct {
	registry *prometheus.Registry

	fetchesTotal     *prometheus.CounterVec
	fetchErrorsTotal *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
}

// NewUpstreamMetrics creates and registers new upstream client metrics
func NewUpstreamMetrics(registry *prometheus.Registry) (*UpstreamMetrics, error) {
	m := &UpstreamMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *UpstreamMetrics) initMetrics() error {
	m.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetches_total",
			Help: "Total number of upstream fetch operations",
		},
		[]string{"source", "status"}, // source: geocoder, acs, pep, boundary, walkability
	)

	m.fetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fetch_errors_total",
			Help: "Total number of upstream fetch errors",
		},
		[]string{"source", "error_type"},
	)

	m.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "upstream_fetch_duration_seconds",
			Help: "Time taken for upstream fetch operations",
			// Buckets cover 10ms to ~20s; the Census geocoder can take
			// several seconds under load.
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
		[]string{"source"},
	)

	return nil
}

// Describe implements the Collector interface
func (m *UpstreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.fetchesTotal.Describe(ch)
	m.fetchErrorsTotal.Describe(ch)
	m.fetchDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *UpstreamMetrics) Collect(ch chan<- prometheus.Metric) {
	m.fetchesTotal.Collect(ch)
	m.fetchErrorsTotal.Collect(ch)
	m.fetchDuration.Collect(ch)
}

// RecordFetch records a completed upstream fetch
func (m *UpstreamMetrics) RecordFetch(source, status string) {
	m.fetchesTotal.WithLabelValues(source, status).Inc()
}

// RecordFetchError records an upstream fetch failure by error category
func (m *UpstreamMetrics) RecordFetchError(source, errorType string) {
	m.fetchErrorsTotal.WithLabelValues(source, errorType).Inc()
}

// RecordFetchDuration records the wall-clock duration of an upstream fetch
func (m *UpstreamMetrics) RecordFetchDuration(source string, seconds float64) {
	m.fetchDuration.WithLabelValues(source).Observe(seconds)
}
