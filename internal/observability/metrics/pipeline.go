package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for the aggregation pipeline
// and the persistent address cache.
type PipelineMetrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	partialResults   prometheus.Counter

	cacheOperationsTotal *prometheus.CounterVec
	cacheHitsTotal       prometheus.Counter
	cacheMissesTotal     prometheus.Counter
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() error {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_requests_total",
			Help: "Total number of market-data pipeline requests",
		},
		[]string{"status"}, // status: success, partial, error, cached
	)

	m.pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "End-to-end duration of market-data pipeline requests",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
	)

	m.partialResults = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_partial_results_total",
			Help: "Total number of responses assembled with one or more failed sections",
		},
	)

	m.cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of address cache operations",
		},
		[]string{"operation", "status"}, // operation: get, put, delete, list
	)

	m.cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of address cache hits",
		},
	)

	m.cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of address cache misses",
		},
	)

	return nil
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.pipelineDuration.Describe(ch)
	m.partialResults.Describe(ch)
	m.cacheOperationsTotal.Describe(ch)
	m.cacheHitsTotal.Describe(ch)
	m.cacheMissesTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.pipelineDuration.Collect(ch)
	m.partialResults.Collect(ch)
	m.cacheOperationsTotal.Collect(ch)
	m.cacheHitsTotal.Collect(ch)
	m.cacheMissesTotal.Collect(ch)
}

// RecordRequest records a completed pipeline request
func (m *PipelineMetrics) RecordRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// RecordPipelineDuration records the end-to-end pipeline duration
func (m *PipelineMetrics) RecordPipelineDuration(seconds float64) {
	m.pipelineDuration.Observe(seconds)
}

// RecordPartialResult records a response assembled with failed sections
func (m *PipelineMetrics) RecordPartialResult() {
	m.partialResults.Inc()
}

// RecordCacheOperation records an address cache operation
func (m *PipelineMetrics) RecordCacheOperation(operation, status string) {
	m.cacheOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCacheHit records an address cache hit
func (m *PipelineMetrics) RecordCacheHit() {
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss records an address cache miss
func (m *PipelineMetrics) RecordCacheMiss() {
	m.cacheMissesTotal.Inc()
}
