package prometheus

import (
	"strconv"
	"time"
)

// Query kinds used as the "kind" label.
const (
	KindSubstructure = "substructure"
	KindSimilarity   = "similarity"
)

// SearchMetrics holds the molsearch metric families.
type SearchMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Query pipeline
	QueriesTotal        CounterVec
	QueryDuration       HistogramVec
	CandidatesScreened  CounterVec
	CandidatesVerified  CounterVec
	ResultsEmitted      CounterVec
	WorkerFailures      CounterVec
	DecodeFailures      CounterVec
	CodebookSelectivity HistogramVec
	GraphCacheHits      CounterVec
	GraphCacheMisses    CounterVec

	// Index maintenance
	DocumentsIndexed CounterVec
	DocumentsRemoved CounterVec
	RecountDuration  HistogramVec
	IndexEvents      CounterVec
}

var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultQueryDurationBuckets = []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30, 120}
	DefaultSelectivityBuckets   = []float64{0, 1, 10, 100, 1000, 10000, 100000, 1000000}
	DefaultRecountBuckets       = []float64{.01, .1, .5, 1, 5, 10, 30, 60, 300}
)

// NewSearchMetrics registers every metric family on collector.
func NewSearchMetrics(collector MetricsCollector) *SearchMetrics {
	return &SearchMetrics{
		HTTPRequestsTotal:   collector.RegisterCounter("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		HTTPRequestDuration: collector.RegisterHistogram("http_request_duration_seconds", "HTTP request latency", DefaultHTTPDurationBuckets, "method", "path"),

		QueriesTotal:        collector.RegisterCounter("queries_total", "Search queries started", "kind"),
		QueryDuration:       collector.RegisterHistogram("query_duration_seconds", "Time from query start to end-of-stream", DefaultQueryDurationBuckets, "kind"),
		CandidatesScreened:  collector.RegisterCounter("candidates_screened_total", "Candidates pulled by workers", "kind"),
		CandidatesVerified:  collector.RegisterCounter("candidates_verified_total", "Candidates that passed screening or verification", "kind"),
		ResultsEmitted:      collector.RegisterCounter("results_emitted_total", "Results handed to callers", "kind"),
		WorkerFailures:      collector.RegisterCounter("worker_failures_total", "Workers that terminated with an error", "kind"),
		DecodeFailures:      collector.RegisterCounter("decode_failures_total", "Candidates skipped because their record failed to decode", "kind"),
		CodebookSelectivity: collector.RegisterHistogram("codebook_estimate", "Estimated candidate count of the selected codebook", DefaultSelectivityBuckets, "kind"),
		GraphCacheHits:      collector.RegisterCounter("graph_cache_hits_total", "Decoded graph cache hits"),
		GraphCacheMisses:    collector.RegisterCounter("graph_cache_misses_total", "Decoded graph cache misses"),

		DocumentsIndexed: collector.RegisterCounter("documents_indexed_total", "Documents added or updated"),
		DocumentsRemoved: collector.RegisterCounter("documents_removed_total", "Documents removed", "mode"),
		RecountDuration:  collector.RegisterHistogram("codebook_recount_duration_seconds", "Codebook recount latency", DefaultRecountBuckets, "status"),
		IndexEvents:      collector.RegisterCounter("index_events_total", "Index events consumed from kafka", "op", "status"),
	}
}

// NewNopSearchMetrics returns metrics that record nothing.
func NewNopSearchMetrics() *SearchMetrics {
	return &SearchMetrics{
		HTTPRequestsTotal:   noopCounterVec{},
		HTTPRequestDuration: noopHistogramVec{},
		QueriesTotal:        noopCounterVec{},
		QueryDuration:       noopHistogramVec{},
		CandidatesScreened:  noopCounterVec{},
		CandidatesVerified:  noopCounterVec{},
		ResultsEmitted:      noopCounterVec{},
		WorkerFailures:      noopCounterVec{},
		DecodeFailures:      noopCounterVec{},
		CodebookSelectivity: noopHistogramVec{},
		GraphCacheHits:      noopCounterVec{},
		GraphCacheMisses:    noopCounterVec{},
		DocumentsIndexed:    noopCounterVec{},
		DocumentsRemoved:    noopCounterVec{},
		RecountDuration:     noopHistogramVec{},
		IndexEvents:         noopCounterVec{},
	}
}

// RecordHTTPRequest records one served request.
func (m *SearchMetrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRecount records one recount pass.
func (m *SearchMetrics) RecordRecount(duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RecountDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordIndexEvent records one consumed index event.
func (m *SearchMetrics) RecordIndexEvent(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.IndexEvents.WithLabelValues(op, status).Inc()
}
