package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSearchMetrics_RegistersFamilies(t *testing.T) {
	c := newTestCollector(t)
	m := NewSearchMetrics(c)

	m.QueriesTotal.WithLabelValues(KindSubstructure).Inc()
	m.CandidatesScreened.WithLabelValues(KindSubstructure).Add(10)
	m.ResultsEmitted.WithLabelValues(KindSimilarity).Inc()
	m.CodebookSelectivity.WithLabelValues(KindSubstructure).Observe(42)
	m.DocumentsIndexed.WithLabelValues().Inc()

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_queries_total{kind="substructure"} 1`)
	assert.Contains(t, out, `test_unit_candidates_screened_total{kind="substructure"} 10`)
	assert.Contains(t, out, `test_unit_results_emitted_total{kind="similarity"} 1`)
	assert.Contains(t, out, `test_unit_codebook_estimate_count{kind="substructure"} 1`)
	assert.Contains(t, out, "test_unit_documents_indexed_total 1")
}

func TestSearchMetrics_RecordHelpers(t *testing.T) {
	c := newTestCollector(t)
	m := NewSearchMetrics(c)

	m.RecordHTTPRequest("POST", "/api/v1/search/similarity", 200, 15*time.Millisecond)
	m.RecordRecount(time.Second, nil)
	m.RecordRecount(time.Second, errors.New("store down"))
	m.RecordIndexEvent("add", nil)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_requests_total{method="POST",path="/api/v1/search/similarity",status="200"} 1`)
	assert.Contains(t, out, `test_unit_codebook_recount_duration_seconds_count{status="ok"} 1`)
	assert.Contains(t, out, `test_unit_codebook_recount_duration_seconds_count{status="error"} 1`)
	assert.Contains(t, out, `test_unit_index_events_total{op="add",status="ok"} 1`)
}

func TestNopSearchMetrics(t *testing.T) {
	m := NewNopSearchMetrics()
	assert.NotPanics(t, func() {
		m.QueriesTotal.WithLabelValues(KindSimilarity).Inc()
		m.QueryDuration.WithLabelValues(KindSimilarity).Observe(1)
		m.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
		m.RecordRecount(time.Second, nil)
		m.RecordIndexEvent("remove", errors.New("x"))
	})
}
