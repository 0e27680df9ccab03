package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordQuery(t *testing.T) {
	m := New()
	m.RecordQuery("English", OutcomeGenerated, 10*time.Millisecond)
	m.RecordQuery("English", OutcomeCanned, time.Millisecond)
	m.RecordQuery("Arabic", OutcomeError, time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.queries.WithLabelValues("English", OutcomeGenerated)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.queries.WithLabelValues("Arabic", OutcomeError)), 0)

	snap := m.Snapshot()
	assert.EqualValues(t, 3, snap.QueriesTotal)
	assert.EqualValues(t, 1, snap.QueriesErrors)
	assert.EqualValues(t, 1, snap.QueriesCanned)
}

func TestRecordIndexBuild(t *testing.T) {
	m := New()
	m.SetCorpusStale(true)
	m.RecordIndexBuild(0, 0, errors.New("boom"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.indexBuilds.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.corpusStale), 0)

	m.RecordIndexBuild(12, time.Second, nil)
	assert.InDelta(t, 12, testutil.ToFloat64(m.indexChunks), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.corpusStale), 0)
}

func TestCacheHitRate(t *testing.T) {
	m := New()
	m.RecordCacheLookup("hit")
	m.RecordCacheLookup("miss")
	m.RecordCacheLookup("miss")
	m.RecordCacheLookup("error")

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.CacheHits)
	assert.EqualValues(t, 2, snap.CacheMisses)
	assert.InDelta(t, 1.0/3.0, snap.CacheHitRate, 1e-9)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordLLMCall("embed", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nphies_llm_calls_total{kind="embed",status="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
