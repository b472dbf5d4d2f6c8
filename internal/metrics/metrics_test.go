package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victoralfred/varbacktest/internal/core/domain"
	"github.com/victoralfred/varbacktest/internal/core/ports"
)

var _ ports.Recorder = (*Metrics)(nil)

func TestMetrics_Runs(t *testing.T) {
	m := New()

	m.ObserveRun("success", 2*time.Millisecond)
	m.ObserveRun("success", 3*time.Millisecond)
	m.ObserveRun("insufficient_data", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("insufficient_data")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestMetrics_TestsAndCache(t *testing.T) {
	m := New()

	m.ObserveTest(domain.TestResult{Name: domain.TestKupiecPOF, Statistic: 20.9, PValue: 0.00001})
	m.ObserveTest(domain.TestResult{Name: domain.TestChristoffersen, Statistic: 5.5, PValue: 0.019})
	m.IncDegenerate()
	m.ObserveCacheLookup(true)
	m.ObserveCacheLookup(false)
	m.ObserveCacheLookup(false)

	assert.Equal(t, 2, testutil.CollectAndCount(m.statistics))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degenerate))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRun("success", time.Millisecond)
	m.ObserveHTTP("POST", "/v1/backtests", 201, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `varbacktest_runs_total{outcome="success"} 1`)
	assert.Contains(t, string(body), `varbacktest_http_requests_total{method="POST",route="/v1/backtests",status="201"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.IncDegenerate()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.degenerate))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.degenerate))
}
