// Package metrics exposes backtest and HTTP measurements to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/victoralfred/varbacktest/internal/core/domain"
)

const namespace = "varbacktest"

// Metrics holds the collectors registered on a dedicated registry
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	statistics   *prometheus.HistogramVec
	pValues      *prometheus.HistogramVec
	degenerate   prometheus.Counter
	cacheLookups *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors. Go runtime and process collectors are
// included so a scrape shows service health alongside backtest counts.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Backtests run, by outcome",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a backtest run",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		statistics: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_statistic",
			Help:      "Likelihood-ratio statistic, by test",
			Buckets:   []float64{0.5, 1, 2, 3.84, 5.99, 10, 20, 50},
		}, []string{"test"}),
		pValues: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_p_value",
			Help:      "Likelihood-ratio p-value, by test",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1},
		}, []string{"test"}),
		degenerate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degenerate_independence_total",
			Help:      "Independence tests run on series without exceedances",
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups, by result",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRun(outcome string, duration time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveTest(result domain.TestResult) {
	m.statistics.WithLabelValues(string(result.Name)).Observe(result.Statistic)
	m.pValues.WithLabelValues(string(result.Name)).Observe(result.PValue)
}

func (m *Metrics) IncDegenerate() {
	m.degenerate.Inc()
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
