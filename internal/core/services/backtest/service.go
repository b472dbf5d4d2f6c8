package backtest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/victoralfred/varbacktest/internal/core/domain"
	"github.com/victoralfred/varbacktest/internal/core/ports"
	"github.com/victoralfred/varbacktest/internal/report"
	"github.com/victoralfred/varbacktest/internal/returns"
	"go.uber.org/zap"
)

const (
	DefaultConfidence  = 0.99
	DefaultConcurrency = 4
)

// ErrPersistenceDisabled is returned by lookups when no repository is configured
var ErrPersistenceDisabled = errors.New("report persistence is not enabled")

// Request describes one backtest. Observations take precedence over
// Returns. When Threshold is nil the historical percentile of the
// returns at Confidence is used.
type Request struct {
	Symbol       string
	Observations []domain.Observation
	Returns      []float64
	Threshold    *float64
	Confidence   float64
}

// BatchResult pairs a batch request index with its outcome
type BatchResult struct {
	Index  int
	Report *report.Report
	Err    error
}

// Backtester runs exceedance detection and the three likelihood-ratio
// tests, with optional caching, persistence and metrics.
type Backtester struct {
	logger            *Logger
	cache             ports.ResultCache
	repo              ports.ReportRepository
	recorder          ports.Recorder
	concurrency       int
	defaultConfidence float64
}

// Option configures a Backtester
type Option func(*Backtester)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Backtester) { b.logger = NewLogger(logger) }
}

func WithCache(cache ports.ResultCache) Option {
	return func(b *Backtester) { b.cache = cache }
}

func WithRepository(repo ports.ReportRepository) Option {
	return func(b *Backtester) { b.repo = repo }
}

func WithRecorder(recorder ports.Recorder) Option {
	return func(b *Backtester) { b.recorder = recorder }
}

// WithConcurrency bounds the goroutines used by RunBatch
func WithConcurrency(n int) Option {
	return func(b *Backtester) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithDefaultConfidence sets the level used when a request leaves it zero
func WithDefaultConfidence(c float64) Option {
	return func(b *Backtester) { b.defaultConfidence = c }
}

// NewBacktester creates a Backtester
func NewBacktester(opts ...Option) *Backtester {
	b := &Backtester{
		logger:            NewLogger(nil),
		recorder:          nopRecorder{},
		concurrency:       DefaultConcurrency,
		defaultConfidence: DefaultConfidence,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PersistenceEnabled reports whether reports are stored
func (b *Backtester) PersistenceEnabled() bool {
	return b.repo != nil
}

// Run executes one backtest and returns its report
func (b *Backtester) Run(ctx context.Context, req Request) (*report.Report, error) {
	start := time.Now()

	r, eval, cached, err := b.run(ctx, req)
	if err != nil {
		b.logger.LogFailure(ctx, opEvaluate, err)
		b.recorder.ObserveRun(outcome(err), time.Since(start))
		return nil, err
	}

	b.recorder.ObserveRun("success", time.Since(start))
	b.logger.LogRunComplete(ctx, req.Symbol, eval, cached, time.Since(start))
	return r, nil
}

func (b *Backtester) run(ctx context.Context, req Request) (*report.Report, *domain.Evaluation, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, false, err
	}

	series, err := seriesFor(req)
	if err != nil {
		return nil, nil, false, err
	}

	confidence := req.Confidence
	if confidence == 0 {
		confidence = b.defaultConfidence
	}
	if _, err := domain.NewConfidenceLevel(confidence); err != nil {
		return nil, nil, false, err
	}

	var threshold float64
	if req.Threshold != nil {
		threshold = *req.Threshold
	} else {
		threshold, err = returns.HistoricalThreshold(series.Values(), confidence)
		if err != nil {
			return nil, nil, false, err
		}
	}

	b.logger.LogRunStart(ctx, req.Symbol, series.Len(), confidence, threshold)

	exceedances, err := DetectSeries(series, threshold)
	if err != nil {
		return nil, nil, false, err
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, false, err
	}

	eval, cached, err := b.evaluate(ctx, exceedances, confidence)
	if err != nil {
		return nil, nil, false, err
	}

	r := report.New(report.Input{
		Symbol:      req.Symbol,
		Confidence:  confidence,
		Threshold:   threshold,
		Series:      series,
		Exceedances: exceedances,
		Evaluation:  eval,
	})

	if b.repo != nil {
		if err := ctx.Err(); err != nil {
			return nil, nil, false, err
		}
		if err := b.repo.Save(ctx, r); err != nil {
			if _, ok := domain.AsBacktestError(err); !ok {
				err = domain.NewStorageError("save_report", err)
			}
			return nil, nil, false, err
		}
	}

	return r, eval, cached, nil
}

// evaluate consults the cache before running the tests. Cache failures
// degrade to a miss. Test metrics are recorded for hits and misses alike.
func (b *Backtester) evaluate(ctx context.Context, e domain.ExceedanceSeries, confidence float64) (*domain.Evaluation, bool, error) {
	if b.cache != nil {
		eval, found, err := b.cache.Get(ctx, e, confidence)
		if err != nil {
			b.logger.LogDependency(ctx, "cache_get", err)
		}
		b.recorder.ObserveCacheLookup(found)
		if found {
			b.record(ctx, eval)
			return eval, true, nil
		}
	}

	eval, err := Evaluate(e, confidence)
	if err != nil {
		return nil, false, err
	}
	b.record(ctx, eval)

	if b.cache != nil {
		if err := b.cache.Set(ctx, e, confidence, eval); err != nil {
			b.logger.LogDependency(ctx, "cache_set", err)
		}
	}

	return eval, false, nil
}

// record logs and observes each available result and any advisory
func (b *Backtester) record(ctx context.Context, eval *domain.Evaluation) {
	for _, t := range []domain.TestResult{eval.Coverage.TestResult, eval.Independence.TestResult, eval.Conditional} {
		b.logger.LogTestResult(ctx, t)
		if !t.Unavailable {
			b.recorder.ObserveTest(t)
		}
	}
	if eval.Independence.Degenerate {
		b.recorder.IncDegenerate()
	}
	if adv := eval.Independence.Advisory; adv != nil {
		b.logger.LogError(ctx, adv)
	}
}

// RunBatch runs independent backtests concurrently. Results keep the
// order of reqs; each carries its own error. The returned error is only
// set when ctx ends before the batch completes.
func (b *Backtester) RunBatch(ctx context.Context, reqs []Request) ([]BatchResult, error) {
	results := make([]BatchResult, len(reqs))

	p := pool.New().WithMaxGoroutines(b.concurrency)
	for i, req := range reqs {
		p.Go(func() {
			results[i].Index = i
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}
			results[i].Report, results[i].Err = b.Run(ctx, req)
		})
	}
	p.Wait()

	return results, ctx.Err()
}

// Get loads a stored report
func (b *Backtester) Get(ctx context.Context, id uuid.UUID) (*report.Report, error) {
	if b.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	return b.repo.GetByID(ctx, id)
}

// List returns the most recent stored reports
func (b *Backtester) List(ctx context.Context, limit int) ([]*report.Report, error) {
	if b.repo == nil {
		return nil, ErrPersistenceDisabled
	}
	return b.repo.List(ctx, limit)
}

func seriesFor(req Request) (domain.ReturnSeries, error) {
	if len(req.Observations) > 0 {
		return domain.NewReturnSeries(req.Observations)
	}
	return domain.NewReturnSeriesFromValues(req.Returns)
}

func outcome(err error) string {
	if be, ok := domain.AsBacktestError(err); ok {
		return strings.ToLower(string(be.Code))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(string, time.Duration) {}
func (nopRecorder) ObserveTest(domain.TestResult)    {}
func (nopRecorder) IncDegenerate()                   {}
func (nopRecorder) ObserveCacheLookup(bool)          {}
