package backtest

import (
	"context"
	"time"

	"github.com/victoralfred/varbacktest/internal/core/domain"
	"github.com/victoralfred/varbacktest/internal/logging"
	"go.uber.org/zap"
)

// Logger writes backtest events with consistent field names
type Logger struct {
	logger *zap.Logger
}

// NewLogger wraps a zap logger. A nil logger discards everything.
func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("backtest")}
}

func (l *Logger) with(ctx context.Context) *zap.Logger {
	return logging.FromContext(ctx, l.logger)
}

// LogError logs a BacktestError at a level matching its severity
func (l *Logger) LogError(ctx context.Context, err *domain.BacktestError) {
	fields := []zap.Field{
		zap.String("error_code", string(err.Code)),
		zap.String("error_severity", string(err.Severity)),
		zap.String("error_category", string(err.Category)),
		zap.String("operation", err.Details.Operation),
		zap.Bool("retryable", err.IsTemporary()),
	}
	if len(err.Details.Actual) > 0 {
		fields = append(fields, zap.Any("actual", err.Details.Actual))
	}
	if len(err.Details.Expected) > 0 {
		fields = append(fields, zap.Any("expected", err.Details.Expected))
	}
	if len(err.Details.Constraints) > 0 {
		fields = append(fields, zap.Any("constraints", err.Details.Constraints))
	}
	if err.Cause != nil {
		fields = append(fields, zap.NamedError("cause", err.Cause))
	}

	logger := l.with(ctx)
	switch err.Severity {
	case domain.SeverityCritical, domain.SeverityHigh:
		logger.Error(err.Message, fields...)
	case domain.SeverityMedium:
		logger.Warn(err.Message, fields...)
	default:
		logger.Info(err.Message, fields...)
	}
}

// LogFailure logs any error, unpacking BacktestErrors
func (l *Logger) LogFailure(ctx context.Context, operation string, err error) {
	if be, ok := domain.AsBacktestError(err); ok {
		l.LogError(ctx, be)
		return
	}
	l.with(ctx).Error("backtest failed", zap.String("operation", operation), zap.Error(err))
}

// LogTestResult logs one likelihood-ratio outcome
func (l *Logger) LogTestResult(ctx context.Context, r domain.TestResult) {
	l.with(ctx).Debug("test computed",
		zap.String("test", string(r.Name)),
		zap.Float64("statistic", r.Statistic),
		zap.Float64("p_value", r.PValue),
		zap.Int("degrees_of_freedom", r.DegreesOfFreedom),
		zap.Bool("unavailable", r.Unavailable),
	)
}

// LogRunStart logs the inputs of a backtest
func (l *Logger) LogRunStart(ctx context.Context, symbol string, observations int, confidence, threshold float64) {
	l.with(ctx).Info("backtest started",
		zap.String("symbol", symbol),
		zap.Int("observations", observations),
		zap.Float64("confidence", confidence),
		zap.Float64("threshold", threshold),
	)
}

// LogRunComplete logs a finished backtest
func (l *Logger) LogRunComplete(ctx context.Context, symbol string, eval *domain.Evaluation, cached bool, duration time.Duration) {
	l.with(ctx).Info("backtest completed",
		zap.String("symbol", symbol),
		zap.Int("exceedances", eval.Coverage.Exceedances),
		zap.Float64("kupiec_p_value", eval.Coverage.PValue),
		zap.Float64("independence_p_value", eval.Independence.PValue),
		zap.Float64("conditional_p_value", eval.Conditional.PValue),
		zap.Bool("degenerate", eval.Independence.Degenerate),
		zap.Bool("cached", cached),
		zap.Duration("duration", duration),
	)
}

// LogDependency logs a cache or repository failure that did not fail the run
func (l *Logger) LogDependency(ctx context.Context, operation string, err error) {
	l.with(ctx).Warn("dependency unavailable", zap.String("operation", operation), zap.Error(err))
}
