// Package ports declares the collaborators the backtest service depends on.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/victoralfred/varbacktest/internal/core/domain"
	"github.com/victoralfred/varbacktest/internal/report"
)

// ReportRepository persists completed backtest reports
type ReportRepository interface {
	Save(ctx context.Context, r *report.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*report.Report, error)
	List(ctx context.Context, limit int) ([]*report.Report, error)
}

// ResultCache memoizes evaluations. The three tests depend only on the
// exceedance series and the confidence level, so those form the key.
type ResultCache interface {
	Get(ctx context.Context, e domain.ExceedanceSeries, confidence float64) (*domain.Evaluation, bool, error)
	Set(ctx context.Context, e domain.ExceedanceSeries, confidence float64, eval *domain.Evaluation) error
}

// Recorder receives backtest measurements
type Recorder interface {
	ObserveRun(outcome string, duration time.Duration)
	ObserveTest(result domain.TestResult)
	IncDegenerate()
	ObserveCacheLookup(hit bool)
}
