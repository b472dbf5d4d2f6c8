package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/victoralfred/varbacktest/internal/core/domain"
	"github.com/victoralfred/varbacktest/internal/report"
)

// MockReportRepository is a mock implementation of ports.ReportRepository for testing
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Save(ctx context.Context, r *report.Report) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*report.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.Report), args.Error(1)
}

func (m *MockReportRepository) List(ctx context.Context, limit int) ([]*report.Report, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*report.Report), args.Error(1)
}

// MockResultCache is a mock implementation of ports.ResultCache for testing
type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Get(ctx context.Context, e domain.ExceedanceSeries, confidence float64) (*domain.Evaluation, bool, error) {
	args := m.Called(ctx, e, confidence)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Evaluation), args.Bool(1), args.Error(2)
}

func (m *MockResultCache) Set(ctx context.Context, e domain.ExceedanceSeries, confidence float64, eval *domain.Evaluation) error {
	args := m.Called(ctx, e, confidence, eval)
	return args.Error(0)
}

// MockRecorder is a mock implementation of ports.Recorder for testing
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) ObserveRun(outcome string, duration time.Duration) {
	m.Called(outcome, duration)
}

func (m *MockRecorder) ObserveTest(result domain.TestResult) {
	m.Called(result)
}

func (m *MockRecorder) IncDegenerate() {
	m.Called()
}

func (m *MockRecorder) ObserveCacheLookup(hit bool) {
	m.Called(hit)
}
