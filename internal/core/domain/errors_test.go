package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBacktestError_CreationAndBasicProperties tests basic error creation and properties
func TestBacktestError_CreationAndBasicProperties(t *testing.T) {
	tests := []struct {
		name        string
		code        ErrorCode
		expectedSev ErrorSeverity
		expectedCat ErrorCategory
		expectTemp  bool
		expectAdv   bool
	}{
		{
			name:        "insufficient data",
			code:        CodeInsufficientData,
			expectedSev: SeverityLow,
			expectedCat: CategoryValidation,
		},
		{
			name:        "invalid parameter",
			code:        CodeInvalidParameter,
			expectedSev: SeverityLow,
			expectedCat: CategoryValidation,
		},
		{
			name:        "numerical instability",
			code:        CodeNumericalInstability,
			expectedSev: SeverityHigh,
			expectedCat: CategoryCalculation,
		},
		{
			name:        "degenerate cluster is advisory",
			code:        CodeDegenerateCluster,
			expectedSev: SeverityLow,
			expectedCat: CategoryAdvisory,
			expectAdv:   true,
		},
		{
			name:        "unavailable independence is advisory",
			code:        CodeIndependenceUnavailable,
			expectedSev: SeverityLow,
			expectedCat: CategoryAdvisory,
			expectAdv:   true,
		},
		{
			name:        "storage failure is temporary",
			code:        CodeStorageFailure,
			expectedSev: SeverityHigh,
			expectedCat: CategoryDependency,
			expectTemp:  true,
		},
		{
			name:        "cache unavailable is temporary",
			code:        CodeCacheUnavailable,
			expectedSev: SeverityMedium,
			expectedCat: CategoryDependency,
			expectTemp:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBacktestError(tt.code, "message", "operation")

			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.expectedSev, err.Severity)
			assert.Equal(t, tt.expectedCat, err.Category)
			assert.Equal(t, tt.expectTemp, err.IsTemporary())
			assert.Equal(t, tt.expectAdv, err.IsAdvisory())
			assert.False(t, err.Timestamp.IsZero())
			assert.Contains(t, err.Error(), string(tt.code))
		})
	}
}

func TestBacktestError_IsMatchesByCode(t *testing.T) {
	err := NewInsufficientDataError("kupiec_pof", 1, 0)
	wrapped := fmt.Errorf("running backtest: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInsufficientData))
	assert.False(t, errors.Is(wrapped, ErrInvalidParameter))

	be, ok := AsBacktestError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 1, be.Details.Expected["min_observations"])
	assert.Equal(t, 0, be.Details.Actual["provided_observations"])
}

func TestBacktestError_Cause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError("save_report", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBacktestError_NonFiniteDetailsAreEncodable(t *testing.T) {
	err := NewNumericalInstabilityError("christoffersen_independence", math.Inf(1))

	data, jsonErr := json.Marshal(err)
	require.NoError(t, jsonErr)
	assert.Contains(t, string(data), `"+Inf"`)
}

func TestIsAdvisory(t *testing.T) {
	assert.True(t, IsAdvisory(NewDegenerateClusterWarning("christoffersen_independence", 10)))
	assert.True(t, IsAdvisory(NewIndependenceUnavailableWarning("evaluate", 4)))
	assert.False(t, IsAdvisory(NewInvalidParameterError("kupiec_pof", "confidence_level", 1.5, "0 < c < 1")))
	assert.False(t, IsAdvisory(errors.New("plain")))
}
