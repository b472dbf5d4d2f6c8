package backtest

import (
	"github.com/victoralfred/varbacktest/internal/core/domain"
)

// Detect labels each return as a breach when it is strictly below the
// threshold. The output is aligned index-for-index with returns.
func Detect(returns []float64, threshold float64) domain.ExceedanceSeries {
	flags := make([]bool, len(returns))
	for i, r := range returns {
		flags[i] = r < threshold
	}
	return domain.NewExceedanceSeries(flags)
}

// DetectSeries is Detect over a validated ReturnSeries with threshold validation
func DetectSeries(series domain.ReturnSeries, threshold float64) (domain.ExceedanceSeries, error) {
	if err := domain.ValidateThreshold(threshold); err != nil {
		return domain.ExceedanceSeries{}, err
	}
	return Detect(series.Values(), threshold), nil
}
