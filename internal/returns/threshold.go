package returns

import (
	"math"
	"sort"

	"github.com/victoralfred/varbacktest/internal/core/domain"
)

const opHistoricalThreshold = "historical_threshold"

// HistoricalThreshold returns the (1-confidence) empirical percentile of
// values, interpolating linearly between the two closest ranks. A return
// below it counts as a VaR exceedance.
func HistoricalThreshold(values []float64, confidence float64) (float64, error) {
	level, err := domain.NewConfidenceLevel(confidence)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, domain.NewInsufficientDataError(opHistoricalThreshold, 1, 0)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return percentile(sorted, level.BreachProbability()), nil
}

// percentile expects sorted input and q in [0, 1]
func percentile(sorted []float64, q float64) float64 {
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
