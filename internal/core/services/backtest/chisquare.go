package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// chiSquarePValue returns 1 - CDF of the chi-square distribution with df
// degrees of freedom, evaluated through the upper regularized incomplete
// gamma function to keep precision for large statistics.
func chiSquarePValue(statistic float64, df int) float64 {
	if statistic <= 0 {
		return 1
	}
	dist := distuv.ChiSquared{K: float64(df)}
	p := dist.Survival(statistic)
	return math.Min(1, math.Max(0, p))
}

// xlogy returns count*ln(p) with the convention 0*ln(0) = 0, so that
// zero-count factors like 0^0 contribute nothing to a log-likelihood.
func xlogy(count int, p float64) float64 {
	if count == 0 {
		return 0
	}
	return float64(count) * math.Log(p)
}

// bernoulliLogLikelihood is ln( (1-p)^misses * p^hits )
func bernoulliLogLikelihood(misses, hits int, p float64) float64 {
	return xlogy(misses, 1-p) + xlogy(hits, p)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
