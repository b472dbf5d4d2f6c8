package backtest

import (
	"math"

	"github.com/victoralfred/varbacktest/internal/core/domain"
)

const opKupiec = "kupiec_pof"

// Kupiec runs the proportion-of-failures test: does the observed breach
// rate x/n match the expected rate 1 - confidence?
//
//	LR_pof = -2 ln L(p) + 2 ln L(x/n),  L(q) = (1-q)^(n-x) q^x
//
// The likelihoods are accumulated in log space and zero-count factors are
// dropped, so x = 0 and x = n both yield finite statistics.
func Kupiec(e domain.ExceedanceSeries, confidence float64) (domain.CoverageResult, error) {
	c, err := confidenceFor(opKupiec, confidence)
	if err != nil {
		return domain.CoverageResult{}, err
	}

	n := e.Len()
	if n == 0 {
		return domain.CoverageResult{}, domain.NewInsufficientDataError(opKupiec, 1, 0)
	}

	x := e.Count()
	p := c.BreachProbability()
	observed := float64(x) / float64(n)

	restricted := bernoulliLogLikelihood(n-x, x, p)
	unrestricted := bernoulliLogLikelihood(n-x, x, observed)
	stat := -2*restricted + 2*unrestricted

	if !isFinite(stat) {
		return domain.CoverageResult{}, domain.NewNumericalInstabilityError(opKupiec, stat).
			WithActual("observations", n).
			WithActual("exceedances", x)
	}
	// unrestricted is the maximum likelihood, so anything below zero is rounding
	stat = math.Max(0, stat)

	return domain.CoverageResult{
		TestResult: domain.TestResult{
			Name:             domain.TestKupiecPOF,
			Statistic:        stat,
			PValue:           chiSquarePValue(stat, 1),
			DegreesOfFreedom: 1,
		},
		Observations: n,
		Exceedances:  x,
		ExpectedRate: p,
		ObservedRate: observed,
	}, nil
}

func confidenceFor(operation string, confidence float64) (domain.ConfidenceLevel, error) {
	c, err := domain.NewConfidenceLevel(confidence)
	if err != nil {
		return 0, domain.NewInvalidParameterError(operation, "confidence_level", confidence, "0 < confidence_level < 1")
	}
	return c, nil
}
