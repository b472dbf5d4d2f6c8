package backtest

import (
	"errors"

	"github.com/victoralfred/varbacktest/internal/core/domain"
)

const (
	opConditional = "conditional_coverage"
	opEvaluate    = "evaluate"
)

// ConditionalCoverage jointly tests correct breach frequency and
// independence: LR_cc = LR_pof + LR_ind, chi-square with 2 degrees of
// freedom. Both inputs must come from tests run against the same
// exceedance series; Evaluate guarantees that pairing.
func ConditionalCoverage(coverage, independence domain.TestResult) (domain.TestResult, error) {
	for _, r := range []domain.TestResult{coverage, independence} {
		if !isFinite(r.Statistic) || r.Statistic < 0 {
			return domain.TestResult{}, domain.NewInvalidParameterError(opConditional, "statistic", r.Statistic, "finite and >= 0").
				WithActual("test", string(r.Name))
		}
	}

	stat := coverage.Statistic + independence.Statistic
	if !isFinite(stat) {
		return domain.TestResult{}, domain.NewNumericalInstabilityError(opConditional, stat)
	}

	return domain.TestResult{
		Name:             domain.TestConditionalCoverage,
		Statistic:        stat,
		PValue:           chiSquarePValue(stat, 2),
		DegreesOfFreedom: 2,
	}, nil
}

// Evaluate runs all three tests against one exceedance series. When every
// period breaches only the coverage test is defined; the independence and
// conditional results are then marked Unavailable and the independence
// result carries an INDEPENDENCE_UNAVAILABLE advisory.
func Evaluate(e domain.ExceedanceSeries, confidence float64) (*domain.Evaluation, error) {
	coverage, err := Kupiec(e, confidence)
	if err != nil {
		return nil, err
	}

	independence, err := Christoffersen(e)
	if err != nil {
		if e.Count() == e.Len() && errors.Is(err, domain.ErrNumericalInstability) {
			return coverageOnly(coverage, e), nil
		}
		return nil, err
	}

	conditional, err := ConditionalCoverage(coverage.TestResult, independence.TestResult)
	if err != nil {
		return nil, err
	}

	return &domain.Evaluation{
		Coverage:     coverage,
		Independence: independence,
		Conditional:  conditional,
	}, nil
}

func coverageOnly(coverage domain.CoverageResult, e domain.ExceedanceSeries) *domain.Evaluation {
	n := e.Len()
	return &domain.Evaluation{
		Coverage: coverage,
		Independence: domain.IndependenceResult{
			TestResult: domain.TestResult{
				Name:             domain.TestChristoffersen,
				DegreesOfFreedom: 1,
				Unavailable:      true,
			},
			Observations: n,
			Exceedances:  n,
			Clusters:     n - 1,
			PFail:        1,
			PCluster:     1,
			Advisory:     domain.NewIndependenceUnavailableWarning(opEvaluate, n),
		},
		Conditional: domain.TestResult{
			Name:             domain.TestConditionalCoverage,
			DegreesOfFreedom: 2,
			Unavailable:      true,
		},
	}
}
