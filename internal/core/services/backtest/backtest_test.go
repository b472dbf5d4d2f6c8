package backtest

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victoralfred/varbacktest/internal/core/domain"
)

func TestDetect(t *testing.T) {
	returns := []float64{-0.05, 0.01, -0.06, 0.02, -0.07}

	e := Detect(returns, -0.045)

	assert.Equal(t, []bool{true, false, true, false, true}, e.Flags())
	assert.Equal(t, 3, e.Count())
	assert.Equal(t, []int{0, 2, 4}, e.Indices())
}

func TestDetect_StrictComparison(t *testing.T) {
	e := Detect([]float64{-0.05, -0.0500001, -0.0499999}, -0.05)
	assert.Equal(t, []bool{false, true, false}, e.Flags())
}

func TestDetect_AlignmentProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(200) + 1
		returns := make([]float64, n)
		for i := range returns {
			returns[i] = rng.NormFloat64() * 0.02
		}
		threshold := rng.NormFloat64() * 0.02

		e := Detect(returns, threshold)

		require.Equal(t, n, e.Len())
		for i, r := range returns {
			require.Equal(t, r < threshold, e.At(i), "index %d", i)
		}
	}
}

func TestDetectSeries_RejectsNonFiniteThreshold(t *testing.T) {
	series, err := domain.NewReturnSeriesFromValues([]float64{0.01, -0.02})
	require.NoError(t, err)

	_, err = DetectSeries(series, math.NaN())
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	e, err := DetectSeries(series, -0.01)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, e.Flags())
}

func TestKupiec_ConcreteScenario(t *testing.T) {
	e := Detect([]float64{-0.05, 0.01, -0.06, 0.02, -0.07}, -0.045)

	result, err := Kupiec(e, 0.99)
	require.NoError(t, err)

	assert.Equal(t, domain.TestKupiecPOF, result.Name)
	assert.Equal(t, 5, result.Observations)
	assert.Equal(t, 3, result.Exceedances)
	assert.InDelta(t, 0.6, result.ObservedRate, 1e-12)
	assert.InDelta(t, 0.01, result.ExpectedRate, 1e-12)
	assert.InDelta(t, 20.94110578924999, result.Statistic, 1e-9)
	assert.InDelta(t, 4.73621659982951e-06, result.PValue, 1e-12)
	assert.Equal(t, 1, result.DegreesOfFreedom)
}

func TestKupiec_NoBreaches(t *testing.T) {
	e := domain.NewExceedanceSeries(make([]bool, 10))

	result, err := Kupiec(e, 0.99)
	require.NoError(t, err)

	// only the (1-p)^n term survives: -2 * 10 * ln(0.99)
	assert.False(t, math.IsNaN(result.Statistic))
	assert.InDelta(t, -20*math.Log(0.99), result.Statistic, 1e-12)
	assert.InDelta(t, 0.6539094771990803, result.PValue, 1e-9)
}

func TestKupiec_AllBreaches(t *testing.T) {
	e := domain.NewExceedanceSeries([]bool{true, true, true, true})

	result, err := Kupiec(e, 0.99)
	require.NoError(t, err)

	assert.InDelta(t, -8*math.Log(0.01), result.Statistic, 1e-9)
	assert.InDelta(t, 36.84136148790473, result.Statistic, 1e-9)
	assert.GreaterOrEqual(t, result.PValue, 0.0)
}

func TestKupiec_ObservedEqualsExpected(t *testing.T) {
	flags := make([]bool, 100)
	flags[42] = true

	result, err := Kupiec(domain.NewExceedanceSeries(flags), 0.99)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Statistic, 0.0)
	assert.InDelta(t, 0, result.Statistic, 1e-9)
	assert.InDelta(t, 1, result.PValue, 1e-6)
}

func TestKupiec_Errors(t *testing.T) {
	_, err := Kupiec(domain.NewExceedanceSeries(nil), 0.99)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	for _, c := range []float64{0, 1, -0.1, 1.01, math.NaN()} {
		_, err := Kupiec(domain.NewExceedanceSeries([]bool{true}), c)
		require.ErrorIs(t, err, domain.ErrInvalidParameter, "confidence %v", c)
		be, _ := domain.AsBacktestError(err)
		assert.Equal(t, "kupiec_pof", be.Details.Operation)
	}
}

func TestKupiec_LargeSeriesDoesNotUnderflow(t *testing.T) {
	// (0.99)^100000 underflows to zero in direct exponentiation
	flags := make([]bool, 100000)
	for i := 0; i < 1500; i++ {
		flags[i*60] = true
	}

	result, err := Kupiec(domain.NewExceedanceSeries(flags), 0.99)
	require.NoError(t, err)

	assert.False(t, math.IsInf(result.Statistic, 0))
	assert.Greater(t, result.Statistic, 0.0)
	assert.Less(t, result.PValue, 0.01)
}

func TestChristoffersen_ConcreteScenario(t *testing.T) {
	e := Detect([]float64{-0.05, 0.01, -0.06, 0.02, -0.07}, -0.045)

	result, err := Christoffersen(e)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Clusters)
	assert.Equal(t, 3, result.Exceedances)
	assert.Equal(t, 0.0, result.PCluster)
	assert.InDelta(t, 0.6, result.PFail, 1e-12)
	assert.InDelta(t, 5.49774439124493, result.Statistic, 1e-9)
	assert.InDelta(t, 0.019041019186388126, result.PValue, 1e-9)
	assert.False(t, result.Degenerate)
	assert.Nil(t, result.Advisory)
}

func TestChristoffersen_NoBreachesIsDegenerate(t *testing.T) {
	e := domain.NewExceedanceSeries(make([]bool, 10))

	result, err := Christoffersen(e)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Clusters)
	assert.Equal(t, 0.0, result.PCluster)
	assert.Equal(t, 0.0, result.Statistic)
	assert.Equal(t, 1.0, result.PValue)
	assert.True(t, result.Degenerate)
	require.NotNil(t, result.Advisory)
	assert.ErrorIs(t, result.Advisory, domain.ErrDegenerateCluster)
}

func TestChristoffersen_Clustered(t *testing.T) {
	e := domain.NewExceedanceSeries([]bool{false, true, true, false, false, true, true, false, false, false})

	result, err := Christoffersen(e)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Clusters)
	assert.InDelta(t, 0.5, result.PCluster, 1e-12)
	assert.InDelta(t, 0.4, result.PFail, 1e-12)
	assert.InDelta(t, 0.16328797808102014, result.Statistic, 1e-9)
}

func TestChristoffersen_Errors(t *testing.T) {
	_, err := Christoffersen(domain.NewExceedanceSeries([]bool{true}))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	_, err = Christoffersen(domain.NewExceedanceSeries(nil))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	_, err = Christoffersen(domain.NewExceedanceSeries([]bool{true, true, true}))
	assert.ErrorIs(t, err, domain.ErrNumericalInstability)
}

func TestChristoffersen_ClusterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 100; trial++ {
		n := rng.Intn(300) + 2
		flags := make([]bool, n)
		for i := range flags {
			flags[i] = rng.Float64() < 0.2
		}
		e := domain.NewExceedanceSeries(flags)
		if e.Count() == n {
			continue
		}

		result, err := Christoffersen(e)
		require.NoError(t, err)

		assert.LessOrEqual(t, result.Clusters, result.Exceedances)
		assert.LessOrEqual(t, result.Clusters, n-1)
		assert.GreaterOrEqual(t, result.Statistic, 0.0)
		assert.GreaterOrEqual(t, result.PValue, 0.0)
		assert.LessOrEqual(t, result.PValue, 1.0)
	}
}

func TestConditionalCoverage(t *testing.T) {
	e := Detect([]float64{-0.05, 0.01, -0.06, 0.02, -0.07}, -0.045)
	coverage, err := Kupiec(e, 0.99)
	require.NoError(t, err)
	independence, err := Christoffersen(e)
	require.NoError(t, err)

	result, err := ConditionalCoverage(coverage.TestResult, independence.TestResult)
	require.NoError(t, err)

	assert.Equal(t, coverage.Statistic+independence.Statistic, result.Statistic)
	assert.Equal(t, 2, result.DegreesOfFreedom)
	assert.InDelta(t, math.Exp(-result.Statistic/2), result.PValue, 1e-12)
	assert.NotEqual(t, chiSquarePValue(result.Statistic, 1), result.PValue)
}

func TestConditionalCoverage_RejectsInvalidStatistics(t *testing.T) {
	valid := domain.TestResult{Name: domain.TestKupiecPOF, Statistic: 1}
	for _, bad := range []float64{math.NaN(), math.Inf(1), -1} {
		_, err := ConditionalCoverage(valid, domain.TestResult{Name: domain.TestChristoffersen, Statistic: bad})
		assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := Detect([]float64{-0.05, 0.01, -0.06, 0.02, -0.07, -0.08, 0.03}, -0.045)

	first, err := Evaluate(e, 0.99)
	require.NoError(t, err)
	second, err := Evaluate(e, 0.99)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Coverage.Statistic+first.Independence.Statistic, first.Conditional.Statistic)
}

func TestEvaluate_PropagatesErrors(t *testing.T) {
	_, err := Evaluate(domain.NewExceedanceSeries([]bool{false}), 0.99)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	_, err = Evaluate(domain.NewExceedanceSeries([]bool{false, true}), 2)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestEvaluate_EveryPeriodBreaches(t *testing.T) {
	e := domain.NewExceedanceSeries([]bool{true, true, true, true})

	eval, err := Evaluate(e, 0.99)
	require.NoError(t, err)

	coverage, err := Kupiec(e, 0.99)
	require.NoError(t, err)
	assert.Equal(t, coverage, eval.Coverage)

	assert.True(t, eval.Independence.Unavailable)
	assert.Equal(t, domain.TestChristoffersen, eval.Independence.Name)
	assert.Equal(t, 4, eval.Independence.Exceedances)
	assert.Equal(t, 3, eval.Independence.Clusters)
	require.NotNil(t, eval.Independence.Advisory)
	assert.ErrorIs(t, eval.Independence.Advisory, domain.ErrIndependenceUnavailable)
	assert.True(t, eval.Independence.Advisory.IsAdvisory())

	assert.True(t, eval.Conditional.Unavailable)
	assert.Equal(t, domain.TestConditionalCoverage, eval.Conditional.Name)
	assert.Equal(t, 2, eval.Conditional.DegreesOfFreedom)
	assert.False(t, eval.Conditional.Rejects(0.05))
}

func TestChiSquarePValue(t *testing.T) {
	assert.Equal(t, 1.0, chiSquarePValue(0, 1))
	assert.Equal(t, 1.0, chiSquarePValue(0, 2))
	assert.InDelta(t, 0.05, chiSquarePValue(3.841458820694124, 1), 1e-9)
	assert.InDelta(t, 0.05, chiSquarePValue(5.991464547107979, 2), 1e-9)
}
