package backtest

import (
	"math"

	"github.com/victoralfred/varbacktest/internal/core/domain"
)

const opChristoffersen = "christoffersen_independence"

// Christoffersen tests whether breaches cluster on consecutive periods.
// Breaches are modelled as a two-state first-order Markov chain; the
// probability that a breach is followed by another breach (p_cluster)
// is compared against the unconditional breach rate (p_fail):
//
//	ℓ(q)   = (x-clusters) ln(1-q) + clusters ln q
//	LR_ind = -2 [ ℓ(p_fail) - ℓ(p_cluster) ]
//
// p_cluster is the maximum-likelihood estimate of q, so LR_ind >= 0.
//
// With no breaches p_cluster is 0 by convention and the statistic is 0;
// the result is marked Degenerate and carries a DEGENERATE_CLUSTER advisory.
// When every period breaches, ln(1 - p_fail) is undefined and the test
// fails with NUMERICAL_INSTABILITY.
func Christoffersen(e domain.ExceedanceSeries) (domain.IndependenceResult, error) {
	n := e.Len()
	if n < 2 {
		return domain.IndependenceResult{}, domain.NewInsufficientDataError(opChristoffersen, 2, n)
	}

	x := e.Count()
	clusters := countClusters(e)

	pFail := float64(x) / float64(n)
	pCluster := 0.0
	if x > 0 {
		pCluster = float64(clusters) / float64(x)
	}

	independent := bernoulliLogLikelihood(x-clusters, clusters, pFail)
	clustered := bernoulliLogLikelihood(x-clusters, clusters, pCluster)
	stat := -2 * (independent - clustered)

	if !isFinite(stat) {
		return domain.IndependenceResult{}, domain.NewNumericalInstabilityError(opChristoffersen, stat).
			WithActual("observations", n).
			WithActual("exceedances", x).
			WithActual("clusters", clusters)
	}
	stat = math.Max(0, stat)

	result := domain.IndependenceResult{
		TestResult: domain.TestResult{
			Name:             domain.TestChristoffersen,
			Statistic:        stat,
			PValue:           chiSquarePValue(stat, 1),
			DegreesOfFreedom: 1,
		},
		Observations: n,
		Exceedances:  x,
		Clusters:     clusters,
		PFail:        pFail,
		PCluster:     pCluster,
	}

	if x == 0 {
		result.Degenerate = true
		result.Advisory = domain.NewDegenerateClusterWarning(opChristoffersen, n)
	}

	return result, nil
}

// countClusters counts adjacent pairs (e_i, e_i+1) that both breached
func countClusters(e domain.ExceedanceSeries) int {
	clusters := 0
	for i := 0; i+1 < e.Len(); i++ {
		if e.At(i) && e.At(i+1) {
			clusters++
		}
	}
	return clusters
}
