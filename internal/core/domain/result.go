package domain

// TestName identifies the likelihood-ratio test that produced a result
type TestName string

const (
	TestKupiecPOF           TestName = "kupiec_pof"
	TestChristoffersen      TestName = "christoffersen_independence"
	TestConditionalCoverage TestName = "conditional_coverage"
)

// Label returns the human-readable name used in reports
func (t TestName) Label() string {
	switch t {
	case TestKupiecPOF:
		return "Kupiec POF Test"
	case TestChristoffersen:
		return "Christoffersen's Independence Test"
	case TestConditionalCoverage:
		return "Conditional Coverage Test"
	default:
		return string(t)
	}
}

// TestResult is the immutable output of a likelihood-ratio test.
// Statistic is >= 0 and PValue lies in [0, 1]. An Unavailable result
// could not be computed; its Statistic and PValue are zero and carry
// no information.
type TestResult struct {
	Name             TestName `json:"name" yaml:"name"`
	Statistic        float64  `json:"statistic" yaml:"statistic"`
	PValue           float64  `json:"p_value" yaml:"p_value"`
	DegreesOfFreedom int      `json:"degrees_of_freedom" yaml:"degrees_of_freedom"`
	Unavailable      bool     `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// Rejects reports whether the null hypothesis is rejected at significance
// alpha. An unavailable result never rejects.
func (r TestResult) Rejects(alpha float64) bool {
	return !r.Unavailable && r.PValue < alpha
}

// CoverageResult is the Kupiec proportion-of-failures outcome
type CoverageResult struct {
	TestResult   `yaml:",inline"`
	Observations int     `json:"observations" yaml:"observations"`
	Exceedances  int     `json:"exceedances" yaml:"exceedances"`
	ExpectedRate float64 `json:"expected_rate" yaml:"expected_rate"`
	ObservedRate float64 `json:"observed_rate" yaml:"observed_rate"`
}

// IndependenceResult is the Christoffersen independence outcome.
// Degenerate is set when no breaches occurred; the statistic is then
// computed by convention and carries no information.
type IndependenceResult struct {
	TestResult   `yaml:",inline"`
	Observations int     `json:"observations" yaml:"observations"`
	Exceedances  int     `json:"exceedances" yaml:"exceedances"`
	Clusters     int     `json:"clusters" yaml:"clusters"`
	PFail        float64 `json:"p_fail" yaml:"p_fail"`
	PCluster     float64 `json:"p_cluster" yaml:"p_cluster"`
	Degenerate   bool    `json:"degenerate" yaml:"degenerate"`

	Advisory *BacktestError `json:"-" yaml:"-"`
}

// Evaluation bundles the three tests run against one exceedance series
type Evaluation struct {
	Coverage     CoverageResult     `json:"coverage" yaml:"coverage"`
	Independence IndependenceResult `json:"independence" yaml:"independence"`
	Conditional  TestResult         `json:"conditional" yaml:"conditional"`
}
