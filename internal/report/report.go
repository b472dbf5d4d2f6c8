// Package report assembles backtest outcomes into a value that can be
// printed, persisted, or handed to a charting front end.
package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/victoralfred/varbacktest/internal/core/domain"
)

// Report is the complete, immutable outcome of one backtest
type Report struct {
	ID                uuid.UUID                 `json:"id" yaml:"id"`
	Symbol            string                    `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Confidence        float64                   `json:"confidence" yaml:"confidence"`
	Threshold         float64                   `json:"threshold" yaml:"threshold"`
	Observations      int                       `json:"observations" yaml:"observations"`
	Exceedances       int                       `json:"exceedances" yaml:"exceedances"`
	ExceedanceIndices []int                     `json:"exceedance_indices" yaml:"exceedance_indices"`
	ExceedanceTimes   []time.Time               `json:"exceedance_times,omitempty" yaml:"exceedance_times,omitempty"`
	Coverage          domain.CoverageResult     `json:"coverage" yaml:"coverage"`
	Independence      domain.IndependenceResult `json:"independence" yaml:"independence"`
	Conditional       domain.TestResult         `json:"conditional" yaml:"conditional"`
	Degenerate        bool                      `json:"degenerate" yaml:"degenerate"`
	Warnings          []string                  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Returns           []domain.Observation      `json:"returns,omitempty" yaml:"returns,omitempty"`
	CreatedAt         time.Time                 `json:"created_at" yaml:"created_at"`
}

// Input carries everything New needs
type Input struct {
	Symbol      string
	Confidence  float64
	Threshold   float64
	Series      domain.ReturnSeries
	Exceedances domain.ExceedanceSeries
	Evaluation  *domain.Evaluation
}

// New builds a Report with a fresh ID
func New(in Input) *Report {
	r := &Report{
		ID:                uuid.New(),
		Symbol:            in.Symbol,
		Confidence:        in.Confidence,
		Threshold:         in.Threshold,
		Observations:      in.Exceedances.Len(),
		Exceedances:       in.Exceedances.Count(),
		ExceedanceIndices: in.Exceedances.Indices(),
		Coverage:          in.Evaluation.Coverage,
		Independence:      in.Evaluation.Independence,
		Conditional:       in.Evaluation.Conditional,
		Degenerate:        in.Evaluation.Independence.Degenerate,
		Returns:           in.Series.Observations(),
		CreatedAt:         time.Now().UTC(),
	}

	for _, i := range r.ExceedanceIndices {
		if i < len(r.Returns) && !r.Returns[i].Time.IsZero() {
			r.ExceedanceTimes = append(r.ExceedanceTimes, r.Returns[i].Time)
		}
	}

	if adv := in.Evaluation.Independence.Advisory; adv != nil {
		r.Warnings = append(r.Warnings, adv.Message)
	}

	return r
}

// Tests returns the three results in reporting order
func (r *Report) Tests() []domain.TestResult {
	return []domain.TestResult{
		r.Coverage.TestResult,
		r.Independence.TestResult,
		r.Conditional,
	}
}

// Verdict is the decision for one test at a significance level
type Verdict struct {
	Test        domain.TestName `json:"test" yaml:"test"`
	Alpha       float64         `json:"alpha" yaml:"alpha"`
	Reject      bool            `json:"reject" yaml:"reject"`
	PValue      float64         `json:"p_value" yaml:"p_value"`
	Reliable    bool            `json:"reliable" yaml:"reliable"`
	Unavailable bool            `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// NewVerdict decides one result at significance alpha
func NewVerdict(t domain.TestResult, alpha float64, reliable bool) Verdict {
	return Verdict{
		Test:        t.Name,
		Alpha:       alpha,
		Reject:      t.Rejects(alpha),
		PValue:      t.PValue,
		Reliable:    reliable && !t.Unavailable,
		Unavailable: t.Unavailable,
	}
}

// Decision is the verdict as printed in text reports
func (v Verdict) Decision() string {
	switch {
	case v.Unavailable:
		return "unavailable"
	case v.Reject:
		return "reject"
	default:
		return "fail to reject"
	}
}

// EvaluationVerdicts decides the three tests of eval at significance
// alpha. The independence and conditional verdicts are unreliable when no
// breaches occurred.
func EvaluationVerdicts(eval *domain.Evaluation, alpha float64) []Verdict {
	informative := !eval.Independence.Degenerate
	return []Verdict{
		NewVerdict(eval.Coverage.TestResult, alpha, true),
		NewVerdict(eval.Independence.TestResult, alpha, informative),
		NewVerdict(eval.Conditional, alpha, informative),
	}
}

// Verdicts decides each test of the report at significance alpha
func (r *Report) Verdicts(alpha float64) []Verdict {
	return EvaluationVerdicts(&domain.Evaluation{
		Coverage:     r.Coverage,
		Independence: r.Independence,
		Conditional:  r.Conditional,
	}, alpha)
}

// ExpectedExceedances is n * (1 - confidence)
func (r *Report) ExpectedExceedances() float64 {
	return float64(r.Observations) * (1 - r.Confidence)
}
