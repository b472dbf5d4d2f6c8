package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Observation is a single periodic return. Time may be zero when the
// series carries no calendar index.
type Observation struct {
	Time   time.Time `json:"time" yaml:"time"`
	Return float64   `json:"return" yaml:"return"`
}

// ReturnSeries is an ordered, gap-free sequence of returns
type ReturnSeries struct {
	observations []Observation
}

// NewReturnSeries validates and copies the observations. Missing values
// must be dropped upstream; NaN or Inf entries are rejected here.
func NewReturnSeries(observations []Observation) (ReturnSeries, error) {
	if len(observations) == 0 {
		return ReturnSeries{}, NewInsufficientDataError("return_series", 1, 0)
	}

	obs := make([]Observation, len(observations))
	for i, o := range observations {
		if math.IsNaN(o.Return) || math.IsInf(o.Return, 0) {
			return ReturnSeries{}, NewInvalidParameterError("return_series", "return", o.Return, "finite real number").
				WithActual("index", i)
		}
		obs[i] = o
	}

	return ReturnSeries{observations: obs}, nil
}

// NewReturnSeriesFromValues builds a series without a calendar index
func NewReturnSeriesFromValues(values []float64) (ReturnSeries, error) {
	obs := make([]Observation, len(values))
	for i, v := range values {
		obs[i] = Observation{Return: v}
	}
	return NewReturnSeries(obs)
}

// Len returns the number of observations
func (s ReturnSeries) Len() int {
	return len(s.observations)
}

// Values returns a copy of the return values in order
func (s ReturnSeries) Values() []float64 {
	values := make([]float64, len(s.observations))
	for i, o := range s.observations {
		values[i] = o.Return
	}
	return values
}

// Observations returns a copy of the observations in order
func (s ReturnSeries) Observations() []Observation {
	obs := make([]Observation, len(s.observations))
	copy(obs, s.observations)
	return obs
}

// At returns the i-th observation
func (s ReturnSeries) At(i int) Observation {
	return s.observations[i]
}

// ExceedanceSeries flags, per period, whether the return breached the VaR
// threshold. It is aligned index-for-index with the ReturnSeries it was
// derived from.
type ExceedanceSeries struct {
	flags []bool
}

// NewExceedanceSeries copies flags into an immutable series
func NewExceedanceSeries(flags []bool) ExceedanceSeries {
	f := make([]bool, len(flags))
	copy(f, flags)
	return ExceedanceSeries{flags: f}
}

// Len returns the number of periods
func (e ExceedanceSeries) Len() int {
	return len(e.flags)
}

// At reports whether period i breached
func (e ExceedanceSeries) At(i int) bool {
	return e.flags[i]
}

// Count returns the number of breaches
func (e ExceedanceSeries) Count() int {
	count := 0
	for _, f := range e.flags {
		if f {
			count++
		}
	}
	return count
}

// Indices returns the positions of breaches, ascending
func (e ExceedanceSeries) Indices() []int {
	indices := make([]int, 0)
	for i, f := range e.flags {
		if f {
			indices = append(indices, i)
		}
	}
	return indices
}

// Flags returns a copy of the underlying flags
func (e ExceedanceSeries) Flags() []bool {
	f := make([]bool, len(e.flags))
	copy(f, e.flags)
	return f
}

func (e ExceedanceSeries) MarshalJSON() ([]byte, error) {
	if e.flags == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e.flags)
}

func (e *ExceedanceSeries) UnmarshalJSON(data []byte) error {
	var flags []bool
	if err := json.Unmarshal(data, &flags); err != nil {
		return err
	}
	e.flags = flags
	return nil
}

// ConfidenceLevel is the VaR confidence, strictly inside (0, 1)
type ConfidenceLevel float64

// NewConfidenceLevel validates c
func NewConfidenceLevel(c float64) (ConfidenceLevel, error) {
	if math.IsNaN(c) || c <= 0 || c >= 1 {
		return 0, NewInvalidParameterError("confidence_level", "confidence_level", c, "0 < confidence_level < 1")
	}
	return ConfidenceLevel(c), nil
}

// BreachProbability is the expected exceedance rate 1 - c
func (c ConfidenceLevel) BreachProbability() float64 {
	return 1 - float64(c)
}

// ValidateThreshold rejects a VaR threshold that is not a finite real number
func ValidateThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NewInvalidParameterError("var_threshold", "threshold", v, "finite real number")
	}
	return nil
}
