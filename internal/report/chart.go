package report

import "time"

// ChartPoint is one return in the series consumed by the charting front
// end. Breach marks the points to highlight.
type ChartPoint struct {
	Index  int        `json:"index"`
	Time   *time.Time `json:"time,omitempty"`
	Return float64    `json:"return"`
	Breach bool       `json:"breach"`
}

// Chart is the payload for rendering returns with exceedances marked
type Chart struct {
	Title     string       `json:"title"`
	Threshold float64      `json:"threshold"`
	Points    []ChartPoint `json:"points"`
}

// ChartSeries lays out every return of r with its breach flag
func ChartSeries(r *Report) Chart {
	breaches := make(map[int]bool, len(r.ExceedanceIndices))
	for _, i := range r.ExceedanceIndices {
		breaches[i] = true
	}

	points := make([]ChartPoint, len(r.Returns))
	for i, o := range r.Returns {
		p := ChartPoint{Index: i, Return: o.Return, Breach: breaches[i]}
		if !o.Time.IsZero() {
			ts := o.Time
			p.Time = &ts
		}
		points[i] = p
	}

	title := "VaR Exceedances"
	if r.Symbol != "" {
		title += " - " + r.Symbol
	}

	return Chart{Title: title, Threshold: r.Threshold, Points: points}
}

// Breaches returns only the highlighted points
func (c Chart) Breaches() []ChartPoint {
	out := make([]ChartPoint, 0)
	for _, p := range c.Points {
		if p.Breach {
			out = append(out, p)
		}
	}
	return out
}
