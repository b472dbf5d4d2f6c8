package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects a report encoding
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
	}
}

// Write encodes r in the given format. precision and alpha only apply to
// text; a negative precision prints full precision.
func Write(w io.Writer, r *Report, format Format, precision int, alpha float64) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	default:
		return WriteText(w, r, precision, alpha)
	}
}

// WriteText prints a labelled summary of every test followed by the
// verdicts at significance alpha. Verdicts are omitted when alpha is not
// in (0, 1).
func WriteText(w io.Writer, r *Report, precision int, alpha float64) error {
	var b strings.Builder

	header := "VaR backtest"
	if r.Symbol != "" {
		header += " for " + r.Symbol
	}
	fmt.Fprintf(&b, "%s\n", header)
	fmt.Fprintf(&b, "Confidence level: %s\n", formatFloat(r.Confidence, -1))
	fmt.Fprintf(&b, "VaR threshold: %s\n", formatFloat(r.Threshold, precisionOr(precision, 6)))
	fmt.Fprintf(&b, "Observations: %d\n", r.Observations)
	fmt.Fprintf(&b, "Exceedances: %d (expected %s)\n", r.Exceedances, formatFloat(r.ExpectedExceedances(), 2))
	b.WriteString("\n")

	for _, t := range r.Tests() {
		if t.Unavailable {
			fmt.Fprintf(&b, "%s LR Statistic: unavailable\n", t.Name.Label())
			b.WriteString("P-Value: unavailable\n")
			continue
		}
		fmt.Fprintf(&b, "%s LR Statistic: %s\n", t.Name.Label(), formatFloat(t.Statistic, precision))
		fmt.Fprintf(&b, "P-Value: %s\n", formatFloat(t.PValue, precision))
	}

	if alpha > 0 && alpha < 1 {
		fmt.Fprintf(&b, "\nVerdicts at significance %s:\n", formatFloat(alpha, -1))
		for _, v := range r.Verdicts(alpha) {
			line := v.Decision()
			if !v.Reliable && !v.Unavailable {
				line += " (not informative)"
			}
			fmt.Fprintf(&b, "%s: %s\n", v.Test.Label(), line)
		}
	}

	for _, warning := range r.Warnings {
		fmt.Fprintf(&b, "\nWarning: %s\n", warning)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes the indented JSON encoding
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteYAML writes the YAML encoding
func WriteYAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

func formatFloat(f float64, precision int) string {
	if precision < 0 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', precision, 64)
}

func precisionOr(precision, fallback int) int {
	if precision < 0 {
		return precision
	}
	if precision < fallback {
		return fallback
	}
	return precision
}
