package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/victoralfred/varbacktest/internal/core/services/backtest"
	"github.com/victoralfred/varbacktest/internal/report"
	"golang.org/x/term"
)

type runOptions struct {
	inputOptions
	format    string
	precision int
	alpha     float64
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest a VaR threshold against a price or return series",
		Long: `Load a series, detect the periods whose return fell below the VaR threshold
and report the Kupiec, Christoffersen and conditional coverage tests.

Examples:
  varbacktest run --file spy.csv --confidence 0.99
  varbacktest run --file spy.csv --format text --alpha 0.01
  varbacktest run --file returns.csv --returns --threshold -0.045 --format json
  cat spy.csv | varbacktest run --file - --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd, root, opts)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "o", "", "Output format (text|json|yaml); text on a terminal, json otherwise")
	cmd.Flags().IntVar(&opts.precision, "precision", 6, "Decimal places in text output; negative prints full precision")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", 0.05, "Significance level for the reject / fail-to-reject verdicts in text output")
	return cmd
}

func runBacktest(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	out := cmd.OutOrStdout()
	format, err := resolveFormat(opts.format, out)
	if err != nil {
		return err
	}
	if opts.alpha <= 0 || opts.alpha >= 1 {
		return fmt.Errorf("--alpha must be in (0, 1), got %v", opts.alpha)
	}

	logger, err := root.cliLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	req, err := opts.request(cmd)
	if err != nil {
		return err
	}

	r, err := backtest.NewBacktester(backtest.WithLogger(logger)).Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	// the series itself is only echoed by chart
	if format != report.FormatText {
		r.Returns = nil
	}
	return report.Write(out, r, format, opts.precision, opts.alpha)
}

// resolveFormat defaults to text for a terminal and json for pipes
func resolveFormat(flag string, out io.Writer) (report.Format, error) {
	if flag != "" {
		return report.ParseFormat(flag)
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return report.FormatText, nil
	}
	return report.FormatJSON, nil
}
