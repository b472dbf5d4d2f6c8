package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/victoralfred/varbacktest/internal/core/services/backtest"
	"github.com/victoralfred/varbacktest/internal/report"
)

func newChartCmd(root *rootOptions) *cobra.Command {
	opts := &inputOptions{}

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Emit the return series with exceedances marked, as JSON",
		Long: `Run the backtest and print the chart payload a plotting front end needs:
every return with its breach flag, plus the threshold line.

Example:
  varbacktest chart --file spy.csv --confidence 0.99 > chart.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report.ChartSeries(r))
		},
	}

	opts.bind(cmd)
	return cmd
}
