package main

import (
	"github.com/spf13/cobra"
	"github.com/victoralfred/varbacktest/internal/logging"
	"go.uber.org/zap"
)

var version = "dev"

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "varbacktest",
		Short: "Backtest Value-at-Risk thresholds",
		Long: `varbacktest checks whether a Value-at-Risk threshold was breached as often
as its confidence level predicts, and whether breaches cluster in time.

It runs the Kupiec proportion-of-failures test, Christoffersen's
independence test and the joint conditional coverage test, either once
from the command line or as an HTTP service.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newChartCmd(opts),
		newServeCmd(),
	)
	return cmd
}

// cliLogger writes human-readable logs to stderr so stdout stays parseable
func (o *rootOptions) cliLogger() (*zap.Logger, error) {
	cfg := logging.DefaultConfig()
	cfg.Level = o.logLevel
	cfg.Format = "console"
	cfg.Output = "stderr"
	return logging.New(cfg)
}
