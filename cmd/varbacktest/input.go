package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/victoralfred/varbacktest/internal/core/domain"
	"github.com/victoralfred/varbacktest/internal/core/services/backtest"
	"github.com/victoralfred/varbacktest/internal/returns"
)

// inputOptions are the flags shared by commands that read a series
type inputOptions struct {
	file       string
	isReturns  bool
	symbol     string
	confidence float64
	threshold  float64
}

func (o *inputOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.file, "file", "f", "", "CSV of closing prices, or returns with --returns (- for stdin)")
	f.BoolVar(&o.isReturns, "returns", false, "Treat the CSV values as returns instead of prices")
	f.StringVar(&o.symbol, "symbol", "", "Instrument symbol shown in the report")
	f.Float64VarP(&o.confidence, "confidence", "c", backtest.DefaultConfidence, "VaR confidence level in (0, 1)")
	f.Float64VarP(&o.threshold, "threshold", "t", 0, "VaR threshold; defaults to the historical percentile of the returns")
	_ = cmd.MarkFlagRequired("file")
}

// request loads the series and builds a backtest request
func (o *inputOptions) request(cmd *cobra.Command) (backtest.Request, error) {
	var in io.Reader = cmd.InOrStdin()
	if o.file != "-" {
		f, err := os.Open(o.file)
		if err != nil {
			return backtest.Request{}, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	obs, err := loadObservations(in, o.isReturns)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("failed to load %s: %w", o.file, err)
	}

	req := backtest.Request{
		Symbol:       o.symbol,
		Observations: obs,
		Confidence:   o.confidence,
	}
	if cmd.Flags().Changed("threshold") {
		t := o.threshold
		req.Threshold = &t
	}
	return req, nil
}

func loadObservations(r io.Reader, isReturns bool) ([]domain.Observation, error) {
	if isReturns {
		return returns.LoadReturnsCSV(r)
	}

	prices, err := returns.LoadCSV(r)
	if err != nil {
		return nil, err
	}
	series, err := returns.FromPrices(prices)
	if err != nil {
		return nil, err
	}
	return series.Observations(), nil
}
