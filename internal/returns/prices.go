// Package returns prepares return series and historical thresholds from
// raw price data.
package returns

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/victoralfred/varbacktest/internal/core/domain"
)

const opFromPrices = "returns_from_prices"

// PricePoint is one closing price
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Close decimal.Decimal `json:"close"`
}

// FromPrices computes simple returns p_t/p_{t-1} - 1. The first period
// has no return and is dropped, so n prices give n-1 observations
// stamped with the later period's time.
func FromPrices(prices []PricePoint) (domain.ReturnSeries, error) {
	if len(prices) < 2 {
		return domain.ReturnSeries{}, domain.NewInsufficientDataError(opFromPrices, 2, len(prices))
	}

	for i, p := range prices {
		if !p.Close.IsPositive() {
			return domain.ReturnSeries{}, domain.NewInvalidParameterError(opFromPrices, "close", p.Close.String(), "> 0").
				WithActual("index", i)
		}
	}

	obs := make([]domain.Observation, 0, len(prices)-1)
	one := decimal.NewFromInt(1)
	for i := 1; i < len(prices); i++ {
		change := prices[i].Close.Div(prices[i-1].Close).Sub(one)
		r, _ := change.Float64()
		obs = append(obs, domain.Observation{Time: prices[i].Time, Return: r})
	}

	return domain.NewReturnSeries(obs)
}

// PricesFromFloats is a convenience for callers holding plain floats
func PricesFromFloats(values []float64) []PricePoint {
	prices := make([]PricePoint, len(values))
	for i, v := range values {
		prices[i] = PricePoint{Close: decimal.NewFromFloat(v)}
	}
	return prices
}
