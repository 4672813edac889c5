// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package inputs

import (
	"context"
	"fmt"
	"math"
	"time"

	"financebuddy/config"
	"financebuddy/stockval"
)

const DefaultRiskFreeRate = config.DefaultRiskFreeRate

// RiskFreeRateCalculator returns a flat continuously compounded rate.
type RiskFreeRateCalculator struct {
	Rate float64
}

func NewRiskFreeRateCalculator(rate float64) RiskFreeRateCalculator {
	return RiskFreeRateCalculator{Rate: rate}
}

// RiskFreeRateFromConfig reads the rate after the RISK_FREE_RATE overlay, falling back to 4.5% if unset.
func RiskFreeRateFromConfig(c config.Config) (RiskFreeRateCalculator, error) {
	appConfig, err := c.Copy(false)
	if err != nil {
		return RiskFreeRateCalculator{}, err
	}
	return NewRiskFreeRateCalculator(appConfig.Pricing.GetRiskFreeRate()), nil
}

func (c RiskFreeRateCalculator) ComputeRate(asOf, expiry time.Time) (float64, error) {
	if math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0) {
		return 0, fmt.Errorf("%w: invalid risk free rate %v", stockval.ErrConfiguration, c.Rate)
	}
	return c.Rate, nil
}

type ConstantDividendYieldCalculator struct {
	Q float64
}

func NewConstantDividendYieldCalculator(q float64) ConstantDividendYieldCalculator {
	return ConstantDividendYieldCalculator{Q: q}
}

func (c ConstantDividendYieldCalculator) ComputeDividendYield(ctx context.Context, symbol string, asOf, expiry time.Time) (float64, error) {
	return c.Q, nil
}

// FundamentalsDividendYieldCalculator asks the data source and uses Default if no source knows the yield.
type FundamentalsDividendYieldCalculator struct {
	source  DividendSource
	Default float64
}

func NewFundamentalsDividendYieldCalculator(source DividendSource, defaultIfMissing float64) FundamentalsDividendYieldCalculator {
	return FundamentalsDividendYieldCalculator{source: source, Default: defaultIfMissing}
}

func (c FundamentalsDividendYieldCalculator) ComputeDividendYield(ctx context.Context, symbol string, asOf, expiry time.Time) (float64, error) {
	if c.source == nil {
		return 0, fmt.Errorf("%w: dividend calculator without source", stockval.ErrConfiguration)
	}
	y, ok, err := c.source.GetDividendYield(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if !ok {
		return c.Default, nil
	}
	return y, nil
}
