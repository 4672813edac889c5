// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package inputs

import (
	"context"
	"fmt"
	"math"
	"time"

	"financebuddy/config"
	"financebuddy/impliedvol"
	"financebuddy/stockval"

	"github.com/montanaflynn/stats"
)

type HistoricalVolatilityConfig = config.VolatilityConfig

// Equity preset: one year of daily closes, 252 trading days.
func DefaultHistoricalVolatilityConfig() HistoricalVolatilityConfig {
	return config.NewPricingConfig().EquityVolatility
}

// Crypto trades every day, so returns are annualized over 365 days.
func CryptoHistoricalVolatilityConfig() HistoricalVolatilityConfig {
	return config.NewPricingConfig().CryptoVolatility
}

// HistoricalVolatilityCalculator estimates sigma from close to close log returns.
type HistoricalVolatilityCalculator struct {
	source CloseSource
	config HistoricalVolatilityConfig
}

func NewHistoricalVolatilityCalculator(source CloseSource, c HistoricalVolatilityConfig) HistoricalVolatilityCalculator {
	return HistoricalVolatilityCalculator{source: source, config: c}
}

// NewCryptoVolatilityCalculator reads crypto closes, symbol is normalized to a pair.
func NewCryptoVolatilityCalculator(source CryptoCloseSource, c HistoricalVolatilityConfig) HistoricalVolatilityCalculator {
	return HistoricalVolatilityCalculator{source: cryptoCloses{source}, config: c}
}

func (c HistoricalVolatilityCalculator) Config() HistoricalVolatilityConfig {
	return c.config
}

func (c HistoricalVolatilityCalculator) ComputeVolatility(ctx context.Context, symbol string, asOf, expiry time.Time) (float64, error) {
	if c.source == nil {
		return 0, fmt.Errorf("%w: volatility calculator without source", stockval.ErrConfiguration)
	}
	closes, err := c.source.GetDailyCloses(ctx, symbol, c.config.LookbackDays)
	if err != nil {
		return 0, err
	}
	return c.FromCloses(closes), nil
}

// FromCloses applies the estimator to an oldest first series.
func (c HistoricalVolatilityCalculator) FromCloses(closes stockval.ClosePriceSeries) float64 {
	returns := LogReturns(closes)
	if len(returns) < c.config.MinReturns {
		return c.config.Fallback
	}
	sd, err := stats.StandardDeviationSample(returns)
	if err != nil || math.IsNaN(sd) {
		return c.config.Fallback
	}
	sigma := sd * math.Sqrt(float64(c.config.AnnualizationDays))
	return max(c.config.Floor, min(c.config.Cap, sigma))
}

// LogReturns skips pairs with a non-positive close.
func LogReturns(closes stockval.ClosePriceSeries) stats.Float64Data {
	returns := make(stats.Float64Data, 0, max(len(closes)-1, 0))
	for i := 1; i < len(closes); i++ {
		a, b := closes[i-1], closes[i]
		if a > 0 && b > 0 {
			returns = append(returns, math.Log(b/a))
		}
	}
	return returns
}

type cryptoCloses struct {
	source CryptoCloseSource
}

func (c cryptoCloses) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	pair, err := stockval.NormalizeCryptoPair(symbol)
	if err != nil {
		return nil, err
	}
	return c.source.GetCryptoDailyCloses(ctx, pair, need)
}

type ConstantVolatilityCalculator struct {
	sigma float64
}

func NewConstantVolatilityCalculator(sigma float64) (ConstantVolatilityCalculator, error) {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return ConstantVolatilityCalculator{}, fmt.Errorf("%w: sigma must be positive, got %v", stockval.ErrDomain, sigma)
	}
	return ConstantVolatilityCalculator{sigma: sigma}, nil
}

func (c ConstantVolatilityCalculator) ComputeVolatility(ctx context.Context, symbol string, asOf, expiry time.Time) (float64, error) {
	if c.sigma <= 0 {
		return 0, fmt.Errorf("%w: constant volatility not initialized", stockval.ErrConfiguration)
	}
	return c.sigma, nil
}

// ImpliedVolatilityCalculator solves for sigma given a quoted price. The upper bound is
// widened once by 50% if the first attempt fails, the result is never below the lower bound.
type ImpliedVolatilityCalculator struct {
	solver   ImpliedVolSolver
	settings impliedvol.Settings
}

func NewImpliedVolatilityCalculator(solver ImpliedVolSolver, c config.ImpliedVolConfig) ImpliedVolatilityCalculator {
	return ImpliedVolatilityCalculator{
		solver: solver,
		settings: impliedvol.Settings{
			Guess:     c.InitialGuess,
			Tolerance: c.Tolerance,
			Lower:     c.LowerBound,
			Upper:     c.UpperBound,
		},
	}
}

func (c ImpliedVolatilityCalculator) ComputeImpliedVolatility(p impliedvol.Problem) (float64, error) {
	if c.solver == nil {
		return 0, fmt.Errorf("%w: implied volatility without solver", stockval.ErrConfiguration)
	}
	iv, err := c.solver.Solve(p, c.settings)
	if err != nil {
		widened := c.settings
		widened.Upper *= 1.5
		iv, err = c.solver.Solve(p, widened)
		if err != nil {
			return 0, fmt.Errorf("implied volatility for price %v: %w", p.MarketPrice, err)
		}
	}
	return max(c.settings.Lower, iv), nil
}
