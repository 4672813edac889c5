// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

// Package inputs turns market observations into the Black-Scholes inputs S, r, q, sigma and T.
// Calculators hold no mutable state and may be shared between goroutines.
package inputs

import (
	"context"
	"time"

	"financebuddy/impliedvol"
	"financebuddy/stockval"
)

type SpotSource interface {
	GetSpot(ctx context.Context, symbol string) (float64, error)
}

type CryptoSpotSource interface {
	GetCryptoSpot(ctx context.Context, pair string) (float64, error)
}

type CloseSource interface {
	GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error)
}

type CryptoCloseSource interface {
	GetCryptoDailyCloses(ctx context.Context, pair string, need int) (stockval.ClosePriceSeries, error)
}

type DividendSource interface {
	GetDividendYield(ctx context.Context, symbol string) (yield float64, ok bool, err error)
}

type SpotInput interface {
	ComputeSpot(ctx context.Context, symbol string) (float64, error)
}

type RateInput interface {
	ComputeRate(asOf, expiry time.Time) (float64, error)
}

type DividendInput interface {
	ComputeDividendYield(ctx context.Context, symbol string, asOf, expiry time.Time) (float64, error)
}

type VolatilityInput interface {
	ComputeVolatility(ctx context.Context, symbol string, asOf, expiry time.Time) (float64, error)
}

// ImpliedVolatilityInput needs a quoted option price instead of a symbol history.
type ImpliedVolatilityInput interface {
	ComputeImpliedVolatility(p impliedvol.Problem) (float64, error)
}

type YearFractionInput interface {
	ComputeYearFraction(asOf, expiry time.Time) (float64, error)
}

// ImpliedVolSolver is implemented by impliedvol.BrentSolver.
type ImpliedVolSolver interface {
	Solve(p impliedvol.Problem, s impliedvol.Settings) (float64, error)
}
