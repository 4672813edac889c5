// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package stockapi

import (
	"context"
	"financebuddy/stockval"
)

// QuoteProvider is a single market data vendor.
type QuoteProvider interface {
	GetId() stockval.BrokerId
	// Latest traded or quoted price, strictly positive.
	GetSpot(ctx context.Context, symbol string) (float64, error)
	// The most recent need daily closes, oldest first. Fewer closes are an error.
	GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error)
	// Annual dividend yield as decimal fraction. ok is false if the vendor does not know it.
	GetDividendYield(ctx context.Context, symbol string) (yield float64, ok bool, err error)
}

// CryptoQuoteProvider is implemented by vendors which also serve crypto pairs like "BTC/USD".
type CryptoQuoteProvider interface {
	GetCryptoSpot(ctx context.Context, pair string) (float64, error)
	GetCryptoDailyCloses(ctx context.Context, pair string, need int) (stockval.ClosePriceSeries, error)
}

// SymbolResolver maps identifiers like ISINs to tickers.
type SymbolResolver interface {
	ResolveSymbol(ctx context.Context, id string) (string, error)
}

// ApiLimitReporter is implemented by rate limited vendors.
type ApiLimitReporter interface {
	RemainingApiLimit() int
}
