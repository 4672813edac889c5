// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package inputs

import (
	"context"
	"fmt"
	"math"

	"financebuddy/stockval"
)

// SpotFunc returns a spot price for a symbol, e.g. from a live ticker.
type SpotFunc func(ctx context.Context, symbol string) (float64, error)

type SpotCalculator struct {
	ticker SpotFunc
	source SpotSource
}

func NewSpotCalculator(source SpotSource) SpotCalculator {
	return SpotCalculator{source: source}
}

// NewTickerSpotCalculator takes precedence over any data source.
func NewTickerSpotCalculator(ticker SpotFunc) SpotCalculator {
	return SpotCalculator{ticker: ticker}
}

func (c SpotCalculator) ComputeSpot(ctx context.Context, symbol string) (float64, error) {
	var px float64
	var err error
	switch {
	case c.ticker != nil:
		px, err = c.ticker(ctx, symbol)
	case c.source != nil:
		px, err = c.source.GetSpot(ctx, symbol)
	default:
		return 0, fmt.Errorf("%w: spot calculator without source", stockval.ErrConfiguration)
	}
	if err != nil {
		return 0, err
	}
	return checkSpot(symbol, px)
}

type CryptoSpotCalculator struct {
	source CryptoSpotSource
}

func NewCryptoSpotCalculator(source CryptoSpotSource) CryptoSpotCalculator {
	return CryptoSpotCalculator{source: source}
}

func (c CryptoSpotCalculator) ComputeSpot(ctx context.Context, symbol string) (float64, error) {
	if c.source == nil {
		return 0, fmt.Errorf("%w: crypto spot calculator without source", stockval.ErrConfiguration)
	}
	pair, err := stockval.NormalizeCryptoPair(symbol)
	if err != nil {
		return 0, err
	}
	px, err := c.source.GetCryptoSpot(ctx, pair)
	if err != nil {
		return 0, err
	}
	return checkSpot(pair, px)
}

func checkSpot(symbol string, px float64) (float64, error) {
	if !(px > 0) || math.IsInf(px, 0) {
		return 0, fmt.Errorf("%w: invalid spot for %s: %v", stockval.ErrDomain, symbol, px)
	}
	return px, nil
}
