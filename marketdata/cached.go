// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package marketdata

import (
	"context"
	"math"
	"time"

	"financebuddy/cache"
	"financebuddy/stockapi"
	"financebuddy/stockval"
)

// cachedProvider keeps daily close series of a provider for the current day.
// Spot prices and dividend yields are always requested.
type cachedProvider struct {
	stockapi.QuoteProvider
	cache cache.SeriesCache
	now   func() time.Time
}

type cachedCryptoProvider struct {
	*cachedProvider
	crypto stockapi.CryptoQuoteProvider
}

// NewCachedProvider wraps p, crypto capabilities of p are preserved.
func NewCachedProvider(p stockapi.QuoteProvider, c cache.SeriesCache) stockapi.QuoteProvider {
	cp := &cachedProvider{QuoteProvider: p, cache: c, now: time.Now}
	if crypto, ok := p.(stockapi.CryptoQuoteProvider); ok {
		return &cachedCryptoProvider{cachedProvider: cp, crypto: crypto}
	}
	return cp
}

// RemainingApiLimit reports the limit of the wrapped provider, unlimited if it has none.
func (p *cachedProvider) RemainingApiLimit() int {
	if l, ok := p.QuoteProvider.(stockapi.ApiLimitReporter); ok {
		return l.RemainingApiLimit()
	}
	return math.MaxInt
}

func (p *cachedProvider) loadOrFetch(ctx context.Context, symbol string, need int, fetch func() (stockval.ClosePriceSeries, error)) (stockval.ClosePriceSeries, error) {
	key := cache.SeriesKey(p.GetId(), symbol, need, p.now())
	if s, ok := p.cache.Load(ctx, key); ok && len(s) == need {
		return s, nil
	}
	s, err := fetch()
	if err != nil {
		return nil, err
	}
	p.cache.Store(ctx, key, s)
	return s, nil
}

func (p *cachedProvider) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	sym := stockval.NormalizeSymbol(symbol)
	return p.loadOrFetch(ctx, sym, need, func() (stockval.ClosePriceSeries, error) {
		return p.QuoteProvider.GetDailyCloses(ctx, sym, need)
	})
}

func (p *cachedCryptoProvider) GetCryptoSpot(ctx context.Context, pair string) (float64, error) {
	return p.crypto.GetCryptoSpot(ctx, pair)
}

func (p *cachedCryptoProvider) GetCryptoDailyCloses(ctx context.Context, pair string, need int) (stockval.ClosePriceSeries, error) {
	sym, err := stockval.NormalizeCryptoPair(pair)
	if err != nil {
		return nil, err
	}
	return p.loadOrFetch(ctx, "crypto/"+sym, need, func() (stockval.ClosePriceSeries, error) {
		return p.crypto.GetCryptoDailyCloses(ctx, sym, need)
	})
}
