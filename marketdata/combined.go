// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package marketdata

import (
	"context"
	"fmt"
	"time"

	"financebuddy/stockapi"
	"financebuddy/stockval"

	log "github.com/sirupsen/logrus"
)

// CombinedSource asks its providers in priority order and returns the first usable answer.
// The provider list is fixed at construction.
type CombinedSource struct {
	providers []stockapi.QuoteProvider
	resolver  stockapi.SymbolResolver
}

var errNoCryptoProvider = fmt.Errorf("%w: no crypto market data source configured", stockval.ErrConfiguration)

func NewCombinedSource(providers ...stockapi.QuoteProvider) (*CombinedSource, error) {
	var list []stockapi.QuoteProvider
	for _, p := range providers {
		if p != nil {
			list = append(list, p)
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no market data sources configured", stockval.ErrConfiguration)
	}
	return &CombinedSource{providers: list}, nil
}

// WithResolver returns a copy of the source which maps identifiers like ISINs to tickers first.
func (s *CombinedSource) WithResolver(r stockapi.SymbolResolver) *CombinedSource {
	return &CombinedSource{providers: s.providers, resolver: r}
}

// ProviderIds lists the providers in the order they are asked.
func (s *CombinedSource) ProviderIds() []stockval.BrokerId {
	ids := make([]stockval.BrokerId, 0, len(s.providers))
	for _, p := range s.providers {
		ids = append(ids, p.GetId())
	}
	return ids
}

func (s *CombinedSource) resolve(ctx context.Context, symbol string) (string, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return "", fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	if s.resolver == nil {
		return sym, nil
	}
	return s.resolver.ResolveSymbol(ctx, sym)
}

func apiLimitExhausted(p stockapi.QuoteProvider) bool {
	l, ok := p.(stockapi.ApiLimitReporter)
	return ok && l.RemainingApiLimit() <= 0
}

func logFailure(p stockapi.QuoteProvider, what string, sym string, err error) {
	if apiLimitExhausted(p) {
		log.Debugf("%s: %s for %s failed, api limit exhausted: %v", p.GetId(), what, sym, err)
		return
	}
	log.Debugf("%s: %s for %s failed: %v", p.GetId(), what, sym, err)
}

func allFailed(what string, symbol string, lastErr error) error {
	return fmt.Errorf("all market data sources failed to provide %s for %s: %w", what, symbol, lastErr)
}

// GetQuote returns the first usable spot price together with the provider which served it.
func (s *CombinedSource) GetQuote(ctx context.Context, symbol string) (stockval.Quote, error) {
	sym, err := s.resolve(ctx, symbol)
	if err != nil {
		return stockval.Quote{}, err
	}
	var lastErr error
	for _, p := range s.providers {
		if err := ctx.Err(); err != nil {
			return stockval.Quote{}, err
		}
		price, err := p.GetSpot(ctx, sym)
		if err == nil && price <= 0 {
			err = fmt.Errorf("%w: %s returned non-positive spot %v", stockval.ErrNoData, p.GetId(), price)
		}
		if err != nil {
			logFailure(p, "spot", sym, err)
			lastErr = err
			continue
		}
		return stockval.Quote{Symbol: sym, Price: price, Source: p.GetId(), Timestamp: time.Now().UTC()}, nil
	}
	return stockval.Quote{}, allFailed("spot", sym, lastErr)
}

func (s *CombinedSource) GetSpot(ctx context.Context, symbol string) (float64, error) {
	q, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}

func (s *CombinedSource) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	sym, err := s.resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, p := range s.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		closes, err := p.GetDailyCloses(ctx, sym, need)
		if err == nil && len(closes) == 0 {
			err = fmt.Errorf("%w: %s returned no closes", stockval.ErrNoData, p.GetId())
		}
		if err != nil {
			logFailure(p, "daily closes", sym, err)
			lastErr = err
			continue
		}
		return closes, nil
	}
	return nil, allFailed("daily closes", sym, lastErr)
}

// GetDividendYield keeps asking while providers do not know the yield.
// If nobody knows it, ok is false and err is nil unless no provider answered at all.
func (s *CombinedSource) GetDividendYield(ctx context.Context, symbol string) (float64, bool, error) {
	sym, err := s.resolve(ctx, symbol)
	if err != nil {
		return 0, false, err
	}
	var lastErr error
	answered := false
	for _, p := range s.providers {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		yield, ok, err := p.GetDividendYield(ctx, sym)
		if err != nil {
			logFailure(p, "dividend yield", sym, err)
			lastErr = err
			continue
		}
		answered = true
		if ok {
			return yield, true, nil
		}
	}
	if !answered && lastErr != nil {
		return 0, false, allFailed("dividend yield", sym, lastErr)
	}
	return 0, false, nil
}

func (s *CombinedSource) cryptoProviders() []stockapi.CryptoQuoteProvider {
	var list []stockapi.CryptoQuoteProvider
	for _, p := range s.providers {
		if c, ok := p.(stockapi.CryptoQuoteProvider); ok {
			list = append(list, c)
		}
	}
	return list
}

func (s *CombinedSource) GetCryptoSpot(ctx context.Context, pair string) (float64, error) {
	sym, err := stockval.NormalizeCryptoPair(pair)
	if err != nil {
		return 0, err
	}
	providers := s.cryptoProviders()
	if len(providers) == 0 {
		return 0, errNoCryptoProvider
	}
	var lastErr error
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		price, err := p.GetCryptoSpot(ctx, sym)
		if err == nil && price <= 0 {
			err = fmt.Errorf("%w: non-positive crypto spot %v", stockval.ErrNoData, price)
		}
		if err != nil {
			log.Debugf("crypto spot for %s failed: %v", sym, err)
			lastErr = err
			continue
		}
		return price, nil
	}
	return 0, allFailed("crypto spot", sym, lastErr)
}

func (s *CombinedSource) GetCryptoDailyCloses(ctx context.Context, pair string, need int) (stockval.ClosePriceSeries, error) {
	sym, err := stockval.NormalizeCryptoPair(pair)
	if err != nil {
		return nil, err
	}
	providers := s.cryptoProviders()
	if len(providers) == 0 {
		return nil, errNoCryptoProvider
	}
	var lastErr error
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		closes, err := p.GetCryptoDailyCloses(ctx, sym, need)
		if err == nil && len(closes) == 0 {
			err = stockval.ErrNoData
		}
		if err != nil {
			log.Debugf("crypto daily closes for %s failed: %v", sym, err)
			lastErr = err
			continue
		}
		return closes, nil
	}
	return nil, allFailed("crypto daily closes", sym, lastErr)
}
