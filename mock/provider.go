// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package mock

import (
	"context"
	"sync"

	"financebuddy/stockval"
)

// QuoteProvider replies with fixed values and counts the calls per method.
type QuoteProvider struct {
	Id        stockval.BrokerId
	Spot      float64
	SpotErr   error
	Closes    stockval.ClosePriceSeries
	ClosesErr error
	Yield     float64
	YieldOk   bool
	YieldErr  error

	mutex sync.Mutex
	calls map[string]int
}

func (p *QuoteProvider) count(method string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[method]++
}

// Calls returns how often method was called.
func (p *QuoteProvider) Calls(method string) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.calls[method]
}

func (p *QuoteProvider) GetId() stockval.BrokerId {
	return p.Id
}

func (p *QuoteProvider) GetSpot(ctx context.Context, symbol string) (float64, error) {
	p.count("GetSpot")
	return p.Spot, p.SpotErr
}

func (p *QuoteProvider) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	p.count("GetDailyCloses")
	if p.ClosesErr != nil {
		return nil, p.ClosesErr
	}
	if p.Closes == nil {
		return nil, nil
	}
	return p.Closes.Tail(min(need, len(p.Closes)))
}

func (p *QuoteProvider) GetDividendYield(ctx context.Context, symbol string) (float64, bool, error) {
	p.count("GetDividendYield")
	return p.Yield, p.YieldOk, p.YieldErr
}

// CryptoQuoteProvider additionally serves crypto pairs.
type CryptoQuoteProvider struct {
	*QuoteProvider
	CryptoSpot   float64
	CryptoCloses stockval.ClosePriceSeries
	CryptoErr    error
}

func (p *CryptoQuoteProvider) GetCryptoSpot(ctx context.Context, pair string) (float64, error) {
	p.count("GetCryptoSpot")
	return p.CryptoSpot, p.CryptoErr
}

func (p *CryptoQuoteProvider) GetCryptoDailyCloses(ctx context.Context, pair string, need int) (stockval.ClosePriceSeries, error) {
	p.count("GetCryptoDailyCloses")
	if p.CryptoErr != nil {
		return nil, p.CryptoErr
	}
	return p.CryptoCloses.Tail(min(need, len(p.CryptoCloses)))
}

// SeriesCache is an in-memory cache.
type SeriesCache struct {
	mutex sync.Mutex
	data  map[string]stockval.ClosePriceSeries
}

func NewSeriesCache() *SeriesCache {
	return &SeriesCache{data: make(map[string]stockval.ClosePriceSeries)}
}

func (c *SeriesCache) Load(ctx context.Context, key string) (stockval.ClosePriceSeries, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	s, ok := c.data[key]
	return s, ok
}

func (c *SeriesCache) Store(ctx context.Context, key string, s stockval.ClosePriceSeries) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[key] = append(stockval.ClosePriceSeries(nil), s...)
}

func (c *SeriesCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.data)
}
