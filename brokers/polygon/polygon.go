// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package polygon

import (
	"context"
	"fmt"
	"time"

	"financebuddy/config"
	"financebuddy/stockapi"
	"financebuddy/stockval"
	"financebuddy/webclient"

	log "github.com/sirupsen/logrus"
)

// Polygon is queried using the official client, which returns float64 values.
// Only the few calls we need are wrapped, so that the provider can be tested without network.
type marketClient interface {
	lastTradePrice(ctx context.Context, ticker string) (float64, error)
	previousClose(ctx context.Context, ticker string) (float64, error)
	dailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]float64, error)
	dividends(ctx context.Context, ticker string, since time.Time) ([]dividend, error)
}

type dividend struct {
	CashAmount float64
	ExDate     time.Time
}

type polygonProvider struct {
	rateLimiter *webclient.RateLimiter
	client      marketClient
	now         func() time.Time
	config      config.BrokerConfig
}

func GetBrokerId() stockval.BrokerId {
	return "polygon"
}

func newProvider(client marketClient) *polygonProvider {
	return &polygonProvider{
		rateLimiter: webclient.NewRateLimiter(),
		client:      client,
		now:         time.Now,
	}
}

func NewProvider(c config.Config) (stockapi.QuoteProvider, error) {
	if !IsValidConfig(c) {
		return nil, fmt.Errorf("%w: polygon requires POLYGON_API_KEY", stockval.ErrConfiguration)
	}
	p := newProvider(nil)
	if err := p.ReadConfig(c); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *polygonProvider) GetId() stockval.BrokerId {
	return GetBrokerId()
}

func (p *polygonProvider) RemainingApiLimit() int {
	return p.rateLimiter.Remaining()
}

func (p *polygonProvider) ReadConfig(c config.Config) error {
	appConfig, err := c.Copy(false)
	if err != nil {
		return err
	}
	p.config = appConfig.BrokerConfig[GetBrokerId()]
	p.rateLimiter = webclient.NewConfiguredRateLimiter(p.config.RateLimitPerSecond)
	p.client = newRestClient(p.config.ApiKey, time.Second*time.Duration(p.config.DataTimeoutSeconds))
	return nil
}

// GetSpot uses the last trade and falls back to the previous day close, the free plan has no last trade.
func (p *polygonProvider) GetSpot(ctx context.Context, symbol string) (float64, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return 0, fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	return p.spot(ctx, sym, true)
}

func (p *polygonProvider) spot(ctx context.Context, ticker string, tryLastTrade bool) (float64, error) {
	if tryLastTrade {
		if err := p.rateLimiter.Wait(ctx); err != nil {
			return 0, err
		}
		price, err := p.client.lastTradePrice(ctx, ticker)
		if err == nil && price > 0 {
			return price, nil
		}
		log.Debugf("polygon: no last trade for %s (%v), using previous close", ticker, err)
	}
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return 0, err
	}
	price, err := p.client.previousClose(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, fmt.Errorf("%w: polygon returned no price for %s", stockval.ErrNoData, ticker)
	}
	return price, nil
}

func (p *polygonProvider) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" || need <= 0 {
		return nil, fmt.Errorf("%w: symbol and a positive count are required", stockval.ErrDomain)
	}
	to := p.now()
	return p.closes(ctx, sym, to.AddDate(0, 0, -(need*7/5+20)), to, need)
}

func (p *polygonProvider) closes(ctx context.Context, ticker string, from, to time.Time, need int) (stockval.ClosePriceSeries, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	values, err := p.client.dailyCloses(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}
	closes := make(stockval.ClosePriceSeries, 0, len(values))
	for _, v := range values {
		if v > 0 {
			closes = append(closes, v)
		}
	}
	return closes.Tail(need)
}

// GetDividendYield sums the cash dividends with ex date within the last 365 days and divides by spot.
func (p *polygonProvider) GetDividendYield(ctx context.Context, symbol string) (float64, bool, error) {
	sym := stockval.NormalizeSymbol(symbol)
	spot, err := p.GetSpot(ctx, sym)
	if err != nil {
		return 0, false, err
	}
	today := p.now().UTC()
	cutoff := today.AddDate(-1, 0, 0)
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return 0, false, err
	}
	divs, err := p.client.dividends(ctx, sym, cutoff)
	if err != nil {
		return 0, false, err
	}
	var amounts []float64
	for _, d := range divs {
		if d.ExDate.Before(cutoff) || d.ExDate.After(today) || d.CashAmount <= 0 {
			continue
		}
		amounts = append(amounts, d.CashAmount)
	}
	cash, _ := stockval.DecimalToFloat(stockval.SumDecimals(amounts))
	if cash <= 0 {
		return 0, true, nil
	}
	return cash / spot, true, nil
}

// Crypto aggregates use tickers like "X:BTCUSD".
func cryptoTicker(pair string) (string, error) {
	sym, err := stockval.NormalizeCryptoPair(pair)
	if err != nil {
		return "", err
	}
	base, quote := stockval.SplitCryptoPair(sym)
	return "X:" + base + quote, nil
}

func (p *polygonProvider) GetCryptoSpot(ctx context.Context, pair string) (float64, error) {
	ticker, err := cryptoTicker(pair)
	if err != nil {
		return 0, err
	}
	return p.spot(ctx, ticker, false)
}

func (p *polygonProvider) GetCryptoDailyCloses(ctx context.Context, pair string, need int) (stockval.ClosePriceSeries, error) {
	ticker, err := cryptoTicker(pair)
	if err != nil {
		return nil, err
	}
	if need <= 0 {
		return nil, fmt.Errorf("%w: a positive count is required", stockval.ErrDomain)
	}
	to := p.now()
	return p.closes(ctx, ticker, to.AddDate(0, 0, -(need+5)), to, need)
}

func IsValidConfig(c config.Config) bool {
	appConfig, err := c.Copy(false)
	if err != nil {
		return false
	}
	polygonConfig := appConfig.BrokerConfig[GetBrokerId()]
	return !polygonConfig.Disabled && len(polygonConfig.ApiKey) > 0
}
