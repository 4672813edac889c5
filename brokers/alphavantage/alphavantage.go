// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package alphavantage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"financebuddy/config"
	"financebuddy/stockapi"
	"financebuddy/stockval"
	"financebuddy/webclient"
)

type alphaVantageProvider struct {
	rateLimiter *webclient.RateLimiter
	apiClient   *http.Client
	config      config.BrokerConfig
}

// Alpha Vantage answers with status 200 and one of these fields if a request is rejected.
type apiNotice struct {
	Note         string `json:"Note,omitempty"`
	Information  string `json:"Information,omitempty"`
	ErrorMessage string `json:"Error Message,omitempty"`
}

type globalQuote struct {
	apiNotice
	Quote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
}

type dailyValue struct {
	Close string `json:"4. close"`
}

type dailySeries struct {
	apiNotice
	Series map[string]dailyValue `json:"Time Series (Daily)"`
}

type companyOverview struct {
	apiNotice
	Symbol        string `json:"Symbol"`
	DividendYield string `json:"DividendYield"`
}

// Number of daily values in a compact reply.
const compactSize = 100

func GetBrokerId() stockval.BrokerId {
	return "alphavantage"
}

func newProvider() *alphaVantageProvider {
	return &alphaVantageProvider{
		rateLimiter: webclient.NewRateLimiter(),
		apiClient:   &http.Client{},
	}
}

func NewProvider(c config.Config) (stockapi.QuoteProvider, error) {
	if !IsValidConfig(c) {
		return nil, fmt.Errorf("%w: alphavantage requires ALPHAVANTAGE_KEY", stockval.ErrConfiguration)
	}
	p := newProvider()
	if err := p.ReadConfig(c); err != nil {
		return nil, err
	}
	return p, nil
}

func (av *alphaVantageProvider) GetId() stockval.BrokerId {
	return GetBrokerId()
}

func (av *alphaVantageProvider) RemainingApiLimit() int {
	return av.rateLimiter.Remaining()
}

func (av *alphaVantageProvider) ReadConfig(c config.Config) error {
	appConfig, err := c.Copy(false)
	if err != nil {
		return err
	}
	av.config = appConfig.BrokerConfig[GetBrokerId()]
	av.apiClient.Timeout = time.Second * time.Duration(av.config.DataTimeoutSeconds)
	av.rateLimiter = webclient.NewConfiguredRateLimiter(av.config.RateLimitPerSecond)
	return nil
}

func (av *alphaVantageProvider) query(ctx context.Context, function string, symbol string, extra url.Values, v any) error {
	return webclient.FetchJson(ctx, av.apiClient, av.rateLimiter, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, av.config.DataUrl+"/query", nil)
		if err != nil {
			return nil, err
		}
		q := url.Values{}
		for k, v := range extra {
			q[k] = v
		}
		q.Set("function", function)
		q.Set("symbol", symbol)
		q.Set("apikey", av.config.ApiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	}, v)
}

func (n apiNotice) err() error {
	for _, msg := range []string{n.ErrorMessage, n.Note, n.Information} {
		if msg != "" {
			return fmt.Errorf("alphavantage: %s", msg)
		}
	}
	return nil
}

func (av *alphaVantageProvider) GetSpot(ctx context.Context, symbol string) (float64, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return 0, fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	var q globalQuote
	if err := av.query(ctx, "GLOBAL_QUOTE", sym, nil, &q); err != nil {
		return 0, err
	}
	if err := q.err(); err != nil {
		return 0, err
	}
	d, ok := stockval.ParsePrice(q.Quote.Price)
	if !ok || !stockval.IsGreaterThanZero(d) {
		return 0, fmt.Errorf("%w: alphavantage quote parse failed for %s", stockval.ErrNoData, sym)
	}
	v, _ := stockval.DecimalToFloat(d)
	return v, nil
}

func (av *alphaVantageProvider) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" || need <= 0 {
		return nil, fmt.Errorf("%w: symbol and a positive count are required", stockval.ErrDomain)
	}
	extra := url.Values{}
	if need > compactSize {
		extra.Set("outputsize", "full")
	} else {
		extra.Set("outputsize", "compact")
	}
	var series dailySeries
	if err := av.query(ctx, "TIME_SERIES_DAILY", sym, extra, &series); err != nil {
		return nil, err
	}
	if err := series.err(); err != nil {
		return nil, err
	}
	// ISO dates sort chronologically.
	dates := make([]string, 0, len(series.Series))
	for date := range series.Series {
		dates = append(dates, date)
	}
	slices.Sort(dates)
	closes := make(stockval.ClosePriceSeries, 0, len(dates))
	for _, date := range dates {
		d, ok := stockval.ParsePrice(series.Series[date].Close)
		if !ok || !stockval.IsGreaterThanZero(d) {
			continue
		}
		if c, ok := stockval.DecimalToFloat(d); ok {
			closes = append(closes, c)
		}
	}
	return closes.Tail(need)
}

// GetDividendYield uses the company overview, "None" or missing values are unknown.
func (av *alphaVantageProvider) GetDividendYield(ctx context.Context, symbol string) (float64, bool, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return 0, false, fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	var overview companyOverview
	if err := av.query(ctx, "OVERVIEW", sym, nil, &overview); err != nil {
		return 0, false, err
	}
	if err := overview.err(); err != nil {
		return 0, false, err
	}
	raw, err := strconv.ParseFloat(overview.DividendYield, 64)
	if err != nil {
		return 0, false, nil
	}
	yield, ok := stockval.NormalizeDividendYield(raw)
	return yield, ok, nil
}

func IsValidConfig(c config.Config) bool {
	appConfig, err := c.Copy(false)
	if err != nil {
		return false
	}
	avConfig := appConfig.BrokerConfig[GetBrokerId()]
	return !avConfig.Disabled && len(avConfig.DataUrl) > 0 && len(avConfig.ApiKey) > 0
}
