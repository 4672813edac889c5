// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package twelvedata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"financebuddy/config"
	"financebuddy/stockapi"
	"financebuddy/stockval"
	"financebuddy/webclient"

	log "github.com/sirupsen/logrus"
)

type twelveDataProvider struct {
	rateLimiter *webclient.RateLimiter
	apiClient   *http.Client
	config      config.BrokerConfig
}

// Twelve Data reports errors with http status 200 and a status field.
type apiStatus struct {
	Status  string `json:"status,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type priceReply struct {
	apiStatus
	Price string `json:"price"`
}

type timeSeriesValue struct {
	Datetime string `json:"datetime"`
	Close    string `json:"close"`
}

type timeSeries struct {
	apiStatus
	Values []timeSeriesValue `json:"values"`
}

const minOutputSize = 50

func GetBrokerId() stockval.BrokerId {
	return "twelvedata"
}

func newProvider() *twelveDataProvider {
	return &twelveDataProvider{
		rateLimiter: webclient.NewRateLimiter(),
		apiClient:   &http.Client{},
	}
}

func NewProvider(c config.Config) (stockapi.QuoteProvider, error) {
	if !IsValidConfig(c) {
		return nil, fmt.Errorf("%w: twelvedata requires TWELVEDATA_KEY", stockval.ErrConfiguration)
	}
	p := newProvider()
	if err := p.ReadConfig(c); err != nil {
		return nil, err
	}
	return p, nil
}

func (td *twelveDataProvider) GetId() stockval.BrokerId {
	return GetBrokerId()
}

func (td *twelveDataProvider) RemainingApiLimit() int {
	return td.rateLimiter.Remaining()
}

func (td *twelveDataProvider) ReadConfig(c config.Config) error {
	appConfig, err := c.Copy(false)
	if err != nil {
		return err
	}
	td.config = appConfig.BrokerConfig[GetBrokerId()]
	td.apiClient.Timeout = time.Second * time.Duration(td.config.DataTimeoutSeconds)
	td.rateLimiter = webclient.NewConfiguredRateLimiter(td.config.RateLimitPerSecond)
	return nil
}

func (td *twelveDataProvider) getJson(ctx context.Context, cmd string, query url.Values, v any) error {
	return webclient.FetchJson(ctx, td.apiClient, td.rateLimiter, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, td.config.DataUrl+cmd, nil)
		if err != nil {
			return nil, err
		}
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("apikey", td.config.ApiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	}, v)
}

func (s apiStatus) err(symbol string) error {
	if s.Status == "error" {
		return fmt.Errorf("%w: twelvedata error %d for %s: %s", stockval.ErrNoData, s.Code, symbol, s.Message)
	}
	return nil
}

func (td *twelveDataProvider) GetSpot(ctx context.Context, symbol string) (float64, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return 0, fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	return td.latestPrice(ctx, sym)
}

func (td *twelveDataProvider) latestPrice(ctx context.Context, sym string) (float64, error) {
	query := make(url.Values)
	query.Set("symbol", sym)
	var p priceReply
	if err := td.getJson(ctx, "/price", query, &p); err != nil {
		return 0, err
	}
	if err := p.err(sym); err != nil {
		return 0, err
	}
	d, ok := stockval.ParsePrice(p.Price)
	if !ok || !stockval.IsGreaterThanZero(d) {
		return 0, fmt.Errorf("%w: twelvedata price missing for %s", stockval.ErrNoData, sym)
	}
	v, _ := stockval.DecimalToFloat(d)
	return v, nil
}

func (td *twelveDataProvider) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" || need <= 0 {
		return nil, fmt.Errorf("%w: symbol and a positive count are required", stockval.ErrDomain)
	}
	return td.closes(ctx, sym, need)
}

func (td *twelveDataProvider) closes(ctx context.Context, sym string, need int) (stockval.ClosePriceSeries, error) {
	query := make(url.Values)
	query.Set("symbol", sym)
	query.Set("interval", "1day")
	query.Set("outputsize", strconv.Itoa(max(need, minOutputSize)))
	query.Set("order", "asc")
	query.Set("format", "JSON")
	var series timeSeries
	if err := td.getJson(ctx, "/time_series", query, &series); err != nil {
		return nil, err
	}
	if err := series.err(sym); err != nil {
		return nil, err
	}
	closes := make(stockval.ClosePriceSeries, 0, len(series.Values))
	for _, v := range series.Values {
		d, ok := stockval.ParsePrice(v.Close)
		if !ok || !stockval.IsGreaterThanZero(d) {
			continue
		}
		if c, ok := stockval.DecimalToFloat(d); ok {
			closes = append(closes, c)
		}
	}
	return closes.Tail(need)
}

// Twelve Data offers no dividend yield in the plans we support.
func (td *twelveDataProvider) GetDividendYield(ctx context.Context, symbol string) (float64, bool, error) {
	log.Debugf("twelvedata: dividend yield not available for %s", symbol)
	return 0, false, nil
}

func (td *twelveDataProvider) GetCryptoSpot(ctx context.Context, pair string) (float64, error) {
	sym, err := stockval.NormalizeCryptoPair(pair)
	if err != nil {
		return 0, err
	}
	return td.latestPrice(ctx, sym)
}

func (td *twelveDataProvider) GetCryptoDailyCloses(ctx context.Context, pair string, need int) (stockval.ClosePriceSeries, error) {
	sym, err := stockval.NormalizeCryptoPair(pair)
	if err != nil {
		return nil, err
	}
	if need <= 0 {
		return nil, fmt.Errorf("%w: a positive count is required", stockval.ErrDomain)
	}
	return td.closes(ctx, sym, need)
}

func IsValidConfig(c config.Config) bool {
	appConfig, err := c.Copy(false)
	if err != nil {
		return false
	}
	tdConfig := appConfig.BrokerConfig[GetBrokerId()]
	return !tdConfig.Disabled && len(tdConfig.DataUrl) > 0 && len(tdConfig.ApiKey) > 0
}
