// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package finnhub

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

	"github.com/ericlagergren/decimal"
	log "github.com/sirupsen/logrus"
)

// We are not using the finnhub apiClient, because it uses float32, which is bad for price calculations.
// We directly unmarshal values into decimal.Big.
type finnhubProvider struct {
	// "golang.org/x/time/rate" does not work well, as finnhub resets every 60 seconds.
	rateLimiter          *webclient.RateLimiter
	perSecondRateLimiter *webclient.RateLimiter
	apiClient            *http.Client
	now                  func() time.Time
	config               config.BrokerConfig
}

type quote struct {
	C  *decimal.Big `json:"c,omitempty"`
	Pc *decimal.Big `json:"pc,omitempty"`
	T  int64        `json:"t,omitempty"`
}

type stockCandles struct {
	C []*decimal.Big `json:"c,omitempty"`
	T []int64        `json:"t,omitempty"`
	S string         `json:"s,omitempty"`
}

type basicFinancials struct {
	Symbol string `json:"symbol"`
	Metric struct {
		DividendYieldIndicatedAnnual *float64 `json:"dividendYieldIndicatedAnnual"`
		CurrentDividendYieldTTM      *float64 `json:"currentDividendYieldTTM"`
	} `json:"metric"`
}

const candleStatusOk = "ok"

func GetBrokerId() stockval.BrokerId {
	return "finnhub"
}

func newProvider() *finnhubProvider {
	return &finnhubProvider{
		rateLimiter:          webclient.NewRateLimiter(),
		perSecondRateLimiter: webclient.NewRateLimiter(),
		apiClient:            &http.Client{},
		now:                  time.Now,
	}
}

func NewProvider(c config.Config) (stockapi.QuoteProvider, error) {
	if !IsValidConfig(c) {
		return nil, fmt.Errorf("%w: finnhub requires FINNHUB_API_KEY", stockval.ErrConfiguration)
	}
	p := newProvider()
	if err := p.ReadConfig(c); err != nil {
		return nil, err
	}
	return p, nil
}

func (rq *finnhubProvider) GetId() stockval.BrokerId {
	return GetBrokerId()
}

func (rq *finnhubProvider) RemainingApiLimit() int {
	return min(rq.perSecondRateLimiter.Remaining(), rq.rateLimiter.Remaining())
}

func (rq *finnhubProvider) ReadConfig(c config.Config) error {
	appConfig, err := c.Copy(false)
	if err != nil {
		return err
	}
	rq.config = appConfig.BrokerConfig[GetBrokerId()]
	rq.apiClient.Timeout = time.Second * time.Duration(rq.config.DataTimeoutSeconds)
	if rq.config.RateLimitPerSecond > 0 {
		rq.perSecondRateLimiter = webclient.NewManualRateLimiter(time.Second, uint32(rq.config.RateLimitPerSecond))
	}
	return nil
}

// Throttle according to http headers with an additional limit per second.
func (rq *finnhubProvider) getJson(ctx context.Context, cmd string, query url.Values, v any) error {
	if err := rq.perSecondRateLimiter.Wait(ctx); err != nil {
		return err
	}
	defer rq.perSecondRateLimiter.HandleManualTimer()
	return webclient.FetchJson(ctx, rq.apiClient, rq.rateLimiter, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rq.config.DataUrl+cmd, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Add("X-Finnhub-Token", rq.config.ApiKey)
		req.URL.RawQuery = query.Encode()
		return req, nil
	}, v)
}

// GetSpot uses the current price and falls back to the previous close, e.g. before the first trade of the day.
func (rq *finnhubProvider) GetSpot(ctx context.Context, symbol string) (float64, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return 0, fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	query := make(url.Values)
	query.Set("symbol", sym)
	var q quote
	if err := rq.getJson(ctx, "/quote", query, &q); err != nil {
		return 0, err
	}
	for _, v := range []*decimal.Big{q.C, q.Pc} {
		if stockval.IsGreaterThanZero(v) {
			if price, ok := stockval.DecimalToFloat(v); ok {
				return price, nil
			}
		}
	}
	// finnhub replies with zeros for unknown symbols.
	return 0, fmt.Errorf("%w: finnhub returned no price for %s", stockval.ErrNoData, sym)
}

func (rq *finnhubProvider) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" || need <= 0 {
		return nil, fmt.Errorf("%w: symbol and a positive count are required", stockval.ErrDomain)
	}
	to := rq.now()
	// Calendar days which certainly contain need trading days.
	from := to.AddDate(0, 0, -(need*7/5 + 20))
	query := make(url.Values)
	query.Set("symbol", sym)
	query.Set("resolution", "D")
	query.Set("from", strconv.FormatInt(from.Unix(), 10))
	query.Set("to", strconv.FormatInt(to.Unix(), 10))
	var candles stockCandles
	if err := rq.getJson(ctx, "/stock/candle", query, &candles); err != nil {
		return nil, err
	}
	if candles.S != candleStatusOk {
		return nil, fmt.Errorf("%w: finnhub candle status %q for %s", stockval.ErrNoData, candles.S, sym)
	}
	closes := make(stockval.ClosePriceSeries, 0, len(candles.C))
	for _, c := range candles.C {
		if !stockval.IsGreaterThanZero(c) {
			continue
		}
		if v, ok := stockval.DecimalToFloat(c); ok {
			closes = append(closes, v)
		}
	}
	return closes.Tail(need)
}

// GetDividendYield reads the indicated annual yield, which finnhub reports in percent.
func (rq *finnhubProvider) GetDividendYield(ctx context.Context, symbol string) (float64, bool, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return 0, false, fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	query := make(url.Values)
	query.Set("symbol", sym)
	query.Set("metric", "all")
	var financials basicFinancials
	if err := rq.getJson(ctx, "/stock/metric", query, &financials); err != nil {
		return 0, false, err
	}
	raw := financials.Metric.DividendYieldIndicatedAnnual
	if raw == nil {
		raw = financials.Metric.CurrentDividendYieldTTM
	}
	if raw == nil {
		log.Debugf("finnhub: no dividend metric for %s", sym)
		return 0, false, nil
	}
	// Percent values below the fraction threshold would be misread, so convert explicitly.
	if *raw <= 0 || *raw > 100 {
		return 0, false, nil
	}
	return *raw / 100, true, nil
}

func IsValidConfig(c config.Config) bool {
	appConfig, err := c.Copy(false)
	if err != nil {
		return false
	}
	finnhubConfig := appConfig.BrokerConfig[GetBrokerId()]
	return !finnhubConfig.Disabled && len(finnhubConfig.DataUrl) > 0 && len(finnhubConfig.ApiKey) > 0
}
