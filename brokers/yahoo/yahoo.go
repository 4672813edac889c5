// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"financebuddy/config"
	"financebuddy/stockapi"
	"financebuddy/stockval"
	"financebuddy/webclient"

	log "github.com/sirupsen/logrus"
)

// Yahoo offers no official api, the chart endpoint needs no key and serves
// prices, daily closes and dividend events in one reply.
type yahooProvider struct {
	rateLimiter *webclient.RateLimiter
	apiClient   *http.Client
	now         func() time.Time
	config      config.BrokerConfig
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type dividendEvent struct {
	Amount float64 `json:"amount"`
	Date   int64   `json:"date"`
}

type chartResult struct {
	Meta      chartMeta `json:"meta"`
	Timestamp []int64   `json:"timestamp"`
	Events    struct {
		Dividends map[string]dividendEvent `json:"dividends"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartReply struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Requests without a browser like user agent are throttled.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) financebuddy"

func GetBrokerId() stockval.BrokerId {
	return "yahoo"
}

func newProvider() *yahooProvider {
	return &yahooProvider{
		rateLimiter: webclient.NewRateLimiter(),
		apiClient:   &http.Client{},
		now:         time.Now,
	}
}

// NewProvider only fails if yahoo was disabled, no credentials are needed.
func NewProvider(c config.Config) (stockapi.QuoteProvider, error) {
	if !IsValidConfig(c) {
		return nil, fmt.Errorf("%w: yahoo is disabled", stockval.ErrConfiguration)
	}
	p := newProvider()
	if err := p.ReadConfig(c); err != nil {
		return nil, err
	}
	return p, nil
}

func (y *yahooProvider) GetId() stockval.BrokerId {
	return GetBrokerId()
}

func (y *yahooProvider) RemainingApiLimit() int {
	return y.rateLimiter.Remaining()
}

func (y *yahooProvider) ReadConfig(c config.Config) error {
	appConfig, err := c.Copy(false)
	if err != nil {
		return err
	}
	y.config = appConfig.BrokerConfig[GetBrokerId()]
	y.apiClient.Timeout = time.Second * time.Duration(y.config.DataTimeoutSeconds)
	y.rateLimiter = webclient.NewConfiguredRateLimiter(y.config.RateLimitPerSecond)
	return nil
}

func (y *yahooProvider) chart(ctx context.Context, sym string, chartRange string) (chartResult, error) {
	var reply chartReply
	err := webclient.FetchJson(ctx, y.apiClient, y.rateLimiter, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.config.DataUrl+"/v8/finance/chart/"+url.PathEscape(sym), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		query := make(url.Values)
		query.Set("range", chartRange)
		query.Set("interval", "1d")
		query.Set("events", "div")
		req.URL.RawQuery = query.Encode()
		return req, nil
	}, &reply)
	if err != nil {
		return chartResult{}, err
	}
	if reply.Chart.Error != nil {
		return chartResult{}, fmt.Errorf("%w: yahoo %s for %s: %s", stockval.ErrNoData, reply.Chart.Error.Code, sym, reply.Chart.Error.Description)
	}
	if len(reply.Chart.Result) == 0 {
		return chartResult{}, fmt.Errorf("%w: yahoo returned no data for %s", stockval.ErrNoData, sym)
	}
	return reply.Chart.Result[0], nil
}

func (r chartResult) closes() stockval.ClosePriceSeries {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	closes := make(stockval.ClosePriceSeries, 0, len(r.Indicators.Quote[0].Close))
	for _, c := range r.Indicators.Quote[0].Close {
		// Yahoo sends null for days without trades.
		if c != nil && *c > 0 {
			closes = append(closes, *c)
		}
	}
	return closes
}

func (r chartResult) spot() (float64, bool) {
	if r.Meta.RegularMarketPrice > 0 {
		return r.Meta.RegularMarketPrice, true
	}
	closes := r.closes()
	if len(closes) == 0 {
		return 0, false
	}
	return closes[len(closes)-1], true
}

// Range which covers need daily closes.
func chartRange(need int, tradingDaysPerYear int) string {
	switch {
	case need <= tradingDaysPerYear*95/100:
		return "1y"
	case need <= tradingDaysPerYear*195/100:
		return "2y"
	case need <= tradingDaysPerYear*49/10:
		return "5y"
	default:
		return "max"
	}
}

// GetSpot uses the regular market price and falls back to the last daily close.
func (y *yahooProvider) GetSpot(ctx context.Context, symbol string) (float64, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return 0, fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	return y.spot(ctx, sym)
}

func (y *yahooProvider) spot(ctx context.Context, sym string) (float64, error) {
	r, err := y.chart(ctx, sym, "5d")
	if err != nil {
		return 0, err
	}
	if price, ok := r.spot(); ok {
		return price, nil
	}
	return 0, fmt.Errorf("%w: yahoo returned no price for %s", stockval.ErrNoData, sym)
}

func (y *yahooProvider) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" || need <= 0 {
		return nil, fmt.Errorf("%w: symbol and a positive count are required", stockval.ErrDomain)
	}
	r, err := y.chart(ctx, sym, chartRange(need, 252))
	if err != nil {
		return nil, err
	}
	return r.closes().Tail(need)
}

// GetDividendYield sums the dividend events of the last 365 days and divides by spot.
func (y *yahooProvider) GetDividendYield(ctx context.Context, symbol string) (float64, bool, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return 0, false, fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	r, err := y.chart(ctx, sym, "1y")
	if err != nil {
		return 0, false, err
	}
	spot, ok := r.spot()
	if !ok {
		return 0, false, fmt.Errorf("%w: yahoo returned no price for %s", stockval.ErrNoData, sym)
	}
	today := y.now()
	cutoff := today.AddDate(-1, 0, 0)
	var amounts []float64
	for _, d := range r.Events.Dividends {
		exDate := time.Unix(d.Date, 0)
		if exDate.Before(cutoff) || exDate.After(today) || d.Amount <= 0 {
			continue
		}
		amounts = append(amounts, d.Amount)
	}
	cash, _ := stockval.DecimalToFloat(stockval.SumDecimals(amounts))
	if cash <= 0 {
		log.Debugf("yahoo: no dividends within the last year for %s", sym)
		return 0, true, nil
	}
	return cash / spot, true, nil
}

// Yahoo crypto tickers look like "BTC-USD".
func cryptoTicker(pair string) (string, error) {
	sym, err := stockval.NormalizeCryptoPair(pair)
	if err != nil {
		return "", err
	}
	base, quote := stockval.SplitCryptoPair(sym)
	return base + "-" + quote, nil
}

func (y *yahooProvider) GetCryptoSpot(ctx context.Context, pair string) (float64, error) {
	ticker, err := cryptoTicker(pair)
	if err != nil {
		return 0, err
	}
	return y.spot(ctx, ticker)
}

func (y *yahooProvider) GetCryptoDailyCloses(ctx context.Context, pair string, need int) (stockval.ClosePriceSeries, error) {
	ticker, err := cryptoTicker(pair)
	if err != nil {
		return nil, err
	}
	if need <= 0 {
		return nil, fmt.Errorf("%w: a positive count is required", stockval.ErrDomain)
	}
	r, err := y.chart(ctx, ticker, chartRange(need, 365))
	if err != nil {
		return nil, err
	}
	return r.closes().Tail(need)
}

func IsValidConfig(c config.Config) bool {
	appConfig, err := c.Copy(false)
	if err != nil {
		return false
	}
	yahooConfig := appConfig.BrokerConfig[GetBrokerId()]
	return !yahooConfig.Disabled && len(yahooConfig.DataUrl) > 0
}
