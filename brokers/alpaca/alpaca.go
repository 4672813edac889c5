// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"financebuddy/calendar"
	"financebuddy/config"
	"financebuddy/stockapi"
	"financebuddy/stockval"
	"financebuddy/webclient"

	"github.com/ericlagergren/decimal"
	log "github.com/sirupsen/logrus"
)

// We are not using the official alpaca client SDK, because it uses float64 for prices.
// We directly unmarshal values into decimal.Big and convert at the provider boundary.
type alpacaProvider struct {
	// "golang.org/x/time/rate" does not work well, as alpaca resets every 60 seconds.
	rateLimiter *webclient.RateLimiter
	apiClient   *http.Client
	calendar    calendar.BankCalendar
	now         func() time.Time
	config      config.BrokerConfig
}

type trade struct {
	Timestamp  time.Time    `json:"t"`
	Price      *decimal.Big `json:"p"`
	Conditions []string     `json:"c"`
	Tape       string       `json:"z"`
}

// lastSalePrice skips prints like odd lots or average price trades.
func (t trade) lastSalePrice() (float64, bool) {
	if !stockval.UpdatesLastSale(t.Tape, t.Conditions) {
		return 0, false
	}
	return positivePrice(t.Price)
}

type quote struct {
	Timestamp time.Time    `json:"t"`
	BidPrice  *decimal.Big `json:"bp"`
	AskPrice  *decimal.Big `json:"ap"`
}

type bar struct {
	Timestamp time.Time    `json:"t"`
	Close     *decimal.Big `json:"c"`
}

type snapshot struct {
	LatestTrade *trade `json:"latestTrade"`
	LatestQuote *quote `json:"latestQuote"`
	DailyBar    *bar   `json:"dailyBar"`
}

type latestTrades struct {
	Trades map[string]trade `json:"trades"`
}

type latestQuotes struct {
	Quotes map[string]quote `json:"quotes"`
}

type multiBars struct {
	Bars          map[string][]bar `json:"bars"`
	NextPageToken *string          `json:"next_page_token"`
}

type snapshots struct {
	Snapshots map[string]snapshot `json:"snapshots"`
}

type cashDividend struct {
	Symbol string       `json:"symbol"`
	Rate   *decimal.Big `json:"rate"`
	ExDate string       `json:"ex_date"`
}

type corporateActions struct {
	CorporateActions struct {
		CashDividends []cashDividend `json:"cash_dividends"`
	} `json:"corporate_actions"`
	NextPageToken *string `json:"next_page_token"`
}

const maxBarsPerPage = 1000

func GetBrokerId() stockval.BrokerId {
	return "alpaca"
}

func newProvider() *alpacaProvider {
	return &alpacaProvider{
		rateLimiter: webclient.NewRateLimiter(),
		apiClient:   &http.Client{},
		calendar:    calendar.NewUSBankCalendar(),
		now:         time.Now,
	}
}

// NewProvider fails with stockval.ErrConfiguration if the credentials are missing.
func NewProvider(c config.Config) (stockapi.QuoteProvider, error) {
	if !IsValidConfig(c) {
		return nil, fmt.Errorf("%w: alpaca requires APCA_API_KEY_ID and APCA_API_SECRET_KEY", stockval.ErrConfiguration)
	}
	p := newProvider()
	if err := p.ReadConfig(c); err != nil {
		return nil, err
	}
	return p, nil
}

func (rq *alpacaProvider) GetId() stockval.BrokerId {
	return GetBrokerId()
}

func (rq *alpacaProvider) RemainingApiLimit() int {
	return rq.rateLimiter.Remaining()
}

func (rq *alpacaProvider) ReadConfig(c config.Config) error {
	appConfig, err := c.Copy(false)
	if err != nil {
		return err
	}
	rq.config = appConfig.BrokerConfig[GetBrokerId()]
	rq.apiClient.Timeout = time.Second * time.Duration(rq.config.DataTimeoutSeconds)
	if rq.config.RateLimitPerSecond > 0 {
		rq.rateLimiter = webclient.NewConfiguredRateLimiter(rq.config.RateLimitPerSecond)
	}
	return nil
}

func (rq *alpacaProvider) getJson(ctx context.Context, cmd string, query url.Values, v any) error {
	return webclient.FetchJson(ctx, rq.apiClient, rq.rateLimiter, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rq.config.DataUrl+cmd, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Add("APCA-API-KEY-ID", rq.config.ApiKey)
		req.Header.Add("APCA-API-SECRET-KEY", rq.config.ApiSecret)
		if query != nil {
			req.URL.RawQuery = query.Encode()
		}
		return req, nil
	}, v)
}

func (rq *alpacaProvider) feedQuery() url.Values {
	query := make(url.Values)
	if rq.config.Feed != "" {
		query.Set("feed", rq.config.Feed)
	}
	return query
}

// GetSpot tries the latest trade, the latest quote midpoint and finally the snapshot.
func (rq *alpacaProvider) GetSpot(ctx context.Context, symbol string) (float64, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" {
		return 0, fmt.Errorf("%w: symbol is required", stockval.ErrDomain)
	}
	query := rq.feedQuery()
	query.Set("symbols", sym)

	var trades latestTrades
	if err := rq.getJson(ctx, "/v2/stocks/trades/latest", query, &trades); err != nil {
		return 0, err
	}
	if t, ok := trades.Trades[sym]; ok {
		if price, ok := t.lastSalePrice(); ok {
			return price, nil
		}
		log.Debugf("alpaca: latest trade of %s has conditions %v, using quote", sym, t.Conditions)
	}

	var quotes latestQuotes
	if err := rq.getJson(ctx, "/v2/stocks/quotes/latest", query, &quotes); err != nil {
		return 0, err
	}
	if q, ok := quotes.Quotes[sym]; ok {
		if price, ok := positivePrice(stockval.MidPrice(q.BidPrice, q.AskPrice)); ok {
			return price, nil
		}
	}

	log.Debugf("alpaca: no latest trade or quote for %s, using snapshot", sym)
	var snap snapshot
	if err := rq.getJson(ctx, "/v2/stocks/"+url.PathEscape(sym)+"/snapshot", rq.feedQuery(), &snap); err != nil {
		return 0, err
	}
	if price, ok := snapshotPrice(snap); ok {
		return price, nil
	}
	return 0, fmt.Errorf("%w: alpaca returned no latest price for %s", stockval.ErrNoData, sym)
}

func snapshotPrice(snap snapshot) (float64, bool) {
	if snap.LatestTrade != nil {
		if price, ok := snap.LatestTrade.lastSalePrice(); ok {
			return price, true
		}
	}
	if snap.LatestQuote != nil {
		if price, ok := positivePrice(stockval.MidPrice(snap.LatestQuote.BidPrice, snap.LatestQuote.AskPrice)); ok {
			return price, true
		}
	}
	if snap.DailyBar != nil {
		return positivePrice(snap.DailyBar.Close)
	}
	return 0, false
}

func positivePrice(v *decimal.Big) (float64, bool) {
	if !stockval.IsGreaterThanZero(v) {
		return 0, false
	}
	return stockval.DecimalToFloat(v)
}

func (rq *alpacaProvider) GetDailyCloses(ctx context.Context, symbol string, need int) (stockval.ClosePriceSeries, error) {
	sym := stockval.NormalizeSymbol(symbol)
	if sym == "" || need <= 0 {
		return nil, fmt.Errorf("%w: symbol and a positive count are required", stockval.ErrDomain)
	}
	now := rq.now()
	// Some slack for holidays which are not bank holidays.
	start := rq.calendar.SubtractTradingDays(now, need).AddDate(0, 0, -max(7, need/10))
	query := rq.feedQuery()
	query.Set("symbols", sym)
	query.Set("timeframe", "1Day")
	query.Set("adjustment", "all") // split & dividend adjustment
	query.Set("sort", "asc")
	query.Set("start", start.UTC().Format(time.RFC3339))
	closes, err := rq.queryBars(ctx, "/v2/stocks/bars", query, sym)
	if err != nil {
		return nil, err
	}
	return closes.Tail(need)
}

func (rq *alpacaProvider) queryBars(ctx context.Context, cmd string, query url.Values, sym string) (stockval.ClosePriceSeries, error) {
	var closes stockval.ClosePriceSeries
	query.Set("limit", strconv.Itoa(maxBarsPerPage))
	for {
		var page multiBars
		if err := rq.getJson(ctx, cmd, query, &page); err != nil {
			return nil, err
		}
		for _, b := range page.Bars[sym] {
			if c, ok := positivePrice(b.Close); ok {
				closes = append(closes, c)
			}
		}
		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		query.Set("page_token", *page.NextPageToken)
	}
	return closes, nil
}

// GetDividendYield sums the cash dividends of the last 365 days and divides by spot.
// No dividends within this period is a known yield of zero.
func (rq *alpacaProvider) GetDividendYield(ctx context.Context, symbol string) (float64, bool, error) {
	sym := stockval.NormalizeSymbol(symbol)
	spot, err := rq.GetSpot(ctx, sym)
	if err != nil {
		return 0, false, err
	}
	today := rq.now().UTC()
	cutoff := today.AddDate(-1, 0, 0)
	query := make(url.Values)
	query.Set("symbols", sym)
	query.Set("types", "cash_dividend")
	query.Set("start", cutoff.AddDate(0, 0, -35).Format(time.DateOnly))
	query.Set("end", today.AddDate(0, 0, 30).Format(time.DateOnly))

	total := new(decimal.Big)
	for {
		var actions corporateActions
		if err := rq.getJson(ctx, "/v1/corporate-actions", query, &actions); err != nil {
			return 0, false, err
		}
		for _, d := range actions.CorporateActions.CashDividends {
			exDate, err := time.Parse(time.DateOnly, d.ExDate)
			if err == nil && (exDate.Before(cutoff) || exDate.After(today)) {
				continue
			}
			if stockval.IsGreaterThanZero(d.Rate) {
				total.Add(total, d.Rate)
			}
		}
		if actions.NextPageToken == nil || *actions.NextPageToken == "" {
			break
		}
		query.Set("page_token", *actions.NextPageToken)
	}
	cash, _ := stockval.DecimalToFloat(total)
	if cash <= 0 {
		return 0, true, nil
	}
	return cash / spot, true, nil
}

func (rq *alpacaProvider) cryptoCmd(endpoint string) string {
	return "/v1beta3/crypto/" + rq.config.CryptoLocation + endpoint
}

func (rq *alpacaProvider) GetCryptoSpot(ctx context.Context, pair string) (float64, error) {
	sym, err := stockval.NormalizeCryptoPair(pair)
	if err != nil {
		return 0, err
	}
	query := make(url.Values)
	query.Set("symbols", sym)

	var trades latestTrades
	if err := rq.getJson(ctx, rq.cryptoCmd("/latest/trades"), query, &trades); err != nil {
		return 0, err
	}
	if t, ok := trades.Trades[sym]; ok {
		if price, ok := positivePrice(t.Price); ok {
			return price, nil
		}
	}
	var snaps snapshots
	if err := rq.getJson(ctx, rq.cryptoCmd("/snapshots"), query, &snaps); err != nil {
		return 0, err
	}
	if snap, ok := snaps.Snapshots[sym]; ok {
		if price, ok := snapshotPrice(snap); ok {
			return price, nil
		}
	}
	return 0, fmt.Errorf("%w: alpaca returned no spot price for %s", stockval.ErrNoData, sym)
}

func (rq *alpacaProvider) GetCryptoDailyCloses(ctx context.Context, pair string, need int) (stockval.ClosePriceSeries, error) {
	sym, err := stockval.NormalizeCryptoPair(pair)
	if err != nil {
		return nil, err
	}
	if need <= 0 {
		return nil, fmt.Errorf("%w: a positive count is required", stockval.ErrDomain)
	}
	// Crypto trades every day.
	start := rq.now().UTC().AddDate(0, 0, -(need + 5))
	query := make(url.Values)
	query.Set("symbols", sym)
	query.Set("timeframe", "1Day")
	query.Set("sort", "asc")
	query.Set("start", start.Format(time.RFC3339))
	closes, err := rq.queryBars(ctx, rq.cryptoCmd("/bars"), query, sym)
	if err != nil {
		return nil, err
	}
	return closes.Tail(need)
}

func IsValidConfig(c config.Config) bool {
	appConfig, err := c.Copy(false)
	if err != nil {
		return false
	}
	alpacaConfig := appConfig.BrokerConfig[GetBrokerId()]
	return !alpacaConfig.Disabled && len(alpacaConfig.DataUrl) > 0 && len(alpacaConfig.ApiKey) > 0 && len(alpacaConfig.ApiSecret) > 0
}
