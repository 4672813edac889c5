// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package alpaca

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"financebuddy/mock"
	"financebuddy/stockval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSymbol = "AAPL"

func TestNewProviderRequiresCredentials(t *testing.T) {
	_, err := NewProvider(mock.NewUnconfiguredBroker(GetBrokerId()))
	assert.ErrorIs(t, err, stockval.ErrConfiguration)
}

func TestGetSpotLatestTrade(t *testing.T) {
	srv := newAlpacaMock(t, `{"trades":{"AAPL":{"t":"2024-03-01T20:59:59Z","p":179.66}}}`)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	spot, err := p.GetSpot(context.Background(), "aapl")
	require.NoError(t, err)
	assert.InDelta(t, 179.66, spot, 1e-9)
}

func TestGetSpotSkipsOddLot(t *testing.T) {
	srv := newAlpacaMock(t, `{"trades":{"AAPL":{"t":"2024-03-01T20:59:59Z","p":175.1,"c":["@","I"],"z":"C"}}}`)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	spot, err := p.GetSpot(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.InDelta(t, 180.0, spot, 1e-9)
}

func TestGetSpotQuoteFallback(t *testing.T) {
	srv := newAlpacaMock(t, `{"trades":{}}`)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	spot, err := p.GetSpot(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.InDelta(t, 180.0, spot, 1e-9)
}

func TestGetSpotSnapshotFallback(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/v2/stocks/trades/latest", mock.JsonReply(`{"trades":{}}`))
	handler.HandleFunc("/v2/stocks/quotes/latest", mock.JsonReply(`{"quotes":{"AAPL":{"bp":0,"ap":0}}}`))
	handler.HandleFunc("/v2/stocks/"+testSymbol+"/snapshot", mock.JsonReply(`{"dailyBar":{"t":"2024-03-01T05:00:00Z","c":178.5}}`))
	srv := httptest.NewServer(handler)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	spot, err := p.GetSpot(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.InDelta(t, 178.5, spot, 1e-9)
}

func TestGetSpotNoData(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/v2/stocks/trades/latest", mock.JsonReply(`{"trades":{}}`))
	handler.HandleFunc("/v2/stocks/quotes/latest", mock.JsonReply(`{"quotes":{}}`))
	handler.HandleFunc("/v2/stocks/"+testSymbol+"/snapshot", mock.JsonReply(`{}`))
	srv := httptest.NewServer(handler)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	_, err := p.GetSpot(context.Background(), testSymbol)
	assert.ErrorIs(t, err, stockval.ErrNoData)
}

func TestGetSpotSendsCredentials(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/v2/stocks/trades/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APCA-API-KEY-ID") != mock.TestApiKey || r.Header.Get("APCA-API-SECRET-KEY") != mock.TestApiSecret {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "iex", r.URL.Query().Get("feed"))
		mock.JsonReply(`{"trades":{"AAPL":{"p":100}}}`)(w, r)
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	spot, err := p.GetSpot(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.Equal(t, 100.0, spot)
}

func TestGetDailyClosesPaginated(t *testing.T) {
	srv := newAlpacaMock(t, `{"trades":{}}`)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	closes, err := p.GetDailyCloses(context.Background(), testSymbol, 3)
	require.NoError(t, err)
	assert.Equal(t, stockval.ClosePriceSeries{171.5, 172.25, 173}, closes)

	_, err = p.GetDailyCloses(context.Background(), testSymbol, 10)
	assert.ErrorIs(t, err, stockval.ErrInsufficientData)
}

func TestGetDividendYield(t *testing.T) {
	srv := newAlpacaMock(t, `{"trades":{"AAPL":{"p":200}}}`)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)
	p.now = func() time.Time { return time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC) }

	yield, ok, err := p.GetDividendYield(context.Background(), testSymbol)
	require.NoError(t, err)
	assert.True(t, ok)
	// Four payments of 0.24 within the last year, the one from 2023-02-10 is too old.
	assert.InDelta(t, 0.96/200, yield, 1e-12)
}

func TestGetDividendYieldNoDividends(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/v2/stocks/trades/latest", mock.JsonReply(`{"trades":{"TSLA":{"p":180}}}`))
	handler.HandleFunc("/v1/corporate-actions", mock.JsonReply(`{"corporate_actions":{}}`))
	srv := httptest.NewServer(handler)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	yield, ok, err := p.GetDividendYield(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.0, yield)
}

func TestGetCryptoSpot(t *testing.T) {
	srv := newAlpacaMock(t, `{"trades":{}}`)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	spot, err := p.GetCryptoSpot(context.Background(), "btcusd")
	require.NoError(t, err)
	assert.InDelta(t, 64000.5, spot, 1e-9)
}

func TestGetCryptoDailyCloses(t *testing.T) {
	srv := newAlpacaMock(t, `{"trades":{}}`)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	closes, err := p.GetCryptoDailyCloses(context.Background(), "BTC-USD", 2)
	require.NoError(t, err)
	assert.Equal(t, stockval.ClosePriceSeries{63000, 64000}, closes)

	_, err = p.GetCryptoDailyCloses(context.Background(), "BTC", 2)
	assert.ErrorIs(t, err, stockval.ErrDomain)
}

func getBarsMock(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Query().Get("symbols") != testSymbol || r.URL.Query().Get("timeframe") != "1Day" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("page_token") == "" {
		_, _ = w.Write([]byte(`{"bars":{"AAPL":[
			{"t":"2024-02-27T05:00:00Z","c":170},
			{"t":"2024-02-28T05:00:00Z","c":171.5}
		]},"next_page_token":"QUFQTHwyMDI0LTAyLTI4"}`))
		return
	}
	_, _ = w.Write([]byte(`{"bars":{"AAPL":[
		{"t":"2024-02-29T05:00:00Z","c":172.25},
		{"t":"2024-03-01T05:00:00Z","c":173}
	]},"next_page_token":null}`))
}

func getCorporateActionsMock(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Query().Get("types") != "cash_dividend" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("page_token") == "" {
		_, _ = w.Write([]byte(`{"corporate_actions":{"cash_dividends":[
			{"symbol":"AAPL","rate":0.23,"ex_date":"2023-02-10"},
			{"symbol":"AAPL","rate":0.24,"ex_date":"2023-05-12"},
			{"symbol":"AAPL","rate":0.24,"ex_date":"2023-08-11"}
		]},"next_page_token":"next"}`))
		return
	}
	_, _ = w.Write([]byte(`{"corporate_actions":{"cash_dividends":[
		{"symbol":"AAPL","rate":0.24,"ex_date":"2023-11-10"},
		{"symbol":"AAPL","rate":0.24,"ex_date":"2024-02-09"}
	]}}`))
}

func newAlpacaMock(t *testing.T, latestTrades string) *httptest.Server {
	handler := http.NewServeMux()
	handler.HandleFunc("/v2/stocks/trades/latest", mock.JsonReply(latestTrades))
	handler.HandleFunc("/v2/stocks/quotes/latest", mock.JsonReply(`{"quotes":{"AAPL":{"t":"2024-03-01T20:59:59Z","bp":179.9,"ap":180.1}}}`))
	handler.HandleFunc("/v2/stocks/bars", getBarsMock)
	handler.HandleFunc("/v1/corporate-actions", getCorporateActionsMock)
	handler.HandleFunc("/v1beta3/crypto/us/latest/trades", mock.JsonReply(`{"trades":{"BTC/USD":{"t":"2024-03-01T20:59:59Z","p":64000.5}}}`))
	handler.HandleFunc("/v1beta3/crypto/us/bars", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC/USD", r.URL.Query().Get("symbols"))
		mock.JsonReply(`{"bars":{"BTC/USD":[{"c":62000},{"c":63000},{"c":64000}]}}`)(w, r)
	})
	return httptest.NewServer(handler)
}

func newTestProvider(t *testing.T, dataUrl string) *alpacaProvider {
	p := newProvider()
	require.NoError(t, p.ReadConfig(mock.NewBrokerConfig(GetBrokerId(), dataUrl)))
	return p
}
