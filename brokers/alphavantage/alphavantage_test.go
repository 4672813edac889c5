// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"financebuddy/mock"
	"financebuddy/stockval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(mock.NewUnconfiguredBroker(GetBrokerId()))
	assert.ErrorIs(t, err, stockval.ErrConfiguration)
}

func TestGetSpot(t *testing.T) {
	srv := newAlphaVantageMock(t)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	spot, err := p.GetSpot(context.Background(), "ibm")
	require.NoError(t, err)
	assert.InDelta(t, 185.92, spot, 1e-9)
}

func TestGetSpotUnknownSymbol(t *testing.T) {
	srv := newAlphaVantageMock(t)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	_, err := p.GetSpot(context.Background(), "XXXX")
	assert.ErrorIs(t, err, stockval.ErrNoData)
}

func TestGetSpotRateLimitNote(t *testing.T) {
	handler := http.NewServeMux()
	handler.HandleFunc("/query", mock.JsonReply(`{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	srv := httptest.NewServer(handler)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	_, err := p.GetSpot(context.Background(), "IBM")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call frequency")
}

func TestGetDailyClosesSorted(t *testing.T) {
	srv := newAlphaVantageMock(t)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	closes, err := p.GetDailyCloses(context.Background(), "IBM", 3)
	require.NoError(t, err)
	assert.Equal(t, stockval.ClosePriceSeries{184.5, 185, 185.92}, closes)

	_, err = p.GetDailyCloses(context.Background(), "IBM", 5)
	assert.ErrorIs(t, err, stockval.ErrInsufficientData)
}

func TestGetDividendYield(t *testing.T) {
	srv := newAlphaVantageMock(t)
	defer srv.Close()
	p := newTestProvider(t, srv.URL)

	yield, ok, err := p.GetDividendYield(context.Background(), "IBM")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.0357, yield, 1e-12)

	_, ok, err = p.GetDividendYield(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.False(t, ok)
}

func newAlphaVantageMock(t *testing.T) *httptest.Server {
	handler := http.NewServeMux()
	handler.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, mock.TestApiKey, q.Get("apikey"))
		switch q.Get("function") + " " + q.Get("symbol") {
		case "GLOBAL_QUOTE IBM":
			mock.JsonReply(`{"Global Quote":{"01. symbol":"IBM","05. price":"185.9200","07. latest trading day":"2024-03-01"}}`)(w, r)
		case "GLOBAL_QUOTE XXXX":
			mock.JsonReply(`{"Global Quote":{}}`)(w, r)
		case "TIME_SERIES_DAILY IBM":
			assert.Equal(t, "compact", q.Get("outputsize"))
			mock.JsonReply(`{"Meta Data":{"2. Symbol":"IBM"},"Time Series (Daily)":{
				"2024-03-01":{"1. open":"185.49","4. close":"185.9200"},
				"2024-02-28":{"1. open":"183.00","4. close":"184.5000"},
				"2024-02-29":{"1. open":"184.00","4. close":"185.0000"},
				"2024-02-27":{"1. open":"182.00","4. close":"183.1000"}
			}}`)(w, r)
		case "OVERVIEW IBM":
			mock.JsonReply(`{"Symbol":"IBM","DividendYield":"0.0357"}`)(w, r)
		case "OVERVIEW TSLA":
			mock.JsonReply(`{"Symbol":"TSLA","DividendYield":"None"}`)(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return httptest.NewServer(handler)
}

func newTestProvider(t *testing.T, dataUrl string) *alphaVantageProvider {
	p := newProvider()
	require.NoError(t, p.ReadConfig(mock.NewBrokerConfig(GetBrokerId(), dataUrl)))
	return p
}
