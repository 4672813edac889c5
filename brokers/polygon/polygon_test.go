// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package polygon

import (
	"context"
	"errors"
	"testing"
	"time"

	"financebuddy/mock"
	"financebuddy/stockval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	lastTrade    map[string]float64
	prevClose    map[string]float64
	closes       map[string][]float64
	divs         []dividend
	closesFrom   time.Time
	tradeQueries int
}

var errNotEntitled = errors.New("NOT_AUTHORIZED")

func (f *fakeClient) lastTradePrice(ctx context.Context, ticker string) (float64, error) {
	f.tradeQueries++
	price, ok := f.lastTrade[ticker]
	if !ok {
		return 0, errNotEntitled
	}
	return price, nil
}

func (f *fakeClient) previousClose(ctx context.Context, ticker string) (float64, error) {
	return f.prevClose[ticker], nil
}

func (f *fakeClient) dailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]float64, error) {
	f.closesFrom = from
	return f.closes[ticker], nil
}

func (f *fakeClient) dividends(ctx context.Context, ticker string, since time.Time) ([]dividend, error) {
	return f.divs, nil
}

var testNow = time.Date(2024, 3, 15, 16, 0, 0, 0, time.UTC)

func newTestProvider(f *fakeClient) *polygonProvider {
	p := newProvider(f)
	p.now = func() time.Time { return testNow }
	return p
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(mock.NewUnconfiguredBroker(GetBrokerId()))
	assert.ErrorIs(t, err, stockval.ErrConfiguration)

	p, err := NewProvider(mock.NewBrokerConfig(GetBrokerId(), "https://api.polygon.io"))
	require.NoError(t, err)
	assert.Equal(t, GetBrokerId(), p.GetId())
}

func TestGetSpot(t *testing.T) {
	p := newTestProvider(&fakeClient{lastTrade: map[string]float64{"AAPL": 172.62}})
	spot, err := p.GetSpot(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, 172.62, spot)
}

func TestGetSpotPreviousClose(t *testing.T) {
	p := newTestProvider(&fakeClient{prevClose: map[string]float64{"AAPL": 170.73}})
	spot, err := p.GetSpot(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 170.73, spot)

	_, err = p.GetSpot(context.Background(), "UNKNOWN")
	assert.ErrorIs(t, err, stockval.ErrNoData)
}

func TestGetDailyCloses(t *testing.T) {
	f := &fakeClient{closes: map[string][]float64{"AAPL": {168.5, 0, 170, 171.25, 172.62}}}
	p := newTestProvider(f)
	closes, err := p.GetDailyCloses(context.Background(), "AAPL", 3)
	require.NoError(t, err)
	assert.Equal(t, stockval.ClosePriceSeries{170, 171.25, 172.62}, closes)
	assert.True(t, f.closesFrom.Before(testNow.AddDate(0, 0, -4)))

	_, err = p.GetDailyCloses(context.Background(), "AAPL", 5)
	assert.ErrorIs(t, err, stockval.ErrInsufficientData)
}

func TestGetDividendYield(t *testing.T) {
	p := newTestProvider(&fakeClient{
		lastTrade: map[string]float64{"KO": 60},
		divs: []dividend{
			{CashAmount: 0.46, ExDate: time.Date(2023, 3, 14, 0, 0, 0, 0, time.UTC)},
			{CashAmount: 0.46, ExDate: time.Date(2023, 6, 14, 0, 0, 0, 0, time.UTC)},
			{CashAmount: 0.46, ExDate: time.Date(2023, 9, 14, 0, 0, 0, 0, time.UTC)},
			{CashAmount: 0.46, ExDate: time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC)},
			{CashAmount: 0.485, ExDate: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)},
		},
	})
	yield, ok, err := p.GetDividendYield(context.Background(), "KO")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, (0.46*3+0.485)/60, yield, 1e-12)
}

func TestGetDividendYieldNone(t *testing.T) {
	p := newTestProvider(&fakeClient{lastTrade: map[string]float64{"TSLA": 160}})
	yield, ok, err := p.GetDividendYield(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.0, yield)
}

func TestCrypto(t *testing.T) {
	f := &fakeClient{
		prevClose: map[string]float64{"X:BTCUSD": 68000},
		closes:    map[string][]float64{"X:BTCUSD": {66000, 67000, 68000}},
	}
	p := newTestProvider(f)
	spot, err := p.GetCryptoSpot(context.Background(), "btc-usd")
	require.NoError(t, err)
	assert.Equal(t, 68000.0, spot)
	assert.Equal(t, 0, f.tradeQueries)

	closes, err := p.GetCryptoDailyCloses(context.Background(), "BTC/USD", 2)
	require.NoError(t, err)
	assert.Equal(t, stockval.ClosePriceSeries{67000, 68000}, closes)
	assert.Equal(t, testNow.AddDate(0, 0, -7), f.closesFrom)
}
