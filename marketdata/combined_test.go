// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package marketdata

import (
	"context"
	"errors"
	"testing"

	"financebuddy/mock"
	"financebuddy/stockval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type isinResolver map[string]string

func (r isinResolver) ResolveSymbol(ctx context.Context, id string) (string, error) {
	if t, ok := r[id]; ok {
		return t, nil
	}
	return id, nil
}

func TestNewCombinedSourceWithoutProviders(t *testing.T) {
	_, err := NewCombinedSource()
	assert.ErrorIs(t, err, stockval.ErrConfiguration)
	_, err = NewCombinedSource(nil)
	assert.ErrorIs(t, err, stockval.ErrConfiguration)
}

func TestGetSpotLastProviderSucceeds(t *testing.T) {
	first := &mock.QuoteProvider{Id: "first", SpotErr: errors.New("first down")}
	second := &mock.QuoteProvider{Id: "second", Spot: -1}
	third := &mock.QuoteProvider{Id: "third", Spot: 101.5}
	s, err := NewCombinedSource(first, second, third)
	require.NoError(t, err)

	spot, err := s.GetSpot(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, 101.5, spot)
	assert.Equal(t, 1, first.Calls("GetSpot"))
	assert.Equal(t, 1, second.Calls("GetSpot"))
}

func TestGetQuoteNamesSource(t *testing.T) {
	first := &mock.QuoteProvider{Id: "first", SpotErr: errors.New("first down")}
	second := &mock.QuoteProvider{Id: "second", Spot: 42.5}
	s, err := NewCombinedSource(first, second)
	require.NoError(t, err)

	q, err := s.GetQuote(context.Background(), " msft ")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", q.Symbol)
	assert.Equal(t, 42.5, q.Price)
	assert.Equal(t, stockval.BrokerId("second"), q.Source)
	assert.False(t, q.Timestamp.IsZero())
}

func TestGetSpotFirstSuccessWins(t *testing.T) {
	first := &mock.QuoteProvider{Id: "first", Spot: 99}
	second := &mock.QuoteProvider{Id: "second", Spot: 100}
	s, err := NewCombinedSource(first, second)
	require.NoError(t, err)

	spot, err := s.GetSpot(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 99.0, spot)
	assert.Equal(t, 0, second.Calls("GetSpot"))
}

func TestGetSpotAllFail(t *testing.T) {
	s, err := NewCombinedSource(
		&mock.QuoteProvider{Id: "first", SpotErr: errors.New("first down")},
		&mock.QuoteProvider{Id: "second", SpotErr: errors.New("second down")},
	)
	require.NoError(t, err)

	_, err = s.GetSpot(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second down")
	assert.NotContains(t, err.Error(), "first down")
}

func TestGetSpotEmptySymbol(t *testing.T) {
	s, err := NewCombinedSource(&mock.QuoteProvider{Id: "first", Spot: 1})
	require.NoError(t, err)
	_, err = s.GetSpot(context.Background(), " ")
	assert.ErrorIs(t, err, stockval.ErrDomain)
}

func TestGetSpotCancelled(t *testing.T) {
	p := &mock.QuoteProvider{Id: "first", Spot: 1}
	s, err := NewCombinedSource(p)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.GetSpot(ctx, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.Calls("GetSpot"))
}

func TestGetDailyClosesSkipsEmpty(t *testing.T) {
	s, err := NewCombinedSource(
		&mock.QuoteProvider{Id: "empty"},
		&mock.QuoteProvider{Id: "short", ClosesErr: stockval.ErrInsufficientData},
		&mock.QuoteProvider{Id: "full", Closes: stockval.ClosePriceSeries{1, 2, 3}},
	)
	require.NoError(t, err)

	closes, err := s.GetDailyCloses(context.Background(), "AAPL", 3)
	require.NoError(t, err)
	assert.Equal(t, stockval.ClosePriceSeries{1, 2, 3}, closes)
}

func TestGetDailyClosesAllFail(t *testing.T) {
	s, err := NewCombinedSource(&mock.QuoteProvider{Id: "empty"})
	require.NoError(t, err)
	_, err = s.GetDailyCloses(context.Background(), "AAPL", 3)
	assert.ErrorIs(t, err, stockval.ErrNoData)
}

func TestGetDividendYieldKeepsAskingOnNoData(t *testing.T) {
	unknown := &mock.QuoteProvider{Id: "unknown"}
	failing := &mock.QuoteProvider{Id: "failing", YieldErr: errors.New("timeout")}
	known := &mock.QuoteProvider{Id: "known", Yield: 0.015, YieldOk: true}
	s, err := NewCombinedSource(unknown, failing, known)
	require.NoError(t, err)

	yield, ok, err := s.GetDividendYield(context.Background(), "KO")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.015, yield)
}

func TestGetDividendYieldConfirmedZero(t *testing.T) {
	zero := &mock.QuoteProvider{Id: "zero", Yield: 0, YieldOk: true}
	later := &mock.QuoteProvider{Id: "later", Yield: 0.02, YieldOk: true}
	s, err := NewCombinedSource(zero, later)
	require.NoError(t, err)

	yield, ok, err := s.GetDividendYield(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.0, yield)
	assert.Equal(t, 0, later.Calls("GetDividendYield"))
}

func TestGetDividendYieldAllUnknown(t *testing.T) {
	s, err := NewCombinedSource(
		&mock.QuoteProvider{Id: "unknown"},
		&mock.QuoteProvider{Id: "failing", YieldErr: errors.New("timeout")},
	)
	require.NoError(t, err)

	_, ok, err := s.GetDividendYield(context.Background(), "TSLA")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestGetDividendYieldAllErrors(t *testing.T) {
	s, err := NewCombinedSource(
		&mock.QuoteProvider{Id: "a", YieldErr: errors.New("a failed")},
		&mock.QuoteProvider{Id: "b", YieldErr: errors.New("b failed")},
	)
	require.NoError(t, err)

	_, ok, err := s.GetDividendYield(context.Background(), "TSLA")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "b failed")
}

func TestCryptoOnlyAsksCryptoProviders(t *testing.T) {
	equity := &mock.QuoteProvider{Id: "equity", Spot: 1}
	crypto := &mock.CryptoQuoteProvider{
		QuoteProvider: &mock.QuoteProvider{Id: "crypto"},
		CryptoSpot:    64000,
		CryptoCloses:  stockval.ClosePriceSeries{62000, 63000, 64000},
	}
	s, err := NewCombinedSource(equity, crypto)
	require.NoError(t, err)

	spot, err := s.GetCryptoSpot(context.Background(), "btcusd")
	require.NoError(t, err)
	assert.Equal(t, 64000.0, spot)
	closes, err := s.GetCryptoDailyCloses(context.Background(), "BTC-USD", 2)
	require.NoError(t, err)
	assert.Equal(t, stockval.ClosePriceSeries{63000, 64000}, closes)

	equityOnly, err := NewCombinedSource(equity)
	require.NoError(t, err)
	_, err = equityOnly.GetCryptoSpot(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, stockval.ErrConfiguration)
}

func TestResolverMapsIsin(t *testing.T) {
	p := &mock.QuoteProvider{Id: "first", Spot: 180}
	s, err := NewCombinedSource(p)
	require.NoError(t, err)
	s = s.WithResolver(isinResolver{"US0378331005": "AAPL"})

	spot, err := s.GetSpot(context.Background(), "us0378331005")
	require.NoError(t, err)
	assert.Equal(t, 180.0, spot)
	assert.Equal(t, []stockval.BrokerId{"first"}, s.ProviderIds())
}
