// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package stockval

import (
	"errors"
	"testing"

	"github.com/ericlagergren/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseSide(t *testing.T) {
	s, err := ParseSide(" call ")
	assert.NoError(t, err)
	assert.Equal(t, SideCall, s)
	s, err = ParseSide("PUT")
	assert.NoError(t, err)
	assert.Equal(t, SidePut, s)
	_, err = ParseSide("straddle")
	assert.True(t, errors.Is(err, ErrDomain))
}

func TestIntrinsic(t *testing.T) {
	assert.Equal(t, 20.0, SidePut.Intrinsic(80, 100))
	assert.Equal(t, 0.0, SideCall.Intrinsic(80, 100))
	assert.Equal(t, 15.0, SideCall.Intrinsic(115, 100))
}

func TestNormalizeDividendYield(t *testing.T) {
	y, ok := NormalizeDividendYield(0.015)
	assert.True(t, ok)
	assert.InDelta(t, 0.015, y, 1e-12)

	y, ok = NormalizeDividendYield(1.5)
	assert.True(t, ok)
	assert.InDelta(t, 0.015, y, 1e-12)

	y, ok = NormalizeDividendYield(0.25)
	assert.True(t, ok)
	assert.InDelta(t, 0.25, y, 1e-12)

	// Known limitation: a true 30% yield is read as 0.3%.
	y, ok = NormalizeDividendYield(0.30)
	assert.True(t, ok)
	assert.InDelta(t, 0.003, y, 1e-12)

	_, ok = NormalizeDividendYield(0)
	assert.False(t, ok)
	_, ok = NormalizeDividendYield(-1)
	assert.False(t, ok)
	_, ok = NormalizeDividendYield(150)
	assert.False(t, ok)
}

func TestNormalizeCryptoPair(t *testing.T) {
	for in, out := range map[string]string{
		"btcusd":     "BTC/USD",
		"BTC-USD":    "BTC/USD",
		"eth_btc":    "ETH/BTC",
		"SOL:USDT":   "SOL/USDT",
		" btc/usd ":  "BTC/USD",
		"DOGEUSDC":   "DOGE/USDC",
		"ETH / USD ": "ETH/USD",
	} {
		pair, err := NormalizeCryptoPair(in)
		assert.NoError(t, err, in)
		assert.Equal(t, out, pair, in)
	}
	_, err := NormalizeCryptoPair("")
	assert.True(t, errors.Is(err, ErrDomain))
	_, err = NormalizeCryptoPair("A/B/C")
	assert.Error(t, err)
	_, err = NormalizeCryptoPair("USD")
	assert.Error(t, err)

	base, quote := SplitCryptoPair("BTC/USD")
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USD", quote)
}

func TestClosePriceSeriesTail(t *testing.T) {
	s := ClosePriceSeries{1, 2, 3, 4, 5}
	tail, err := s.Tail(3)
	assert.NoError(t, err)
	assert.Equal(t, ClosePriceSeries{3, 4, 5}, tail)

	_, err = s.Tail(6)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	_, err = s.Tail(0)
	assert.True(t, errors.Is(err, ErrDomain))
}

func TestMidPrice(t *testing.T) {
	mid := MidPrice(decimal.New(12560, 2), decimal.New(12568, 2))
	assert.Equal(t, 0, decimal.New(12564, 2).Cmp(mid))

	mid = MidPrice(nil, decimal.New(10, 0))
	assert.Equal(t, 0, decimal.New(10, 0).Cmp(mid))

	assert.Nil(t, MidPrice(nil, new(decimal.Big)))
}

func TestDecimalToFloat(t *testing.T) {
	v, ok := DecimalToFloat(decimal.New(12591, 2))
	assert.True(t, ok)
	assert.InDelta(t, 125.91, v, 1e-9)
	_, ok = DecimalToFloat(nil)
	assert.False(t, ok)

	sum := SumDecimals([]float64{0.24, 0.24, 0.25, 0.25})
	f, _ := sum.Float64()
	assert.InDelta(t, 0.98, f, 1e-12)
}

func TestUpdatesLastSale(t *testing.T) {
	assert.True(t, UpdatesLastSale("A", []string{"@", "F"}))
	assert.False(t, UpdatesLastSale("A", []string{"@", "I"}))
	assert.True(t, UpdatesLastSale("A", []string{"5"}))
	assert.False(t, UpdatesLastSale("C", []string{"5"}))
	assert.False(t, UpdatesLastSale("C", []string{"W"}))
	assert.True(t, UpdatesLastSale("B", []string{"W"}))
	assert.True(t, UpdatesLastSale("", []string{"I"}))
	assert.True(t, UpdatesLastSale("C", nil))
}
