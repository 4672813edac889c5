// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"financebuddy/config"
	"financebuddy/marketdata"
	"financebuddy/mock"
	"financebuddy/stockval"
	"financebuddy/valuation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServiceFactory(p *mock.QuoteProvider) serviceFactory {
	return func() (*valuation.Service, error) {
		source, err := marketdata.NewCombinedSource(p)
		if err != nil {
			return nil, err
		}
		pricing := config.NewPricingConfig()
		pricing.SetRiskFreeRate(0.05)
		return valuation.NewService(source, pricing), nil
	}
}

func execute(t *testing.T, factory serviceFactory, args ...string) (string, error) {
	out := &bytes.Buffer{}
	root := newRootCommand(factory)
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPriceCommandTable(t *testing.T) {
	factory := testServiceFactory(&mock.QuoteProvider{Id: "m", Spot: 100, YieldOk: true})
	out, err := execute(t, factory, "price", "--symbol", "aapl", "--strike", "100",
		"--expiry", "2024-01-01", "--as-of", "2023-01-01", "--constant-vol", "0.2")
	require.NoError(t, err)
	assert.Contains(t, out, "fair value")
	assert.Contains(t, out, "10.450584")
	assert.Contains(t, out, "AAPL")
}

func TestPriceCommandJson(t *testing.T) {
	factory := testServiceFactory(&mock.QuoteProvider{Id: "m", Spot: 100, YieldOk: true})
	out, err := execute(t, factory, "price", "--json", "--symbol", "AAPL", "--side", "put", "--strike", "100",
		"--expiry", "2024-01-01", "--as-of", "2023-01-01", "--constant-vol", "0.2")
	require.NoError(t, err)
	var res struct {
		Inputs struct {
			Side  string  `json:"side"`
			AsOf  string  `json:"as_of"`
			Sigma float64 `json:"sigma"`
		} `json:"inputs"`
		PriceAndGreeks struct {
			FairValue float64 `json:"fair_value"`
		} `json:"price_and_greeks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "PUT", res.Inputs.Side)
	assert.Equal(t, "2023-01-01", res.Inputs.AsOf)
	assert.Equal(t, 0.2, res.Inputs.Sigma)
	assert.InDelta(t, 5.573526022256971, res.PriceAndGreeks.FairValue, 1e-12)
}

func TestAmericanCommand(t *testing.T) {
	factory := testServiceFactory(&mock.QuoteProvider{Id: "m", Spot: 60, YieldOk: true})
	out, err := execute(t, factory, "american", "--symbol", "XYZ", "--side", "PUT", "--strike", "100",
		"--expiry", "2024-01-01", "--as-of", "2023-01-01", "--constant-vol", "0.3")
	require.NoError(t, err)
	assert.Contains(t, out, "american price")
	assert.Contains(t, out, "40.000000")
}

func TestCommandInputErrors(t *testing.T) {
	factory := testServiceFactory(&mock.QuoteProvider{Id: "m", Spot: 100, YieldOk: true})
	_, err := execute(t, factory, "price", "--symbol", "AAPL", "--strike", "100", "--expiry", "01/01/2024")
	assert.ErrorIs(t, err, stockval.ErrDomain)
	_, err = execute(t, factory, "price", "--symbol", "AAPL", "--strike", "100", "--expiry", "2024-01-01", "--vol-mode", "local")
	assert.ErrorIs(t, err, stockval.ErrDomain)
	_, err = execute(t, factory, "price", "--symbol", "AAPL", "--expiry", "2024-01-01")
	assert.Error(t, err)
}

func TestSpotCommand(t *testing.T) {
	factory := testServiceFactory(&mock.QuoteProvider{Id: "m", Spot: 123.25})
	out, err := execute(t, factory, "spot", "msft", "aapl")
	require.NoError(t, err)
	assert.Contains(t, out, "MSFT")
	assert.Contains(t, out, "123.250000")

	failing := testServiceFactory(&mock.QuoteProvider{Id: "m", SpotErr: errors.New("offline")})
	out, err = execute(t, failing, "spot", "--json", "msft")
	assert.Error(t, err)
	assert.Contains(t, out, "offline")
}
