// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package polygon

import (
	"context"
	"net/http"
	"time"

	polygonrest "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
)

const maxAggsPerPage = 5000

type restClient struct {
	client *polygonrest.Client
}

func newRestClient(apiKey string, timeout time.Duration) *restClient {
	return &restClient{
		client: polygonrest.NewWithClient(apiKey, &http.Client{Timeout: timeout}),
	}
}

func (c *restClient) lastTradePrice(ctx context.Context, ticker string) (float64, error) {
	resp, err := c.client.GetLastTrade(ctx, &models.GetLastTradeParams{Ticker: ticker})
	if err != nil {
		return 0, err
	}
	return resp.Results.Price, nil
}

func (c *restClient) previousClose(ctx context.Context, ticker string) (float64, error) {
	params := models.GetPreviousCloseAggParams{Ticker: ticker}.WithAdjusted(true)
	resp, err := c.client.GetPreviousCloseAgg(ctx, params)
	if err != nil {
		return 0, err
	}
	if len(resp.Results) == 0 {
		return 0, nil
	}
	return resp.Results[len(resp.Results)-1].Close, nil
}

func (c *restClient) dailyCloses(ctx context.Context, ticker string, from, to time.Time) ([]float64, error) {
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithOrder(models.Asc).WithAdjusted(true).WithLimit(maxAggsPerPage)

	var closes []float64
	iter := c.client.ListAggs(ctx, params)
	for iter.Next() {
		closes = append(closes, iter.Item().Close)
	}
	return closes, iter.Err()
}

func (c *restClient) dividends(ctx context.Context, ticker string, since time.Time) ([]dividend, error) {
	params := models.ListDividendsParams{}.
		WithTicker(models.EQ, ticker).
		WithExDividendDate(models.GTE, models.Date(since))

	var divs []dividend
	iter := c.client.ListDividends(ctx, params)
	for iter.Next() {
		item := iter.Item()
		exDate, err := time.Parse(time.DateOnly, item.ExDividendDate)
		if err != nil {
			continue
		}
		divs = append(divs, dividend{CashAmount: item.CashAmount, ExDate: exDate})
	}
	return divs, iter.Err()
}
