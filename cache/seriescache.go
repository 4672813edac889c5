// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"financebuddy/stockval"
)

// SeriesCache stores daily close series. Failures are treated as cache misses.
type SeriesCache interface {
	Load(ctx context.Context, key string) (stockval.ClosePriceSeries, bool)
	Store(ctx context.Context, key string, s stockval.ClosePriceSeries)
}

var keyReplacer = strings.NewReplacer("/", "-", ":", "-", " ", "")

// SeriesKey builds a key which is valid per broker, symbol, length and day.
// Series are only reused on the same day, closes of the current day may still change.
func SeriesKey(broker stockval.BrokerId, symbol string, need int, day time.Time) string {
	return keyReplacer.Replace(fmt.Sprintf("closes_%s_%s_%d_%s", broker, symbol, need, day.UTC().Format("20060102")))
}

type cachedSeries struct {
	Closes   []float64 `json:"closes"`
	StoredAt time.Time `json:"stored_at"`
}

func encodeSeries(s stockval.ClosePriceSeries) ([]byte, error) {
	return json.Marshal(cachedSeries{Closes: s, StoredAt: time.Now().UTC()})
}

func decodeSeries(data []byte) (stockval.ClosePriceSeries, error) {
	var c cachedSeries
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if len(c.Closes) == 0 {
		return nil, stockval.ErrNoData
	}
	return c.Closes, nil
}
