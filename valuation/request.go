// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package valuation

import (
	"fmt"
	"strings"
	"time"

	"financebuddy/baw"
	"financebuddy/greeks"
	"financebuddy/stockval"
)

type VolMode string

const (
	VolHistorical VolMode = "HIST"
	VolImplied    VolMode = "IV"
	VolConstant   VolMode = "CONST"
)

// ParseVolMode defaults to historical volatility.
func ParseVolMode(s string) (VolMode, error) {
	switch m := VolMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return VolHistorical, nil
	case VolHistorical, VolImplied, VolConstant:
		return m, nil
	case "CONSTANT":
		return VolConstant, nil
	default:
		return "", fmt.Errorf("%w: unknown vol mode %q", stockval.ErrDomain, s)
	}
}

// ParseDate reads an ISO-8601 calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", stockval.ErrDomain, s)
	}
	return t, nil
}

// Request describes one valuation. A set ConstantVol overrides VolMode.
type Request struct {
	Symbol            string
	Side              string
	Strike            float64
	Expiry            time.Time
	AsOf              time.Time
	VolMode           VolMode
	ConstantVol       *float64
	MarketOptionPrice *float64
	AssetClass        stockval.AssetClass
	// Empty means the configured day count.
	DayCount string
}

type EuropeanResponse struct {
	Inputs         PricingInputs `json:"inputs"`
	PriceAndGreeks greeks.Result `json:"price_and_greeks"`
}

type AmericanResponse struct {
	Inputs         PricingInputs `json:"inputs"`
	AmericanResult baw.Result    `json:"american_result"`
}

type SpotResult struct {
	Price *float64 `json:"price"`
	Error *string  `json:"error"`
}
