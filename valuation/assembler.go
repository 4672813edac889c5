// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

// Package valuation wires the input calculators and the pricing engines into one request contract.
package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"financebuddy/greeks"
	"financebuddy/impliedvol"
	"financebuddy/inputs"
	"financebuddy/stockval"
)

// PricingInputs is the complete and consistent input set of one valuation.
type PricingInputs struct {
	Symbol string
	Side   stockval.Side
	S      float64
	K      float64
	R      float64
	Q      float64
	Sigma  float64
	T      float64
	D1     float64
	D2     float64
	AsOf   time.Time
	Expiry time.Time
}

type pricingInputsJson struct {
	Symbol string        `json:"symbol"`
	Side   stockval.Side `json:"side"`
	S      float64       `json:"S"`
	K      float64       `json:"K"`
	R      float64       `json:"r"`
	Q      float64       `json:"q"`
	Sigma  float64       `json:"sigma"`
	T      float64       `json:"T"`
	D1     float64       `json:"d1"`
	D2     float64       `json:"d2"`
	AsOf   string        `json:"as_of"`
	Expiry string        `json:"expiry"`
}

func (p PricingInputs) MarshalJSON() ([]byte, error) {
	return json.Marshal(pricingInputsJson{
		Symbol: p.Symbol,
		Side:   p.Side,
		S:      p.S,
		K:      p.K,
		R:      p.R,
		Q:      p.Q,
		Sigma:  p.Sigma,
		T:      p.T,
		D1:     p.D1,
		D2:     p.D2,
		AsOf:   p.AsOf.Format(time.DateOnly),
		Expiry: p.Expiry.Format(time.DateOnly),
	})
}

// BuildParams identifies the contract. A zero AsOf means today.
type BuildParams struct {
	Symbol            string
	Side              string
	Strike            float64
	Expiry            time.Time
	AsOf              time.Time
	MarketOptionPrice *float64
}

// Assembler asks each calculator exactly once per build. If Implied is set, it is used
// instead of Volatility and requires a market option price.
type Assembler struct {
	Spot         inputs.SpotInput
	Rate         inputs.RateInput
	Dividend     inputs.DividendInput
	Volatility   inputs.VolatilityInput
	Implied      inputs.ImpliedVolatilityInput
	YearFraction inputs.YearFractionInput

	now func() time.Time
}

func (a Assembler) today() time.Time {
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	return DateOf(now())
}

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (a Assembler) Build(ctx context.Context, p BuildParams) (PricingInputs, error) {
	side, err := stockval.ParseSide(p.Side)
	if err != nil {
		return PricingInputs{}, err
	}
	if !(p.Strike > 0) || math.IsInf(p.Strike, 0) {
		return PricingInputs{}, fmt.Errorf("%w: strike must be positive, got %v", stockval.ErrDomain, p.Strike)
	}
	if a.Spot == nil || a.Rate == nil || a.Dividend == nil || a.YearFraction == nil ||
		(a.Volatility == nil && a.Implied == nil) {
		return PricingInputs{}, fmt.Errorf("%w: incomplete assembler", stockval.ErrConfiguration)
	}
	asOf := p.AsOf
	if asOf.IsZero() {
		asOf = a.today()
	}
	if !p.Expiry.After(asOf) {
		return PricingInputs{}, fmt.Errorf("%w: expiry %s must be after valuation date %s",
			stockval.ErrDomain, p.Expiry.Format(time.DateOnly), asOf.Format(time.DateOnly))
	}
	if a.Implied != nil && p.MarketOptionPrice == nil {
		return PricingInputs{}, fmt.Errorf("%w: market option price is required for implied volatility", stockval.ErrConfiguration)
	}

	s, err := a.Spot.ComputeSpot(ctx, p.Symbol)
	if err != nil {
		return PricingInputs{}, fmt.Errorf("spot: %w", err)
	}
	r, err := a.Rate.ComputeRate(asOf, p.Expiry)
	if err != nil {
		return PricingInputs{}, fmt.Errorf("risk free rate: %w", err)
	}
	q, err := a.Dividend.ComputeDividendYield(ctx, p.Symbol, asOf, p.Expiry)
	if err != nil {
		return PricingInputs{}, fmt.Errorf("dividend yield: %w", err)
	}
	t, err := a.YearFraction.ComputeYearFraction(asOf, p.Expiry)
	if err != nil {
		return PricingInputs{}, err
	}

	var sigma float64
	if a.Implied != nil {
		sigma, err = a.Implied.ComputeImpliedVolatility(impliedvol.Problem{
			MarketPrice:   *p.MarketOptionPrice,
			Side:          side,
			Spot:          s,
			Strike:        p.Strike,
			Rate:          r,
			DividendYield: q,
			T:             t,
		})
	} else {
		sigma, err = a.Volatility.ComputeVolatility(ctx, p.Symbol, asOf, p.Expiry)
	}
	if err != nil {
		return PricingInputs{}, fmt.Errorf("volatility: %w", err)
	}

	d1, d2, err := greeks.D1D2(s, p.Strike, r, q, sigma, t)
	if err != nil {
		return PricingInputs{}, err
	}
	return PricingInputs{
		Symbol: p.Symbol,
		Side:   side,
		S:      s,
		K:      p.Strike,
		R:      r,
		Q:      q,
		Sigma:  sigma,
		T:      t,
		D1:     d1,
		D2:     d2,
		AsOf:   asOf,
		Expiry: p.Expiry,
	}, nil
}
