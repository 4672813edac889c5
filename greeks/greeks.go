// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

// Package greeks implements the Black-Scholes-Merton closed form with continuous dividend yield.
package greeks

import (
	"fmt"
	"math"

	"financebuddy/stockval"

	"gonum.org/v1/gonum/stat/distuv"
)

// Result holds the fair value and the sensitivities. Theta is per year.
type Result struct {
	FairValue float64 `json:"fair_value"`
	Delta     float64 `json:"delta"`
	Gamma     float64 `json:"gamma"`
	Theta     float64 `json:"theta"`
	Vega      float64 `json:"vega"`
	Rho       float64 `json:"rho"`
}

// NormCDF is the standard normal cumulative distribution function, computed from the complementary error function.
func NormCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormPDF is the standard normal probability density function.
func NormPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// Validate checks the preconditions of all formulas in this package.
func Validate(s, k, sigma, t float64) error {
	switch {
	case !(s > 0) || math.IsInf(s, 0):
		return fmt.Errorf("%w: spot must be positive, got %v", stockval.ErrDomain, s)
	case !(k > 0) || math.IsInf(k, 0):
		return fmt.Errorf("%w: strike must be positive, got %v", stockval.ErrDomain, k)
	case !(sigma > 0) || math.IsInf(sigma, 0):
		return fmt.Errorf("%w: volatility must be positive, got %v", stockval.ErrDomain, sigma)
	case !(t > 0) || math.IsInf(t, 0):
		return fmt.Errorf("%w: time to expiry must be positive, got %v", stockval.ErrDomain, t)
	}
	return nil
}

// D1D2 returns the standardized Black-Scholes variables.
func D1D2(s, k, r, q, sigma, t float64) (d1, d2 float64, err error) {
	if err = Validate(s, k, sigma, t); err != nil {
		return 0, 0, err
	}
	d1, d2 = d1d2(s, k, r, q, sigma, t)
	return d1, d2, nil
}

func d1d2(s, k, r, q, sigma, t float64) (float64, float64) {
	volSqrtT := sigma * math.Sqrt(t)
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / volSqrtT
	return d1, d1 - volSqrtT
}

// EuropeanPrice returns the closed form fair value only.
func EuropeanPrice(s, k, r, q, sigma, t float64, side stockval.Side) (float64, error) {
	if err := Validate(s, k, sigma, t); err != nil {
		return 0, err
	}
	return europeanPrice(s, k, r, q, sigma, t, side), nil
}

func europeanPrice(s, k, r, q, sigma, t float64, side stockval.Side) float64 {
	d1, d2 := d1d2(s, k, r, q, sigma, t)
	discS := s * math.Exp(-q*t)
	discK := k * math.Exp(-r*t)
	if side == stockval.SidePut {
		return discK*NormCDF(-d2) - discS*NormCDF(-d1)
	}
	return discS*NormCDF(d1) - discK*NormCDF(d2)
}

// Compute returns fair value and greeks. Inputs are validated before any formula runs.
func Compute(s, k, r, q, sigma, t float64, side stockval.Side) (Result, error) {
	if err := Validate(s, k, sigma, t); err != nil {
		return Result{}, err
	}
	if side != stockval.SideCall && side != stockval.SidePut {
		return Result{}, fmt.Errorf("%w: unknown option side %d", stockval.ErrDomain, side)
	}
	d1, d2 := d1d2(s, k, r, q, sigma, t)
	sqrtT := math.Sqrt(t)
	divDisc := math.Exp(-q * t)
	rateDisc := math.Exp(-r * t)
	pdf := NormPDF(d1)

	res := Result{
		Gamma: divDisc * pdf / (s * sigma * sqrtT),
		Vega:  s * divDisc * pdf * sqrtT,
	}
	decay := -s * sigma * divDisc * pdf / (2 * sqrtT)
	if side == stockval.SideCall {
		nd1, nd2 := NormCDF(d1), NormCDF(d2)
		res.FairValue = s*divDisc*nd1 - k*rateDisc*nd2
		res.Delta = divDisc * nd1
		res.Rho = k * t * rateDisc * nd2
		res.Theta = decay - r*k*rateDisc*nd2 + q*s*divDisc*nd1
	} else {
		nd1, nd2 := NormCDF(-d1), NormCDF(-d2)
		res.FairValue = k*rateDisc*nd2 - s*divDisc*nd1
		res.Delta = -divDisc * nd1
		res.Rho = -k * t * rateDisc * nd2
		res.Theta = decay + r*k*rateDisc*nd2 - q*s*divDisc*nd1
	}
	return res, nil
}
