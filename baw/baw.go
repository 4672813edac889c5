// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

// Package baw prices American options with the Barone-Adesi-Whaley (1987) quadratic approximation.
package baw

import (
	"encoding/json"
	"fmt"
	"math"

	"financebuddy/greeks"
	"financebuddy/stockval"
)

const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-6

	zeroYield  = 1e-10
	zeroRate   = 1e-10
	zeroExpiry = 1e-10
)

type Result struct {
	AmericanPrice        float64 `json:"american_price"`
	EuropeanPrice        float64 `json:"european_price"`
	EarlyExercisePremium float64 `json:"early_exercise_premium"`
	// Spot at which immediate exercise becomes optimal.
	// +Inf for a call and 0 for a put if it never is.
	CriticalPrice float64 `json:"critical_price"`
	Converged     bool    `json:"converged"`
	Iterations    int     `json:"iterations"`
}

type resultJson struct {
	AmericanPrice        float64  `json:"american_price"`
	EuropeanPrice        float64  `json:"european_price"`
	EarlyExercisePremium float64  `json:"early_exercise_premium"`
	CriticalPrice        *float64 `json:"critical_price"`
	Converged            bool     `json:"converged"`
	Iterations           int      `json:"iterations"`
}

// MarshalJSON writes an infinite critical price as null, JSON has no infinity.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJson{
		AmericanPrice:        r.AmericanPrice,
		EuropeanPrice:        r.EuropeanPrice,
		EarlyExercisePremium: r.EarlyExercisePremium,
		Converged:            r.Converged,
		Iterations:           r.Iterations,
	}
	if !math.IsInf(r.CriticalPrice, 0) && !math.IsNaN(r.CriticalPrice) {
		critical := r.CriticalPrice
		out.CriticalPrice = &critical
	}
	return json.Marshal(out)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJson
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		AmericanPrice:        in.AmericanPrice,
		EuropeanPrice:        in.EuropeanPrice,
		EarlyExercisePremium: in.EarlyExercisePremium,
		CriticalPrice:        math.Inf(1),
		Converged:            in.Converged,
		Iterations:           in.Iterations,
	}
	if in.CriticalPrice != nil {
		r.CriticalPrice = *in.CriticalPrice
	}
	return nil
}

// Solver finds the early exercise boundary with Newton-Raphson.
// Running out of iterations is not an error, the last iterate is used and Converged is false.
type Solver struct {
	MaxIterations int
	Tolerance     float64
}

func NewSolver(maxIterations int, tolerance float64) Solver {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return Solver{MaxIterations: maxIterations, Tolerance: tolerance}
}

func DefaultSolver() Solver {
	return NewSolver(DefaultMaxIterations, DefaultTolerance)
}

// Compute prices an American option, using the same conventions as greeks.Compute.
func (s Solver) Compute(spot, k, r, q, sigma, t float64, side stockval.Side) (Result, error) {
	if side != stockval.SideCall && side != stockval.SidePut {
		return Result{}, fmt.Errorf("%w: unknown option side %d", stockval.ErrDomain, side)
	}
	european, err := greeks.EuropeanPrice(spot, k, r, q, sigma, t, side)
	if err != nil {
		return Result{}, err
	}

	// Without dividends an American call is never exercised early.
	if side == stockval.SideCall && q <= zeroYield {
		return Result{
			AmericanPrice: european,
			EuropeanPrice: european,
			CriticalPrice: math.Inf(1),
			Converged:     true,
		}, nil
	}
	// Without a positive rate receiving the strike early has no value, the put is held.
	if side == stockval.SidePut && r <= zeroRate {
		return Result{
			AmericanPrice: european,
			EuropeanPrice: european,
			CriticalPrice: 0,
			Converged:     true,
		}, nil
	}
	if t < zeroExpiry {
		intrinsic := side.Intrinsic(spot, k)
		return Result{
			AmericanPrice:        intrinsic,
			EuropeanPrice:        european,
			EarlyExercisePremium: intrinsic - european,
			CriticalPrice:        k,
			Converged:            true,
		}, nil
	}

	var b boundary
	if side == stockval.SideCall {
		b = s.callBoundary(k, r, q, sigma, t)
	} else {
		b = s.putBoundary(k, r, q, sigma, t)
	}
	american := b.price(spot, k, r, q, sigma, t, european)
	return Result{
		AmericanPrice:        american,
		EuropeanPrice:        european,
		EarlyExercisePremium: american - european,
		CriticalPrice:        b.critical,
		Converged:            b.converged,
		Iterations:           b.iterations,
	}, nil
}

// Compute uses the default solver settings.
func Compute(spot, k, r, q, sigma, t float64, side stockval.Side) (Result, error) {
	return DefaultSolver().Compute(spot, k, r, q, sigma, t, side)
}

type boundary struct {
	side       stockval.Side
	critical   float64
	exponent   float64
	converged  bool
	iterations int
}

type coefficients struct {
	q1, q2 float64
}

func newCoefficients(r, q, sigma, t float64) coefficients {
	variance := sigma * sigma
	m := 2 * r / variance
	n := 2 * (r - q) / variance
	kf := 1 - math.Exp(-r*t)
	// M/Kf tends to 2/(sigma^2 T) for r -> 0.
	ratio := 2 / (variance * t)
	if math.Abs(kf) > 1e-12 {
		ratio = m / kf
	}
	root := math.Sqrt((n-1)*(n-1) + 4*ratio)
	return coefficients{
		q1: 0.5 * (-(n - 1) - root),
		q2: 0.5 * (-(n - 1) + root),
	}
}

func d1(spot, k, r, q, sigma, t float64) float64 {
	return (math.Log(spot/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
}

func europeanAt(spot, k, r, q, sigma, t float64, side stockval.Side) float64 {
	// Inputs were validated, the boundary iterate stays positive.
	p, _ := greeks.EuropeanPrice(spot, k, r, q, sigma, t, side)
	return p
}

// Solves S - K = c(S) + (1 - e^(-qT) N(d1(S))) S / q2.
func (s Solver) callBoundary(k, r, q, sigma, t float64) boundary {
	c := newCoefficients(r, q, sigma, t)
	divDisc := math.Exp(-q * t)
	volSqrtT := sigma * math.Sqrt(t)

	critical := k + k/(c.q2-1)*(1-divDisc*greeks.NormCDF(d1(k, k, r, q, sigma, t)))
	b := boundary{side: stockval.SideCall, exponent: c.q2}
	for b.iterations < s.MaxIterations {
		b.iterations++
		x := d1(critical, k, r, q, sigma, t)
		lhs := critical - k
		rhs := europeanAt(critical, k, r, q, sigma, t, stockval.SideCall) + (1-divDisc*greeks.NormCDF(x))*critical/c.q2
		diff := lhs - rhs
		if math.Abs(diff) < s.Tolerance {
			b.converged = true
			break
		}
		slope := (1-divDisc*greeks.NormCDF(x))*(1-1/c.q2) + divDisc*greeks.NormPDF(x)/(c.q2*volSqrtT)
		next := critical - diff/slope
		if !(next > 0) || math.IsInf(next, 0) {
			break
		}
		critical = next
	}
	b.critical = critical
	return b
}

// Solves K - S = p(S) - (1 - e^(-qT) N(-d1(S))) S / q1.
func (s Solver) putBoundary(k, r, q, sigma, t float64) boundary {
	c := newCoefficients(r, q, sigma, t)
	divDisc := math.Exp(-q * t)
	volSqrtT := sigma * math.Sqrt(t)

	critical := k - k/(1-c.q1)*(1-divDisc*greeks.NormCDF(-d1(k, k, r, q, sigma, t)))
	b := boundary{side: stockval.SidePut, exponent: c.q1}
	for b.iterations < s.MaxIterations {
		b.iterations++
		x := d1(critical, k, r, q, sigma, t)
		lhs := k - critical
		rhs := europeanAt(critical, k, r, q, sigma, t, stockval.SidePut) - (1-divDisc*greeks.NormCDF(-x))*critical/c.q1
		diff := lhs - rhs
		if math.Abs(diff) < s.Tolerance {
			b.converged = true
			break
		}
		slope := -(1-divDisc*greeks.NormCDF(-x))*(1-1/c.q1) + divDisc*greeks.NormPDF(x)/(c.q1*volSqrtT)
		next := critical - diff/slope
		if !(next > 0) || math.IsInf(next, 0) {
			break
		}
		critical = next
	}
	b.critical = critical
	return b
}

// price blends the European value with the early exercise term on the continuation side
// of the boundary and returns the exercise value beyond it.
func (b boundary) price(spot, k, r, q, sigma, t, european float64) float64 {
	divDisc := math.Exp(-q * t)
	x := d1(b.critical, k, r, q, sigma, t)
	if b.side == stockval.SideCall {
		if spot < b.critical {
			a2 := b.critical / b.exponent * (1 - divDisc*greeks.NormCDF(x))
			return european + a2*math.Pow(spot/b.critical, b.exponent)
		}
		return spot - k
	}
	if spot > b.critical {
		a1 := -b.critical / b.exponent * (1 - divDisc*greeks.NormCDF(-x))
		return european + a1*math.Pow(spot/b.critical, b.exponent)
	}
	return k - spot
}
