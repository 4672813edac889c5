// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

// Package impliedvol backs out the Black-Scholes volatility from a quoted option price.
package impliedvol

import (
	"errors"
	"fmt"
	"math"

	"financebuddy/greeks"
	"financebuddy/stockval"
)

const DefaultMaxEvaluations = 500

var (
	ErrNotBracketed  = errors.New("market price is outside of the volatility bounds")
	ErrNoConvergence = errors.New("implied volatility did not converge")
)

// Problem describes a European option with a known market price.
type Problem struct {
	MarketPrice   float64
	Side          stockval.Side
	Spot          float64
	Strike        float64
	Rate          float64
	DividendYield float64
	T             float64
}

// Settings bound the search. A guess inside the bounds splits them before Brent starts.
type Settings struct {
	Guess     float64
	Tolerance float64
	Lower     float64
	Upper     float64
}

// BrentSolver finds the root of price(sigma) - market price with Brent's method.
type BrentSolver struct {
	MaxEvaluations int
}

func NewBrentSolver() BrentSolver {
	return BrentSolver{MaxEvaluations: DefaultMaxEvaluations}
}

func (b BrentSolver) Solve(p Problem, s Settings) (float64, error) {
	if err := greeks.Validate(p.Spot, p.Strike, 1, p.T); err != nil {
		return 0, err
	}
	if !(p.MarketPrice > 0) || math.IsInf(p.MarketPrice, 0) {
		return 0, fmt.Errorf("%w: market price must be positive, got %v", stockval.ErrDomain, p.MarketPrice)
	}
	if !(s.Lower > 0) || !(s.Upper > s.Lower) || !(s.Tolerance > 0) {
		return 0, fmt.Errorf("%w: invalid solver settings %+v", stockval.ErrConfiguration, s)
	}
	maxEval := b.MaxEvaluations
	if maxEval <= 0 {
		maxEval = DefaultMaxEvaluations
	}
	objective := func(sigma float64) float64 {
		v, _ := greeks.EuropeanPrice(p.Spot, p.Strike, p.Rate, p.DividendYield, sigma, p.T, p.Side)
		return v - p.MarketPrice
	}
	lower, upper := s.Lower, s.Upper
	if s.Guess > s.Lower && s.Guess < s.Upper {
		fg := objective(s.Guess)
		if fg == 0 {
			return s.Guess, nil
		}
		lower, upper = narrowBracket(fg, s.Guess, lower, upper)
	}
	return brent(objective, lower, upper, s.Tolerance, maxEval)
}

// narrowBracket uses the sign of the pricing error at the guess to keep only the half of
// the bounds which can contain the root. The price is increasing in sigma.
func narrowBracket(fGuess, guess, lower, upper float64) (float64, float64) {
	if fGuess > 0 {
		return lower, guess
	}
	return guess, upper
}

func brent(f func(float64) float64, a, b, tol float64, maxEval int) (float64, error) {
	const eps = 2.220446049250313e-16
	fa, fb := f(a), f(b)
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, fmt.Errorf("%w [%v, %v]", ErrNotBracketed, a, b)
	}
	c, fc := b, fb
	var d, e float64
	for i := 0; i < maxEval; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol1 := 2*eps*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}
		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			// Inverse quadratic interpolation, secant if only two points are known.
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}
		a, fa = b, fb
		switch {
		case math.Abs(d) > tol1:
			b += d
		case xm >= 0:
			b += tol1
		default:
			b -= tol1
		}
		fb = f(b)
	}
	return b, fmt.Errorf("%w after %d evaluations", ErrNoConvergence, maxEval)
}
