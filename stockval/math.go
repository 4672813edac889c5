// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package stockval

import (
	"strconv"
	"strings"

	"github.com/ericlagergren/decimal"
)

// The builtin decimal.Big conversion from float64 is an "exact" conversion, and useless for our cases.
// Therefore, convert using string conversion, even though this requires memory allocation.
// See also https://github.com/ericlagergren/decimal/issues/142

// Convert float to string and then to decimal.
func ConvertFloatToDecimal(v float64, bitSize int) *decimal.Big {
	d, _ := new(decimal.Big).SetString(strconv.FormatFloat(v, 'f', -1, bitSize))
	return d
}

// ParsePrice parses a price which a vendor sends as json string.
func ParsePrice(s string) (*decimal.Big, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	return new(decimal.Big).SetString(s)
}

// DecimalToFloat converts a vendor price to float64. Nil and non-finite values are reported as not ok.
func DecimalToFloat(v *decimal.Big) (float64, bool) {
	if v == nil || !v.IsFinite() {
		return 0, false
	}
	return v.Float64()
}

func IsGreaterThanZero(v *decimal.Big) bool {
	return v != nil && v.CmpTotal(new(decimal.Big)) > 0
}

// MidPrice returns the bid/ask midpoint, or whichever side is positive if only one is.
func MidPrice(bid, ask *decimal.Big) *decimal.Big {
	hasBid := IsGreaterThanZero(bid)
	hasAsk := IsGreaterThanZero(ask)
	switch {
	case hasBid && hasAsk:
		mid := new(decimal.Big).Add(bid, ask)
		return mid.Quo(mid, decimal.New(2, 0))
	case hasBid:
		return new(decimal.Big).Copy(bid)
	case hasAsk:
		return new(decimal.Big).Copy(ask)
	default:
		return nil
	}
}

// SumDecimals adds float values using decimal arithmetic, e.g. for dividend cash amounts.
func SumDecimals(values []float64) *decimal.Big {
	sum := new(decimal.Big)
	for _, v := range values {
		sum.Add(sum, ConvertFloatToDecimal(v, 64))
	}
	return sum
}
