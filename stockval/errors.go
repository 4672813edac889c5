// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package stockval

import "errors"

var (
	// Missing credentials, empty provider list or an unusable calculator setup.
	ErrConfiguration = errors.New("configuration error")
	// Inputs outside of the mathematical domain (non-positive spot, strike, volatility or time).
	ErrDomain = errors.New("invalid input")
	// Fewer observations than requested.
	ErrInsufficientData = errors.New("insufficient data")
	// The vendor answered, but without a usable value.
	ErrNoData = errors.New("no data")
)
