// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package stockval

import (
	"fmt"
	"regexp"
	"strings"
)

const DefaultEquityExchange = "US" // TODO support other countries

var IsinRegex = regexp.MustCompile(`^([A-Z]{2})([A-Z0-9]{9})[0-9]$`)

type AssetClass int

const (
	AssetClassEquity AssetClass = iota
	AssetClassCrypto
)

func ParseAssetClass(s string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "equity", "stock":
		return AssetClassEquity, nil
	case "crypto":
		return AssetClassCrypto, nil
	default:
		return AssetClassEquity, fmt.Errorf("%w: unknown asset class %q", ErrDomain, s)
	}
}

func (a AssetClass) String() string {
	if a == AssetClassCrypto {
		return "crypto"
	}
	return "equity"
}

// NormalizeSymbol trims and upper-cases an equity ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

type BrokerId string
