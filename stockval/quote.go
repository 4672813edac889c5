// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package stockval

import (
	"fmt"
	"strings"
	"time"
)

type Quote struct {
	Symbol    string
	Price     float64
	Source    BrokerId
	Timestamp time.Time
}

// Daily closes, oldest first.
type ClosePriceSeries []float64

// Tail returns the most recent need closes. A shorter series is an error, it is never padded.
func (s ClosePriceSeries) Tail(need int) (ClosePriceSeries, error) {
	if need <= 0 {
		return nil, fmt.Errorf("%w: requested %d closes", ErrDomain, need)
	}
	if len(s) < need {
		return nil, fmt.Errorf("%w: need %d closes, got %d", ErrInsufficientData, need, len(s))
	}
	return s[len(s)-need:], nil
}

// Dividend yields above this are interpreted as percent.
const dividendPercentThreshold = 0.25

// NormalizeDividendYield converts a vendor reported yield into a decimal fraction.
// Values in (0.25, 100] are treated as percent. Values <= 0 or > 100 are unusable, ok is false.
// A genuine fractional yield above 25% would be misread as percent, this is accepted.
func NormalizeDividendYield(raw float64) (float64, bool) {
	if raw <= 0 || raw > 100 {
		return 0, false
	}
	if raw > dividendPercentThreshold {
		return raw / 100, true
	}
	return raw, true
}

var knownCryptoQuotes = []string{"USDT", "USDC", "USD", "BTC", "ETH"}

// NormalizeCryptoPair converts "btcusd", "BTC-USD", "btc_usd" or "BTC:USD" to "BTC/USD".
func NormalizeCryptoPair(symbol string) (string, error) {
	raw := strings.ToUpper(strings.TrimSpace(symbol))
	if raw == "" {
		return "", fmt.Errorf("%w: symbol is required", ErrDomain)
	}
	for _, sep := range []string{"/", "-", "_", ":"} {
		if strings.Contains(raw, sep) {
			var parts []string
			for _, p := range strings.Split(raw, sep) {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
			if len(parts) != 2 {
				return "", fmt.Errorf("%w: invalid crypto pair %q", ErrDomain, symbol)
			}
			return parts[0] + "/" + parts[1], nil
		}
	}
	for _, q := range knownCryptoQuotes {
		if strings.HasSuffix(raw, q) && len(raw) > len(q) {
			return raw[:len(raw)-len(q)] + "/" + q, nil
		}
	}
	return "", fmt.Errorf("%w: unable to normalize crypto symbol %q", ErrDomain, symbol)
}

// SplitCryptoPair returns base and quote currency of a normalized pair.
func SplitCryptoPair(pair string) (base, quote string) {
	base, quote, _ = strings.Cut(pair, "/")
	return
}
