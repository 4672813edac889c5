// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package stockval

// Trade conditions which do not update the consolidated last sale price.
// Such a print is not a usable spot price.
// https://www.nyse.com/publicdocs/ctaplan/notifications/trader-update/cts_output_spec.pdf
// page 115
var noLastSaleCts = map[string]bool{
	"B": true, // average price
	"C": true, // cash sale
	"H": true, // price variation
	"I": true, // odd lot
	"M": true, // official close
	"N": true, // next day
	"O": true, // market center opening trade
	"P": true, // prior reference price
	"Q": true, // official open
	"R": true, // seller
	"U": true, // extended hours sold out of sequence
	"V": true, // contingent
	"Z": true, // sold out of sequence
	"4": true, // derivatively priced
	"7": true, // qualified contingent
	"9": true, // corrected consolidated close
}

// https://www.utpplan.com/DOC/UtpBinaryOutputSpec.pdf
// page 43
var noLastSaleUtp = map[string]bool{
	"C": true,
	"G": true, // bunched sold
	"H": true,
	"I": true,
	"M": true,
	"N": true,
	"P": true,
	"Q": true,
	"R": true,
	"U": true,
	"V": true,
	"W": true, // average price
	"Z": true,
	"1": true, // stopped stock
	"4": true,
	"5": true, // reopening prints
	"6": true, // closing prints
	"7": true,
	"8": true, // 611 exempt placeholder
	"9": true,
}

var noLastSaleByTape = map[string]map[string]bool{
	"A": noLastSaleCts,
	"B": noLastSaleCts,
	"C": noLastSaleUtp,
}

// UpdatesLastSale reports whether a trade with the given conditions sets the last price.
// Conditions are combined with "and", so a single disqualifying condition is enough.
// Unknown tapes and unknown condition codes count as regular trades.
func UpdatesLastSale(tape string, conditions []string) bool {
	excluded, ok := noLastSaleByTape[tape]
	if !ok {
		return true
	}
	for _, c := range conditions {
		if excluded[c] {
			return false
		}
	}
	return true
}
