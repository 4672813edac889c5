// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package calendar

import (
	"fmt"
	"math"
	"strings"
	"time"

	"financebuddy/stockval"
)

const (
	DayCountSimple     = "simple"
	DayCountAct365F    = "act365f"
	DayCountTrading252 = "trading252"
)

// A DayCounter converts a date range into a year fraction. Expiry must be after asOf.
type DayCounter interface {
	Name() string
	YearFraction(asOf, expiry time.Time) (float64, error)
}

// Whole calendar days divided by 365.
type SimpleDayCounter struct{}

// Actual elapsed time divided by 365 days, intraday parts included.
type Actual365Fixed struct{}

// Trading days over the bank calendar divided by the trading days per year.
type TradingDayCounter struct {
	Calendar    BankCalendar
	DaysPerYear int
}

func ParseDayCounter(name string, c BankCalendar) (DayCounter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DayCountSimple:
		return SimpleDayCounter{}, nil
	case DayCountAct365F, "actual365fixed":
		return Actual365Fixed{}, nil
	case DayCountTrading252:
		return TradingDayCounter{Calendar: c, DaysPerYear: 252}, nil
	default:
		return nil, fmt.Errorf("%w: unknown day count %q", stockval.ErrConfiguration, name)
	}
}

func checkOrder(asOf, expiry time.Time) error {
	if !expiry.After(asOf) {
		return fmt.Errorf("%w: expiry %s must be after valuation date %s",
			stockval.ErrDomain, expiry.Format(time.DateOnly), asOf.Format(time.DateOnly))
	}
	return nil
}

func (SimpleDayCounter) Name() string { return DayCountSimple }

func (SimpleDayCounter) YearFraction(asOf, expiry time.Time) (float64, error) {
	days := DaysBetween(asOf, expiry)
	if days <= 0 {
		return 0, checkOrder(truncateDay(asOf.UTC()), truncateDay(expiry.UTC()))
	}
	return float64(days) / 365.0, nil
}

func (Actual365Fixed) Name() string { return DayCountAct365F }

func (Actual365Fixed) YearFraction(asOf, expiry time.Time) (float64, error) {
	if err := checkOrder(asOf, expiry); err != nil {
		return 0, err
	}
	return expiry.Sub(asOf).Hours() / (24 * 365), nil
}

func (c TradingDayCounter) Name() string { return DayCountTrading252 }

func (c TradingDayCounter) YearFraction(asOf, expiry time.Time) (float64, error) {
	if err := checkOrder(asOf, expiry); err != nil {
		return 0, err
	}
	days := c.Calendar.TradingDaysBetween(asOf, expiry)
	if days <= 0 {
		return 0, fmt.Errorf("%w: no trading days until expiry %s", stockval.ErrDomain, expiry.Format(time.DateOnly))
	}
	perYear := c.DaysPerYear
	if perYear <= 0 {
		perYear = 252
	}
	return float64(days) / float64(perYear), nil
}

// DaysBetween returns the number of calendar days between the UTC dates of a and b.
func DaysBetween(a, b time.Time) int {
	da := truncateDay(a.UTC())
	db := truncateDay(b.UTC())
	return int(math.Round(db.Sub(da).Hours() / 24))
}
