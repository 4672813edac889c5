// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package inputs

import (
	"time"

	"financebuddy/calendar"
)

// YearFractionCalculator converts the valuation period into years, whole days / 365 unless
// another day counter is set.
type YearFractionCalculator struct {
	counter calendar.DayCounter
}

func NewYearFractionCalculator(counter calendar.DayCounter) YearFractionCalculator {
	return YearFractionCalculator{counter: counter}
}

func (c YearFractionCalculator) DayCount() string {
	if c.counter == nil {
		return calendar.DayCountSimple
	}
	return c.counter.Name()
}

func (c YearFractionCalculator) ComputeYearFraction(asOf, expiry time.Time) (float64, error) {
	if c.counter == nil {
		return calendar.SimpleDayCounter{}.YearFraction(asOf, expiry)
	}
	return c.counter.YearFraction(asOf, expiry)
}
