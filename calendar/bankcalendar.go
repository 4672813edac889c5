// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package calendar

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

const observedHolidayPostfix = "(observed)"

type BankCalendar struct {
	bankLocation *time.Location
	calendar     *cal.BusinessCalendar
}

func NewUSBankCalendar() BankCalendar {
	// NYSE uses ET, which can be either EST or EDT.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic("NYSE time location not supported")
	}
	c := cal.NewBusinessCalendar()
	// Source for bank holidays: https://www.federalreserve.gov/aboutthefed/k8.htm
	c.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.PresidentsDay,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ColumbusDay,
		us.VeteransDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)
	c.Cacheable = true
	return BankCalendar{
		calendar:     c,
		bankLocation: loc,
	}
}

func (b BankCalendar) Location() *time.Location {
	return b.bankLocation
}

func (b BankCalendar) IsBankHoliday(t time.Time) (bool, string) {
	actual, observed, h := b.calendar.IsHoliday(t.In(b.bankLocation))
	if !actual && !observed {
		return false, ""
	} else if !actual {
		return true, h.Name + " " + observedHolidayPostfix
	} else {
		return true, h.Name
	}
}

func (b BankCalendar) IsTradingDay(t time.Time) bool {
	return b.calendar.IsWorkday(t.In(b.bankLocation))
}

// TradingDaysBetween counts trading days in (from, to]. It is negative if to is before from.
func (b BankCalendar) TradingDaysBetween(from, to time.Time) int {
	if to.Before(from) {
		return -b.TradingDaysBetween(to, from)
	}
	start := truncateDay(from.In(b.bankLocation))
	end := truncateDay(to.In(b.bankLocation))
	count := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if b.calendar.IsWorkday(d) {
			count++
		}
	}
	return count
}

// SubtractTradingDays returns the start of the day n trading days before t.
func (b BankCalendar) SubtractTradingDays(t time.Time, n int) time.Time {
	d := truncateDay(t.In(b.bankLocation))
	for n > 0 {
		d = d.AddDate(0, 0, -1)
		if b.calendar.IsWorkday(d) {
			n--
		}
	}
	return d
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
