package fiscal

import (
	"fmt"
	"time"

	"github.com/facturio/backend/internal/domain/shared"
)

// YearConfig defines when a company's fiscal year begins.
// A fiscal year labelled N starts on (N, StartMonth, StartDay) and covers the
// following twelve months. The default French configuration is January 1st,
// but any start month/day is allowed (e.g. agricultural companies closing
// on October 31st use StartMonth=11, StartDay=1).
type YearConfig struct {
	StartMonth time.Month `json:"start_month"`
	StartDay   int        `json:"start_day"`
}

// DefaultYearConfig returns the calendar-aligned configuration (January 1st).
func DefaultYearConfig() YearConfig {
	return YearConfig{StartMonth: time.January, StartDay: 1}
}

// NewYearConfig creates a validated fiscal year configuration.
func NewYearConfig(startMonth time.Month, startDay int) (YearConfig, error) {
	cfg := YearConfig{StartMonth: startMonth, StartDay: startDay}
	if err := cfg.Validate(); err != nil {
		return YearConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration bounds.
func (c YearConfig) Validate() error {
	if c.StartMonth < time.January || c.StartMonth > time.December {
		return shared.NewDomainError("INVALID_FISCAL_CONFIG", fmt.Sprintf("Fiscal year start month %d is out of range 1-12", c.StartMonth))
	}
	if c.StartDay < 1 || c.StartDay > 31 {
		return shared.NewDomainError("INVALID_FISCAL_CONFIG", fmt.Sprintf("Fiscal year start day %d is out of range 1-31", c.StartDay))
	}
	return nil
}

// IsCalendarAligned reports whether the fiscal year matches the calendar year.
func (c YearConfig) IsCalendarAligned() bool {
	return c.StartMonth == time.January && c.StartDay == 1
}

// YearOf returns the fiscal year containing the given date.
// The fiscal year start for the date's calendar year is computed first; dates
// strictly before it belong to the previous fiscal year.
func (c YearConfig) YearOf(date time.Time) int {
	d := DateOf(date)
	start := c.startOfYear(d.Year())
	if d.Before(start) {
		return d.Year() - 1
	}
	return d.Year()
}

// YearBounds returns the inclusive start and end dates of the given fiscal
// year. Bounds of consecutive fiscal years are contiguous and non-overlapping:
// the end date is always the day before the next fiscal year's start.
func (c YearConfig) YearBounds(fiscalYear int) (start, end time.Time) {
	start = c.startOfYear(fiscalYear)
	end = c.startOfYear(fiscalYear + 1).AddDate(0, 0, -1)
	return start, end
}

// Contains reports whether the date falls within the given fiscal year.
func (c YearConfig) Contains(fiscalYear int, date time.Time) bool {
	return c.YearOf(date) == fiscalYear
}

// startOfYear computes the fiscal year start date for a calendar year,
// clamping the configured day to the month's length (day 31 in a 30-day
// month yields the 30th, never a roll-over into the next month).
func (c YearConfig) startOfYear(year int) time.Time {
	day := c.StartDay
	if last := lastDayOfMonth(year, c.StartMonth); day > last {
		day = last
	}
	return time.Date(year, c.StartMonth, day, 0, 0, 0, 0, time.UTC)
}

// DateOf normalizes a timestamp to a UTC date at midnight. All calendar
// arithmetic in this package operates on normalized dates so that wall-clock
// components and time zones never shift period boundaries.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// lastDayOfMonth returns the number of days in the month, accounting for
// leap years (February 2024 has 29 days, February 2025 has 28).
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
