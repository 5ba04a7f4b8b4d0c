package fiscal

import (
	"fmt"
	"time"
)

// Frequency represents how often e-reporting periods recur
type Frequency string

const (
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
)

// IsValid checks if the frequency is a valid Frequency
func (f Frequency) IsValid() bool {
	return f == FrequencyMonthly || f == FrequencyQuarterly
}

// String returns the string representation of Frequency
func (f Frequency) String() string {
	return string(f)
}

// ReportingPeriod is a derived value describing one e-reporting window.
// The submission deadline is always the last calendar day of the month
// following the period's end.
type ReportingPeriod struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Deadline  time.Time `json:"deadline"`
	Frequency Frequency `json:"frequency"`
}

// Label returns a human-readable name for the period,
// e.g. "March 2025" for a monthly period or "Q1 2025" for a quarterly one.
func (p ReportingPeriod) Label() string {
	return PeriodLabel(p.Start, p.Frequency)
}

// ContainsDate reports whether the date falls inside the period bounds.
func (p ReportingPeriod) ContainsDate(date time.Time) bool {
	d := DateOf(date)
	return !d.Before(p.Start) && !d.After(p.End)
}

// IsOverdueAt reports whether an unsubmitted period is past its deadline.
func (p ReportingPeriod) IsOverdueAt(now time.Time) bool {
	return DateOf(now).After(p.Deadline)
}

// PeriodBounds returns the first and last day of the reporting period
// containing the given date. Monthly periods are calendar months; quarterly
// periods are the 3-month blocks Jan-Mar, Apr-Jun, Jul-Sep, Oct-Dec.
func PeriodBounds(date time.Time, frequency Frequency) (start, end time.Time) {
	d := DateOf(date)
	switch frequency {
	case FrequencyQuarterly:
		quarterStart := time.Month((int(d.Month())-1)/3*3 + 1)
		start = time.Date(d.Year(), quarterStart, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 3, -1)
	default:
		start = time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	}
	return start, end
}

// NextDeadline returns the submission deadline for a period ending on
// periodEnd: the last calendar day of the following month. A monthly period
// ending 2025-01-31 is due 2025-02-28; a quarterly period ending 2025-03-31
// is due 2025-04-30.
func NextDeadline(periodEnd time.Time) time.Time {
	d := DateOf(periodEnd)
	firstOfNext := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 1, -1)
}

// PeriodFor builds the full ReportingPeriod containing the given date.
func PeriodFor(date time.Time, frequency Frequency) ReportingPeriod {
	start, end := PeriodBounds(date, frequency)
	return ReportingPeriod{
		Start:     start,
		End:       end,
		Deadline:  NextDeadline(end),
		Frequency: frequency,
	}
}

// PeriodLabel renders a period name from its start date and frequency,
// with no lookup or persistence involved.
func PeriodLabel(periodStart time.Time, frequency Frequency) string {
	d := DateOf(periodStart)
	if frequency == FrequencyQuarterly {
		quarter := (int(d.Month())-1)/3 + 1
		return fmt.Sprintf("Q%d %d", quarter, d.Year())
	}
	return fmt.Sprintf("%s %d", d.Month(), d.Year())
}
