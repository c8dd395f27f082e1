// Package calendar tracks simulated time: the current date, the stepping
// interval, and fiscal-year boundaries.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the simulation time-stepping unit.
type Interval int

const (
	Monthly Interval = iota + 1
	Quarterly
	Annual
)

// String returns the configuration name of the interval.
func (i Interval) String() string {
	switch i {
	case Monthly:
		return "MONTHLY"
	case Quarterly:
		return "QUARTERLY"
	case Annual:
		return "ANNUAL"
	default:
		return fmt.Sprintf("Interval(%d)", int(i))
	}
}

// months returns the number of calendar months one step covers.
func (i Interval) months() int {
	switch i {
	case Quarterly:
		return 3
	case Annual:
		return 12
	default:
		return 1
	}
}

// ParseInterval maps "monthly", "quarterly" or "annual" (any case) to an Interval.
func ParseInterval(s string) (Interval, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MONTHLY":
		return Monthly, nil
	case "QUARTERLY":
		return Quarterly, nil
	case "ANNUAL":
		return Annual, nil
	default:
		return 0, fmt.Errorf("unknown time interval %q (valid: MONTHLY, QUARTERLY, ANNUAL)", s)
	}
}

// DateLayout is the date format used in configuration and labels.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// Date builds a midnight UTC date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Calendar owns the simulated date. It is not safe for concurrent use.
type Calendar struct {
	start         time.Time
	current       time.Time
	interval      Interval
	fiscalMonth   time.Month
	fiscalDay     int
	fiscalYearBeg time.Time
}

// New creates a calendar positioned at start. The fiscal month/day must name a
// day that exists in every year (February 29 is rejected).
func New(start time.Time, interval Interval, fiscalMonth, fiscalDay int) (*Calendar, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("start date is required")
	}
	if interval < Monthly || interval > Annual {
		return nil, fmt.Errorf("invalid time interval %v", interval)
	}
	if fiscalMonth < 1 || fiscalMonth > 12 {
		return nil, fmt.Errorf("fiscal_year_start_month must be between 1 and 12, got %d", fiscalMonth)
	}
	// 2001 is not a leap year, so Feb 29 is rejected here.
	if fiscalDay < 1 || fiscalDay > daysIn(2001, time.Month(fiscalMonth)) {
		return nil, fmt.Errorf("fiscal_year_start_day %d is not valid for month %d", fiscalDay, fiscalMonth)
	}

	start = Date(start.Year(), start.Month(), start.Day())
	c := &Calendar{
		start:       start,
		current:     start,
		interval:    interval,
		fiscalMonth: time.Month(fiscalMonth),
		fiscalDay:   fiscalDay,
	}
	c.fiscalYearBeg = c.boundary(start.Year())
	if start.Before(c.fiscalYearBeg) {
		c.fiscalYearBeg = c.boundary(start.Year() - 1)
	}
	return c, nil
}

// Current returns the current simulated date.
func (c *Calendar) Current() time.Time { return c.current }

// Start returns the date the calendar was created at.
func (c *Calendar) Start() time.Time { return c.start }

// Interval returns the stepping interval.
func (c *Calendar) Interval() Interval { return c.interval }

// FiscalYearStart returns the start date of the current fiscal year.
func (c *Calendar) FiscalYearStart() time.Time { return c.fiscalYearBeg }

// NextFiscalBoundary returns the start date of the next fiscal year.
func (c *Calendar) NextFiscalBoundary() time.Time {
	return c.boundary(c.fiscalYearBeg.Year() + 1)
}

// Advance moves the calendar forward one interval and reports whether a
// fiscal-year boundary was crossed.
func (c *Calendar) Advance() bool {
	c.current = AddMonths(c.current, c.interval.months())

	transition := false
	for next := c.NextFiscalBoundary(); !c.current.Before(next); next = c.NextFiscalBoundary() {
		c.fiscalYearBeg = next
		transition = true
	}
	return transition
}

// PeriodLabel returns "YYYY-MM", "YYYY-Q<n>" or "YYYY" depending on the interval.
func (c *Calendar) PeriodLabel() string {
	return PeriodLabel(c.current, c.interval)
}

// PeriodLabel formats d for the given interval.
func PeriodLabel(d time.Time, interval Interval) string {
	switch interval {
	case Quarterly:
		return fmt.Sprintf("%d-Q%d", d.Year(), (int(d.Month())-1)/3+1)
	case Annual:
		return fmt.Sprintf("%d", d.Year())
	default:
		return d.Format("2006-01")
	}
}

// IsFiscalYearStart reports whether the current date is exactly a fiscal start day.
func (c *Calendar) IsFiscalYearStart() bool {
	return c.current.Month() == c.fiscalMonth && c.current.Day() == c.fiscalDay
}

// FiscalYearLabel returns "FY<year>" for the current fiscal year.
func (c *Calendar) FiscalYearLabel() string {
	return fmt.Sprintf("FY%d", c.fiscalYearBeg.Year())
}

// MonthsSince returns the number of whole months between ref and the current date.
func (c *Calendar) MonthsSince(ref time.Time) int {
	months := (c.current.Year()-ref.Year())*12 + int(c.current.Month()-ref.Month())
	if c.current.Day() < ref.Day() {
		months--
	}
	return months
}

func (c *Calendar) boundary(year int) time.Time {
	return Date(year, c.fiscalMonth, c.fiscalDay)
}

// AddMonths adds n calendar months to d, clamping the day to the last day of
// the resulting month (Jan 31 + 1 month = Feb 28 or 29).
func AddMonths(d time.Time, n int) time.Time {
	total := int(d.Month()) - 1 + n
	year := d.Year() + total/12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}
	m := time.Month(month + 1)
	day := d.Day()
	if last := daysIn(year, m); day > last {
		day = last
	}
	return Date(year, m, day)
}

func daysIn(year int, m time.Month) int {
	// Day 0 of the following month is the last day of m.
	return Date(year, m+1, 0).Day()
}
