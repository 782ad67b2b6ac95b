// Package period models the monthly billing period a cuota belongs to.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// Period is a calendar month in UTC.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

func New(year int, month time.Month) (Period, error) {
	p := Period{Year: year, Month: month}
	if !p.Valid() {
		return Period{}, ErrInvalidPeriod
	}
	return p, nil
}

// Of returns the period containing t.
func Of(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// Parse accepts "YYYY-MM".
func Parse(raw string) (Period, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return Period{}, ErrInvalidPeriod
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	return New(year, time.Month(month))
}

func (p Period) Valid() bool {
	return p.Year >= 1900 && p.Year <= 9999 && p.Month >= time.January && p.Month <= time.December
}

// Start is the first instant of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant after the period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// LastDay is midnight of the last calendar day of the period.
func (p Period) LastDay() time.Time {
	return p.End().AddDate(0, 0, -1)
}

// AsOf is the reference date used for rule evaluation.
func (p Period) AsOf() time.Time {
	return p.Start()
}

// Overlaps reports whether the window [start, end] touches the period.
// A nil end means open ended.
func (p Period) Overlaps(start time.Time, end *time.Time) bool {
	if !start.Before(p.End()) {
		return false
	}
	if end != nil && end.Before(p.Start()) {
		return false
	}
	return true
}

func (p Period) Next() Period {
	return Of(p.End())
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// WholeMonthsBetween counts completed calendar months from start to asOf.
func WholeMonthsBetween(start, asOf time.Time) int {
	start = start.UTC()
	asOf = asOf.UTC()
	if asOf.Before(start) {
		return 0
	}
	months := (asOf.Year()-start.Year())*12 + int(asOf.Month()) - int(start.Month())
	if asOf.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
