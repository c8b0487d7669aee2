// Package workday counts business days over date ranges, skipping weekends
// and resolved holidays.
package workday

import "time"

// Resolver resolves a holiday to its date in a given year.
type Resolver interface {
	DateFor(year int) (time.Time, bool)
}

// Calendar is an immutable snapshot of a holiday registry.
type Calendar struct {
	holidays []Resolver
}

// New builds a calendar over the given holidays.
func New(holidays ...Resolver) *Calendar {
	cp := make([]Resolver, len(holidays))
	copy(cp, holidays)
	return &Calendar{holidays: cp}
}

// Count returns the number of working days in [start, end], both inclusive.
// Holidays are resolved against every year the range touches. An inverted
// range counts zero days.
func (c *Calendar) Count(start, end time.Time) int {
	start, end = dateOnly(start), dateOnly(end)
	if start.After(end) {
		return 0
	}

	excluded := c.holidaysBetween(start, end)
	count := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if isWeekend(day) {
			continue
		}
		if _, ok := excluded[day]; ok {
			continue
		}
		count++
	}
	return count
}

// IsWorkingDay reports whether day is neither a weekend day nor a holiday.
func (c *Calendar) IsWorkingDay(day time.Time) bool {
	return c.Count(day, day) == 1
}

// Holidays returns the resolved holiday dates falling in [start, end].
func (c *Calendar) Holidays(start, end time.Time) []time.Time {
	start, end = dateOnly(start), dateOnly(end)
	if start.After(end) {
		return nil
	}
	excluded := c.holidaysBetween(start, end)
	dates := make([]time.Time, 0, len(excluded))
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if _, ok := excluded[day]; ok {
			dates = append(dates, day)
		}
	}
	return dates
}

func (c *Calendar) holidaysBetween(start, end time.Time) map[time.Time]struct{} {
	excluded := make(map[time.Time]struct{})
	if c == nil {
		return excluded
	}
	for year := start.Year(); year <= end.Year(); year++ {
		for _, h := range c.holidays {
			date, ok := h.DateFor(year)
			if !ok {
				continue
			}
			date = dateOnly(date)
			if date.Before(start) || date.After(end) {
				continue
			}
			excluded[date] = struct{}{}
		}
	}
	return excluded
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
