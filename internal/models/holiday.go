package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Holiday configuration errors.
var (
	ErrHolidayName        = errors.New("holiday name is required")
	ErrHolidayMonth       = errors.New("holiday month must be between 1 and 12")
	ErrHolidayDay         = errors.New("holiday day does not exist in the given month")
	ErrHolidayYearMissing = errors.New("year is required for a non-fixed holiday")
)

// leapReferenceYear lets fixed holidays on Feb 29 pass validation.
const leapReferenceYear = 2024

// PublicHoliday is either fixed (same day and month every year) or tied to a
// single year.
type PublicHoliday struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Day       int       `db:"day" json:"day"`
	Month     int       `db:"month" json:"month"`
	Year      *int      `db:"year" json:"year,omitempty"`
	IsFixed   bool      `db:"is_fixed" json:"is_fixed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DateFor resolves the holiday to a concrete date in targetYear. A fixed
// holiday resolves in every year; a year-specific one only in its own year.
// Day/month combinations that do not exist in the resolved year yield false.
func (h PublicHoliday) DateFor(targetYear int) (time.Time, bool) {
	year := targetYear
	if !h.IsFixed {
		if h.Year == nil || *h.Year != targetYear {
			return time.Time{}, false
		}
		year = *h.Year
	}
	return calendarDate(year, h.Month, h.Day)
}

// Validate reports configuration errors that would make the holiday
// unresolvable.
func (h PublicHoliday) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return ErrHolidayName
	}
	if h.Month < 1 || h.Month > 12 {
		return ErrHolidayMonth
	}
	year := leapReferenceYear
	if !h.IsFixed {
		if h.Year == nil {
			return ErrHolidayYearMissing
		}
		year = *h.Year
	}
	if _, ok := calendarDate(year, h.Month, h.Day); !ok {
		return fmt.Errorf("%w: %02d/%02d/%d", ErrHolidayDay, h.Day, h.Month, year)
	}
	return nil
}

func (h PublicHoliday) String() string {
	if h.IsFixed || h.Year == nil {
		return fmt.Sprintf("%s (%d/%d)", h.Name, h.Day, h.Month)
	}
	return fmt.Sprintf("%s (%d/%d/%d)", h.Name, h.Day, h.Month, *h.Year)
}

// HolidayFilter narrows holiday listings.
type HolidayFilter struct {
	Year  *int
	Fixed *bool
}

func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
