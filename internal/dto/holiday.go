package dto

// HolidayRequest creates or replaces a public holiday.
type HolidayRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Day     int    `json:"day" validate:"required,min=1,max=31"`
	Month   int    `json:"month" validate:"required,min=1,max=12"`
	Year    *int   `json:"year" validate:"required_without=IsFixed,omitempty,min=1900,max=2200"`
	IsFixed bool   `json:"isFixed"`
}

// HolidayQuery filters holiday listings.
type HolidayQuery struct {
	Year  *int  `form:"year"`
	Fixed *bool `form:"fixed"`
}

// WorkingDaysQuery asks for the working days of an inclusive range.
type WorkingDaysQuery struct {
	Start string `form:"start" validate:"required,datetime=2006-01-02"`
	End   string `form:"end" validate:"required,datetime=2006-01-02"`
}

// WorkingDaysResult answers a WorkingDaysQuery.
type WorkingDaysResult struct {
	Start       string   `json:"start"`
	End         string   `json:"end"`
	WorkingDays int      `json:"workingDays"`
	Holidays    []string `json:"holidays"`
}
