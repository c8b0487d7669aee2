package dto

import "fmt"

// ImportReport summarizes one bulk import step.
type ImportReport struct {
	Entity  string   `json:"entity" yaml:"entity"`
	Created int      `json:"created" yaml:"created"`
	Updated int      `json:"updated" yaml:"updated"`
	Skipped int      `json:"skipped" yaml:"skipped"`
	Errors  []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// RowLine converts a zero-based data row index into its CSV line number.
func RowLine(index int) int {
	return index + 2
}

// Fail records a rejected row.
func (r *ImportReport) Fail(index int, msg string) {
	r.Errors = append(r.Errors, fmt.Sprintf("line %d: %s", RowLine(index), msg))
}

// Count records the outcome of a get-or-create call for one row.
func (r *ImportReport) Count(index int, created bool, err error) {
	switch {
	case err != nil:
		r.Fail(index, err.Error())
	case created:
		r.Created++
	default:
		r.Skipped++
	}
}

// SpecialtyRow is a CSV row of the specialties file.
type SpecialtyRow struct {
	Name      string `csv:"name"`
	ShortName string `csv:"short_name"`
}

// ServiceRow is a CSV row of the services file.
type ServiceRow struct {
	Name string `csv:"name"`
}

// DepartmentRow is a CSV row of the departments file.
type DepartmentRow struct {
	Name    string `csv:"name"`
	Service string `csv:"service"`
}

// NameRow is a CSV row for single-column reference tables.
type NameRow struct {
	Name string `csv:"name"`
}

// EmployeeRow is a CSV row of the employees file. Reference columns hold
// names, resolved or created during import.
type EmployeeRow struct {
	Surname                string `csv:"surname"`
	Name                   string `csv:"name"`
	FatherName             string `csv:"father_name"`
	Specialty              string `csv:"specialty"`
	Service                string `csv:"service"`
	Department             string `csv:"department"`
	EmployeeType           string `csv:"employee_type"`
	Position               string `csv:"position"`
	RoleDescription        string `csv:"role_description"`
	NotificationRecipients string `csv:"notification_recipients"`
	Gender                 string `csv:"gender"`
	WorkEmail              string `csv:"work_email"`
	PersonalEmail          string `csv:"personal_email"`
	Phone                  string `csv:"phone"`
}

// LeaveTypeRow is a CSV row of the leave types file.
type LeaveTypeRow struct {
	Name         string `csv:"name"`
	ShortName    string `csv:"short_name"`
	SubjectText  string `csv:"subject_text"`
	DecisionText string `csv:"decision_text"`
}

// HolidayRow is a CSV row of the public holidays file.
type HolidayRow struct {
	Name    string `csv:"name"`
	Day     int    `csv:"day"`
	Month   int    `csv:"month"`
	Year    string `csv:"year"`
	IsFixed bool   `csv:"is_fixed"`
}

// HeaderRow is a CSV row of the header texts file.
type HeaderRow struct {
	Text string `csv:"text"`
}
