package periods

import "time"

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen    PeriodStatus = "OPEN"
	PeriodStatusClosing PeriodStatus = "CLOSING"
	PeriodStatusLocked  PeriodStatus = "LOCKED"
	PeriodStatusClosed  PeriodStatus = "CLOSED"
)

// Postable reports whether new journal transactions may target the period.
// A period under close review (CLOSING) still accepts postings; locked and
// closed periods do not.
func (s PeriodStatus) Postable() bool {
	return s == PeriodStatusOpen || s == PeriodStatusClosing
}

// FiscalYear is a company-scoped date range owning accounting periods.
type FiscalYear struct {
	ID                        int64
	CompanyID                 int64
	StartDate                 time.Time
	EndDate                   time.Time
	IsCurrent                 bool
	IsClosed                  bool
	RetainedEarningsAccountID *int64
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// AccountingPeriod is one slice of a fiscal year.
type AccountingPeriod struct {
	ID           int64
	FiscalYearID int64
	CompanyID    int64
	StartDate    time.Time
	EndDate      time.Time
	PeriodNumber int
	PeriodType   string
	Status       PeriodStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Contains reports whether the date falls inside the period range (inclusive).
func (p AccountingPeriod) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}
