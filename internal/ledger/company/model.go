package company

import "time"

// PeriodFrequency controls how accounting periods are cut within a fiscal year.
type PeriodFrequency string

const (
	FrequencyMonthly   PeriodFrequency = "MONTHLY"
	FrequencyQuarterly PeriodFrequency = "QUARTERLY"
	FrequencyYearly    PeriodFrequency = "YEARLY"
)

// DefaultAccounts lists the company-level default account ids used to seed
// posting templates. A zero value means the default is not configured.
type DefaultAccounts struct {
	AccountsReceivable int64
	AccountsPayable    int64
	Income             int64
	Expense            int64
	Bank               int64
	Cash               int64
	TaxPayable         int64
	TaxReceivable      int64
	DiscountGiven      int64
	DiscountReceived   int64
	RetainedEarnings   int64
}

// Config is the company configuration this core consumes read-only.
type Config struct {
	ID                   int64
	Name                 string
	BaseCurrency         string
	FiscalYearStartMonth time.Month
	PeriodFrequency      PeriodFrequency
	AutoCreateFiscalYear bool
	Defaults             DefaultAccounts
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
