package accounts

import "time"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset        AccountType = "ASSET"
	AccountTypeLiability    AccountType = "LIABILITY"
	AccountTypeEquity       AccountType = "EQUITY"
	AccountTypeRevenue      AccountType = "REVENUE"
	AccountTypeExpense      AccountType = "EXPENSE"
	AccountTypeCOGS         AccountType = "COGS"
	AccountTypeOtherIncome  AccountType = "OTHER_INCOME"
	AccountTypeOtherExpense AccountType = "OTHER_EXPENSE"
)

// AccountSubtype refines the type for role resolution.
type AccountSubtype string

const (
	SubtypeAccountsReceivable AccountSubtype = "ACCOUNTS_RECEIVABLE"
	SubtypeAccountsPayable    AccountSubtype = "ACCOUNTS_PAYABLE"
	SubtypeBank               AccountSubtype = "BANK"
	SubtypeCash               AccountSubtype = "CASH"
	SubtypeCreditCard         AccountSubtype = "CREDIT_CARD"
	SubtypeRetainedEarnings   AccountSubtype = "RETAINED_EARNINGS"
)

// NormalBalance indicates which side grows the account.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// Account models a chart of accounts node scoped to one company.
type Account struct {
	ID               int64
	CompanyID        int64
	Code             string
	Name             string
	Type             AccountType
	Subtype          AccountSubtype
	NormalBalance    NormalBalance
	Currency         *string
	IsActive         bool
	IsSystem         bool
	SystemIdentifier *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// Monetary reports whether the subtype may carry its own currency.
func (a Account) Monetary() bool {
	switch a.Subtype {
	case SubtypeBank, SubtypeCash, SubtypeCreditCard:
		return true
	default:
		return false
	}
}
