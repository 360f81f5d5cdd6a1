package posting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceLine is one revenue line of a customer invoice.
type InvoiceLine struct {
	Number          int
	Amount          decimal.Decimal
	IncomeAccountID *int64
	Description     string
}

// Invoice is the fully loaded AR invoice aggregate supplied by the caller.
type Invoice struct {
	ID             uuid.UUID
	Number         string
	Date           time.Time
	Currency       string
	ExchangeRate   decimal.Decimal
	TotalAmount    decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Lines          []InvoiceLine
}

// BillLine is one expense line of a vendor bill.
type BillLine struct {
	Number           int
	Amount           decimal.Decimal
	ExpenseAccountID *int64
	Description      string
}

// Bill is the fully loaded AP bill aggregate.
type Bill struct {
	ID             uuid.UUID
	Number         string
	Date           time.Time
	Currency       string
	ExchangeRate   decimal.Decimal
	TotalAmount    decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Lines          []BillLine
}

// Allocation applies part of a payment to one document.
type Allocation struct {
	DocumentID uuid.UUID
	Amount     decimal.Decimal
}

// Payment settles customer invoices: deposit account debited, AR credited.
// Both account ids are supplied explicitly by the caller.
type Payment struct {
	ID               uuid.UUID
	Number           string
	Date             time.Time
	Currency         string
	ExchangeRate     decimal.Decimal
	Amount           decimal.Decimal
	DepositAccountID int64
	ARAccountID      int64
	Allocations      []Allocation
}

// BillPayment settles vendor bills: AP debited, bank/cash credited.
type BillPayment struct {
	ID            uuid.UUID
	Number        string
	Date          time.Time
	Currency      string
	ExchangeRate  decimal.Decimal
	Amount        decimal.Decimal
	APAccountID   int64
	BankAccountID int64
	Allocations   []Allocation
}

// RefundLine mirrors one original invoice line on a credit note.
type RefundLine struct {
	Amount          decimal.Decimal
	IncomeAccountID *int64
}

// CreditNote reduces AR; revenue is debited back per mirrored line, or as a
// single lump when the note is not linked to an invoice.
type CreditNote struct {
	ID           uuid.UUID
	Number       string
	Date         time.Time
	Currency     string
	ExchangeRate decimal.Decimal
	Amount       decimal.Decimal
	TaxAmount    decimal.Decimal
	Lines        []RefundLine
}

// VendorCreditLine mirrors one original bill line on a vendor credit.
type VendorCreditLine struct {
	Amount           decimal.Decimal
	ExpenseAccountID *int64
}

// VendorCredit is the debit/credit-flipped counterpart of CreditNote.
type VendorCredit struct {
	ID           uuid.UUID
	Number       string
	Date         time.Time
	Currency     string
	ExchangeRate decimal.Decimal
	Amount       decimal.Decimal
	TaxAmount    decimal.Decimal
	Lines        []VendorCreditLine
}

// BankAllocation is one caller-supplied split of a bank transaction.
type BankAllocation struct {
	AccountID   int64
	Amount      decimal.Decimal
	Description string
}

// BankTransaction is a Spend Money (negative amount) or Receive Money
// (positive amount) entry against one bank account.
type BankTransaction struct {
	ID            uuid.UUID
	Number        string
	Date          time.Time
	Currency      string
	ExchangeRate  decimal.Decimal
	Amount        decimal.Decimal
	BankAccountID int64
	Allocations   []BankAllocation
}

// BankTransfer moves a positive amount between two bank/cash accounts.
type BankTransfer struct {
	ID            uuid.UUID
	Number        string
	Date          time.Time
	Currency      string
	ExchangeRate  decimal.Decimal
	Amount        decimal.Decimal
	FromAccountID int64
	ToAccountID   int64
}
