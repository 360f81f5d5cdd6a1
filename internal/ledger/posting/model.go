package posting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// centTolerance is the balancing tolerance: differences strictly above one
// cent are hard failures, at or below one cent they are rounding residue.
var centTolerance = decimal.New(1, -2)

// Side marks a draft line as debit or credit.
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// DraftLine is one side of a double entry before normalization.
type DraftLine struct {
	AccountID   int64
	Side        Side
	Amount      decimal.Decimal
	Description string
}

// SourceKind tags the document a transaction was posted from.
type SourceKind string

const (
	SourceInvoice         SourceKind = "INVOICE"
	SourceBill            SourceKind = "BILL"
	SourcePayment         SourceKind = "PAYMENT"
	SourceBillPayment     SourceKind = "BILL_PAYMENT"
	SourceCreditNote      SourceKind = "CREDIT_NOTE"
	SourceVendorCredit    SourceKind = "VENDOR_CREDIT"
	SourceBankTransaction SourceKind = "BANK_TRANSACTION"
	SourceBankTransfer    SourceKind = "BANK_TRANSFER"
	SourceReversal        SourceKind = "REVERSAL"
)

// SourceRef is the tagged union linking a transaction to its source document.
type SourceRef struct {
	Kind SourceKind
	ID   uuid.UUID
}

// TransactionStatus is always POSTED for transactions this engine creates.
type TransactionStatus string

const TransactionStatusPosted TransactionStatus = "POSTED"

// Transaction is the journal header.
type Transaction struct {
	ID              int64
	CompanyID       int64
	Number          string
	Type            SourceKind
	Source          SourceRef
	TransactionDate time.Time
	PostingDate     time.Time
	FiscalYearID    int64
	PeriodID        int64
	Currency        string
	BaseCurrency    string
	ExchangeRate    decimal.Decimal
	TotalDebit      decimal.Decimal
	TotalCredit     decimal.Decimal
	Status          TransactionStatus
	Description     string
	ReversalOfID    *int64
	ReversedByID    *int64
	VoidedAt        *time.Time
	VoidedBy        *int64
	VoidReason      *string
	PostedBy        int64
	PostedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JournalEntry is one immutable journal line. Exactly one of Debit and
// Credit is non-zero. CurrencyDebit/CurrencyCredit carry the foreign
// amount when it differs from the base amount.
type JournalEntry struct {
	ID             int64
	TransactionID  int64
	AccountID      int64
	LineNumber     int
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	CurrencyDebit  *decimal.Decimal
	CurrencyCredit *decimal.Decimal
	ExchangeRate   decimal.Decimal
	Description    string
	CreatedAt      time.Time
}

// Amount returns the non-zero base side value.
func (e JournalEntry) Amount() decimal.Decimal {
	if e.Debit.IsZero() {
		return e.Credit
	}
	return e.Debit
}

// IsZero reports whether both sides are zero.
func (e JournalEntry) IsZero() bool {
	return e.Debit.IsZero() && e.Credit.IsZero()
}
