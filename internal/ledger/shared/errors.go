package shared

import "errors"

var (
	// ErrNoOpenPeriod indicates no open accounting period covers the posting date.
	ErrNoOpenPeriod = errors.New("ledger: no open accounting period for date")
	// ErrPeriodClosed indicates the target period is closed or locked.
	ErrPeriodClosed = errors.New("ledger: accounting period is closed")
	// ErrNoActiveTemplate indicates no active default posting template covers the date.
	ErrNoActiveTemplate = errors.New("ledger: no active posting template")
	// ErrMissingRoleMapping indicates a required role has no account mapped.
	ErrMissingRoleMapping = errors.New("ledger: posting role not mapped to an account")
	// ErrNoLineItems indicates the source document carries no lines.
	ErrNoLineItems = errors.New("ledger: document has no line items")
	// ErrUnbalancedPosting indicates debit total != credit total beyond tolerance.
	ErrUnbalancedPosting = errors.New("ledger: entries do not balance")
	// ErrAllocationMismatch indicates allocations differ from the stated amount by a cent or more.
	ErrAllocationMismatch = errors.New("ledger: allocations do not match stated amount")
	// ErrOutOfBalance indicates bank allocations differ from the bank amount.
	ErrOutOfBalance = errors.New("ledger: bank allocations out of balance")
	// ErrExchangeRateRequired indicates a foreign-currency posting without a rate.
	ErrExchangeRateRequired = errors.New("ledger: exchange rate required for foreign currency")
	// ErrTransactionNotBalanced indicates base-currency totals differ beyond tolerance.
	ErrTransactionNotBalanced = errors.New("ledger: transaction not balanced in base currency")
	// ErrUnresolvableRoundingAdjustment indicates no line can absorb the FX residue.
	ErrUnresolvableRoundingAdjustment = errors.New("ledger: rounding residue cannot be assigned to any line")
	// ErrNothingToReverse indicates all original lines were zero valued.
	ErrNothingToReverse = errors.New("ledger: transaction has no non-zero lines to reverse")
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrAccountNotFound indicates a missing or inactive account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrCompanyNotFound indicates an unknown company.
	ErrCompanyNotFound = errors.New("ledger: company not found")
)
