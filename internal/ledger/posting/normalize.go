package posting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger/shared"
)

// normalizeInput carries the currency context for one transaction.
type normalizeInput struct {
	Currency     string
	BaseCurrency string
	ExchangeRate decimal.Decimal
}

// normalizeEntries converts draft lines to journal entries in base currency
// and applies at most one deterministic rounding adjustment.
//
// Base totals differing by more than one cent are an invariant violation,
// not rounding residue. Residue at or below one cent is added to the last
// eligible line of the deficient side, scanning from the end, so identical
// inputs always patch the same line. The adjustment only ever increases the
// smaller total.
func normalizeEntries(in normalizeInput, lines []DraftLine) ([]JournalEntry, error) {
	foreign := in.Currency != "" && in.BaseCurrency != "" && in.Currency != in.BaseCurrency
	rate := in.ExchangeRate
	if foreign {
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: %s to %s", shared.ErrExchangeRateRequired, in.Currency, in.BaseCurrency)
		}
	} else {
		rate = decimal.NewFromInt(1)
	}

	entries := make([]JournalEntry, 0, len(lines))
	var debitTotal, creditTotal decimal.Decimal
	for i, line := range lines {
		currencyAmount := line.Amount.Round(2)
		baseAmount := currencyAmount.Mul(rate).Round(2)
		entry := JournalEntry{
			AccountID:    line.AccountID,
			LineNumber:   i + 1,
			ExchangeRate: rate,
			Description:  line.Description,
		}
		switch line.Side {
		case Debit:
			entry.Debit = baseAmount
			if foreign && !currencyAmount.Equal(baseAmount) {
				amount := currencyAmount
				entry.CurrencyDebit = &amount
			}
			debitTotal = debitTotal.Add(baseAmount)
		case Credit:
			entry.Credit = baseAmount
			if foreign && !currencyAmount.Equal(baseAmount) {
				amount := currencyAmount
				entry.CurrencyCredit = &amount
			}
			creditTotal = creditTotal.Add(baseAmount)
		default:
			return nil, fmt.Errorf("ledger: line %d has no side", i+1)
		}
		entries = append(entries, entry)
	}

	diff := debitTotal.Sub(creditTotal)
	if diff.IsZero() {
		return entries, nil
	}
	if diff.Abs().GreaterThan(centTolerance) {
		return nil, fmt.Errorf("%w: base debit %s vs base credit %s",
			shared.ErrTransactionNotBalanced, debitTotal.StringFixed(2), creditTotal.StringFixed(2))
	}

	// FX rounding residue: patch the deficient side.
	residue := diff.Abs()
	deficientSide := Debit
	if diff.IsPositive() {
		deficientSide = Credit
	}
	if err := applyResidue(entries, lines, deficientSide, residue); err != nil {
		return nil, err
	}
	return entries, nil
}

// applyResidue walks backward through the entries of the deficient side and
// adds the residue to the last line whose resulting amount stays positive.
func applyResidue(entries []JournalEntry, lines []DraftLine, side Side, residue decimal.Decimal) error {
	for i := len(entries) - 1; i >= 0; i-- {
		if lines[i].Side != side {
			continue
		}
		entry := &entries[i]
		switch side {
		case Debit:
			if adjusted := entry.Debit.Add(residue); adjusted.IsPositive() {
				entry.Debit = adjusted
				return nil
			}
		case Credit:
			if adjusted := entry.Credit.Add(residue); adjusted.IsPositive() {
				entry.Credit = adjusted
				return nil
			}
		}
	}
	return shared.ErrUnresolvableRoundingAdjustment
}
