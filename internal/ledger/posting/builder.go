package posting

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/ledger/templates"
)

// RoleMap threads the resolved role to account mapping through the builders.
type RoleMap = map[templates.Role]int64

func requireRole(roles RoleMap, role templates.Role, docType templates.DocType) (int64, error) {
	accountID, ok := roles[role]
	if !ok || accountID == 0 {
		return 0, fmt.Errorf("%w: role %s for %s", shared.ErrMissingRoleMapping, role, docType)
	}
	return accountID, nil
}

// groupedLine accumulates amounts per account preserving first-seen order.
type groupedLine struct {
	accountID   int64
	amount      decimal.Decimal
	description string
}

func groupByAccount(lines []groupedLine) []groupedLine {
	index := make(map[int64]int, len(lines))
	var out []groupedLine
	for _, line := range lines {
		if at, ok := index[line.accountID]; ok {
			out[at].amount = out[at].amount.Add(line.amount)
			continue
		}
		index[line.accountID] = len(out)
		out = append(out, line)
	}
	return out
}

// absorbDrift reconciles the document's stated total with the per-line sum.
// A difference of at most one cent is added to the first line on the
// deficient side so totals match exactly; above one cent it is a hard
// mismatch, never absorbed.
func absorbDrift(debits, credits []DraftLine, errKind error) error {
	var debitTotal, creditTotal decimal.Decimal
	for _, l := range debits {
		debitTotal = debitTotal.Add(l.Amount)
	}
	for _, l := range credits {
		creditTotal = creditTotal.Add(l.Amount)
	}
	drift := debitTotal.Sub(creditTotal)
	if drift.IsZero() {
		return nil
	}
	if drift.Abs().GreaterThan(centTolerance) {
		return fmt.Errorf("%w: debit %s vs credit %s", errKind, debitTotal.StringFixed(2), creditTotal.StringFixed(2))
	}
	if drift.IsPositive() {
		if len(credits) == 0 {
			return fmt.Errorf("%w: no credit line to absorb drift", errKind)
		}
		credits[0].Amount = credits[0].Amount.Add(drift)
	} else {
		if len(debits) == 0 {
			return fmt.Errorf("%w: no debit line to absorb drift", errKind)
		}
		debits[0].Amount = debits[0].Amount.Add(drift.Neg())
	}
	return nil
}

func roundLines(lines []DraftLine) {
	for i := range lines {
		lines[i].Amount = lines[i].Amount.Round(2)
	}
}

// AssertBalanced verifies the one-cent balancing invariant on draft lines.
func AssertBalanced(lines []DraftLine) error {
	var debit, credit decimal.Decimal
	for _, line := range lines {
		switch line.Side {
		case Debit:
			debit = debit.Add(line.Amount)
		case Credit:
			credit = credit.Add(line.Amount)
		}
	}
	if debit.Sub(credit).Abs().GreaterThan(centTolerance) {
		return fmt.Errorf("%w: debit %s vs credit %s", shared.ErrUnbalancedPosting, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// BuildInvoiceLines produces the draft entry for an AR invoice: AR debited
// for the total, revenue credited per resolved income account, tax credited
// and discount debited when present.
func BuildInvoiceLines(roles RoleMap, inv Invoice) ([]DraftLine, error) {
	if len(inv.Lines) == 0 {
		return nil, fmt.Errorf("%w: invoice %s", shared.ErrNoLineItems, inv.Number)
	}
	arAccount, err := requireRole(roles, templates.RoleAR, templates.DocTypeARInvoice)
	if err != nil {
		return nil, err
	}

	grouped := make([]groupedLine, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		accountID := roles[templates.RoleRevenue]
		if line.IncomeAccountID != nil && *line.IncomeAccountID != 0 {
			accountID = *line.IncomeAccountID
		}
		if accountID == 0 {
			if line.Number > 0 {
				return nil, fmt.Errorf("%w: no revenue account on invoice line %d", shared.ErrMissingRoleMapping, line.Number)
			}
			return nil, fmt.Errorf("%w: no revenue account for invoice %s", shared.ErrMissingRoleMapping, inv.Number)
		}
		grouped = append(grouped, groupedLine{accountID: accountID, amount: line.Amount, description: line.Description})
	}
	grouped = groupByAccount(grouped)

	debits := []DraftLine{{
		AccountID:   arAccount,
		Side:        Debit,
		Amount:      inv.TotalAmount,
		Description: fmt.Sprintf("Invoice %s", inv.Number),
	}}
	credits := make([]DraftLine, 0, len(grouped)+1)
	for _, g := range grouped {
		desc := g.description
		if desc == "" {
			desc = fmt.Sprintf("Invoice %s revenue", inv.Number)
		}
		credits = append(credits, DraftLine{AccountID: g.accountID, Side: Credit, Amount: g.amount, Description: desc})
	}
	if inv.TaxAmount.IsPositive() {
		taxAccount, err := requireRole(roles, templates.RoleTaxPayable, templates.DocTypeARInvoice)
		if err != nil {
			return nil, err
		}
		credits = append(credits, DraftLine{AccountID: taxAccount, Side: Credit, Amount: inv.TaxAmount, Description: fmt.Sprintf("Invoice %s tax", inv.Number)})
	}
	if inv.DiscountAmount.IsPositive() {
		discountAccount, err := requireRole(roles, templates.RoleDiscountGiven, templates.DocTypeARInvoice)
		if err != nil {
			return nil, err
		}
		debits = append(debits, DraftLine{AccountID: discountAccount, Side: Debit, Amount: inv.DiscountAmount, Description: fmt.Sprintf("Invoice %s discount", inv.Number)})
	}

	if err := absorbDrift(debits, credits, shared.ErrAllocationMismatch); err != nil {
		return nil, err
	}
	lines := append(debits, credits...)
	roundLines(lines)
	if err := AssertBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// BuildBillLines is the mirror of BuildInvoiceLines for an AP bill.
func BuildBillLines(roles RoleMap, bill Bill) ([]DraftLine, error) {
	if len(bill.Lines) == 0 {
		return nil, fmt.Errorf("%w: bill %s", shared.ErrNoLineItems, bill.Number)
	}
	apAccount, err := requireRole(roles, templates.RoleAP, templates.DocTypeAPBill)
	if err != nil {
		return nil, err
	}

	grouped := make([]groupedLine, 0, len(bill.Lines))
	for _, line := range bill.Lines {
		accountID := roles[templates.RoleExpense]
		if line.ExpenseAccountID != nil && *line.ExpenseAccountID != 0 {
			accountID = *line.ExpenseAccountID
		}
		if accountID == 0 {
			if line.Number > 0 {
				return nil, fmt.Errorf("%w: no expense account on bill line %d", shared.ErrMissingRoleMapping, line.Number)
			}
			return nil, fmt.Errorf("%w: no expense account for bill %s", shared.ErrMissingRoleMapping, bill.Number)
		}
		grouped = append(grouped, groupedLine{accountID: accountID, amount: line.Amount, description: line.Description})
	}
	grouped = groupByAccount(grouped)

	credits := []DraftLine{{
		AccountID:   apAccount,
		Side:        Credit,
		Amount:      bill.TotalAmount,
		Description: fmt.Sprintf("Bill %s", bill.Number),
	}}
	debits := make([]DraftLine, 0, len(grouped)+1)
	for _, g := range grouped {
		desc := g.description
		if desc == "" {
			desc = fmt.Sprintf("Bill %s expense", bill.Number)
		}
		debits = append(debits, DraftLine{AccountID: g.accountID, Side: Debit, Amount: g.amount, Description: desc})
	}
	if bill.TaxAmount.IsPositive() {
		taxAccount, err := requireRole(roles, templates.RoleTaxReceivable, templates.DocTypeAPBill)
		if err != nil {
			return nil, err
		}
		debits = append(debits, DraftLine{AccountID: taxAccount, Side: Debit, Amount: bill.TaxAmount, Description: fmt.Sprintf("Bill %s tax", bill.Number)})
	}
	if bill.DiscountAmount.IsPositive() {
		discountAccount, err := requireRole(roles, templates.RoleDiscountReceived, templates.DocTypeAPBill)
		if err != nil {
			return nil, err
		}
		credits = append(credits, DraftLine{AccountID: discountAccount, Side: Credit, Amount: bill.DiscountAmount, Description: fmt.Sprintf("Bill %s discount", bill.Number)})
	}

	if err := absorbDrift(debits, credits, shared.ErrAllocationMismatch); err != nil {
		return nil, err
	}
	lines := append(debits, credits...)
	roundLines(lines)
	if err := AssertBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func assertAllocationsMatch(allocations []Allocation, amount decimal.Decimal, ref string) error {
	if len(allocations) == 0 {
		return nil
	}
	var sum decimal.Decimal
	for _, a := range allocations {
		sum = sum.Add(a.Amount)
	}
	if sum.Sub(amount).Abs().GreaterThan(centTolerance) {
		return fmt.Errorf("%w: %s allocations %s vs amount %s", shared.ErrAllocationMismatch, ref, sum.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

// BuildPaymentLines produces the two-line settlement entry for a customer
// payment. Account ids come from the caller, not a template.
func BuildPaymentLines(p Payment) ([]DraftLine, error) {
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment %s amount must be positive", shared.ErrAllocationMismatch, p.Number)
	}
	if err := assertAllocationsMatch(p.Allocations, p.Amount, "payment "+p.Number); err != nil {
		return nil, err
	}
	amount := p.Amount.Round(2)
	return []DraftLine{
		{AccountID: p.DepositAccountID, Side: Debit, Amount: amount, Description: fmt.Sprintf("Payment %s", p.Number)},
		{AccountID: p.ARAccountID, Side: Credit, Amount: amount, Description: fmt.Sprintf("Payment %s applied", p.Number)},
	}, nil
}

// BuildBillPaymentLines produces the two-line settlement entry for a vendor
// bill payment: AP debited, bank/cash credited.
func BuildBillPaymentLines(p BillPayment) ([]DraftLine, error) {
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: bill payment %s amount must be positive", shared.ErrAllocationMismatch, p.Number)
	}
	if err := assertAllocationsMatch(p.Allocations, p.Amount, "bill payment "+p.Number); err != nil {
		return nil, err
	}
	amount := p.Amount.Round(2)
	return []DraftLine{
		{AccountID: p.APAccountID, Side: Debit, Amount: amount, Description: fmt.Sprintf("Bill payment %s", p.Number)},
		{AccountID: p.BankAccountID, Side: Credit, Amount: amount, Description: fmt.Sprintf("Bill payment %s disbursed", p.Number)},
	}, nil
}

// BuildCreditNoteLines reduces AR and debits revenue back, mirroring the
// original invoice lines when linked, else as one lump to the REVENUE role.
func BuildCreditNoteLines(roles RoleMap, cn CreditNote) ([]DraftLine, error) {
	arAccount, err := requireRole(roles, templates.RoleAR, templates.DocTypeARCreditNote)
	if err != nil {
		return nil, err
	}
	if !cn.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: credit note %s", shared.ErrNoLineItems, cn.Number)
	}

	credits := []DraftLine{{
		AccountID:   arAccount,
		Side:        Credit,
		Amount:      cn.Amount,
		Description: fmt.Sprintf("Credit note %s", cn.Number),
	}}

	var debits []DraftLine
	if len(cn.Lines) > 0 {
		grouped := make([]groupedLine, 0, len(cn.Lines))
		for _, line := range cn.Lines {
			accountID := roles[templates.RoleRevenue]
			if line.IncomeAccountID != nil && *line.IncomeAccountID != 0 {
				accountID = *line.IncomeAccountID
			}
			if accountID == 0 {
				return nil, fmt.Errorf("%w: no revenue account for credit note %s", shared.ErrMissingRoleMapping, cn.Number)
			}
			grouped = append(grouped, groupedLine{accountID: accountID, amount: line.Amount})
		}
		for _, g := range groupByAccount(grouped) {
			debits = append(debits, DraftLine{AccountID: g.accountID, Side: Debit, Amount: g.amount, Description: fmt.Sprintf("Credit note %s revenue reversal", cn.Number)})
		}
	} else {
		revenueAccount, err := requireRole(roles, templates.RoleRevenue, templates.DocTypeARCreditNote)
		if err != nil {
			return nil, err
		}
		debits = append(debits, DraftLine{AccountID: revenueAccount, Side: Debit, Amount: cn.Amount.Sub(cn.TaxAmount), Description: fmt.Sprintf("Credit note %s revenue reversal", cn.Number)})
	}
	if cn.TaxAmount.IsPositive() {
		taxAccount, err := requireRole(roles, templates.RoleTaxPayable, templates.DocTypeARCreditNote)
		if err != nil {
			return nil, err
		}
		debits = append(debits, DraftLine{AccountID: taxAccount, Side: Debit, Amount: cn.TaxAmount, Description: fmt.Sprintf("Credit note %s tax reversal", cn.Number)})
	}

	if err := absorbDrift(debits, credits, shared.ErrAllocationMismatch); err != nil {
		return nil, err
	}
	lines := append(debits, credits...)
	roundLines(lines)
	if err := AssertBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// BuildVendorCreditLines is the debit/credit-flipped counterpart of
// BuildCreditNoteLines against AP and expense accounts.
func BuildVendorCreditLines(roles RoleMap, vc VendorCredit) ([]DraftLine, error) {
	apAccount, err := requireRole(roles, templates.RoleAP, templates.DocTypeAPVendorCredit)
	if err != nil {
		return nil, err
	}
	if !vc.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: vendor credit %s", shared.ErrNoLineItems, vc.Number)
	}

	debits := []DraftLine{{
		AccountID:   apAccount,
		Side:        Debit,
		Amount:      vc.Amount,
		Description: fmt.Sprintf("Vendor credit %s", vc.Number),
	}}

	var credits []DraftLine
	if len(vc.Lines) > 0 {
		grouped := make([]groupedLine, 0, len(vc.Lines))
		for _, line := range vc.Lines {
			accountID := roles[templates.RoleExpense]
			if line.ExpenseAccountID != nil && *line.ExpenseAccountID != 0 {
				accountID = *line.ExpenseAccountID
			}
			if accountID == 0 {
				return nil, fmt.Errorf("%w: no expense account for vendor credit %s", shared.ErrMissingRoleMapping, vc.Number)
			}
			grouped = append(grouped, groupedLine{accountID: accountID, amount: line.Amount})
		}
		for _, g := range groupByAccount(grouped) {
			credits = append(credits, DraftLine{AccountID: g.accountID, Side: Credit, Amount: g.amount, Description: fmt.Sprintf("Vendor credit %s expense reversal", vc.Number)})
		}
	} else {
		expenseAccount, err := requireRole(roles, templates.RoleExpense, templates.DocTypeAPVendorCredit)
		if err != nil {
			return nil, err
		}
		credits = append(credits, DraftLine{AccountID: expenseAccount, Side: Credit, Amount: vc.Amount.Sub(vc.TaxAmount), Description: fmt.Sprintf("Vendor credit %s expense reversal", vc.Number)})
	}
	if vc.TaxAmount.IsPositive() {
		taxAccount, err := requireRole(roles, templates.RoleTaxReceivable, templates.DocTypeAPVendorCredit)
		if err != nil {
			return nil, err
		}
		credits = append(credits, DraftLine{AccountID: taxAccount, Side: Credit, Amount: vc.TaxAmount, Description: fmt.Sprintf("Vendor credit %s tax reversal", vc.Number)})
	}

	if err := absorbDrift(debits, credits, shared.ErrAllocationMismatch); err != nil {
		return nil, err
	}
	lines := append(debits, credits...)
	roundLines(lines)
	if err := AssertBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// BuildBankTransactionLines posts a Spend Money (negative amount, bank
// credited) or Receive Money (positive amount, bank debited) entry with each
// allocation on the opposite side.
func BuildBankTransactionLines(bt BankTransaction) ([]DraftLine, error) {
	if bt.Amount.IsZero() {
		return nil, fmt.Errorf("%w: bank transaction %s amount is zero", shared.ErrOutOfBalance, bt.Number)
	}
	if len(bt.Allocations) == 0 {
		return nil, fmt.Errorf("%w: bank transaction %s", shared.ErrNoLineItems, bt.Number)
	}

	magnitude := bt.Amount.Abs()
	bankSide, allocationSide := Credit, Debit
	if bt.Amount.IsPositive() {
		bankSide, allocationSide = Debit, Credit
	}

	var allocationSum decimal.Decimal
	allocationLines := make([]DraftLine, 0, len(bt.Allocations))
	for _, a := range bt.Allocations {
		allocationSum = allocationSum.Add(a.Amount)
		desc := a.Description
		if desc == "" {
			desc = fmt.Sprintf("Bank transaction %s", bt.Number)
		}
		allocationLines = append(allocationLines, DraftLine{AccountID: a.AccountID, Side: allocationSide, Amount: a.Amount, Description: desc})
	}
	drift := magnitude.Sub(allocationSum)
	if drift.Abs().GreaterThan(centTolerance) {
		return nil, fmt.Errorf("%w: bank transaction %s allocations %s vs amount %s",
			shared.ErrOutOfBalance, bt.Number, allocationSum.StringFixed(2), magnitude.StringFixed(2))
	}
	if !drift.IsZero() {
		// Residue within tolerance lands on the first allocation line.
		allocationLines[0].Amount = allocationLines[0].Amount.Add(drift)
	}

	bankLine := DraftLine{AccountID: bt.BankAccountID, Side: bankSide, Amount: magnitude, Description: fmt.Sprintf("Bank transaction %s", bt.Number)}
	lines := append([]DraftLine{bankLine}, allocationLines...)
	roundLines(lines)
	if err := AssertBalanced(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// BuildBankTransferLines credits the source account and debits the
// destination for the same positive amount.
func BuildBankTransferLines(t BankTransfer) ([]DraftLine, error) {
	if !t.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: transfer %s amount must be positive", shared.ErrOutOfBalance, t.Number)
	}
	amount := t.Amount.Round(2)
	return []DraftLine{
		{AccountID: t.ToAccountID, Side: Debit, Amount: amount, Description: fmt.Sprintf("Transfer %s in", t.Number)},
		{AccountID: t.FromAccountID, Side: Credit, Amount: amount, Description: fmt.Sprintf("Transfer %s out", t.Number)},
	}, nil
}
