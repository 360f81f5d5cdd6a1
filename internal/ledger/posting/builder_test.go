package posting

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/ledger/templates"
)

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fullRoles() RoleMap {
	return RoleMap{
		templates.RoleAR:               100,
		templates.RoleAP:               200,
		templates.RoleRevenue:          300,
		templates.RoleExpense:          400,
		templates.RoleBank:             500,
		templates.RoleCash:             510,
		templates.RoleTaxPayable:       600,
		templates.RoleTaxReceivable:    610,
		templates.RoleDiscountGiven:    700,
		templates.RoleDiscountReceived: 710,
	}
}

func TestBuildInvoiceLinesSingleRevenueLine(t *testing.T) {
	inv := Invoice{
		ID:          uuid.New(),
		Number:      "1001",
		TotalAmount: money("100.00"),
		Lines:       []InvoiceLine{{Number: 1, Amount: money("100.00")}},
	}

	lines, err := BuildInvoiceLines(fullRoles(), inv)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, int64(100), lines[0].AccountID)
	assert.Equal(t, Debit, lines[0].Side)
	assert.True(t, lines[0].Amount.Equal(money("100.00")))
	assert.Equal(t, int64(300), lines[1].AccountID)
	assert.Equal(t, Credit, lines[1].Side)
	assert.True(t, lines[1].Amount.Equal(money("100.00")))
}

func TestBuildInvoiceLinesGroupsByAccount(t *testing.T) {
	consulting := int64(310)
	inv := Invoice{
		Number:      "1002",
		TotalAmount: money("300.00"),
		Lines: []InvoiceLine{
			{Number: 1, Amount: money("100.00"), IncomeAccountID: &consulting},
			{Number: 2, Amount: money("150.00")},
			{Number: 3, Amount: money("50.00"), IncomeAccountID: &consulting},
		},
	}

	lines, err := BuildInvoiceLines(fullRoles(), inv)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	// First-seen order: consulting account (150 total) then default revenue.
	assert.Equal(t, consulting, lines[1].AccountID)
	assert.True(t, lines[1].Amount.Equal(money("150.00")))
	assert.Equal(t, int64(300), lines[2].AccountID)
	assert.True(t, lines[2].Amount.Equal(money("150.00")))
}

func TestBuildInvoiceLinesTaxAndDiscount(t *testing.T) {
	inv := Invoice{
		Number:         "1003",
		TotalAmount:    money("105.00"),
		TaxAmount:      money("10.00"),
		DiscountAmount: money("5.00"),
		Lines:          []InvoiceLine{{Number: 1, Amount: money("100.00")}},
	}

	lines, err := BuildInvoiceLines(fullRoles(), inv)
	require.NoError(t, err)
	require.Len(t, lines, 4)

	var debit, credit decimal.Decimal
	for _, l := range lines {
		if l.Side == Debit {
			debit = debit.Add(l.Amount)
		} else {
			credit = credit.Add(l.Amount)
		}
	}
	assert.True(t, debit.Equal(credit), "debit %s credit %s", debit, credit)
}

func TestBuildInvoiceLinesMissingTaxRole(t *testing.T) {
	roles := fullRoles()
	delete(roles, templates.RoleTaxPayable)
	inv := Invoice{
		Number:      "1004",
		TotalAmount: money("110.00"),
		TaxAmount:   money("10.00"),
		Lines:       []InvoiceLine{{Number: 1, Amount: money("100.00")}},
	}

	_, err := BuildInvoiceLines(roles, inv)
	assert.ErrorIs(t, err, shared.ErrMissingRoleMapping)
}

func TestBuildInvoiceLinesNoLineItems(t *testing.T) {
	_, err := BuildInvoiceLines(fullRoles(), Invoice{Number: "1005", TotalAmount: money("10.00")})
	assert.ErrorIs(t, err, shared.ErrNoLineItems)
}

func TestBuildInvoiceLinesNoRevenueAccountNamesLine(t *testing.T) {
	roles := fullRoles()
	delete(roles, templates.RoleRevenue)
	inv := Invoice{
		Number:      "1006",
		TotalAmount: money("100.00"),
		Lines:       []InvoiceLine{{Number: 2, Amount: money("100.00")}},
	}

	_, err := BuildInvoiceLines(roles, inv)
	require.ErrorIs(t, err, shared.ErrMissingRoleMapping)
	assert.Contains(t, err.Error(), "on invoice line 2")
}

func TestBuildInvoiceLinesOneCentDriftAbsorbed(t *testing.T) {
	inv := Invoice{
		Number:      "1007",
		TotalAmount: money("100.00"),
		Lines: []InvoiceLine{
			{Number: 1, Amount: money("33.33")},
			{Number: 2, Amount: money("66.66")},
		},
	}

	lines, err := BuildInvoiceLines(fullRoles(), inv)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	// First credit line absorbs the cent so totals match the stated 100.00.
	assert.True(t, lines[1].Amount.Equal(money("33.34")), "got %s", lines[1].Amount)
	assert.True(t, lines[2].Amount.Equal(money("66.66")))
}

func TestBuildInvoiceLinesTwoCentDriftFails(t *testing.T) {
	inv := Invoice{
		Number:      "1008",
		TotalAmount: money("100.00"),
		Lines:       []InvoiceLine{{Number: 1, Amount: money("99.98")}},
	}

	_, err := BuildInvoiceLines(fullRoles(), inv)
	assert.ErrorIs(t, err, shared.ErrAllocationMismatch)
}

func TestBuildBillLinesMirrorsInvoice(t *testing.T) {
	bill := Bill{
		Number:      "2001",
		TotalAmount: money("80.00"),
		Lines:       []BillLine{{Number: 1, Amount: money("80.00")}},
	}

	lines, err := BuildBillLines(fullRoles(), bill)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, int64(400), lines[0].AccountID)
	assert.Equal(t, Debit, lines[0].Side)
	assert.Equal(t, int64(200), lines[1].AccountID)
	assert.Equal(t, Credit, lines[1].Side)
}

func TestBuildPaymentLines(t *testing.T) {
	p := Payment{
		Number:           "3001",
		Amount:           money("150.00"),
		DepositAccountID: 500,
		ARAccountID:      100,
		Allocations:      []Allocation{{DocumentID: uuid.New(), Amount: money("150.00")}},
	}

	lines, err := BuildPaymentLines(p)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, Debit, lines[0].Side)
	assert.Equal(t, int64(500), lines[0].AccountID)
	assert.Equal(t, Credit, lines[1].Side)
	assert.Equal(t, int64(100), lines[1].AccountID)
}

func TestBuildPaymentLinesAllocationMismatch(t *testing.T) {
	p := Payment{
		Number:           "3002",
		Amount:           money("150.00"),
		DepositAccountID: 500,
		ARAccountID:      100,
		Allocations:      []Allocation{{DocumentID: uuid.New(), Amount: money("100.00")}},
	}

	_, err := BuildPaymentLines(p)
	assert.ErrorIs(t, err, shared.ErrAllocationMismatch)
}

func TestBuildCreditNoteLinesLumpWithoutInvoiceLink(t *testing.T) {
	cn := CreditNote{
		Number:    "4001",
		Amount:    money("110.00"),
		TaxAmount: money("10.00"),
	}

	lines, err := BuildCreditNoteLines(fullRoles(), cn)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	// Lump revenue debit is net of tax.
	assert.Equal(t, int64(300), lines[0].AccountID)
	assert.Equal(t, Debit, lines[0].Side)
	assert.True(t, lines[0].Amount.Equal(money("100.00")))
	assert.Equal(t, int64(600), lines[1].AccountID)
	assert.True(t, lines[1].Amount.Equal(money("10.00")))
	assert.Equal(t, int64(100), lines[2].AccountID)
	assert.Equal(t, Credit, lines[2].Side)
}

func TestBuildVendorCreditLinesFlipped(t *testing.T) {
	vc := VendorCredit{
		Number: "5001",
		Amount: money("60.00"),
		Lines:  []VendorCreditLine{{Amount: money("60.00")}},
	}

	lines, err := BuildVendorCreditLines(fullRoles(), vc)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(200), lines[0].AccountID)
	assert.Equal(t, Debit, lines[0].Side)
	assert.Equal(t, int64(400), lines[1].AccountID)
	assert.Equal(t, Credit, lines[1].Side)
}

func TestBuildBankTransactionSpendMoney(t *testing.T) {
	bt := BankTransaction{
		Number:        "6001",
		Amount:        money("-250.00"),
		BankAccountID: 500,
		Allocations:   []BankAllocation{{AccountID: 400, Amount: money("250.00")}},
	}

	lines, err := BuildBankTransactionLines(bt)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, int64(500), lines[0].AccountID)
	assert.Equal(t, Credit, lines[0].Side)
	assert.True(t, lines[0].Amount.Equal(money("250.00")))
	assert.Equal(t, int64(400), lines[1].AccountID)
	assert.Equal(t, Debit, lines[1].Side)
}

func TestBuildBankTransactionReceiveMoney(t *testing.T) {
	bt := BankTransaction{
		Number:        "6002",
		Amount:        money("90.00"),
		BankAccountID: 500,
		Allocations:   []BankAllocation{{AccountID: 300, Amount: money("90.00")}},
	}

	lines, err := BuildBankTransactionLines(bt)
	require.NoError(t, err)
	assert.Equal(t, Debit, lines[0].Side)
	assert.Equal(t, Credit, lines[1].Side)
}

func TestBuildBankTransactionOutOfBalance(t *testing.T) {
	bt := BankTransaction{
		Number:        "6003",
		Amount:        money("-250.00"),
		BankAccountID: 500,
		Allocations:   []BankAllocation{{AccountID: 400, Amount: money("200.00")}},
	}

	_, err := BuildBankTransactionLines(bt)
	assert.ErrorIs(t, err, shared.ErrOutOfBalance)
}

func TestBuildBankTransactionCentResidueOnFirstAllocation(t *testing.T) {
	bt := BankTransaction{
		Number:        "6004",
		Amount:        money("-100.00"),
		BankAccountID: 500,
		Allocations: []BankAllocation{
			{AccountID: 400, Amount: money("49.99")},
			{AccountID: 410, Amount: money("50.00")},
		},
	}

	lines, err := BuildBankTransactionLines(bt)
	require.NoError(t, err)
	assert.True(t, lines[1].Amount.Equal(money("50.00")), "got %s", lines[1].Amount)
	assert.True(t, lines[2].Amount.Equal(money("50.00")))
}

func TestBuildBankTransferLines(t *testing.T) {
	tr := BankTransfer{
		Number:        "7001",
		Amount:        money("500.00"),
		FromAccountID: 500,
		ToAccountID:   510,
	}

	lines, err := BuildBankTransferLines(tr)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(510), lines[0].AccountID)
	assert.Equal(t, Debit, lines[0].Side)
	assert.Equal(t, int64(500), lines[1].AccountID)
	assert.Equal(t, Credit, lines[1].Side)
}

func TestBuildBankTransferRejectsNonPositive(t *testing.T) {
	_, err := BuildBankTransferLines(BankTransfer{Number: "7002", Amount: money("-1.00")})
	assert.ErrorIs(t, err, shared.ErrOutOfBalance)
}
