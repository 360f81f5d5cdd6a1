package templates

import "time"

// DocType enumerates the document types templates are keyed by.
type DocType string

const (
	DocTypeARInvoice      DocType = "AR_INVOICE"
	DocTypeARPayment      DocType = "AR_PAYMENT"
	DocTypeARCreditNote   DocType = "AR_CREDIT_NOTE"
	DocTypeAPBill         DocType = "AP_BILL"
	DocTypeAPPayment      DocType = "AP_PAYMENT"
	DocTypeAPVendorCredit DocType = "AP_VENDOR_CREDIT"
)

// Role is a symbolic posting role a template maps to a concrete account.
type Role string

const (
	RoleAR               Role = "AR"
	RoleAP               Role = "AP"
	RoleRevenue          Role = "REVENUE"
	RoleExpense          Role = "EXPENSE"
	RoleBank             Role = "BANK"
	RoleCash             Role = "CASH"
	RoleTaxPayable       Role = "TAX_PAYABLE"
	RoleTaxReceivable    Role = "TAX_RECEIVABLE"
	RoleDiscountGiven    Role = "DISCOUNT_GIVEN"
	RoleDiscountReceived Role = "DISCOUNT_RECEIVED"
)

// PostingTemplate maps roles to accounts for one document type in one company.
type PostingTemplate struct {
	ID            int64
	CompanyID     int64
	DocType       DocType
	Version       int
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	IsDefault     bool
	IsActive      bool
	Lines         []PostingTemplateLine
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PostingTemplateLine binds one role to one account.
type PostingTemplateLine struct {
	ID         int64
	TemplateID int64
	Role       Role
	AccountID  int64
	Precedence int
	IsRequired bool
}

// RoleAccounts flattens template lines into a role lookup map. Lines are
// ordered by precedence; the lowest precedence wins when a role repeats.
func RoleAccounts(t PostingTemplate) map[Role]int64 {
	out := make(map[Role]int64, len(t.Lines))
	for _, line := range t.Lines {
		if _, ok := out[line.Role]; !ok {
			out[line.Role] = line.AccountID
		}
	}
	return out
}
