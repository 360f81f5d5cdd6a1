package templates

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/ledgerline/ledgerline/internal/ledger/company"
	"github.com/ledgerline/ledgerline/internal/ledger/shared"
)

// Installer seeds minimal default templates from company default accounts.
// It is idempotent: re-running never duplicates templates, it only fills
// role mappings that are still missing.
type Installer struct {
	repo   Repository
	logger *slog.Logger
}

func NewInstaller(repo Repository, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{repo: repo, logger: logger}
}

// roleBinding pairs a role with its requiredness in the seeded template.
type roleBinding struct {
	role     Role
	required bool
}

var docTypeRoles = map[DocType][]roleBinding{
	DocTypeARInvoice: {
		{RoleAR, true}, {RoleRevenue, true},
		{RoleTaxPayable, false}, {RoleDiscountGiven, false},
	},
	DocTypeARPayment: {
		{RoleAR, true}, {RoleBank, true}, {RoleCash, false},
	},
	DocTypeARCreditNote: {
		{RoleAR, true}, {RoleRevenue, true}, {RoleTaxPayable, false},
	},
	DocTypeAPBill: {
		{RoleAP, true}, {RoleExpense, true},
		{RoleTaxReceivable, false}, {RoleDiscountReceived, false},
	},
	DocTypeAPPayment: {
		{RoleAP, true}, {RoleBank, true}, {RoleCash, false},
	},
	DocTypeAPVendorCredit: {
		{RoleAP, true}, {RoleExpense, true}, {RoleTaxReceivable, false},
	},
}

// accountForRole maps a role to the company default account, zero when unset.
func accountForRole(defaults company.DefaultAccounts, role Role) int64 {
	switch role {
	case RoleAR:
		return defaults.AccountsReceivable
	case RoleAP:
		return defaults.AccountsPayable
	case RoleRevenue:
		return defaults.Income
	case RoleExpense:
		return defaults.Expense
	case RoleBank:
		return defaults.Bank
	case RoleCash:
		return defaults.Cash
	case RoleTaxPayable:
		return defaults.TaxPayable
	case RoleTaxReceivable:
		return defaults.TaxReceivable
	case RoleDiscountGiven:
		return defaults.DiscountGiven
	case RoleDiscountReceived:
		return defaults.DiscountReceived
	default:
		return 0
	}
}

// DesiredLines computes the best-effort seed lines for a doc type. Roles with
// no configured default account are skipped rather than mapped to zero.
func DesiredLines(docType DocType, defaults company.DefaultAccounts) []PostingTemplateLine {
	bindings := docTypeRoles[docType]
	var lines []PostingTemplateLine
	for i, binding := range bindings {
		accountID := accountForRole(defaults, binding.role)
		if accountID == 0 {
			continue
		}
		lines = append(lines, PostingTemplateLine{
			Role:       binding.role,
			AccountID:  accountID,
			Precedence: i + 1,
			IsRequired: binding.required,
		})
	}
	return lines
}

// MissingLines diffs desired against an existing template's role set.
func MissingLines(existing PostingTemplate, desired []PostingTemplateLine) []PostingTemplateLine {
	have := make(map[Role]bool, len(existing.Lines))
	maxPrecedence := 0
	for _, line := range existing.Lines {
		have[line.Role] = true
		if line.Precedence > maxPrecedence {
			maxPrecedence = line.Precedence
		}
	}
	var missing []PostingTemplateLine
	for _, line := range desired {
		if have[line.Role] {
			continue
		}
		maxPrecedence++
		line.Precedence = maxPrecedence
		missing = append(missing, line)
	}
	return missing
}

// EnsureDefaults installs or completes the default template for every doc
// type, drawing account ids from the company configuration. Safe to re-run.
// Returns the number of role mappings written; zero means the company was
// already fully seeded.
func (ins *Installer) EnsureDefaults(ctx context.Context, cfg company.Config, asOf time.Time) (int, error) {
	docTypes := make([]DocType, 0, len(docTypeRoles))
	for docType := range docTypeRoles {
		docTypes = append(docTypes, docType)
	}
	sort.Slice(docTypes, func(i, j int) bool { return docTypes[i] < docTypes[j] })

	installed := 0
	for _, docType := range docTypes {
		desired := DesiredLines(docType, cfg.Defaults)
		if len(desired) == 0 {
			continue
		}
		existing, err := ins.repo.FindActiveDefault(ctx, cfg.ID, docType, asOf)
		if err != nil {
			if !errors.Is(err, shared.ErrNoActiveTemplate) {
				return installed, err
			}
			_, err := ins.repo.InsertTemplate(ctx, PostingTemplate{
				CompanyID:     cfg.ID,
				DocType:       docType,
				Version:       1,
				EffectiveFrom: time.Date(asOf.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
				IsDefault:     true,
				IsActive:      true,
				Lines:         desired,
			})
			if err != nil {
				return installed, err
			}
			installed += len(desired)
			ins.logger.Info("installed default posting template",
				slog.Int64("company_id", cfg.ID), slog.String("doc_type", string(docType)))
			continue
		}
		missing := MissingLines(existing, desired)
		if len(missing) == 0 {
			continue
		}
		if err := ins.repo.InsertLines(ctx, existing.ID, missing); err != nil {
			return installed, err
		}
		installed += len(missing)
		ins.logger.Info("filled missing template roles",
			slog.Int64("company_id", cfg.ID), slog.String("doc_type", string(docType)),
			slog.Int("roles", len(missing)))
	}
	return installed, nil
}
