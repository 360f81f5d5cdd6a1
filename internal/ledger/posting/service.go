package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger/accounts"
	"github.com/ledgerline/ledgerline/internal/ledger/company"
	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	"github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/ledger/templates"
	"github.com/ledgerline/ledgerline/internal/observability"
	internalshared "github.com/ledgerline/ledgerline/internal/shared"
)

const (
	maxTransactionNumberLen = 50
	maxVoidReasonLen        = 255
	maxReversalProbes       = 25
)

type PeriodResolver interface {
	ResolveOpenPeriod(ctx context.Context, companyID int64, date time.Time) (periods.AccountingPeriod, error)
}

type TemplateResolver interface {
	ResolveTemplate(ctx context.Context, companyID int64, docType templates.DocType, date time.Time) (templates.PostingTemplate, error)
}

type CompanyConfigPort interface {
	Get(ctx context.Context, companyID int64) (company.Config, error)
}

type AccountDirectory interface {
	GetMany(ctx context.Context, companyID int64, accountIDs []int64) (map[int64]accounts.Account, error)
}

type AuditPort interface {
	Record(ctx context.Context, log internalshared.AuditLog) error
}

// Service is the general ledger posting engine: it turns document aggregates
// into balanced, posted transactions and synthesizes reversals.
type Service struct {
	repo      Repository
	periods   PeriodResolver
	templates TemplateResolver
	companies CompanyConfigPort
	directory AccountDirectory
	audit     AuditPort
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, periodResolver PeriodResolver, templateResolver TemplateResolver, companies CompanyConfigPort, directory AccountDirectory, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		periods:   periodResolver,
		templates: templateResolver,
		companies: companies,
		directory: directory,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// header carries the per-document posting context assembled before building.
type header struct {
	companyID    int64
	actorID      int64
	number       string
	kind         SourceKind
	source       SourceRef
	date         time.Time
	currency     string
	exchangeRate decimal.Decimal
	description  string
}

// PostInvoice posts an AR invoice: AR debited, revenue/tax credited.
func (s *Service) PostInvoice(ctx context.Context, companyID, actorID int64, inv Invoice) (Transaction, error) {
	roles, err := s.resolveRoles(ctx, companyID, templates.DocTypeARInvoice, inv.Date)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceInvoice, err)
	}
	lines, err := BuildInvoiceLines(roles, inv)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceInvoice, err)
	}
	return s.post(ctx, header{
		companyID:    companyID,
		actorID:      actorID,
		number:       "INV-" + inv.Number,
		kind:         SourceInvoice,
		source:       SourceRef{Kind: SourceInvoice, ID: inv.ID},
		date:         inv.Date,
		currency:     inv.Currency,
		exchangeRate: inv.ExchangeRate,
		description:  fmt.Sprintf("Invoice %s", inv.Number),
	}, lines)
}

// PostBill posts an AP bill: expense/tax debited, AP credited.
func (s *Service) PostBill(ctx context.Context, companyID, actorID int64, bill Bill) (Transaction, error) {
	roles, err := s.resolveRoles(ctx, companyID, templates.DocTypeAPBill, bill.Date)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceBill, err)
	}
	lines, err := BuildBillLines(roles, bill)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceBill, err)
	}
	return s.post(ctx, header{
		companyID:    companyID,
		actorID:      actorID,
		number:       "BILL-" + bill.Number,
		kind:         SourceBill,
		source:       SourceRef{Kind: SourceBill, ID: bill.ID},
		date:         bill.Date,
		currency:     bill.Currency,
		exchangeRate: bill.ExchangeRate,
		description:  fmt.Sprintf("Bill %s", bill.Number),
	}, lines)
}

// PostPayment posts a customer payment settlement. Account ids are supplied
// by the caller; no template is consulted.
func (s *Service) PostPayment(ctx context.Context, companyID, actorID int64, p Payment) (Transaction, error) {
	lines, err := BuildPaymentLines(p)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourcePayment, err)
	}
	return s.post(ctx, header{
		companyID:    companyID,
		actorID:      actorID,
		number:       "PAY-" + p.Number,
		kind:         SourcePayment,
		source:       SourceRef{Kind: SourcePayment, ID: p.ID},
		date:         p.Date,
		currency:     p.Currency,
		exchangeRate: p.ExchangeRate,
		description:  fmt.Sprintf("Payment %s", p.Number),
	}, lines)
}

// PostBillPayment posts a vendor bill payment settlement.
func (s *Service) PostBillPayment(ctx context.Context, companyID, actorID int64, p BillPayment) (Transaction, error) {
	lines, err := BuildBillPaymentLines(p)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceBillPayment, err)
	}
	return s.post(ctx, header{
		companyID:    companyID,
		actorID:      actorID,
		number:       "BPAY-" + p.Number,
		kind:         SourceBillPayment,
		source:       SourceRef{Kind: SourceBillPayment, ID: p.ID},
		date:         p.Date,
		currency:     p.Currency,
		exchangeRate: p.ExchangeRate,
		description:  fmt.Sprintf("Bill payment %s", p.Number),
	}, lines)
}

// PostCreditNote posts an AR credit note.
func (s *Service) PostCreditNote(ctx context.Context, companyID, actorID int64, cn CreditNote) (Transaction, error) {
	roles, err := s.resolveRoles(ctx, companyID, templates.DocTypeARCreditNote, cn.Date)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceCreditNote, err)
	}
	lines, err := BuildCreditNoteLines(roles, cn)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceCreditNote, err)
	}
	return s.post(ctx, header{
		companyID:    companyID,
		actorID:      actorID,
		number:       "CN-" + cn.Number,
		kind:         SourceCreditNote,
		source:       SourceRef{Kind: SourceCreditNote, ID: cn.ID},
		date:         cn.Date,
		currency:     cn.Currency,
		exchangeRate: cn.ExchangeRate,
		description:  fmt.Sprintf("Credit note %s", cn.Number),
	}, lines)
}

// PostVendorCredit posts an AP vendor credit.
func (s *Service) PostVendorCredit(ctx context.Context, companyID, actorID int64, vc VendorCredit) (Transaction, error) {
	roles, err := s.resolveRoles(ctx, companyID, templates.DocTypeAPVendorCredit, vc.Date)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceVendorCredit, err)
	}
	lines, err := BuildVendorCreditLines(roles, vc)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceVendorCredit, err)
	}
	return s.post(ctx, header{
		companyID:    companyID,
		actorID:      actorID,
		number:       "VC-" + vc.Number,
		kind:         SourceVendorCredit,
		source:       SourceRef{Kind: SourceVendorCredit, ID: vc.ID},
		date:         vc.Date,
		currency:     vc.Currency,
		exchangeRate: vc.ExchangeRate,
		description:  fmt.Sprintf("Vendor credit %s", vc.Number),
	}, lines)
}

// PostBankTransaction posts a Spend or Receive Money entry.
func (s *Service) PostBankTransaction(ctx context.Context, companyID, actorID int64, bt BankTransaction) (Transaction, error) {
	lines, err := BuildBankTransactionLines(bt)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceBankTransaction, err)
	}
	return s.post(ctx, header{
		companyID:    companyID,
		actorID:      actorID,
		number:       "BNK-" + bt.Number,
		kind:         SourceBankTransaction,
		source:       SourceRef{Kind: SourceBankTransaction, ID: bt.ID},
		date:         bt.Date,
		currency:     bt.Currency,
		exchangeRate: bt.ExchangeRate,
		description:  fmt.Sprintf("Bank transaction %s", bt.Number),
	}, lines)
}

// PostBankTransfer posts a transfer between two bank/cash accounts.
func (s *Service) PostBankTransfer(ctx context.Context, companyID, actorID int64, t BankTransfer) (Transaction, error) {
	lines, err := BuildBankTransferLines(t)
	if err != nil {
		return Transaction{}, s.rejectedKind(SourceBankTransfer, err)
	}
	return s.post(ctx, header{
		companyID:    companyID,
		actorID:      actorID,
		number:       "TRF-" + t.Number,
		kind:         SourceBankTransfer,
		source:       SourceRef{Kind: SourceBankTransfer, ID: t.ID},
		date:         t.Date,
		currency:     t.Currency,
		exchangeRate: t.ExchangeRate,
		description:  fmt.Sprintf("Bank transfer %s", t.Number),
	}, lines)
}

// checkAccounts verifies every line posts to a known, active account in the
// company's directory. Reversals skip this check: a mirror must hit the
// original accounts even if one was deactivated since.
func (s *Service) checkAccounts(ctx context.Context, companyID int64, kind SourceKind, lines []DraftLine) error {
	seen := make(map[int64]bool, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if seen[line.AccountID] {
			continue
		}
		seen[line.AccountID] = true
		ids = append(ids, line.AccountID)
	}
	found, err := s.directory.GetMany(ctx, companyID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		account, ok := found[id]
		if !ok {
			return s.rejectedKind(kind, fmt.Errorf("%w: account %d", shared.ErrAccountNotFound, id))
		}
		if !account.IsActive {
			return s.rejectedKind(kind, fmt.Errorf("%w: account %s is inactive", shared.ErrAccountNotFound, account.Code))
		}
	}
	return nil
}

func (s *Service) resolveRoles(ctx context.Context, companyID int64, docType templates.DocType, date time.Time) (RoleMap, error) {
	template, err := s.templates.ResolveTemplate(ctx, companyID, docType, date)
	if err != nil {
		return nil, err
	}
	return templates.RoleAccounts(template), nil
}

// post resolves the open period, normalizes the draft lines, and writes the
// header plus its journal entries as one atomic unit.
func (s *Service) post(ctx context.Context, h header, lines []DraftLine) (Transaction, error) {
	period, err := s.periods.ResolveOpenPeriod(ctx, h.companyID, h.date)
	if err != nil {
		return Transaction{}, s.rejectedKind(h.kind, err)
	}
	cfg, err := s.companies.Get(ctx, h.companyID)
	if err != nil {
		return Transaction{}, err
	}
	currency := h.currency
	if currency == "" {
		currency = cfg.BaseCurrency
	}
	if err := s.checkAccounts(ctx, h.companyID, h.kind, lines); err != nil {
		return Transaction{}, err
	}

	entries, err := normalizeEntries(normalizeInput{
		Currency:     currency,
		BaseCurrency: cfg.BaseCurrency,
		ExchangeRate: h.exchangeRate,
	}, lines)
	if err != nil {
		return Transaction{}, s.rejectedKind(h.kind, err)
	}

	now := s.now()
	transaction := Transaction{
		CompanyID:       h.companyID,
		Number:          truncate(h.number, maxTransactionNumberLen),
		Type:            h.kind,
		Source:          h.source,
		TransactionDate: h.date,
		PostingDate:     now,
		FiscalYearID:    period.FiscalYearID,
		PeriodID:        period.ID,
		Currency:        currency,
		BaseCurrency:    cfg.BaseCurrency,
		ExchangeRate:    rateOrOne(currency, cfg.BaseCurrency, h.exchangeRate),
		Status:          TransactionStatusPosted,
		Description:     h.description,
		PostedBy:        h.actorID,
		PostedAt:        now,
	}
	transaction.TotalDebit, transaction.TotalCredit = entryTotals(entries)
	if !transaction.TotalDebit.Equal(transaction.TotalCredit) {
		return Transaction{}, s.rejectedKind(h.kind, fmt.Errorf("%w: post-adjustment debit %s vs credit %s",
			shared.ErrTransactionNotBalanced, transaction.TotalDebit.StringFixed(2), transaction.TotalCredit.StringFixed(2)))
	}

	var written Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertTransaction(ctx, transaction)
		if err != nil {
			return err
		}
		if err := tx.InsertJournalEntries(ctx, inserted.ID, entries); err != nil {
			return err
		}
		written = inserted
		return nil
	})
	if err != nil {
		return Transaction{}, s.rejectedKind(h.kind, err)
	}

	s.metrics.ObservePosting(string(h.kind))
	s.recordAudit(ctx, h.companyID, h.actorID, "transaction.post", written.ID, map[string]any{
		"number":         written.Number,
		"reference_type": string(h.source.Kind),
		"reference_id":   h.source.ID.String(),
		"period_id":      period.ID,
	})
	return written, nil
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	CompanyID     int64
	TransactionID int64
	ActorID       int64
	Reason        string
	Date          *time.Time
}

// ReverseTransaction synthesizes the balanced mirror of a posted transaction.
// Repeated calls for the same original converge on one reversal record.
func (s *Service) ReverseTransaction(ctx context.Context, in ReverseInput) (Transaction, error) {
	if in.TransactionID == 0 {
		return Transaction{}, errors.New("ledger: transaction id required")
	}
	date := s.now()
	if in.Date != nil {
		date = *in.Date
	}
	// A reversal can legally land in a different period than the original.
	period, err := s.periods.ResolveOpenPeriod(ctx, in.CompanyID, date)
	if err != nil {
		return Transaction{}, err
	}

	var reversal Transaction
	var reused bool
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetTransactionForUpdate(ctx, in.CompanyID, in.TransactionID)
		if err != nil {
			return err
		}
		if original.ReversedByID != nil {
			existing, err := tx.GetTransactionForUpdate(ctx, in.CompanyID, *original.ReversedByID)
			if err == nil {
				reversal = existing
				reused = true
				return nil
			}
			if !errors.Is(err, shared.ErrTransactionNotFound) {
				return err
			}
			// Forward link points at a missing row; fall through and search.
		}
		if existing, found, err := tx.FindReversalOf(ctx, in.CompanyID, original.ID); err != nil {
			return err
		} else if found {
			// Backfill the forward link before returning the survivor.
			if err := tx.LinkReversal(ctx, original.ID, existing.ID, in.ActorID, s.now(), truncate(in.Reason, maxVoidReasonLen)); err != nil {
				return err
			}
			reversal = existing
			reused = true
			return nil
		}

		entries, err := tx.GetJournalEntries(ctx, original.ID)
		if err != nil {
			return err
		}
		lines := mirrorLines(entries)
		if len(lines) == 0 {
			return fmt.Errorf("%w: transaction %s", shared.ErrNothingToReverse, original.Number)
		}

		number, err := s.reversalNumber(ctx, tx, in.CompanyID, original.Number)
		if err != nil {
			return err
		}

		normalized, err := normalizeEntries(normalizeInput{
			Currency:     original.Currency,
			BaseCurrency: original.BaseCurrency,
			ExchangeRate: original.ExchangeRate,
		}, lines)
		if err != nil {
			return err
		}

		now := s.now()
		draft := Transaction{
			CompanyID:       in.CompanyID,
			Number:          number,
			Type:            SourceReversal,
			Source:          SourceRef{Kind: SourceReversal, ID: uuid.New()},
			TransactionDate: date,
			PostingDate:     now,
			FiscalYearID:    period.FiscalYearID,
			PeriodID:        period.ID,
			Currency:        original.Currency,
			BaseCurrency:    original.BaseCurrency,
			ExchangeRate:    original.ExchangeRate,
			Status:          TransactionStatusPosted,
			Description:     fmt.Sprintf("Reversal of %s", original.Number),
			ReversalOfID:    &original.ID,
			PostedBy:        in.ActorID,
			PostedAt:        now,
		}
		draft.TotalDebit, draft.TotalCredit = entryTotals(normalized)

		inserted, err := tx.InsertTransaction(ctx, draft)
		if err != nil {
			return err
		}
		if err := tx.InsertJournalEntries(ctx, inserted.ID, normalized); err != nil {
			return err
		}
		if err := tx.LinkReversal(ctx, original.ID, inserted.ID, in.ActorID, now, truncate(in.Reason, maxVoidReasonLen)); err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	if !reused {
		s.metrics.ObserveReversal()
		s.recordAudit(ctx, in.CompanyID, in.ActorID, "transaction.reverse", in.TransactionID, map[string]any{
			"reversal_id":     reversal.ID,
			"reversal_number": reversal.Number,
		})
	}
	return reversal, nil
}

// GetTransaction loads a posted transaction with its ordered lines.
func (s *Service) GetTransaction(ctx context.Context, companyID, transactionID int64) (Transaction, []JournalEntry, error) {
	return s.repo.GetTransaction(ctx, companyID, transactionID)
}

// mirrorLines flips debit and credit per original line, preserving order and
// skipping zero-valued lines. When any line carried a foreign-currency
// amount, the foreign amounts are preferred for the whole reversal so all
// lines stay in one unit.
func mirrorLines(entries []JournalEntry) []DraftLine {
	preferCurrency := false
	for _, e := range entries {
		if e.CurrencyDebit != nil || e.CurrencyCredit != nil {
			preferCurrency = true
			break
		}
	}
	var lines []DraftLine
	for _, e := range entries {
		if e.IsZero() {
			continue
		}
		debit, credit := e.Debit, e.Credit
		if preferCurrency {
			if e.CurrencyDebit != nil {
				debit = *e.CurrencyDebit
			}
			if e.CurrencyCredit != nil {
				credit = *e.CurrencyCredit
			}
		}
		line := DraftLine{AccountID: e.AccountID, Description: "Reversal: " + e.Description}
		if debit.IsPositive() {
			line.Side = Credit
			line.Amount = debit
		} else {
			line.Side = Debit
			line.Amount = credit
		}
		lines = append(lines, line)
	}
	return lines
}

// reversalNumber derives a deterministic unique number by truncating the
// original to fit a -REV/-REV2/... suffix, probing a bounded number of
// candidates before falling back to a random token.
func (s *Service) reversalNumber(ctx context.Context, tx TxRepository, companyID int64, original string) (string, error) {
	for attempt := 1; attempt <= maxReversalProbes; attempt++ {
		suffix := "-REV"
		if attempt > 1 {
			suffix = fmt.Sprintf("-REV%d", attempt)
		}
		candidate := truncate(original, maxTransactionNumberLen-len(suffix)) + suffix
		exists, err := tx.TransactionNumberExists(ctx, companyID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	token := strings.ToUpper(uuid.NewString()[:8])
	suffix := "-REV-" + token
	return truncate(original, maxTransactionNumberLen-len(suffix)) + suffix, nil
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalshared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "transaction",
		EntityID:  fmt.Sprintf("%d", entityID),
		Meta:      meta,
		At:        s.now(),
	})
}

func (s *Service) rejectedKind(kind SourceKind, err error) error {
	s.metrics.ObservePostingError(string(kind))
	return err
}

func entryTotals(entries []JournalEntry) (decimal.Decimal, decimal.Decimal) {
	var debit, credit decimal.Decimal
	for _, e := range entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

func rateOrOne(currency, base string, rate decimal.Decimal) decimal.Decimal {
	if currency != base && rate.IsPositive() {
		return rate
	}
	return decimal.NewFromInt(1)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
