package posting

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository encapsulates DB operations for transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, companyID, transactionID int64) (Transaction, []JournalEntry, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	InsertJournalEntries(ctx context.Context, transactionID int64, entries []JournalEntry) error
	GetTransactionForUpdate(ctx context.Context, companyID, transactionID int64) (Transaction, error)
	GetJournalEntries(ctx context.Context, transactionID int64) ([]JournalEntry, error)
	FindReversalOf(ctx context.Context, companyID, originalID int64) (Transaction, bool, error)
	LinkReversal(ctx context.Context, originalID, reversalID int64, voidedBy int64, voidedAt time.Time, reason string) error
	TransactionNumberExists(ctx context.Context, companyID int64, number string) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const transactionColumns = `id, company_id, transaction_number, transaction_type, reference_type, reference_id, transaction_date, posting_date,
fiscal_year_id, period_id, currency, base_currency, exchange_rate::text, total_debit::text, total_credit::text, status, description,
reversal_of_id, reversed_by_id, voided_at, voided_by, void_reason, posted_by, posted_at, created_at, updated_at`

func (r *repository) GetTransaction(ctx context.Context, companyID, transactionID int64) (Transaction, []JournalEntry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE company_id=$1 AND id=$2`, companyID, transactionID)
	t, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, nil, err
	}
	rows, err := r.db.Query(ctx, journalEntryQuery, transactionID)
	if err != nil {
		return Transaction{}, nil, err
	}
	defer rows.Close()
	entries, err := collectJournalEntries(rows)
	if err != nil {
		return Transaction{}, nil, err
	}
	return t, entries, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO transactions
(company_id, transaction_number, transaction_type, reference_type, reference_id, transaction_date, posting_date,
 fiscal_year_id, period_id, currency, base_currency, exchange_rate, total_debit, total_credit, status, description,
 reversal_of_id, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,'POSTED',$15,$16,$17,$18)
RETURNING id, created_at, updated_at`,
		t.CompanyID, t.Number, t.Type, t.Source.Kind, t.Source.ID, t.TransactionDate, t.PostingDate,
		t.FiscalYearID, t.PeriodID, t.Currency, t.BaseCurrency, t.ExchangeRate.String(),
		t.TotalDebit.StringFixed(2), t.TotalCredit.StringFixed(2), t.Description,
		t.ReversalOfID, t.PostedBy, t.PostedAt)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	t.Status = TransactionStatusPosted
	return t, nil
}

func (r *txRepository) InsertJournalEntries(ctx context.Context, transactionID int64, entries []JournalEntry) error {
	for _, entry := range entries {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_entries
(transaction_id, account_id, line_number, debit_amount, credit_amount, currency_debit, currency_credit, exchange_rate, description)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			transactionID, entry.AccountID, entry.LineNumber,
			entry.Debit.StringFixed(2), entry.Credit.StringFixed(2),
			decimalPtrString(entry.CurrencyDebit), decimalPtrString(entry.CurrencyCredit),
			entry.ExchangeRate.String(), entry.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetTransactionForUpdate(ctx context.Context, companyID, transactionID int64) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, transactionID)
	return scanTransaction(row)
}

const journalEntryQuery = `SELECT id, transaction_id, account_id, line_number, debit_amount::text, credit_amount::text,
currency_debit::text, currency_credit::text, exchange_rate::text, description, created_at
FROM journal_entries WHERE transaction_id=$1 ORDER BY line_number ASC`

func (r *txRepository) GetJournalEntries(ctx context.Context, transactionID int64) ([]JournalEntry, error) {
	rows, err := r.tx.Query(ctx, journalEntryQuery, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJournalEntries(rows)
}

func (r *txRepository) FindReversalOf(ctx context.Context, companyID, originalID int64) (Transaction, bool, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
WHERE company_id=$1 AND reversal_of_id=$2 ORDER BY id ASC LIMIT 1`, companyID, originalID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, shared.ErrTransactionNotFound) {
			return Transaction{}, false, nil
		}
		return Transaction{}, false, err
	}
	return t, true, nil
}

// LinkReversal sets the forward link and stamps void metadata. Void fields
// are first-write-wins: an earlier voided_at is never overwritten.
func (r *txRepository) LinkReversal(ctx context.Context, originalID, reversalID int64, voidedBy int64, voidedAt time.Time, reason string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET
reversed_by_id=$2,
voided_at=COALESCE(voided_at, $3),
voided_by=COALESCE(voided_by, $4),
void_reason=COALESCE(void_reason, $5),
updated_at=NOW()
WHERE id=$1`, originalID, reversalID, voidedAt, voidedBy, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrTransactionNotFound
	}
	return nil
}

func (r *txRepository) TransactionNumberExists(ctx context.Context, companyID int64, number string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE company_id=$1 AND transaction_number=$2)`, companyID, number).Scan(&exists)
	return exists, err
}

// Helpers

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var exchangeRate, totalDebit, totalCredit string
	err := row.Scan(&t.ID, &t.CompanyID, &t.Number, &t.Type, &t.Source.Kind, &t.Source.ID, &t.TransactionDate, &t.PostingDate,
		&t.FiscalYearID, &t.PeriodID, &t.Currency, &t.BaseCurrency, &exchangeRate, &totalDebit, &totalCredit, &t.Status, &t.Description,
		&t.ReversalOfID, &t.ReversedByID, &t.VoidedAt, &t.VoidedBy, &t.VoidReason, &t.PostedBy, &t.PostedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	if t.ExchangeRate, err = decimal.NewFromString(exchangeRate); err != nil {
		return Transaction{}, err
	}
	if t.TotalDebit, err = decimal.NewFromString(totalDebit); err != nil {
		return Transaction{}, err
	}
	if t.TotalCredit, err = decimal.NewFromString(totalCredit); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func collectJournalEntries(rows pgx.Rows) ([]JournalEntry, error) {
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var debit, credit, exchangeRate string
		var currencyDebit, currencyCredit *string
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.LineNumber, &debit, &credit,
			&currencyDebit, &currencyCredit, &exchangeRate, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		var err error
		if e.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if e.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		if e.ExchangeRate, err = decimal.NewFromString(exchangeRate); err != nil {
			return nil, err
		}
		if e.CurrencyDebit, err = parseDecimalPtr(currencyDebit); err != nil {
			return nil, err
		}
		if e.CurrencyCredit, err = parseDecimalPtr(currencyCredit); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func parseDecimalPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalPtrString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.StringFixed(2)
}
