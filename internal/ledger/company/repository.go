package company

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/ledger/shared"
)

type Repository interface {
	Get(ctx context.Context, companyID int64) (Config, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, companyID int64) (Config, error) {
	var cfg Config
	var startMonth int
	err := r.db.QueryRow(ctx, `SELECT id, name, base_currency, fiscal_year_start_month, period_frequency, auto_create_fiscal_year,
COALESCE(default_ar_account_id, 0), COALESCE(default_ap_account_id, 0), COALESCE(default_income_account_id, 0),
COALESCE(default_expense_account_id, 0), COALESCE(default_bank_account_id, 0), COALESCE(default_cash_account_id, 0),
COALESCE(default_tax_payable_account_id, 0), COALESCE(default_tax_receivable_account_id, 0),
COALESCE(default_discount_given_account_id, 0), COALESCE(default_discount_received_account_id, 0),
COALESCE(retained_earnings_account_id, 0), created_at, updated_at
FROM companies WHERE id=$1`, companyID).
		Scan(&cfg.ID, &cfg.Name, &cfg.BaseCurrency, &startMonth, &cfg.PeriodFrequency, &cfg.AutoCreateFiscalYear,
			&cfg.Defaults.AccountsReceivable, &cfg.Defaults.AccountsPayable, &cfg.Defaults.Income,
			&cfg.Defaults.Expense, &cfg.Defaults.Bank, &cfg.Defaults.Cash,
			&cfg.Defaults.TaxPayable, &cfg.Defaults.TaxReceivable,
			&cfg.Defaults.DiscountGiven, &cfg.Defaults.DiscountReceived,
			&cfg.Defaults.RetainedEarnings, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Config{}, shared.ErrCompanyNotFound
		}
		return Config{}, err
	}
	cfg.FiscalYearStartMonth = time.Month(startMonth)
	return cfg, nil
}

// ListIDs returns every company id, used by boot-time sweeps.
func (r *repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM companies ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
