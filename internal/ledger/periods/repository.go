package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/ledger/shared"
)

type Repository interface {
	// FindOpenPeriodByDate returns the postable period covering date, joined
	// against its fiscal year so closed years are excluded.
	FindOpenPeriodByDate(ctx context.Context, companyID int64, date time.Time) (AccountingPeriod, error)
	// FindPeriodByDate returns any period covering date regardless of status.
	FindPeriodByDate(ctx context.Context, companyID int64, date time.Time) (AccountingPeriod, error)
	// CreateFiscalYear inserts the fiscal year with its periods atomically.
	// A concurrent insert for the same range resolves to the surviving row.
	CreateFiscalYear(ctx context.Context, fy FiscalYear, spans []Span) (FiscalYear, error)
	// GetPeriodForUpdate locks a period row inside an open transaction.
	GetPeriod(ctx context.Context, companyID, periodID int64) (AccountingPeriod, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `p.id, p.fiscal_year_id, p.company_id, p.start_date, p.end_date, p.period_number, p.period_type, p.status, p.created_at, p.updated_at`

func (r *repository) FindOpenPeriodByDate(ctx context.Context, companyID int64, date time.Time) (AccountingPeriod, error) {
	row := r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM accounting_periods p
JOIN fiscal_years fy ON fy.id = p.fiscal_year_id
WHERE p.company_id=$1 AND p.start_date <= $2 AND p.end_date >= $2
  AND p.status IN ('OPEN','CLOSING') AND NOT fy.is_closed
ORDER BY p.start_date ASC LIMIT 1`, companyID, date)
	return scanPeriod(row)
}

func (r *repository) FindPeriodByDate(ctx context.Context, companyID int64, date time.Time) (AccountingPeriod, error) {
	row := r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM accounting_periods p
WHERE p.company_id=$1 AND p.start_date <= $2 AND p.end_date >= $2
ORDER BY p.start_date ASC LIMIT 1`, companyID, date)
	return scanPeriod(row)
}

func (r *repository) GetPeriod(ctx context.Context, companyID, periodID int64) (AccountingPeriod, error) {
	row := r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM accounting_periods p WHERE p.company_id=$1 AND p.id=$2`, companyID, periodID)
	return scanPeriod(row)
}

func (r *repository) CreateFiscalYear(ctx context.Context, fy FiscalYear, spans []Span) (FiscalYear, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return FiscalYear{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `INSERT INTO fiscal_years (company_id, start_date, end_date, is_current, is_closed, retained_earnings_account_id)
VALUES ($1,$2,$3,$4,false,$5) RETURNING id, created_at, updated_at`,
		fy.CompanyID, fy.StartDate, fy.EndDate, fy.IsCurrent, fy.RetainedEarningsAccountID)
	if err := row.Scan(&fy.ID, &fy.CreatedAt, &fy.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			// Another writer created the same year first; return theirs.
			return r.findFiscalYearByStart(ctx, fy.CompanyID, fy.StartDate)
		}
		return FiscalYear{}, err
	}

	for _, span := range spans {
		if _, err := tx.Exec(ctx, `INSERT INTO accounting_periods (fiscal_year_id, company_id, start_date, end_date, period_number, period_type, status)
VALUES ($1,$2,$3,$4,$5,$6,'OPEN')`,
			fy.ID, fy.CompanyID, span.StartDate, span.EndDate, span.PeriodNumber, span.PeriodType); err != nil {
			return FiscalYear{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return r.findFiscalYearByStart(ctx, fy.CompanyID, fy.StartDate)
		}
		return FiscalYear{}, err
	}
	return fy, nil
}

func (r *repository) findFiscalYearByStart(ctx context.Context, companyID int64, start time.Time) (FiscalYear, error) {
	var fy FiscalYear
	err := r.db.QueryRow(ctx, `SELECT id, company_id, start_date, end_date, is_current, is_closed, retained_earnings_account_id, created_at, updated_at
FROM fiscal_years WHERE company_id=$1 AND start_date=$2`, companyID, start).
		Scan(&fy.ID, &fy.CompanyID, &fy.StartDate, &fy.EndDate, &fy.IsCurrent, &fy.IsClosed, &fy.RetainedEarningsAccountID, &fy.CreatedAt, &fy.UpdatedAt)
	if err != nil {
		return FiscalYear{}, err
	}
	return fy, nil
}

func scanPeriod(row pgx.Row) (AccountingPeriod, error) {
	var p AccountingPeriod
	err := row.Scan(&p.ID, &p.FiscalYearID, &p.CompanyID, &p.StartDate, &p.EndDate, &p.PeriodNumber, &p.PeriodType, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountingPeriod{}, shared.ErrNoOpenPeriod
		}
		return AccountingPeriod{}, err
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
