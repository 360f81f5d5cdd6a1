package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/ledger/shared"
)

const selectColumns = `id, company_id, code, name, type, subtype, normal_balance, currency, is_active, is_system, system_identifier, created_at, updated_at, deleted_at`

type Repository interface {
	Get(ctx context.Context, companyID, accountID int64) (Account, error)
	GetMany(ctx context.Context, companyID int64, accountIDs []int64) (map[int64]Account, error)
	FindBySystemIdentifier(ctx context.Context, companyID int64, identifier string) (Account, error)
	ListActive(ctx context.Context, companyID int64) ([]Account, error)
	ListByType(ctx context.Context, companyID int64, accountType AccountType, subtype AccountSubtype) ([]Account, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, companyID, accountID int64) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE company_id=$1 AND id=$2 AND deleted_at IS NULL`, companyID, accountID)
	return scanAccount(row)
}

func (r *repository) GetMany(ctx context.Context, companyID int64, accountIDs []int64) (map[int64]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM accounts WHERE company_id=$1 AND id = ANY($2) AND deleted_at IS NULL`, companyID, accountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Account, len(accountIDs))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[account.ID] = account
	}
	return out, rows.Err()
}

func (r *repository) FindBySystemIdentifier(ctx context.Context, companyID int64, identifier string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM accounts WHERE company_id=$1 AND system_identifier=$2 AND deleted_at IS NULL`, companyID, identifier)
	return scanAccount(row)
}

func (r *repository) ListActive(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM accounts WHERE company_id=$1 AND is_active AND deleted_at IS NULL ORDER BY code ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (r *repository) ListByType(ctx context.Context, companyID int64, accountType AccountType, subtype AccountSubtype) ([]Account, error) {
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE company_id=$1 AND type=$2 AND deleted_at IS NULL`
	args := []any{companyID, accountType}
	if subtype != "" {
		query += ` AND subtype=$3`
		args = append(args, subtype)
	}
	query += ` ORDER BY code ASC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.NormalBalance, &a.Currency,
		&a.IsActive, &a.IsSystem, &a.SystemIdentifier, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}
