package templates

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/ledger/shared"
)

type Repository interface {
	// FindActiveDefault returns the active default template for doc type whose
	// effective range covers date, with lines eagerly loaded in precedence order.
	FindActiveDefault(ctx context.Context, companyID int64, docType DocType, date time.Time) (PostingTemplate, error)
	// InsertTemplate creates a template with its lines.
	InsertTemplate(ctx context.Context, t PostingTemplate) (PostingTemplate, error)
	// InsertLines appends lines to an existing template.
	InsertLines(ctx context.Context, templateID int64, lines []PostingTemplateLine) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) FindActiveDefault(ctx context.Context, companyID int64, docType DocType, date time.Time) (PostingTemplate, error) {
	var t PostingTemplate
	err := r.db.QueryRow(ctx, `SELECT id, company_id, doc_type, version, effective_from, effective_to, is_default, is_active, created_at, updated_at
FROM posting_templates
WHERE company_id=$1 AND doc_type=$2 AND is_active AND is_default
  AND effective_from <= $3 AND (effective_to IS NULL OR effective_to >= $3)
ORDER BY effective_from DESC, version DESC LIMIT 1`, companyID, docType, date).
		Scan(&t.ID, &t.CompanyID, &t.DocType, &t.Version, &t.EffectiveFrom, &t.EffectiveTo, &t.IsDefault, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PostingTemplate{}, shared.ErrNoActiveTemplate
		}
		return PostingTemplate{}, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, template_id, role, account_id, precedence, is_required
FROM posting_template_lines WHERE template_id=$1 ORDER BY precedence ASC, id ASC`, t.ID)
	if err != nil {
		return PostingTemplate{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line PostingTemplateLine
		if err := rows.Scan(&line.ID, &line.TemplateID, &line.Role, &line.AccountID, &line.Precedence, &line.IsRequired); err != nil {
			return PostingTemplate{}, err
		}
		t.Lines = append(t.Lines, line)
	}
	return t, rows.Err()
}

func (r *repository) InsertTemplate(ctx context.Context, t PostingTemplate) (PostingTemplate, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return PostingTemplate{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `INSERT INTO posting_templates (company_id, doc_type, version, effective_from, effective_to, is_default, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		t.CompanyID, t.DocType, t.Version, t.EffectiveFrom, t.EffectiveTo, t.IsDefault, t.IsActive)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return PostingTemplate{}, err
	}
	for i := range t.Lines {
		t.Lines[i].TemplateID = t.ID
		if err := insertLine(ctx, tx, t.Lines[i]); err != nil {
			return PostingTemplate{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return PostingTemplate{}, err
	}
	return t, nil
}

func (r *repository) InsertLines(ctx context.Context, templateID int64, lines []PostingTemplateLine) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	for _, line := range lines {
		line.TemplateID = templateID
		if err := insertLine(ctx, tx, line); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertLine(ctx context.Context, tx pgx.Tx, line PostingTemplateLine) error {
	_, err := tx.Exec(ctx, `INSERT INTO posting_template_lines (template_id, role, account_id, precedence, is_required)
VALUES ($1,$2,$3,$4,$5) ON CONFLICT (template_id, role) DO NOTHING`,
		line.TemplateID, line.Role, line.AccountID, line.Precedence, line.IsRequired)
	return err
}
