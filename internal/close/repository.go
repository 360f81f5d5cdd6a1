package close

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	"github.com/ledgerline/ledgerline/internal/platform/db"
)

// Repository persists period-close state.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetClose(ctx context.Context, companyID, closeID int64) (PeriodClose, error)
	FindCloseByPeriod(ctx context.Context, companyID, periodID int64) (PeriodClose, bool, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetPeriodForUpdate(ctx context.Context, companyID, periodID int64) (periods.AccountingPeriod, error)
	ActiveCloseExists(ctx context.Context, periodID int64) (bool, error)
	InsertClose(ctx context.Context, c PeriodClose) (PeriodClose, error)
	InsertTasks(ctx context.Context, closeID int64, defs []TaskDefinition) ([]Task, error)
	GetCloseForUpdate(ctx context.Context, companyID, closeID int64) (PeriodClose, error)
	GetTasks(ctx context.Context, closeID int64) ([]Task, error)
	CompleteTask(ctx context.Context, closeID, taskID, actorID int64, at time.Time) (Task, error)
	SetStatus(ctx context.Context, closeID int64, status CloseStatus) error
	SetLocked(ctx context.Context, closeID, actorID int64, at time.Time, reason string) error
	SetCompleted(ctx context.Context, closeID, actorID int64, at time.Time, notes string) error
	UpdatePeriodStatus(ctx context.Context, periodID int64, status periods.PeriodStatus) error
	AppendAudit(ctx context.Context, entry AuditEntry) error
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

const closeColumns = `id, company_id, period_id, status, started_by, started_at, locked_by, locked_at,
COALESCE(lock_reason, ''), completed_by, completed_at, COALESCE(completion_notes, ''), created_at, updated_at`

func (r *repository) GetClose(ctx context.Context, companyID, closeID int64) (PeriodClose, error) {
	row := r.db.QueryRow(ctx, `SELECT `+closeColumns+` FROM period_closes WHERE company_id=$1 AND id=$2`, companyID, closeID)
	c, err := scanClose(row)
	if err != nil {
		return PeriodClose{}, err
	}
	if c.Tasks, err = queryTasks(ctx, r.db, c.ID); err != nil {
		return PeriodClose{}, err
	}
	if c.AuditTrail, err = queryAudit(ctx, r.db, c.ID); err != nil {
		return PeriodClose{}, err
	}
	return c, nil
}

func (r *repository) FindCloseByPeriod(ctx context.Context, companyID, periodID int64) (PeriodClose, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT `+closeColumns+` FROM period_closes
WHERE company_id=$1 AND period_id=$2 ORDER BY id DESC LIMIT 1`, companyID, periodID)
	c, err := scanClose(row)
	if err != nil {
		if errors.Is(err, ErrCloseNotFound) {
			return PeriodClose{}, false, nil
		}
		return PeriodClose{}, false, err
	}
	if c.Tasks, err = queryTasks(ctx, r.db, c.ID); err != nil {
		return PeriodClose{}, false, err
	}
	return c, true, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, companyID, periodID int64) (periods.AccountingPeriod, error) {
	var p periods.AccountingPeriod
	err := r.tx.QueryRow(ctx, `SELECT id, fiscal_year_id, company_id, start_date, end_date, period_number, period_type, status, created_at, updated_at
FROM accounting_periods WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, periodID).Scan(
		&p.ID, &p.FiscalYearID, &p.CompanyID, &p.StartDate, &p.EndDate, &p.PeriodNumber, &p.PeriodType, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.AccountingPeriod{}, errors.New("close: period not found")
		}
		return periods.AccountingPeriod{}, err
	}
	return p, nil
}

func (r *txRepository) ActiveCloseExists(ctx context.Context, periodID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM period_closes WHERE period_id=$1 AND status <> 'CLOSED')`, periodID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertClose(ctx context.Context, c PeriodClose) (PeriodClose, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO period_closes
(company_id, period_id, status, started_by, started_at, completion_notes)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id, created_at, updated_at`,
		c.CompanyID, c.PeriodID, c.Status, c.StartedBy, c.StartedAt, c.CompletionNotes)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return PeriodClose{}, err
	}
	return c, nil
}

func (r *txRepository) InsertTasks(ctx context.Context, closeID int64, defs []TaskDefinition) ([]Task, error) {
	tasks := make([]Task, 0, len(defs))
	for i, def := range defs {
		var t Task
		err := r.tx.QueryRow(ctx, `INSERT INTO period_close_tasks
(close_id, code, title, category, sequence, is_required, status)
VALUES ($1,$2,$3,$4,$5,$6,'PENDING')
RETURNING id, created_at, updated_at`,
			closeID, def.Code, def.Title, def.Category, i+1, def.Required).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		t.CloseID = closeID
		t.Code = def.Code
		t.Title = def.Title
		t.Category = def.Category
		t.Sequence = i + 1
		t.Required = def.Required
		t.Status = TaskStatusPending
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *txRepository) GetCloseForUpdate(ctx context.Context, companyID, closeID int64) (PeriodClose, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+closeColumns+` FROM period_closes WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, closeID)
	c, err := scanClose(row)
	if err != nil {
		return PeriodClose{}, err
	}
	if c.Tasks, err = queryTasks(ctx, r.tx, c.ID); err != nil {
		return PeriodClose{}, err
	}
	return c, nil
}

func (r *txRepository) GetTasks(ctx context.Context, closeID int64) ([]Task, error) {
	return queryTasks(ctx, r.tx, closeID)
}

// CompleteTask stamps a task completed. Completion fields are
// first-write-wins so repeated completion keeps the original actor.
func (r *txRepository) CompleteTask(ctx context.Context, closeID, taskID, actorID int64, at time.Time) (Task, error) {
	row := r.tx.QueryRow(ctx, `UPDATE period_close_tasks SET
status='COMPLETED',
completed_by=COALESCE(completed_by, $3),
completed_at=COALESCE(completed_at, $4),
updated_at=NOW()
WHERE close_id=$1 AND id=$2
RETURNING id, close_id, code, title, COALESCE(category, ''), sequence, is_required, status, completed_by, completed_at, created_at, updated_at`,
		closeID, taskID, actorID, at)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, err
	}
	return t, nil
}

func (r *txRepository) SetStatus(ctx context.Context, closeID int64, status CloseStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE period_closes SET status=$2, updated_at=NOW() WHERE id=$1`, closeID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCloseNotFound
	}
	return nil
}

func (r *txRepository) SetLocked(ctx context.Context, closeID, actorID int64, at time.Time, reason string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE period_closes SET
status='LOCKED', locked_by=$2, locked_at=$3, lock_reason=$4, updated_at=NOW()
WHERE id=$1`, closeID, actorID, at, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCloseNotFound
	}
	return nil
}

func (r *txRepository) SetCompleted(ctx context.Context, closeID, actorID int64, at time.Time, notes string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE period_closes SET
status='CLOSED', completed_by=$2, completed_at=$3, completion_notes=$4, updated_at=NOW()
WHERE id=$1`, closeID, actorID, at, notes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCloseNotFound
	}
	return nil
}

func (r *txRepository) UpdatePeriodStatus(ctx context.Context, periodID int64, status periods.PeriodStatus) error {
	closed := status == periods.PeriodStatusClosed
	_, err := r.tx.Exec(ctx, `UPDATE accounting_periods SET status=$2, is_closed=$3, updated_at=NOW() WHERE id=$1`,
		periodID, status, closed)
	return err
}

func (r *txRepository) AppendAudit(ctx context.Context, entry AuditEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO period_close_audit (close_id, action, actor_id, note, occurred_at)
VALUES ($1,$2,$3,$4,$5)`, entry.CloseID, entry.Action, entry.ActorID, entry.Note, entry.At)
	return err
}

// Helpers

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanClose(row pgx.Row) (PeriodClose, error) {
	var c PeriodClose
	err := row.Scan(&c.ID, &c.CompanyID, &c.PeriodID, &c.Status, &c.StartedBy, &c.StartedAt,
		&c.LockedBy, &c.LockedAt, &c.LockReason, &c.CompletedBy, &c.CompletedAt, &c.CompletionNotes,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PeriodClose{}, ErrCloseNotFound
		}
		return PeriodClose{}, err
	}
	return c, nil
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.CloseID, &t.Code, &t.Title, &t.Category, &t.Sequence, &t.Required,
		&t.Status, &t.CompletedBy, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func queryTasks(ctx context.Context, q querier, closeID int64) ([]Task, error) {
	rows, err := q.Query(ctx, `SELECT id, close_id, code, title, COALESCE(category, ''), sequence, is_required, status, completed_by, completed_at, created_at, updated_at
FROM period_close_tasks WHERE close_id=$1 ORDER BY sequence ASC`, closeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func queryAudit(ctx context.Context, q querier, closeID int64) ([]AuditEntry, error) {
	rows, err := q.Query(ctx, `SELECT id, close_id, action, actor_id, COALESCE(note, ''), occurred_at
FROM period_close_audit WHERE close_id=$1 ORDER BY id ASC`, closeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var trail []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.CloseID, &e.Action, &e.ActorID, &e.Note, &e.At); err != nil {
			return nil, err
		}
		trail = append(trail, e)
	}
	return trail, rows.Err()
}
