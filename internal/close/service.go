package close

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	"github.com/ledgerline/ledgerline/internal/observability"
)

// Service orchestrates the period-close state machine. Every guard is
// checked before any write so a rejected transition leaves state untouched.
type Service struct {
	repo    Repository
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// defaultTasks seeds the checklist of every new close attempt.
var defaultTasks = []TaskDefinition{
	{Code: "BANK_RECON", Title: "Reconcile all bank and cash accounts", Category: "reconciliation", Required: true},
	{Code: "AR_REVIEW", Title: "Review accounts receivable aging", Category: "receivables", Required: true},
	{Code: "AP_REVIEW", Title: "Review accounts payable aging", Category: "payables", Required: true},
	{Code: "ACCRUALS", Title: "Post accruals and deferrals", Category: "adjustments", Required: true},
	{Code: "FX_REVAL", Title: "Revalue foreign currency balances", Category: "adjustments", Required: false},
	{Code: "TRIAL_BALANCE", Title: "Review trial balance", Category: "review", Required: true},
}

// Start opens a close attempt for an accounting period, seeding the default
// checklist and flipping the period to CLOSING.
func (s *Service) Start(ctx context.Context, in StartInput) (PeriodClose, error) {
	if err := in.Validate(); err != nil {
		return PeriodClose{}, err
	}
	var result PeriodClose
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodForUpdate(ctx, in.CompanyID, in.PeriodID)
		if err != nil {
			return err
		}
		if period.Status == periods.PeriodStatusLocked || period.Status == periods.PeriodStatusClosed {
			return ErrPeriodNotCloseable
		}
		active, err := tx.ActiveCloseExists(ctx, period.ID)
		if err != nil {
			return err
		}
		if active {
			return ErrAlreadyInProgress
		}

		now := s.now()
		created, err := tx.InsertClose(ctx, PeriodClose{
			CompanyID:       in.CompanyID,
			PeriodID:        period.ID,
			Status:          StatusInReview,
			StartedBy:       in.ActorID,
			StartedAt:       now,
			CompletionNotes: in.Notes,
		})
		if err != nil {
			return err
		}
		tasks, err := tx.InsertTasks(ctx, created.ID, defaultTasks)
		if err != nil {
			return err
		}
		created.Tasks = tasks
		if err := tx.UpdatePeriodStatus(ctx, period.ID, periods.PeriodStatusClosing); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, AuditEntry{
			CloseID: created.ID,
			Action:  "start",
			ActorID: in.ActorID,
			Note:    in.Notes,
			At:      now,
		}); err != nil {
			return err
		}
		result = created
		return nil
	})
	if err != nil {
		return PeriodClose{}, err
	}
	s.metrics.ObserveCloseTransition("start")
	s.logger.Info("period close started",
		slog.Int64("company_id", in.CompanyID),
		slog.Int64("period_id", in.PeriodID),
		slog.Int64("close_id", result.ID))
	return result, nil
}

// CompleteTask marks one checklist task completed. Completing the last
// required task promotes the close to AWAITING_APPROVAL.
func (s *Service) CompleteTask(ctx context.Context, in CompleteTaskInput) (PeriodClose, error) {
	if in.CloseID == 0 || in.TaskID == 0 || in.ActorID == 0 {
		return PeriodClose{}, errors.New("close: close id, task id, and actor required")
	}
	var result PeriodClose
	var promoted bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCloseForUpdate(ctx, in.CompanyID, in.CloseID)
		if err != nil {
			return err
		}
		if !c.Status.Editable() {
			return ErrCloseNotEditable
		}
		task, err := tx.CompleteTask(ctx, c.ID, in.TaskID, in.ActorID, s.now())
		if err != nil {
			return err
		}
		for i := range c.Tasks {
			if c.Tasks[i].ID == task.ID {
				c.Tasks[i] = task
			}
		}
		if c.Status == StatusInReview && c.RequiredTasksDone() {
			if err := tx.SetStatus(ctx, c.ID, StatusAwaitingApproval); err != nil {
				return err
			}
			c.Status = StatusAwaitingApproval
			promoted = true
		}
		result = c
		return nil
	})
	if err != nil {
		return PeriodClose{}, err
	}
	if promoted {
		s.metrics.ObserveCloseTransition("awaiting_approval")
	}
	return result, nil
}

// Lock transitions the close to LOCKED, gated on required-task completion.
func (s *Service) Lock(ctx context.Context, in LockInput) (PeriodClose, error) {
	if err := in.Validate(); err != nil {
		return PeriodClose{}, err
	}
	var result PeriodClose
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCloseForUpdate(ctx, in.CompanyID, in.CloseID)
		if err != nil {
			return err
		}
		if c.Status == StatusClosed {
			return ErrCloseFinished
		}
		if !c.Status.Lockable() {
			return ErrCloseNotEditable
		}
		if !c.RequiredTasksDone() {
			return ErrRequiredTasksIncomplete
		}
		now := s.now()
		if err := tx.SetLocked(ctx, c.ID, in.ActorID, now, in.Reason); err != nil {
			return err
		}
		if err := tx.UpdatePeriodStatus(ctx, c.PeriodID, periods.PeriodStatusLocked); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, AuditEntry{
			CloseID: c.ID,
			Action:  "lock",
			ActorID: in.ActorID,
			Note:    in.Reason,
			At:      now,
		}); err != nil {
			return err
		}
		c.Status = StatusLocked
		c.LockedBy = &in.ActorID
		c.LockedAt = &now
		c.LockReason = in.Reason
		result = c
		return nil
	})
	if err != nil {
		return PeriodClose{}, err
	}
	s.metrics.ObserveCloseTransition("lock")
	s.logger.Info("period close locked",
		slog.Int64("company_id", in.CompanyID),
		slog.Int64("close_id", result.ID))
	return result, nil
}

// Complete finishes a locked close and marks the accounting period CLOSED.
// The period resolver then refuses further postings dated inside it.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (PeriodClose, error) {
	if in.ActorID == 0 {
		return PeriodClose{}, errors.New("close: actor required")
	}
	var result PeriodClose
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCloseForUpdate(ctx, in.CompanyID, in.CloseID)
		if err != nil {
			return err
		}
		if c.Status == StatusClosed {
			return ErrCloseFinished
		}
		if c.Status != StatusLocked {
			return ErrCloseNotLocked
		}
		now := s.now()
		if err := tx.SetCompleted(ctx, c.ID, in.ActorID, now, in.Notes); err != nil {
			return err
		}
		if err := tx.UpdatePeriodStatus(ctx, c.PeriodID, periods.PeriodStatusClosed); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, AuditEntry{
			CloseID: c.ID,
			Action:  "complete",
			ActorID: in.ActorID,
			Note:    in.Notes,
			At:      now,
		}); err != nil {
			return err
		}
		c.Status = StatusClosed
		c.CompletedBy = &in.ActorID
		c.CompletedAt = &now
		c.CompletionNotes = in.Notes
		result = c
		return nil
	})
	if err != nil {
		return PeriodClose{}, err
	}
	s.metrics.ObserveCloseTransition("complete")
	s.logger.Info("period close completed",
		slog.Int64("company_id", in.CompanyID),
		slog.Int64("close_id", result.ID),
		slog.Int64("period_id", result.PeriodID))
	return result, nil
}

// Unlock reverses LOCKED back to IN_REVIEW. A completed close stays closed.
// The accounting period returns to CLOSING so postings resume while the
// checklist is reworked.
func (s *Service) Unlock(ctx context.Context, in UnlockInput) (PeriodClose, error) {
	if in.ActorID == 0 {
		return PeriodClose{}, errors.New("close: actor required")
	}
	var result PeriodClose
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCloseForUpdate(ctx, in.CompanyID, in.CloseID)
		if err != nil {
			return err
		}
		if c.Status == StatusClosed {
			return ErrCloseFinished
		}
		if c.Status != StatusLocked {
			return ErrCloseNotLocked
		}
		now := s.now()
		if err := tx.SetStatus(ctx, c.ID, StatusInReview); err != nil {
			return err
		}
		if err := tx.UpdatePeriodStatus(ctx, c.PeriodID, periods.PeriodStatusClosing); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, AuditEntry{
			CloseID: c.ID,
			Action:  "unlock",
			ActorID: in.ActorID,
			Note:    in.Reason,
			At:      now,
		}); err != nil {
			return err
		}
		c.Status = StatusInReview
		result = c
		return nil
	})
	if err != nil {
		return PeriodClose{}, err
	}
	s.metrics.ObserveCloseTransition("unlock")
	return result, nil
}

// Get loads a close attempt with tasks and audit trail.
func (s *Service) Get(ctx context.Context, companyID, closeID int64) (PeriodClose, error) {
	return s.repo.GetClose(ctx, companyID, closeID)
}

// GetByPeriod loads the latest close attempt for a period, if any.
func (s *Service) GetByPeriod(ctx context.Context, companyID, periodID int64) (PeriodClose, bool, error) {
	return s.repo.FindCloseByPeriod(ctx, companyID, periodID)
}
