package close

import (
	"errors"
	"strings"
	"time"
)

// CloseStatus captures the lifecycle of one period-close attempt.
type CloseStatus string

const (
	StatusInReview         CloseStatus = "IN_REVIEW"
	StatusAwaitingApproval CloseStatus = "AWAITING_APPROVAL"
	StatusLocked           CloseStatus = "LOCKED"
	StatusClosed           CloseStatus = "CLOSED"
)

// Lockable reports whether a close may transition to LOCKED from this status.
func (s CloseStatus) Lockable() bool {
	return s == StatusInReview || s == StatusAwaitingApproval
}

// Editable reports whether checklist tasks may still be updated.
func (s CloseStatus) Editable() bool {
	return s == StatusInReview || s == StatusAwaitingApproval
}

// TaskStatus describes checklist task progress.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// PeriodClose is one close attempt for a (company, accounting period) pair.
type PeriodClose struct {
	ID              int64
	CompanyID       int64
	PeriodID        int64
	Status          CloseStatus
	StartedBy       int64
	StartedAt       time.Time
	LockedBy        *int64
	LockedAt        *time.Time
	LockReason      string
	CompletedBy     *int64
	CompletedAt     *time.Time
	CompletionNotes string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Tasks           []Task
	AuditTrail      []AuditEntry
}

// RequiredTasksDone reports whether every required task is completed.
func (c PeriodClose) RequiredTasksDone() bool {
	for _, t := range c.Tasks {
		if t.Required && t.Status != TaskStatusCompleted {
			return false
		}
	}
	return true
}

// Task is one checklist entry of a close attempt.
type Task struct {
	ID          int64
	CloseID     int64
	Code        string
	Title       string
	Category    string
	Sequence    int
	Required    bool
	Status      TaskStatus
	CompletedBy *int64
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditEntry records one state transition. The trail is append-only.
type AuditEntry struct {
	ID      int64
	CloseID int64
	Action  string
	ActorID int64
	Note    string
	At      time.Time
}

// TaskDefinition seeds one default checklist task.
type TaskDefinition struct {
	Code     string
	Title    string
	Category string
	Required bool
}

// StartInput bundles parameters for opening a close attempt.
type StartInput struct {
	CompanyID int64
	PeriodID  int64
	ActorID   int64
	Notes     string
}

// Validate ensures the start input is coherent.
func (in StartInput) Validate() error {
	if in.CompanyID == 0 {
		return errors.New("close: company id required")
	}
	if in.PeriodID == 0 {
		return errors.New("close: period id required")
	}
	if in.ActorID == 0 {
		return errors.New("close: actor required")
	}
	return nil
}

// CompleteTaskInput marks one checklist task completed.
type CompleteTaskInput struct {
	CompanyID int64
	CloseID   int64
	TaskID    int64
	ActorID   int64
}

// LockInput requests the LOCKED transition.
type LockInput struct {
	CompanyID int64
	CloseID   int64
	ActorID   int64
	Reason    string
}

// Validate rejects a lock request without a reason.
func (in LockInput) Validate() error {
	if in.ActorID == 0 {
		return errors.New("close: actor required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return errors.New("close: lock reason required")
	}
	return nil
}

// CompleteInput requests the final CLOSED transition.
type CompleteInput struct {
	CompanyID int64
	CloseID   int64
	ActorID   int64
	Notes     string
}

// UnlockInput reverses LOCKED back to IN_REVIEW.
type UnlockInput struct {
	CompanyID int64
	CloseID   int64
	ActorID   int64
	Reason    string
}

// ErrAlreadyInProgress indicates the period already has an active close.
var ErrAlreadyInProgress = errors.New("close: close already in progress for this period")

// ErrRequiredTasksIncomplete blocks locking while required tasks are pending.
var ErrRequiredTasksIncomplete = errors.New("close: required tasks not completed")

// ErrCloseNotLocked blocks completion of a close that is not locked.
var ErrCloseNotLocked = errors.New("close: close is not locked")

// ErrCloseFinished indicates the close already reached CLOSED.
var ErrCloseFinished = errors.New("close: close already completed")

// ErrCloseNotEditable blocks task updates once the close is locked or closed.
var ErrCloseNotEditable = errors.New("close: checklist cannot be updated in current state")

// ErrCloseNotFound indicates a close attempt could not be loaded.
var ErrCloseNotFound = errors.New("close: close not found")

// ErrTaskNotFound indicates a checklist task could not be loaded.
var ErrTaskNotFound = errors.New("close: task not found")

// ErrPeriodNotCloseable indicates the accounting period is already locked or closed.
var ErrPeriodNotCloseable = errors.New("close: period is locked or closed")
