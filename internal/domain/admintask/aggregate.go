// Package admintask runs the reviewable-task workflow: tasks are created from
// events, claimed by an operator, then approved or rejected.
package admintask

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/surprisebag/internal/apperr"
)

type Type string

const TypeMerchantApproval Type = "merchant_approval"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

var (
	ErrTaskNotFound      = apperr.New(apperr.KindNotFound, "task_not_found", "Task not found")
	ErrTaskNotPending    = apperr.New(apperr.KindInvalidState, "task_not_pending", "Task is not pending")
	ErrTaskNotProcessing = apperr.New(apperr.KindInvalidState, "task_not_processing", "Task is not being processed")
	ErrNotTaskOperator   = apperr.New(apperr.KindForbidden, "not_task_operator", "Task is claimed by another operator")
	ErrCommentRequired   = apperr.New(apperr.KindInvalidInput, "comment_required", "A rejection comment is required")
	ErrUnknownStatus     = apperr.New(apperr.KindInvalidInput, "unknown_status", "Unknown task status")
	ErrForbidden         = apperr.New(apperr.KindForbidden, "review_forbidden", "Only administrators review tasks")
	ErrInvalidPayload    = apperr.New(apperr.KindInvalidInput, "invalid_payload", "Event payload is not reviewable")
)

// Task is a reviewable unit created from an event.
type Task struct {
	ID            int64           `json:"id"`
	Type          Type            `json:"type"`
	Status        Status          `json:"status"`
	ApplicantID   int64           `json:"applicantId"`
	OperatorID    *int64          `json:"operatorId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Comment       string          `json:"comment,omitempty"`
	SourceEventID string          `json:"sourceEventId"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	EndedAt       *time.Time      `json:"endedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ClaimedBy reports whether operatorID holds the task.
func (t *Task) ClaimedBy(operatorID int64) bool {
	return t.OperatorID != nil && *t.OperatorID == operatorID
}

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Store persists tasks. Claim and Resolve are conditional on the prior status
// and report whether the row matched.
type Store interface {
	// Insert is keyed by SourceEventID; a repeated id reports created=false.
	Insert(ctx context.Context, t *Task) (created bool, err error)
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, f ListFilter) ([]*Task, int, error)
	Claim(ctx context.Context, id, operatorID int64, at time.Time) (bool, error)
	Resolve(ctx context.Context, id, operatorID int64, to Status, comment string, at time.Time) (bool, error)
}
