package admintask

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/event"
	"github.com/example/surprisebag/internal/eventbus"
	"github.com/example/surprisebag/internal/identity"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Page struct {
	Tasks    []*Task `json:"tasks"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

type Service struct {
	store     Store
	publisher eventbus.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewService(store Store, publisher eventbus.Publisher, log *zap.Logger) *Service {
	return &Service{store: store, publisher: publisher, log: log, now: time.Now}
}

func reviewer(ctx context.Context) (identity.Caller, error) {
	c, ok := identity.FromContext(ctx)
	if !ok {
		return identity.Caller{}, apperr.ErrUnauthorized
	}
	if !identity.CanReview(c.Role) {
		return identity.Caller{}, ErrForbidden
	}
	return c, nil
}

// CreateMerchantApproval records a pending approval task for a merchant
// registration. Redelivery of the same message id creates nothing.
func (s *Service) CreateMerchantApproval(ctx context.Context, messageID string, reg event.MerchantRegistered, raw json.RawMessage) (*Task, bool, error) {
	if reg.UserID <= 0 {
		return nil, false, ErrInvalidPayload
	}

	t := &Task{
		Type:          TypeMerchantApproval,
		Status:        StatusPending,
		ApplicantID:   reg.UserID,
		Payload:       raw,
		SourceEventID: messageID,
		CreatedAt:     s.now(),
	}
	created, err := s.store.Insert(ctx, t)
	if err != nil {
		return nil, false, err
	}
	if !created {
		s.log.Info("Duplicate merchant registration ignored", zap.String("message_id", messageID))
		return nil, false, nil
	}

	s.log.Info("Approval task created",
		zap.Int64("task_id", t.ID),
		zap.Int64("applicant_id", t.ApplicantID),
		zap.String("message_id", messageID),
	)
	return t, true, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Task, error) {
	if _, err := reviewer(ctx); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, page, pageSize int) (*Page, error) {
	if _, err := reviewer(ctx); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	f := ListFilter{Limit: pageSize, Offset: (page - 1) * pageSize}
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}

	tasks, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*Task{}
	}
	return &Page{Tasks: tasks, Total: total, Page: page, PageSize: pageSize}, nil
}

// Claim assigns a pending task to the calling operator.
func (s *Service) Claim(ctx context.Context, id int64) (*Task, error) {
	caller, err := reviewer(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusPending {
		return nil, ErrTaskNotPending
	}

	now := s.now()
	ok, err := s.store.Claim(ctx, id, caller.UserID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTaskNotPending
	}

	t.Status = StatusProcessing
	t.OperatorID = &caller.UserID
	t.StartedAt = &now
	s.log.Info("Task claimed", zap.Int64("task_id", id), zap.Int64("operator_id", caller.UserID))
	return t, nil
}

func (s *Service) Approve(ctx context.Context, id int64, comment string) (*Task, error) {
	return s.resolve(ctx, id, StatusApproved, comment)
}

func (s *Service) Reject(ctx context.Context, id int64, comment string) (*Task, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, ErrCommentRequired
	}
	return s.resolve(ctx, id, StatusRejected, comment)
}

func (s *Service) resolve(ctx context.Context, id int64, to Status, comment string) (*Task, error) {
	caller, err := reviewer(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusProcessing {
		return nil, ErrTaskNotProcessing
	}
	if !t.ClaimedBy(caller.UserID) {
		return nil, ErrNotTaskOperator
	}

	now := s.now()
	ok, err := s.store.Resolve(ctx, id, caller.UserID, to, comment, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTaskNotProcessing
	}

	t.Status = to
	t.Comment = comment
	t.EndedAt = &now
	s.log.Info("Task resolved",
		zap.Int64("task_id", id),
		zap.Int64("operator_id", caller.UserID),
		zap.String("status", string(to)),
	)

	if t.Type == TypeMerchantApproval {
		s.publishProcessed(ctx, t, caller.UserID, now)
	}
	return t, nil
}

func (s *Service) publishProcessed(ctx context.Context, t *Task, operatorID int64, at time.Time) {
	var reg event.MerchantRegistered
	if err := json.Unmarshal(t.Payload, &reg); err != nil {
		s.log.Warn("Task payload unreadable, merchant id omitted", zap.Int64("task_id", t.ID), zap.Error(err))
	}

	processed := event.MerchantProcessed{
		ApplicantID: t.ApplicantID,
		MerchantID:  reg.MerchantID,
		Status:      event.MerchantApproved,
		OperatorID:  operatorID,
		ProcessedAt: at.UnixMilli(),
	}
	if t.Status == StatusRejected {
		processed.Status = event.MerchantRejected
		processed.Reason = t.Comment
	}
	s.publisher.Publish(ctx, processed)
}
