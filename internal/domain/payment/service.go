package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/domain/order"
	"github.com/example/surprisebag/internal/identity"
)

// CheckoutConfig carries the hosted page settings. SuccessURL and CancelURL
// may contain an {orderId} placeholder.
type CheckoutConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

type CheckoutResult struct {
	OrderID     int64  `json:"orderId"`
	SessionID   string `json:"sessionId,omitempty"`
	URL         string `json:"url,omitempty"`
	AlreadyPaid bool   `json:"alreadyPaid"`
}

type VerifyResult struct {
	OrderID     int64  `json:"orderId"`
	SessionID   string `json:"sessionId,omitempty"`
	Status      string `json:"status"`
	AlreadyPaid bool   `json:"alreadyPaid"`
}

type Service struct {
	orders  Orders
	gateway Gateway
	outbox  ReconciliationStore
	cfg     CheckoutConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewService(orders Orders, gateway Gateway, outbox ReconciliationStore, cfg CheckoutConfig, log *zap.Logger) *Service {
	return &Service{
		orders:  orders,
		gateway: gateway,
		outbox:  outbox,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

func settled(s order.Status) bool {
	return s == order.StatusPaid || s == order.StatusCompleted
}

// payer loads the order and checks the caller may pay for it.
func (s *Service) payer(ctx context.Context, orderID int64) (*order.Detail, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	d, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.Role.IsAdmin() && d.UserID != caller.UserID {
		return nil, apperr.ErrForbidden
	}
	return d, nil
}

// CreateCheckoutSession opens a hosted checkout for the order. A settled
// order returns AlreadyPaid without contacting the gateway.
func (s *Service) CreateCheckoutSession(ctx context.Context, orderID int64) (*CheckoutResult, error) {
	d, err := s.payer(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if settled(d.Status) {
		return &CheckoutResult{OrderID: orderID, AlreadyPaid: true}, nil
	}
	if d.Status == order.StatusCancelled {
		return nil, ErrOrderNotPayable
	}

	items, err := lineItems(d)
	if err != nil {
		return nil, err
	}

	id := strconv.FormatInt(orderID, 10)
	sess, err := s.gateway.CreateSession(ctx, CheckoutRequest{
		Currency:   s.cfg.Currency,
		LineItems:  items,
		Metadata:   map[string]string{MetaOrderID: id, MetaOrderNo: d.OrderNo},
		SuccessURL: strings.ReplaceAll(s.cfg.SuccessURL, "{orderId}", id),
		CancelURL:  strings.ReplaceAll(s.cfg.CancelURL, "{orderId}", id),
	})
	if err != nil {
		s.log.Error("Failed to create checkout session", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	s.log.Info("Checkout session created",
		zap.Int64("order_id", orderID),
		zap.String("session_id", sess.ID),
	)
	return &CheckoutResult{OrderID: orderID, SessionID: sess.ID, URL: sess.URL}, nil
}

// VerifyAndUpdatePayment confirms a session with the gateway on behalf of the
// paying user and marks the order paid.
func (s *Service) VerifyAndUpdatePayment(ctx context.Context, orderID int64, sessionID string) (*VerifyResult, error) {
	d, err := s.payer(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, d, sessionID)
}

// HandleSessionCompleted reconciles a gateway notification. The order id
// comes from the session metadata and the session is re-read from the
// gateway before anything changes.
func (s *Service) HandleSessionCompleted(ctx context.Context, sessionID string, metadata map[string]string) (*VerifyResult, error) {
	orderID, err := strconv.ParseInt(metadata[MetaOrderID], 10, 64)
	if err != nil || orderID <= 0 {
		return nil, fmt.Errorf("%w: session %s carries no order id", ErrSessionOrderMismatch, sessionID)
	}
	d, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, d, sessionID)
}

func (s *Service) verify(ctx context.Context, d *order.Detail, sessionID string) (*VerifyResult, error) {
	if settled(d.Status) {
		return &VerifyResult{OrderID: d.ID, SessionID: sessionID, Status: string(order.StatusPaid), AlreadyPaid: true}, nil
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	sess, err := s.gateway.GetSession(ctx, sessionID)
	if err != nil {
		s.log.Error("Failed to retrieve checkout session", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if sess.Metadata[MetaOrderID] != strconv.FormatInt(d.ID, 10) {
		s.log.Warn("Checkout session bound to another order",
			zap.Int64("order_id", d.ID),
			zap.String("session_id", sessionID),
			zap.String("session_order_id", sess.Metadata[MetaOrderID]),
		)
		return nil, ErrSessionOrderMismatch
	}
	if !sess.Complete || !sess.Paid {
		return nil, ErrPaymentNotCompleted
	}

	if err := s.orders.MarkPaid(ctx, d.ID); err != nil {
		return nil, s.recordGap(ctx, d.ID, sessionID, err)
	}

	s.log.Info("Order marked paid", zap.Int64("order_id", d.ID), zap.String("session_id", sessionID))
	return &VerifyResult{OrderID: d.ID, SessionID: sessionID, Status: string(order.StatusPaid)}, nil
}

// recordGap queues a captured payment whose order update failed. It returns
// ErrReconciliationGap once queued and ErrReconciliationUnqueued when the
// outbox write fails too.
func (s *Service) recordGap(ctx context.Context, orderID int64, sessionID string, cause error) error {
	s.log.Error("Payment captured but order not marked paid",
		zap.Bool("reconciliation_gap", true),
		zap.Int64("order_id", orderID),
		zap.String("session_id", sessionID),
		zap.Error(cause),
	)
	if err := s.outbox.Upsert(context.WithoutCancel(ctx), orderID, sessionID, cause.Error(), s.now()); err != nil {
		s.log.Error("Failed to queue reconciliation",
			zap.Bool("reconciliation_gap", true),
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrReconciliationUnqueued, cause)
	}
	return fmt.Errorf("%w: %v", ErrReconciliationGap, cause)
}
