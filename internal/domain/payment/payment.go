// Package payment opens hosted checkout sessions for orders and reconciles
// the gateway's outcome back into the order lifecycle.
package payment

import (
	"context"
	"time"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/domain/order"
)

var (
	ErrOrderNotFound          = apperr.New(apperr.KindNotFound, "order_not_found", "Order not found")
	ErrInvalidAmount          = apperr.New(apperr.KindInvalidInput, "invalid_amount", "Order amount cannot be charged")
	ErrInvalidSession         = apperr.New(apperr.KindInvalidInput, "invalid_session", "Checkout session id is required")
	ErrSessionOrderMismatch   = apperr.New(apperr.KindInvalidInput, "session_order_mismatch", "Checkout session does not belong to this order")
	ErrPaymentNotCompleted    = apperr.New(apperr.KindInvalidState, "payment_not_completed", "Payment has not been completed")
	ErrOrderNotPayable        = apperr.New(apperr.KindInvalidState, "order_not_payable", "Order can no longer be paid")
	ErrGateway                = apperr.New(apperr.KindCollaborator, "payment_gateway_error", "Payment gateway unavailable")
	ErrReconciliationGap      = apperr.New(apperr.KindReconciliationGap, "reconciliation_gap", "Payment captured but order not updated")
	ErrReconciliationUnqueued = apperr.New(apperr.KindReconciliationGap, "reconciliation_unqueued", "Payment captured but order not updated")
	ErrInvalidWebhook         = apperr.New(apperr.KindInvalidInput, "invalid_webhook", "Webhook payload could not be verified")
)

// Metadata keys attached to every checkout session.
const (
	MetaOrderID = "order_id"
	MetaOrderNo = "order_no"
)

// CheckoutRequest is what the gateway needs to host a payment page.
type CheckoutRequest struct {
	Currency   string
	LineItems  []LineItem
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

// Session is the gateway's view of a checkout session.
type Session struct {
	ID       string
	URL      string
	Complete bool
	Paid     bool
	Metadata map[string]string
}

// Gateway hosts checkout sessions.
type Gateway interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
}

// WebhookParser verifies gateway notifications. It returns a nil session for
// events that do not complete a checkout.
type WebhookParser interface {
	ParseCompletedSession(payload []byte, signature string) (*Session, error)
}

// Orders is the order service seen from payments.
type Orders interface {
	GetOrder(ctx context.Context, id int64) (*order.Detail, error)
	MarkPaid(ctx context.Context, id int64) error
}

type ReconciliationStatus string

const (
	ReconciliationPending   ReconciliationStatus = "pending"
	ReconciliationResolved  ReconciliationStatus = "resolved"
	ReconciliationAbandoned ReconciliationStatus = "abandoned"
)

// Reconciliation is an outbox row for a captured payment whose order was not
// marked paid.
type Reconciliation struct {
	OrderID   int64                `json:"orderId"`
	SessionID string               `json:"sessionId"`
	Status    ReconciliationStatus `json:"status"`
	Attempts  int                  `json:"attempts"`
	LastError string               `json:"lastError"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// ReconciliationStore persists the outbox. Upsert reopens a resolved row for
// the same order.
type ReconciliationStore interface {
	Upsert(ctx context.Context, orderID int64, sessionID, lastError string, at time.Time) error
	ListPending(ctx context.Context, limit int) ([]Reconciliation, error)
	MarkAttempt(ctx context.Context, orderID int64, lastError string, at time.Time) error
	MarkResolved(ctx context.Context, orderID int64, at time.Time) error
	MarkAbandoned(ctx context.Context, orderID int64, lastError string, at time.Time) error
}
