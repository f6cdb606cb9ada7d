// Package order owns the order state machine, its authorization rules and
// the role-scoped read projections.
package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/surprisebag/internal/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates an externally supplied status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// Terminal reports whether no transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Type string

const (
	TypeSingle Type = "single"
	TypeCart   Type = "cart"
)

var (
	ErrOrderNotFound      = apperr.New(apperr.KindNotFound, "order_not_found", "Order not found")
	ErrEmptyOrder         = apperr.New(apperr.KindInvalidInput, "empty_order", "Order must have at least one item")
	ErrInvalidQuantity    = apperr.New(apperr.KindInvalidInput, "invalid_quantity", "Quantity must be positive")
	ErrUnknownStatus      = apperr.New(apperr.KindInvalidInput, "unknown_status", "Unknown order status")
	ErrPickupCodeMismatch = apperr.New(apperr.KindInvalidInput, "pickup_code_mismatch", "Pickup code does not match")
	ErrInvalidTransition  = apperr.New(apperr.KindInvalidState, "invalid_transition", "Invalid order status transition")
	ErrOrderAlreadyPaid   = apperr.New(apperr.KindInvalidState, "order_already_paid", "Order is already paid")
	ErrOrderNotPaid       = apperr.New(apperr.KindInvalidState, "order_not_paid", "Order must be paid before pickup")
	ErrOrderCompleted     = apperr.New(apperr.KindInvalidState, "order_completed", "Order is already completed")
	ErrOrderCancelled     = apperr.New(apperr.KindInvalidState, "order_cancelled", "Order is already cancelled")
	ErrForbidden          = apperr.New(apperr.KindForbidden, "order_forbidden", "Not allowed to access this order")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusCompleted, StatusCancelled},
	StatusCompleted: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return fmt.Errorf("%w: cannot move to %s", ErrOrderCancelled, target)
	case o.Status == StatusCompleted:
		return fmt.Errorf("%w: cannot move to %s", ErrOrderCompleted, target)
	case o.Status == StatusPaid && target == StatusPaid:
		return ErrOrderAlreadyPaid
	case o.Status == StatusPending && target == StatusCompleted:
		return fmt.Errorf("%w: expected %s, actual %s", ErrOrderNotPaid, StatusPaid, o.Status)
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, o.Status, target)
	}
}

// Order is either a single-bag purchase (BagID set) or a cart snapshot
// (Items set), selected by Type.
type Order struct {
	ID          int64           `json:"id"`
	OrderNo     string          `json:"orderNo"`
	UserID      int64           `json:"userId"`
	BagID       *int64          `json:"bagId,omitempty"`
	Items       []OrderItem     `json:"items,omitempty"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Status      Status          `json:"status"`
	PickupCode  string          `json:"pickupCode,omitempty"`
	PickupStart *time.Time      `json:"pickupStart,omitempty"`
	PickupEnd   *time.Time      `json:"pickupEnd,omitempty"`
	Type        Type            `json:"orderType"`
	CreatedAt   time.Time       `json:"createdAt"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	CancelledAt *time.Time      `json:"cancelledAt,omitempty"`
}

// OrderItem is an immutable price snapshot of one cart line.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	BagID     int64           `json:"bagId"`
	BagName   string          `json:"bagName"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Subtotal is UnitPrice × Quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimalInt(i.Quantity))
}

func decimalInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// OrderVerification is the receipt of a pickup redemption.
type OrderVerification struct {
	ID             int64     `json:"id"`
	OrderID        int64     `json:"orderId"`
	MerchantUserID int64     `json:"merchantUserId"`
	VerifiedAt     time.Time `json:"verifiedAt"`
	Location       string    `json:"location,omitempty"`
}

// BagIDs lists every bag the order references.
func (o *Order) BagIDs() []int64 {
	if o.Type == TypeSingle {
		if o.BagID == nil {
			return nil
		}
		return []int64{*o.BagID}
	}
	ids := make([]int64, 0, len(o.Items))
	seen := make(map[int64]bool, len(o.Items))
	for _, it := range o.Items {
		if !seen[it.BagID] {
			seen[it.BagID] = true
			ids = append(ids, it.BagID)
		}
	}
	return ids
}

// Validate checks the single/cart shape invariant.
func (o *Order) Validate() error {
	switch o.Type {
	case TypeSingle:
		if o.BagID == nil || len(o.Items) > 0 {
			return fmt.Errorf("%w: single order needs exactly a bag reference", ErrEmptyOrder)
		}
	case TypeCart:
		if o.BagID != nil || len(o.Items) == 0 {
			return fmt.Errorf("%w: cart order needs items and no bag reference", ErrEmptyOrder)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrEmptyOrder, o.Type)
	}
	if o.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// stamp sets the timestamp matching the new status.
func (o *Order) stamp(status Status, at time.Time) {
	switch status {
	case StatusPaid:
		o.PaidAt = &at
	case StatusCompleted:
		o.CompletedAt = &at
	case StatusCancelled:
		o.CancelledAt = &at
	}
	o.Status = status
}

// redacted hides the redemption secret from viewers who redeem it.
func (o *Order) redacted() *Order {
	c := *o
	c.PickupCode = ""
	return &c
}
