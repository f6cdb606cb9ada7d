package order

import (
	"context"
	"time"
)

// Scope selects the visibility predicate of a list query.
type Scope int

const (
	// ScopeAll returns every order.
	ScopeAll Scope = iota + 1
	// ScopeBuyer returns orders placed by UserID.
	ScopeBuyer
	// ScopeMerchant returns orders referencing any of BagIDs, directly or
	// through an order item.
	ScopeMerchant
)

type ListFilter struct {
	Scope  Scope
	UserID int64
	BagIDs []int64
	Status Status
	Limit  int
	Offset int
}

// Store persists orders. Status writes are conditional on the prior status
// and report whether the row matched.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]*Order, int, error)
	TransitionStatus(ctx context.Context, id int64, from []Status, to Status, at time.Time) (bool, error)
	CompleteWithVerification(ctx context.Context, v *OrderVerification) (bool, error)
	Verifications(ctx context.Context, orderID int64) ([]OrderVerification, error)
}
