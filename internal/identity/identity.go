// Package identity carries the authenticated caller through request contexts
// and decides which roles may perform which order and review operations.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// Role is the closed set of caller roles.
type Role int

const (
	RoleUser Role = iota + 1
	RoleMerchant
	RoleAdmin
	RoleSuperAdmin
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts a token claim into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "merchant":
		return RoleMerchant, nil
	case "admin":
		return RoleAdmin, nil
	case "super_admin":
		return RoleSuperAdmin, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleMerchant:
		return "merchant"
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "super_admin"
	default:
		return "unknown"
	}
}

// IsAdmin reports whether the role bypasses ownership checks.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Ownership is the relationship a rule requires between caller and order.
type Ownership int

const (
	// Denied means the role may never perform the operation.
	Denied Ownership = iota
	// Unrestricted means no ownership check is needed.
	Unrestricted
	// OwnsOrder requires the caller to be the order's buyer.
	OwnsOrder
	// OwnsProduct requires the caller's merchant to own the ordered bags.
	OwnsProduct
)

// CanPlaceOrder: only buyers check out.
func CanPlaceOrder(r Role) bool {
	switch r {
	case RoleUser:
		return true
	case RoleMerchant, RoleAdmin, RoleSuperAdmin:
		return false
	default:
		return false
	}
}

// CanCancel: buyers cancel their own orders, admins any order.
func CanCancel(r Role) Ownership {
	switch r {
	case RoleUser:
		return OwnsOrder
	case RoleAdmin, RoleSuperAdmin:
		return Unrestricted
	case RoleMerchant:
		return Denied
	default:
		return Denied
	}
}

// CanVerify: only the merchant owning the bag redeems a pickup.
func CanVerify(r Role) Ownership {
	switch r {
	case RoleMerchant:
		return OwnsProduct
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return Denied
	default:
		return Denied
	}
}

func CanOverrideStatus(r Role) Ownership {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return Unrestricted
	case RoleMerchant:
		return OwnsProduct
	case RoleUser:
		return Denied
	default:
		return Denied
	}
}

// CanView governs order detail reads.
func CanView(r Role) Ownership {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return Unrestricted
	case RoleMerchant:
		return OwnsProduct
	case RoleUser:
		return OwnsOrder
	default:
		return Denied
	}
}

// CanReview governs admin task claim/approve/reject.
func CanReview(r Role) bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin:
		return true
	case RoleUser, RoleMerchant:
		return false
	default:
		return false
	}
}

// Caller is the authenticated identity of the current request.
type Caller struct {
	UserID int64
	Role   Role
}

type contextKey struct{}

// WithCaller returns a copy of ctx carrying the caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the caller stored in ctx.
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}
