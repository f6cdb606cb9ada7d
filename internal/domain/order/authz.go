package order

import (
	"context"
	"fmt"

	"github.com/example/surprisebag/internal/identity"
)

// authorize evaluates an ownership rule for caller against o. Lookup
// failures are returned as-is and never grant access.
func (s *Service) authorize(ctx context.Context, caller identity.Caller, o *Order, rule identity.Ownership) error {
	switch rule {
	case identity.Unrestricted:
		return nil
	case identity.OwnsOrder:
		if o.UserID == caller.UserID {
			return nil
		}
		return ErrForbidden
	case identity.OwnsProduct:
		return s.authorizeMerchant(ctx, caller, o)
	case identity.Denied:
		return ErrForbidden
	default:
		return ErrForbidden
	}
}

// authorizeMerchant requires the caller's merchant to own every bag in o.
func (s *Service) authorizeMerchant(ctx context.Context, caller identity.Caller, o *Order) error {
	merchantID, err := s.merchants.MerchantIDByUser(ctx, caller.UserID)
	if err != nil {
		return fmt.Errorf("resolve merchant of user %d: %w", caller.UserID, err)
	}

	bagIDs := o.BagIDs()
	if len(bagIDs) == 0 {
		return ErrForbidden
	}
	for _, id := range bagIDs {
		bag, err := s.bags.GetBag(ctx, id)
		if err != nil {
			return fmt.Errorf("resolve owner of bag %d: %w", id, err)
		}
		if bag.MerchantID != merchantID {
			return ErrForbidden
		}
	}
	return nil
}
