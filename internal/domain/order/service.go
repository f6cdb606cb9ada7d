package order

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/catalog"
	"github.com/example/surprisebag/internal/identity"
)

type Bags interface {
	GetBag(ctx context.Context, id int64) (*catalog.Bag, error)
	ListBagIDsByMerchant(ctx context.Context, merchantID int64) ([]int64, error)
}

type Merchants interface {
	MerchantIDByUser(ctx context.Context, userID int64) (int64, error)
}

type Users interface {
	GetUser(ctx context.Context, id int64) (*catalog.User, error)
}

// CartLine is one line handed over by the cart service at checkout.
type CartLine struct {
	BagID    int64 `json:"bagId"`
	Quantity int   `json:"quantity"`
}

type BagSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	MerchantID int64  `json:"merchantId"`
}

type BuyerSummary struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

// Detail is the order read projection. Optional sections are omitted when
// their source is unavailable.
type Detail struct {
	*Order
	Bag           *BagSummary         `json:"bag,omitempty"`
	Buyer         *BuyerSummary       `json:"buyer,omitempty"`
	Verifications []OrderVerification `json:"verifications,omitempty"`
}

type ListQuery struct {
	Page     int
	PageSize int
	Status   string
}

type Page struct {
	Orders   []*Order `json:"orders"`
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Service struct {
	store     Store
	bags      Bags
	merchants Merchants
	users     Users
	log       *zap.Logger
	now       func() time.Time
}

func NewService(store Store, bags Bags, merchants Merchants, users Users, log *zap.Logger) *Service {
	return &Service{
		store:     store,
		bags:      bags,
		merchants: merchants,
		users:     users,
		log:       log,
		now:       time.Now,
	}
}

func callerFrom(ctx context.Context) (identity.Caller, error) {
	c, ok := identity.FromContext(ctx)
	if !ok {
		return identity.Caller{}, apperr.ErrUnauthorized
	}
	return c, nil
}

func (s *Service) load(ctx context.Context, id int64) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CreateSingle places a pending order for quantity units of one bag.
func (s *Service) CreateSingle(ctx context.Context, bagID int64, quantity int) (*Order, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !identity.CanPlaceOrder(caller.Role) {
		return nil, ErrForbidden
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	bag, err := s.bags.GetBag(ctx, bagID)
	if err != nil {
		return nil, err
	}

	code, err := newPickupCode()
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		OrderNo:     newOrderNo(now),
		UserID:      caller.UserID,
		BagID:       &bag.ID,
		Quantity:    quantity,
		TotalPrice:  bag.Price.Mul(decimalInt(quantity)),
		Status:      StatusPending,
		PickupCode:  code,
		PickupStart: bag.PickupStart,
		PickupEnd:   bag.PickupEnd,
		Type:        TypeSingle,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	s.log.Info("Order created",
		zap.Int64("order_id", o.ID),
		zap.String("order_no", o.OrderNo),
		zap.String("type", string(o.Type)),
		zap.String("total", o.TotalPrice.StringFixed(2)),
	)
	return o, nil
}

// CreateFromCart snapshots cart lines into a pending cart order. Unit prices
// come from the catalog, not from the cart.
func (s *Service) CreateFromCart(ctx context.Context, userID int64, lines []CartLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	now := s.now()
	o := &Order{
		OrderNo:   newOrderNo(now),
		UserID:    userID,
		Status:    StatusPending,
		Type:      TypeCart,
		CreatedAt: now,
		Items:     make([]OrderItem, 0, len(lines)),
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: bag %d", ErrInvalidQuantity, line.BagID)
		}
		bag, err := s.bags.GetBag(ctx, line.BagID)
		if err != nil {
			return nil, err
		}
		item := OrderItem{
			BagID:     bag.ID,
			BagName:   bag.Name,
			Quantity:  line.Quantity,
			UnitPrice: bag.Price,
		}
		o.Items = append(o.Items, item)
		o.Quantity += line.Quantity
		o.TotalPrice = o.TotalPrice.Add(item.Subtotal())
		widenWindow(o, bag)
	}

	code, err := newPickupCode()
	if err != nil {
		return nil, err
	}
	o.PickupCode = code

	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	s.log.Info("Order created",
		zap.Int64("order_id", o.ID),
		zap.String("order_no", o.OrderNo),
		zap.String("type", string(o.Type)),
		zap.Int("items", len(o.Items)),
		zap.String("total", o.TotalPrice.StringFixed(2)),
	)
	return o, nil
}

// widenWindow grows the pickup window to span every bag in the order.
func widenWindow(o *Order, bag *catalog.Bag) {
	if bag.PickupStart != nil && (o.PickupStart == nil || bag.PickupStart.Before(*o.PickupStart)) {
		t := *bag.PickupStart
		o.PickupStart = &t
	}
	if bag.PickupEnd != nil && (o.PickupEnd == nil || bag.PickupEnd.After(*o.PickupEnd)) {
		t := *bag.PickupEnd
		o.PickupEnd = &t
	}
}

// Get returns the detail projection of an order visible to the caller.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, o, identity.CanView(caller.Role)); err != nil {
		return nil, err
	}

	d := &Detail{Order: o}
	if caller.Role == identity.RoleMerchant {
		d.Order = o.redacted()
	}

	if o.Type == TypeSingle && o.BagID != nil {
		if bag, err := s.bags.GetBag(ctx, *o.BagID); err != nil {
			s.log.Warn("Omitting bag summary", zap.Int64("order_id", o.ID), zap.Error(err))
		} else {
			d.Bag = &BagSummary{ID: bag.ID, Name: bag.Name, MerchantID: bag.MerchantID}
		}
	}
	if buyer, err := s.users.GetUser(ctx, o.UserID); err != nil {
		s.log.Warn("Omitting buyer summary", zap.Int64("order_id", o.ID), zap.Error(err))
	} else {
		d.Buyer = &BuyerSummary{ID: buyer.ID, Nickname: buyer.Nickname}
	}
	if vs, err := s.store.Verifications(ctx, o.ID); err != nil {
		s.log.Warn("Omitting verifications", zap.Int64("order_id", o.ID), zap.Error(err))
	} else {
		d.Verifications = vs
	}
	return d, nil
}

// Internal returns an order without authorization, for trusted services.
func (s *Service) Internal(ctx context.Context, id int64) (*Detail, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Order: o}
	if o.Type == TypeSingle && o.BagID != nil {
		if bag, err := s.bags.GetBag(ctx, *o.BagID); err == nil {
			d.Bag = &BagSummary{ID: bag.ID, Name: bag.Name, MerchantID: bag.MerchantID}
		}
	}
	return d, nil
}

// List returns the page of orders the caller may see.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	f := ListFilter{Limit: size, Offset: (page - 1) * size}
	if q.Status != "" {
		st, err := ParseStatus(q.Status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}

	switch caller.Role {
	case identity.RoleAdmin, identity.RoleSuperAdmin:
		f.Scope = ScopeAll
	case identity.RoleMerchant:
		merchantID, err := s.merchants.MerchantIDByUser(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		bagIDs, err := s.bags.ListBagIDsByMerchant(ctx, merchantID)
		if err != nil {
			return nil, err
		}
		if len(bagIDs) == 0 {
			return &Page{Orders: []*Order{}, Page: page, PageSize: size}, nil
		}
		f.Scope = ScopeMerchant
		f.BagIDs = bagIDs
	case identity.RoleUser:
		f.Scope = ScopeBuyer
		f.UserID = caller.UserID
	default:
		return nil, ErrForbidden
	}

	orders, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if caller.Role == identity.RoleMerchant {
		for i, o := range orders {
			orders[i] = o.redacted()
		}
	}
	if orders == nil {
		orders = []*Order{}
	}
	return &Page{Orders: orders, Total: total, Page: page, PageSize: size}, nil
}

// Cancel moves a pending or paid order to cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (*Order, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, o, identity.CanCancel(caller.Role)); err != nil {
		return nil, err
	}
	if !o.CanTransitionTo(StatusCancelled) {
		return nil, o.transitionError(StatusCancelled)
	}
	return s.transition(ctx, o, StatusCancelled, false)
}

// Verify redeems a paid order at pickup and records the verification.
func (s *Service) Verify(ctx context.Context, id int64, pickupCode, location string) (*Order, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, o, identity.CanVerify(caller.Role)); err != nil {
		return nil, err
	}
	if !o.CanTransitionTo(StatusCompleted) {
		return nil, o.transitionError(StatusCompleted)
	}
	if pickupCode == "" || subtle.ConstantTimeCompare([]byte(pickupCode), []byte(o.PickupCode)) != 1 {
		return nil, ErrPickupCodeMismatch
	}

	now := s.now()
	v := &OrderVerification{
		OrderID:        o.ID,
		MerchantUserID: caller.UserID,
		VerifiedAt:     now,
		Location:       location,
	}
	ok, err := s.store.CompleteWithVerification(ctx, v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, o.ID, StatusCompleted)
	}

	o.stamp(StatusCompleted, now)
	s.log.Info("Order verified",
		zap.Int64("order_id", o.ID),
		zap.Int64("merchant_user_id", caller.UserID),
		zap.String("location", location),
	)
	return o.redacted(), nil
}

// OverrideStatus sets any status on a non-terminal order.
func (s *Service) OverrideStatus(ctx context.Context, id int64, status string) (*Order, error) {
	target, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, caller, o, identity.CanOverrideStatus(caller.Role)); err != nil {
		return nil, err
	}
	if o.Status == target {
		return o, nil
	}
	if o.Status.Terminal() {
		return nil, o.transitionError(target)
	}

	updated, err := s.transition(ctx, o, target, false)
	if err != nil {
		return nil, err
	}
	s.log.Info("Order status overridden",
		zap.Int64("order_id", o.ID),
		zap.Int64("operator_id", caller.UserID),
		zap.String("role", caller.Role.String()),
		zap.String("status", string(target)),
	)
	if caller.Role == identity.RoleMerchant {
		return updated.redacted(), nil
	}
	return updated, nil
}

// ApplyStatus is the trusted status update used by payment reconciliation.
// Re-applying the current status succeeds without writing.
func (s *Service) ApplyStatus(ctx context.Context, id int64, status Status) (*Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return o, nil
	}
	if !o.CanTransitionTo(status) {
		return nil, o.transitionError(status)
	}
	return s.transition(ctx, o, status, true)
}

// transition writes o.Status -> to conditionally on the loaded status.
func (s *Service) transition(ctx context.Context, o *Order, to Status, idempotent bool) (*Order, error) {
	from := o.Status
	now := s.now()

	ok, err := s.store.TransitionStatus(ctx, o.ID, []Status{from}, to, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		if idempotent {
			if fresh, ferr := s.load(ctx, o.ID); ferr == nil && fresh.Status == to {
				return fresh, nil
			}
		}
		return nil, s.lostRace(ctx, o.ID, to)
	}

	o.stamp(to, now)
	s.log.Info("Order status changed",
		zap.Int64("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return o, nil
}

// lostRace reports a conditional write that matched no row against the
// status that won.
func (s *Service) lostRace(ctx context.Context, id int64, to Status) error {
	fresh, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	s.log.Warn("Concurrent status change",
		zap.Int64("order_id", id),
		zap.String("status", string(fresh.Status)),
		zap.String("wanted", string(to)),
	)
	if fresh.CanTransitionTo(to) {
		return fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
	}
	return fresh.transitionError(to)
}
