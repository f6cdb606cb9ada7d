package mocks

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/surprisebag/internal/domain/order"
)

// MockOrderStore is an in-memory order.Store with the same conditional
// update semantics as the Postgres store.
type MockOrderStore struct {
	mu            sync.Mutex
	orders        map[int64]*order.Order
	verifications map[int64][]order.OrderVerification
	nextID        int64

	// For tracking calls in tests
	TransitionCalls []TransitionCall
	CreateErr       error
	GetErr          error
	ListErr         error
	VerificationErr error
	LastFilter      order.ListFilter

	// BeforeTransition runs inside the write lock and may mutate the stored
	// order to simulate a concurrent writer.
	BeforeTransition func(o *order.Order)
}

// TransitionCall records parameters passed to TransitionStatus
type TransitionCall struct {
	ID   int64
	From []order.Status
	To   order.Status
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{
		orders:        make(map[int64]*order.Order),
		verifications: make(map[int64][]order.OrderVerification),
	}
}

func clone(o *order.Order) *order.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

// Seed stores o as-is, assigning an id when missing.
func (m *MockOrderStore) Seed(o *order.Order) *order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		m.nextID++
		o.ID = m.nextID
	} else if o.ID > m.nextID {
		m.nextID = o.ID
	}
	m.orders[o.ID] = clone(o)
	return o
}

func (m *MockOrderStore) Create(ctx context.Context, o *order.Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if err := o.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	o.ID = m.nextID
	for i := range o.Items {
		o.Items[i].ID = int64(i + 1)
		o.Items[i].OrderID = o.ID
	}
	m.orders[o.ID] = clone(o)
	return nil
}

func (m *MockOrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return clone(o), nil
}

func (m *MockOrderStore) List(ctx context.Context, f order.ListFilter) ([]*order.Order, int, error) {
	if m.ListErr != nil {
		return nil, 0, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastFilter = f

	var matched []*order.Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		switch f.Scope {
		case order.ScopeAll:
		case order.ScopeBuyer:
			if o.UserID != f.UserID {
				continue
			}
		case order.ScopeMerchant:
			if !referencesAny(o, f.BagIDs) {
				continue
			}
		default:
			continue
		}
		matched = append(matched, clone(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func referencesAny(o *order.Order, bagIDs []int64) bool {
	if o.BagID != nil && slices.Contains(bagIDs, *o.BagID) {
		return true
	}
	for _, it := range o.Items {
		if slices.Contains(bagIDs, it.BagID) {
			return true
		}
	}
	return false
}

func (m *MockOrderStore) TransitionStatus(ctx context.Context, id int64, from []order.Status, to order.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionCalls = append(m.TransitionCalls, TransitionCall{ID: id, From: from, To: to})

	o, ok := m.orders[id]
	if !ok {
		return false, nil
	}
	if m.BeforeTransition != nil {
		m.BeforeTransition(o)
	}
	if !slices.Contains(from, o.Status) {
		return false, nil
	}
	setStatus(o, to, at)
	return true, nil
}

func (m *MockOrderStore) CompleteWithVerification(ctx context.Context, v *order.OrderVerification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionCalls = append(m.TransitionCalls, TransitionCall{ID: v.OrderID, From: []order.Status{order.StatusPaid}, To: order.StatusCompleted})

	o, ok := m.orders[v.OrderID]
	if !ok {
		return false, nil
	}
	if m.BeforeTransition != nil {
		m.BeforeTransition(o)
	}
	if o.Status != order.StatusPaid {
		return false, nil
	}
	setStatus(o, order.StatusCompleted, v.VerifiedAt)
	v.ID = int64(len(m.verifications[v.OrderID]) + 1)
	m.verifications[v.OrderID] = append(m.verifications[v.OrderID], *v)
	return true, nil
}

func (m *MockOrderStore) Verifications(ctx context.Context, orderID int64) ([]order.OrderVerification, error) {
	if m.VerificationErr != nil {
		return nil, m.VerificationErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.verifications[orderID]), nil
}

func setStatus(o *order.Order, to order.Status, at time.Time) {
	o.Status = to
	switch to {
	case order.StatusPaid:
		o.PaidAt = &at
	case order.StatusCompleted:
		o.CompletedAt = &at
	case order.StatusCancelled:
		o.CancelledAt = &at
	}
}
