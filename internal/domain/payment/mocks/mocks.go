package mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/surprisebag/internal/domain/order"
	"github.com/example/surprisebag/internal/domain/payment"
)

// MockGateway records created sessions and serves seeded ones.
type MockGateway struct {
	mu       sync.Mutex
	sessions map[string]*payment.Session
	nextID   int

	Created   []payment.CheckoutRequest
	CreateErr error
	GetErr    error
	GetCalls  int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{sessions: make(map[string]*payment.Session)}
}

// AddSession seeds a session as the gateway would report it.
func (m *MockGateway) AddSession(s *payment.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *MockGateway) CreateSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, req)
	m.nextID++
	s := &payment.Session{
		ID:       fmt.Sprintf("cs_test_%d", m.nextID),
		URL:      fmt.Sprintf("https://checkout.example.com/pay/cs_test_%d", m.nextID),
		Metadata: req.Metadata,
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MockGateway) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	c := *s
	return &c, nil
}

// MockOrders is an in-memory order service.
type MockOrders struct {
	mu     sync.Mutex
	orders map[int64]*order.Detail

	MarkPaidErr   error
	MarkPaidCalls int
}

func NewMockOrders() *MockOrders {
	return &MockOrders{orders: make(map[int64]*order.Detail)}
}

func (m *MockOrders) Add(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = &order.Detail{Order: o}
}

// AddDetail seeds an order with its read projection sections.
func (m *MockOrders) AddDetail(d *order.Detail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[d.ID] = d
}

func (m *MockOrders) Status(id int64) order.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.orders[id]; ok {
		return d.Status
	}
	return ""
}

func (m *MockOrders) GetOrder(ctx context.Context, id int64) (*order.Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.orders[id]
	if !ok {
		return nil, payment.ErrOrderNotFound
	}
	o := *d.Order
	c := *d
	c.Order = &o
	return &c, nil
}

func (m *MockOrders) MarkPaid(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkPaidCalls++
	if m.MarkPaidErr != nil {
		return m.MarkPaidErr
	}
	d, ok := m.orders[id]
	if !ok {
		return payment.ErrOrderNotFound
	}
	switch d.Status {
	case order.StatusPaid:
		return nil
	case order.StatusPending:
		d.Status = order.StatusPaid
		return nil
	default:
		return payment.ErrOrderNotPayable
	}
}
