package mocks

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/example/surprisebag/internal/catalog"
)

// MockCatalog serves bags, merchants and users from memory.
type MockCatalog struct {
	mu        sync.Mutex
	bags      map[int64]*catalog.Bag
	merchants map[int64]int64 // user id -> merchant id
	users     map[int64]*catalog.User

	BagErr      error
	MerchantErr error
	UserErr     error

	GetBagCalls int
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		bags:      make(map[int64]*catalog.Bag),
		merchants: make(map[int64]int64),
		users:     make(map[int64]*catalog.User),
	}
}

// AddBag registers a bag owned by merchantID at price.
func (m *MockCatalog) AddBag(id, merchantID int64, name, price string) *catalog.Bag {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &catalog.Bag{ID: id, MerchantID: merchantID, Name: name, Price: decimal.RequireFromString(price)}
	m.bags[id] = b
	return b
}

// AddMerchant links a user account to a merchant.
func (m *MockCatalog) AddMerchant(userID, merchantID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merchants[userID] = merchantID
}

func (m *MockCatalog) AddUser(id int64, nickname string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &catalog.User{ID: id, Nickname: nickname}
}

func (m *MockCatalog) GetBag(ctx context.Context, id int64) (*catalog.Bag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetBagCalls++
	if m.BagErr != nil {
		return nil, m.BagErr
	}
	b, ok := m.bags[id]
	if !ok {
		return nil, catalog.ErrBagNotFound
	}
	c := *b
	return &c, nil
}

func (m *MockCatalog) ListBagIDsByMerchant(ctx context.Context, merchantID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BagErr != nil {
		return nil, m.BagErr
	}
	var ids []int64
	for id, b := range m.bags {
		if b.MerchantID == merchantID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MockCatalog) MerchantIDByUser(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MerchantErr != nil {
		return 0, m.MerchantErr
	}
	id, ok := m.merchants[userID]
	if !ok {
		return 0, catalog.ErrMerchantNotFound
	}
	return id, nil
}

func (m *MockCatalog) GetUser(ctx context.Context, id int64) (*catalog.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, catalog.ErrUserNotFound
	}
	c := *u
	return &c, nil
}
