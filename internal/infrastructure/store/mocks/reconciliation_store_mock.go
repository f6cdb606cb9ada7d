package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/surprisebag/internal/domain/payment"
)

// MockReconciliationStore is an in-memory payment.ReconciliationStore.
type MockReconciliationStore struct {
	mu   sync.Mutex
	rows map[int64]*payment.Reconciliation

	UpsertErr   error
	UpsertCalls int
}

func NewMockReconciliationStore() *MockReconciliationStore {
	return &MockReconciliationStore{rows: make(map[int64]*payment.Reconciliation)}
}

// Row returns a copy of the row for orderID.
func (m *MockReconciliationStore) Row(orderID int64) (payment.Reconciliation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[orderID]
	if !ok {
		return payment.Reconciliation{}, false
	}
	return *r, true
}

func (m *MockReconciliationStore) Upsert(ctx context.Context, orderID int64, sessionID, lastError string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	r, ok := m.rows[orderID]
	if !ok {
		m.rows[orderID] = &payment.Reconciliation{
			OrderID:   orderID,
			SessionID: sessionID,
			Status:    payment.ReconciliationPending,
			LastError: lastError,
			CreatedAt: at,
			UpdatedAt: at,
		}
		return nil
	}
	if r.Status != payment.ReconciliationPending {
		r.Attempts = 0
	}
	r.Status = payment.ReconciliationPending
	r.SessionID = sessionID
	r.LastError = lastError
	r.UpdatedAt = at
	return nil
}

func (m *MockReconciliationStore) ListPending(ctx context.Context, limit int) ([]payment.Reconciliation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []payment.Reconciliation
	for _, r := range m.rows {
		if r.Status == payment.ReconciliationPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockReconciliationStore) mark(orderID int64, status payment.ReconciliationStatus, lastError string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[orderID]
	if !ok {
		return fmt.Errorf("reconciliation for order %d not found", orderID)
	}
	r.Attempts++
	r.Status = status
	if lastError != "" {
		r.LastError = lastError
	}
	r.UpdatedAt = at
	return nil
}

func (m *MockReconciliationStore) MarkAttempt(ctx context.Context, orderID int64, lastError string, at time.Time) error {
	return m.mark(orderID, payment.ReconciliationPending, lastError, at)
}

func (m *MockReconciliationStore) MarkResolved(ctx context.Context, orderID int64, at time.Time) error {
	return m.mark(orderID, payment.ReconciliationResolved, "", at)
}

func (m *MockReconciliationStore) MarkAbandoned(ctx context.Context, orderID int64, lastError string, at time.Time) error {
	return m.mark(orderID, payment.ReconciliationAbandoned, lastError, at)
}
