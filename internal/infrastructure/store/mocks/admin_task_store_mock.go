package mocks

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/surprisebag/internal/domain/admintask"
)

// MockAdminTaskStore is an in-memory admintask.Store.
type MockAdminTaskStore struct {
	mu       sync.Mutex
	tasks    map[int64]*admintask.Task
	bySource map[string]int64
	nextID   int64

	InsertErr   error
	InsertCalls int
}

func NewMockAdminTaskStore() *MockAdminTaskStore {
	return &MockAdminTaskStore{
		tasks:    make(map[int64]*admintask.Task),
		bySource: make(map[string]int64),
	}
}

func cloneTask(t *admintask.Task) *admintask.Task {
	c := *t
	c.Payload = slices.Clone(t.Payload)
	return &c
}

// All returns every stored task ordered by id.
func (m *MockAdminTaskStore) All() []*admintask.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*admintask.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockAdminTaskStore) Insert(ctx context.Context, t *admintask.Task) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertErr != nil {
		return false, m.InsertErr
	}
	if _, dup := m.bySource[t.SourceEventID]; dup {
		return false, nil
	}
	m.nextID++
	t.ID = m.nextID
	m.tasks[t.ID] = cloneTask(t)
	m.bySource[t.SourceEventID] = t.ID
	return true, nil
}

func (m *MockAdminTaskStore) Get(ctx context.Context, id int64) (*admintask.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, admintask.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (m *MockAdminTaskStore) List(ctx context.Context, f admintask.ListFilter) ([]*admintask.Task, int, error) {
	all := m.All()
	var matched []*admintask.Task
	for _, t := range all {
		if f.Status == "" || t.Status == f.Status {
			matched = append(matched, t)
		}
	}
	total := len(matched)
	start := min(f.Offset, total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func (m *MockAdminTaskStore) Claim(ctx context.Context, id, operatorID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != admintask.StatusPending {
		return false, nil
	}
	t.Status = admintask.StatusProcessing
	t.OperatorID = &operatorID
	t.StartedAt = &at
	return true, nil
}

func (m *MockAdminTaskStore) Resolve(ctx context.Context, id, operatorID int64, to admintask.Status, comment string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != admintask.StatusProcessing || !t.ClaimedBy(operatorID) {
		return false, nil
	}
	t.Status = to
	t.Comment = comment
	t.EndedAt = &at
	return true, nil
}
