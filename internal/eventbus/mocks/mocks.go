package mocks

import (
	"context"
	"sync"

	"github.com/example/surprisebag/internal/event"
)

// MockSender records sent envelopes and optionally fails.
type MockSender struct {
	mu   sync.Mutex
	Sent []event.Envelope
	Err  error
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) Publish(ctx context.Context, env event.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, env)
	return nil
}

// MockPublisher records published events without wrapping them.
type MockPublisher struct {
	mu     sync.Mutex
	Events []event.Event
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, e event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
}

// ByTopic returns recorded events of one topic.
func (m *MockPublisher) ByTopic(topic string) []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Event
	for _, e := range m.Events {
		if e.Topic() == topic {
			out = append(out, e)
		}
	}
	return out
}
