// Package eventbus publishes business events as envelopes and dispatches
// consumed envelopes to topic subscribers.
package eventbus

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/event"
)

// Sender delivers a constructed envelope to the log.
type Sender interface {
	Publish(ctx context.Context, env event.Envelope) error
}

// Publisher emits business events. Publishing is best-effort: the caller's
// local state change has already committed, so failures are logged only.
type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

type Bus struct {
	sender  Sender
	log     *zap.Logger
	timeout time.Duration
}

func NewBus(sender Sender, log *zap.Logger) *Bus {
	return &Bus{sender: sender, log: log, timeout: 5 * time.Second}
}

func (b *Bus) Publish(ctx context.Context, e event.Event) {
	env, err := event.New(e)
	if err != nil {
		b.log.Error("Failed to build envelope", zap.String("topic", e.Topic()), zap.Error(err))
		return
	}

	// Detached from the request so a finished request does not abort the send.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	if err := b.sender.Publish(sendCtx, env); err != nil {
		b.log.Error("Failed to publish event",
			zap.String("topic", env.Topic()),
			zap.String("message_id", env.MessageID()),
			zap.String("data", env.Data()),
			zap.Error(err),
		)
		return
	}
	b.log.Debug("Event published", zap.String("topic", env.Topic()), zap.String("message_id", env.MessageID()))
}
