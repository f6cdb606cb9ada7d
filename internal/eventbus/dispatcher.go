package eventbus

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/event"
)

// Subscriber handles envelopes of exactly one topic. Handle must be
// idempotent: delivery is at-least-once.
type Subscriber interface {
	Topic() string
	Handle(ctx context.Context, env event.Envelope) error
}

// ErrPermanent marks a handler failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent handler error")

// Dispatcher adapts a Subscriber to the raw message handler of a consumer.
type Dispatcher struct {
	sub      Subscriber
	log      *zap.Logger
	attempts int
	backoff  time.Duration
}

func NewDispatcher(sub Subscriber, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sub:      sub,
		log:      log.With(zap.String("topic", sub.Topic())),
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
}

// WithRetry overrides the retry policy.
func (d *Dispatcher) WithRetry(attempts int, backoff time.Duration) *Dispatcher {
	if attempts < 1 {
		attempts = 1
	}
	d.attempts = attempts
	d.backoff = backoff
	return d
}

// HandleMessage decodes and dispatches one message. It returns nil once the
// message is handled or dropped, so the consumer always moves on.
func (d *Dispatcher) HandleMessage(ctx context.Context, _, value []byte) error {
	env, err := event.Parse(value)
	if err != nil {
		d.log.Error("Dropping undecodable message", zap.ByteString("payload", value), zap.Error(err))
		return nil
	}
	if env.Topic() != d.sub.Topic() {
		d.log.Warn("Dropping message for foreign topic",
			zap.String("message_id", env.MessageID()),
			zap.String("envelope_topic", env.Topic()),
		)
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		lastErr = d.sub.Handle(ctx, env)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) || attempt == d.attempts {
			break
		}
		d.log.Warn("Handler failed, retrying",
			zap.String("message_id", env.MessageID()),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.backoff * time.Duration(attempt)):
		}
	}

	d.log.Error("Dropping message after handler failure",
		zap.String("message_id", env.MessageID()),
		zap.String("data", env.Data()),
		zap.Error(lastErr),
	)
	return nil
}
