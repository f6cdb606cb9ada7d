package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/event"
)

// Producer writes envelopes to the topic named by the envelope.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer. In async mode WriteMessages returns once the
// message is queued and delivery failures are reported to log.
func NewProducer(brokers []string, async bool, log *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  async,
	}
	if async {
		writer.Completion = logFailedDeliveries(log)
	}
	return &Producer{writer: writer}
}

// Publish sends env keyed by its topic.
func (p *Producer) Publish(ctx context.Context, env event.Envelope) error {
	msg, err := newMessage(env)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func newMessage(env event.Envelope) (kafka.Message, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: env.Topic(),
		Key:   []byte(env.Topic()),
		Value: data,
		Time:  env.Time(),
	}, nil
}

func logFailedDeliveries(log *zap.Logger) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		for _, m := range messages {
			log.Error("Async publish failed",
				zap.String("topic", m.Topic),
				zap.ByteString("payload", m.Value),
				zap.Error(err),
			)
		}
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
