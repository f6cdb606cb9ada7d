// Package event defines the message envelope shared by every asynchronous
// flow and the business events carried inside it.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTopicMismatch = errors.New("envelope topic does not match event type")
	ErrEmptyEnvelope = errors.New("envelope is missing required fields")
)

// Event is a business event with a canonical topic.
type Event interface {
	Topic() string
}

// Envelope wraps a serialized event. Fields are read-only after construction.
type Envelope struct {
	messageID string
	timestamp int64
	topic     string
	data      string
}

type wireEnvelope struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
	Topic     string `json:"topic"`
	Data      string `json:"data"`
}

// New wraps e in an envelope with a fresh message id and the current time.
func New(e Event) (Envelope, error) {
	return newAt(e, time.Now())
}

func newAt(e Event, now time.Time) (Envelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", e.Topic(), err)
	}
	return Envelope{
		messageID: uuid.NewString(),
		timestamp: now.UnixMilli(),
		topic:     e.Topic(),
		data:      string(data),
	}, nil
}

// Parse decodes an envelope from its wire form.
func Parse(raw []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{}, err
	}
	if w.MessageID == "" || w.Topic == "" {
		return Envelope{}, ErrEmptyEnvelope
	}
	return Envelope{messageID: w.MessageID, timestamp: w.Timestamp, topic: w.Topic, data: w.Data}, nil
}

func (e Envelope) MessageID() string { return e.messageID }
func (e Envelope) Timestamp() int64  { return e.timestamp }
func (e Envelope) Topic() string     { return e.topic }
func (e Envelope) Data() string      { return e.data }

// Time returns the creation time.
func (e Envelope) Time() time.Time { return time.UnixMilli(e.timestamp) }

func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEnvelope{
		MessageID: e.messageID,
		Timestamp: e.timestamp,
		Topic:     e.topic,
		Data:      e.data,
	})
}

// Decode unmarshals the payload into target, whose topic must match.
func (e Envelope) Decode(target Event) error {
	if target.Topic() != e.topic {
		return fmt.Errorf("%w: envelope %q, target %q", ErrTopicMismatch, e.topic, target.Topic())
	}
	return json.Unmarshal([]byte(e.data), target)
}
