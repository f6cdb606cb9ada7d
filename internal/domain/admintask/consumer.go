package admintask

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/event"
	"github.com/example/surprisebag/internal/eventbus"
)

// RegistrationSubscriber turns merchant.registered envelopes into approval
// tasks.
type RegistrationSubscriber struct {
	svc *Service
}

func NewRegistrationSubscriber(svc *Service) *RegistrationSubscriber {
	return &RegistrationSubscriber{svc: svc}
}

func (r *RegistrationSubscriber) Topic() string { return event.TopicMerchantRegistered }

func (r *RegistrationSubscriber) Handle(ctx context.Context, env event.Envelope) error {
	var reg event.MerchantRegistered
	if err := env.Decode(&reg); err != nil {
		return fmt.Errorf("%w: %v", eventbus.ErrPermanent, err)
	}

	_, _, err := r.svc.CreateMerchantApproval(ctx, env.MessageID(), reg, json.RawMessage(env.Data()))
	if apperr.Is(err, apperr.KindInvalidInput) {
		return fmt.Errorf("%w: %v", eventbus.ErrPermanent, err)
	}
	return err
}
