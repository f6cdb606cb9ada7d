// Package stripe hosts checkout sessions on Stripe.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/example/surprisebag/internal/domain/payment"
)

const eventCheckoutCompleted = "checkout.session.completed"

type Gateway struct {
	api           *client.API
	webhookSecret string
}

// NewGateway builds a gateway on its own API client. backends may be nil.
func NewGateway(secretKey, webhookSecret string, backends *stripeapi.Backends) *Gateway {
	return &Gateway{api: client.New(secretKey, backends), webhookSecret: webhookSecret}
}

func checkoutParams(req payment.CheckoutRequest) *stripeapi.CheckoutSessionParams {
	params := &stripeapi.CheckoutSessionParams{
		Mode:       stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL: stripeapi.String(req.SuccessURL),
		CancelURL:  stripeapi.String(req.CancelURL),
	}
	for _, li := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency: stripeapi.String(req.Currency),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(li.Name),
				},
				UnitAmount: stripeapi.Int64(li.UnitAmount),
			},
			Quantity: stripeapi.Int64(li.Quantity),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

func toSession(s *stripeapi.CheckoutSession) *payment.Session {
	return &payment.Session{
		ID:       s.ID,
		URL:      s.URL,
		Complete: s.Status == stripeapi.CheckoutSessionStatusComplete,
		Paid:     s.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusPaid,
		Metadata: s.Metadata,
	}
}

func (g *Gateway) CreateSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	params := checkoutParams(req)
	params.Context = ctx
	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return toSession(s), nil
}

func (g *Gateway) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	params := &stripeapi.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, err
	}
	return toSession(s), nil
}

// ParseCompletedSession verifies a webhook payload. Events other than a
// completed checkout return a nil session.
func (g *Gateway) ParseCompletedSession(payload []byte, signature string) (*payment.Session, error) {
	evt, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	if string(evt.Type) != eventCheckoutCompleted {
		return nil, nil
	}
	var s stripeapi.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidWebhook, err)
	}
	return toSession(&s), nil
}
