// Package notification consumes bus events that only trigger side effects:
// activation emails and merchant cache invalidation.
package notification

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/event"
	"github.com/example/surprisebag/internal/eventbus"
)

// Mailer sends the activation email.
type Mailer interface {
	SendActivation(to, nickname, link string) error
}

// Invalidator drops cached merchant state for a user.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// ActivationSubscriber mails an activation link for every user.registered
// envelope. Redelivery sends the same link again.
type ActivationSubscriber struct {
	mailer  Mailer
	linkFmt string
	log     *zap.Logger
}

// NewActivationSubscriber builds links from linkFmt, which must contain one
// %s for the activation token.
func NewActivationSubscriber(mailer Mailer, linkFmt string, log *zap.Logger) *ActivationSubscriber {
	return &ActivationSubscriber{mailer: mailer, linkFmt: linkFmt, log: log.Named("activation")}
}

func (s *ActivationSubscriber) Topic() string { return event.TopicUserRegistered }

func (s *ActivationSubscriber) Handle(ctx context.Context, env event.Envelope) error {
	var e event.UserRegistered
	if err := env.Decode(&e); err != nil {
		return fmt.Errorf("%w: %v", eventbus.ErrPermanent, err)
	}
	if e.Email == "" || e.ActivationToken == "" {
		return fmt.Errorf("%w: user %d has no email or activation token", eventbus.ErrPermanent, e.UserID)
	}

	link := activationLink(s.linkFmt, e.ActivationToken)
	if err := s.mailer.SendActivation(e.Email, e.Nickname, link); err != nil {
		s.log.Warn("Failed to send activation email", zap.Int64("user_id", e.UserID), zap.Error(err))
		return err
	}

	s.log.Info("Activation email sent", zap.Int64("user_id", e.UserID), zap.String("message_id", env.MessageID()))
	return nil
}

func activationLink(linkFmt, token string) string {
	escaped := url.QueryEscape(token)
	if !strings.Contains(linkFmt, "%s") {
		return linkFmt + escaped
	}
	return fmt.Sprintf(linkFmt, escaped)
}

// MerchantProcessedSubscriber invalidates the applicant's cached merchant
// lookup once a review completes.
type MerchantProcessedSubscriber struct {
	cache Invalidator
	log   *zap.Logger
}

func NewMerchantProcessedSubscriber(cache Invalidator, log *zap.Logger) *MerchantProcessedSubscriber {
	return &MerchantProcessedSubscriber{cache: cache, log: log.Named("merchant")}
}

func (s *MerchantProcessedSubscriber) Topic() string { return event.TopicMerchantProcessed }

func (s *MerchantProcessedSubscriber) Handle(ctx context.Context, env event.Envelope) error {
	var e event.MerchantProcessed
	if err := env.Decode(&e); err != nil {
		return fmt.Errorf("%w: %v", eventbus.ErrPermanent, err)
	}
	if e.ApplicantID <= 0 {
		return fmt.Errorf("%w: missing applicant id", eventbus.ErrPermanent)
	}

	if err := s.cache.Invalidate(ctx, e.ApplicantID); err != nil {
		return fmt.Errorf("invalidate merchant cache for user %d: %w", e.ApplicantID, err)
	}

	s.log.Info("Merchant review processed",
		zap.Int64("applicant_id", e.ApplicantID),
		zap.Int64("merchant_id", e.MerchantID),
		zap.String("status", e.Status),
		zap.Int64("operator_id", e.OperatorID),
		zap.String("reason", e.Reason),
	)
	return nil
}
