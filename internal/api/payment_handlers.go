package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/api/middleware"
	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/domain/payment"
)

const maxWebhookBody = 64 << 10

type PaymentHandlers struct {
	payments *payment.Service
	webhooks payment.WebhookParser
	log      *zap.Logger
}

func NewPaymentHandlers(payments *payment.Service, webhooks payment.WebhookParser, log *zap.Logger) *PaymentHandlers {
	return &PaymentHandlers{payments: payments, webhooks: webhooks, log: log}
}

type checkoutRequest struct {
	OrderID int64 `json:"orderId" binding:"required"`
}

type verifyPaymentRequest struct {
	OrderID   int64  `json:"orderId" binding:"required"`
	SessionID string `json:"sessionId"`
}

func (h *PaymentHandlers) CreateCheckout(c *gin.Context) {
	var req checkoutRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	res, err := h.payments.CreateCheckoutSession(c.Request.Context(), req.OrderID)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandlers) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	res, err := h.payments.VerifyAndUpdatePayment(c.Request.Context(), req.OrderID, req.SessionID)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Webhook receives gateway notifications. A 5xx asks the gateway to
// redeliver; only a reconciliation that reached the outbox is acknowledged.
func (h *PaymentHandlers) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		middleware.WriteError(c, h.log, apperr.Wrap(apperr.KindInvalidInput, errInvalidBody.Code, errInvalidBody.Message, err))
		return
	}

	sess, err := h.webhooks.ParseCompletedSession(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log.Warn("Webhook signature verification failed", zap.Error(err))
		middleware.WriteError(c, h.log, err)
		return
	}
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	h.log.Info("Processing checkout webhook", zap.String("session_id", sess.ID))
	res, err := h.payments.HandleSessionCompleted(c.Request.Context(), sess.ID, sess.Metadata)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, payment.ErrReconciliationGap):
		// queued for the reconciler
		c.JSON(http.StatusOK, gin.H{"status": "queued"})
	default:
		middleware.WriteError(c, h.log, err)
	}
}
