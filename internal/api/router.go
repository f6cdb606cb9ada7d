package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/surprisebag/internal/api/middleware"
	"github.com/example/surprisebag/internal/auth"
	"github.com/example/surprisebag/internal/identity"
	"github.com/example/surprisebag/internal/logger"
)

// Auth bundles what the routers need to authenticate requests. Sessions may
// be nil.
type Auth struct {
	JWT      *auth.JWTService
	Sessions middleware.SessionChecker
	Log      *zap.Logger
}

func (a Auth) user() gin.HandlerFunc {
	return middleware.Authenticate(a.JWT, a.Sessions, a.Log)
}

func (a Auth) service() gin.HandlerFunc {
	return middleware.RequireService(a.JWT, a.Log)
}

// NewVerifyLimiter allows 10 pickup code attempts per caller per minute.
func NewVerifyLimiter() *middleware.RateLimiter {
	return middleware.NewRateLimiter(rate.Every(6*time.Second), 10, 10*time.Minute)
}

func newEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), logger.RequestLogger(log))
	r.GET("/health", health)
	return r
}

func NewOrderRouter(h *OrderHandlers, a Auth, verifyLimiter *middleware.RateLimiter) *gin.Engine {
	r := newEngine(a.Log)

	orders := r.Group("/api/orders", a.user())
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/:id", h.GetOrder)
	orders.POST("/:id/cancel", h.CancelOrder)
	orders.POST("/:id/verify", middleware.RateLimit(verifyLimiter), h.VerifyOrder)
	orders.PUT("/:id/status", h.OverrideStatus)

	internal := r.Group("/internal/orders", a.service())
	internal.POST("/cart", h.CreateCartOrder)
	internal.GET("/:id", h.InternalGetOrder)
	internal.PUT("/:id/status", h.ApplyStatus)

	return r
}

func NewPaymentRouter(h *PaymentHandlers, a Auth) *gin.Engine {
	r := newEngine(a.Log)

	payments := r.Group("/api/payments", a.user())
	payments.POST("/checkout", h.CreateCheckout)
	payments.POST("/verify", h.VerifyPayment)

	// signed by the gateway, not by a user
	r.POST("/webhooks/stripe", h.Webhook)

	return r
}

func NewAdminRouter(h *AdminHandlers, a Auth) *gin.Engine {
	r := newEngine(a.Log)

	tasks := r.Group("/api/admin/tasks", a.user(), middleware.RequireRoles(a.Log, identity.RoleAdmin, identity.RoleSuperAdmin))
	tasks.GET("", h.ListTasks)
	tasks.GET("/:id", h.GetTask)
	tasks.POST("/:id/claim", h.ClaimTask)
	tasks.POST("/:id/approve", h.ApproveTask)
	tasks.POST("/:id/reject", h.RejectTask)

	return r
}
