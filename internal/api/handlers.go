package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/api/middleware"
	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/domain/order"
)

var (
	errInvalidID   = apperr.New(apperr.KindInvalidInput, "invalid_id", "id must be a positive integer")
	errInvalidBody = apperr.New(apperr.KindInvalidInput, "invalid_body", "request body is malformed")
)

// OrderHandlers serves the order lifecycle routes.
type OrderHandlers struct {
	orders *order.Service
	log    *zap.Logger
}

func NewOrderHandlers(orders *order.Service, log *zap.Logger) *OrderHandlers {
	return &OrderHandlers{orders: orders, log: log}
}

type createOrderRequest struct {
	BagID    int64 `json:"bagId"`
	Quantity int   `json:"quantity"`
}

type createCartOrderRequest struct {
	UserID int64            `json:"userId" binding:"required"`
	Items  []order.CartLine `json:"items"`
}

type verifyRequest struct {
	PickupCode string `json:"pickupCode"`
	Location   string `json:"location"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *OrderHandlers) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	o, err := h.orders.CreateSingle(c.Request.Context(), req.BagID, req.Quantity)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *OrderHandlers) ListOrders(c *gin.Context) {
	q := order.ListQuery{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
		Status:   c.Query("status"),
	}
	page, err := h.orders.List(c.Request.Context(), q)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *OrderHandlers) GetOrder(c *gin.Context) {
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	d, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *OrderHandlers) CancelOrder(c *gin.Context) {
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	o, err := h.orders.Cancel(c.Request.Context(), id)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandlers) VerifyOrder(c *gin.Context) {
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	var req verifyRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	o, err := h.orders.Verify(c.Request.Context(), id, req.PickupCode, req.Location)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandlers) OverrideStatus(c *gin.Context) {
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	o, err := h.orders.OverrideStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Internal handlers

func (h *OrderHandlers) CreateCartOrder(c *gin.Context) {
	var req createCartOrderRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	o, err := h.orders.CreateFromCart(c.Request.Context(), req.UserID, req.Items)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *OrderHandlers) InternalGetOrder(c *gin.Context) {
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	d, err := h.orders.Internal(c.Request.Context(), id)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *OrderHandlers) ApplyStatus(c *gin.Context) {
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	o, err := h.orders.ApplyStatus(c.Request.Context(), id, status)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	h.log.Info("Status applied by service",
		zap.Int64("order_id", id),
		zap.String("status", string(status)),
		zap.String("service", c.GetString(middleware.ServiceKey)),
	)
	c.JSON(http.StatusOK, o)
}

// Helper functions

func pathID(c *gin.Context, log *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(c, log, errInvalidID)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, log *zap.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.WriteError(c, log, apperr.Wrap(apperr.KindInvalidInput, errInvalidBody.Code, errInvalidBody.Message, err))
		return false
	}
	return true
}

// queryInt returns 0 for a missing or malformed parameter; services apply
// their defaults.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
