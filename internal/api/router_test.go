package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/api"
	"github.com/example/surprisebag/internal/api/middleware"
	"github.com/example/surprisebag/internal/auth"
	catalogmocks "github.com/example/surprisebag/internal/catalog/mocks"
	"github.com/example/surprisebag/internal/domain/admintask"
	"github.com/example/surprisebag/internal/domain/order"
	"github.com/example/surprisebag/internal/domain/payment"
	paymentmocks "github.com/example/surprisebag/internal/domain/payment/mocks"
	"github.com/example/surprisebag/internal/event"
	busmocks "github.com/example/surprisebag/internal/eventbus/mocks"
	"github.com/example/surprisebag/internal/identity"
	"github.com/example/surprisebag/internal/infrastructure/store/mocks"
)

var jwtService = auth.NewJWTService("router-test-secret-of-32-characters", "router-service-secret", time.Minute, time.Minute)

var seededAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuth() api.Auth {
	return api.Auth{JWT: jwtService, Log: zap.NewNop()}
}

func userToken(t *testing.T, userID int64, role identity.Role) string {
	t.Helper()
	token, _, _, err := jwtService.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return token
}

func serviceToken(t *testing.T) string {
	t.Helper()
	token, err := jwtService.GenerateServiceToken("payment-service")
	require.NoError(t, err)
	return token
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

// ============================================
// Order routes
// ============================================

func newOrderRouter() (http.Handler, *mocks.MockOrderStore) {
	orderStore := mocks.NewMockOrderStore()
	cat := catalogmocks.NewMockCatalog()
	cat.AddBag(7, 3, "Bakery bag", "25.00")
	cat.AddMerchant(30, 3)
	cat.AddUser(1, "alex")
	svc := order.NewService(orderStore, cat, cat, cat, zap.NewNop())
	return api.NewOrderRouter(api.NewOrderHandlers(svc, zap.NewNop()), testAuth(), api.NewVerifyLimiter()), orderStore
}

func TestOrderRouter_CreateAndGet(t *testing.T) {
	r, _ := newOrderRouter()
	token := userToken(t, 1, identity.RoleUser)

	rec := do(t, r, http.MethodPost, "/api/orders", token, map[string]any{"bagId": 7, "quantity": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, order.StatusPending, created.Status)
	assert.True(t, decimal.RequireFromString("50").Equal(created.TotalPrice))

	rec = do(t, r, http.MethodGet, "/api/orders/"+itoa(created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"bag":{"id":7`)
}

func TestOrderRouter_RequiresAuthentication(t *testing.T) {
	r, _ := newOrderRouter()

	rec := do(t, r, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderRouter_InvalidID(t *testing.T) {
	r, _ := newOrderRouter()

	rec := do(t, r, http.MethodGet, "/api/orders/abc", userToken(t, 1, identity.RoleUser), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", errorCode(t, rec))
}

func TestOrderRouter_ErrorMapping(t *testing.T) {
	r, orderStore := newOrderRouter()
	bag := int64(7)
	o := orderStore.Seed(&order.Order{OrderNo: "SB1", UserID: 1, BagID: &bag, Quantity: 1,
		TotalPrice: decimal.NewFromInt(25), Status: order.StatusCancelled, PickupCode: "123456",
		Type: order.TypeSingle, CreatedAt: seededAt})
	path := "/api/orders/" + itoa(o.ID)

	rec := do(t, r, http.MethodPost, path+"/cancel", userToken(t, 1, identity.RoleUser), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPost, path+"/cancel", userToken(t, 2, identity.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/orders/999", userToken(t, 1, identity.RoleUser), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order_not_found", errorCode(t, rec))
}

func TestOrderRouter_VerifyPickup(t *testing.T) {
	r, orderStore := newOrderRouter()
	bag := int64(7)
	o := orderStore.Seed(&order.Order{OrderNo: "SB1", UserID: 1, BagID: &bag, Quantity: 1,
		TotalPrice: decimal.NewFromInt(25), Status: order.StatusPaid, PickupCode: "123456",
		Type: order.TypeSingle, CreatedAt: seededAt})
	path := "/api/orders/" + itoa(o.ID) + "/verify"
	merchant := userToken(t, 30, identity.RoleMerchant)

	rec := do(t, r, http.MethodPost, path, merchant, map[string]string{"pickupCode": "000000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, path, merchant, map[string]string{"pickupCode": "123456", "location": "front desk"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	assert.NotContains(t, rec.Body.String(), "pickupCode")
}

func TestOrderRouter_VerifyIsRateLimited(t *testing.T) {
	r, orderStore := newOrderRouter()
	bag := int64(7)
	o := orderStore.Seed(&order.Order{OrderNo: "SB1", UserID: 1, BagID: &bag, Quantity: 1,
		TotalPrice: decimal.NewFromInt(25), Status: order.StatusPaid, PickupCode: "123456",
		Type: order.TypeSingle, CreatedAt: seededAt})
	path := "/api/orders/" + itoa(o.ID) + "/verify"
	merchant := userToken(t, 30, identity.RoleMerchant)

	var last int
	for i := 0; i < 11; i++ {
		last = do(t, r, http.MethodPost, path, merchant, map[string]string{"pickupCode": "000000"}).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestOrderRouter_InternalRoutes(t *testing.T) {
	r, orderStore := newOrderRouter()
	bag := int64(7)
	o := orderStore.Seed(&order.Order{OrderNo: "SB1", UserID: 1, BagID: &bag, Quantity: 1,
		TotalPrice: decimal.NewFromInt(25), Status: order.StatusPending, PickupCode: "123456",
		Type: order.TypeSingle, CreatedAt: seededAt})
	path := "/internal/orders/" + itoa(o.ID)

	// user tokens are not service credentials
	rec := do(t, r, http.MethodGet, path, userToken(t, 99, identity.RoleSuperAdmin), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodGet, path, serviceToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pickupCode":"123456"`)

	for i := 0; i < 2; i++ {
		rec = do(t, r, http.MethodPut, path+"/status", serviceToken(t), map[string]string{"status": "paid"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	stored, _ := orderStore.Get(t.Context(), o.ID)
	assert.Equal(t, order.StatusPaid, stored.Status)

	rec = do(t, r, http.MethodPut, path+"/status", serviceToken(t), map[string]string{"status": "refunded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderRouter_CreateCartOrder(t *testing.T) {
	r, _ := newOrderRouter()

	rec := do(t, r, http.MethodPost, "/internal/orders/cart", serviceToken(t), map[string]any{
		"userId": 1,
		"items":  []map[string]int{{"bagId": 7, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"orderType":"cart"`)

	rec = do(t, r, http.MethodPost, "/internal/orders/cart", serviceToken(t), map[string]any{"userId": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================
// Payment routes
// ============================================

type stubWebhooks struct {
	session *payment.Session
	err     error
}

func (s stubWebhooks) ParseCompletedSession(payload []byte, signature string) (*payment.Session, error) {
	return s.session, s.err
}

func newPaymentRouter(webhooks payment.WebhookParser) (http.Handler, *paymentmocks.MockOrders, *paymentmocks.MockGateway, *mocks.MockReconciliationStore) {
	orders := paymentmocks.NewMockOrders()
	bag := int64(7)
	orders.Add(&order.Order{ID: 10, OrderNo: "SB1", UserID: 1, BagID: &bag, Quantity: 2,
		TotalPrice: decimal.RequireFromString("50.00"), Status: order.StatusPending, Type: order.TypeSingle})
	gateway := paymentmocks.NewMockGateway()
	outbox := mocks.NewMockReconciliationStore()
	svc := payment.NewService(orders, gateway, outbox,
		payment.CheckoutConfig{Currency: "usd", SuccessURL: "https://x/{orderId}", CancelURL: "https://x"}, zap.NewNop())
	return api.NewPaymentRouter(api.NewPaymentHandlers(svc, webhooks, zap.NewNop()), testAuth()), orders, gateway, outbox
}

func TestPaymentRouter_CheckoutAndVerify(t *testing.T) {
	r, orders, gateway, _ := newPaymentRouter(stubWebhooks{})
	token := userToken(t, 1, identity.RoleUser)

	rec := do(t, r, http.MethodPost, "/api/payments/checkout", token, map[string]int64{"orderId": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res payment.CheckoutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.URL)

	rec = do(t, r, http.MethodPost, "/api/payments/verify", token, map[string]any{"orderId": 10, "sessionId": res.SessionID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "payment_not_completed", errorCode(t, rec))

	gateway.AddSession(&payment.Session{ID: res.SessionID, Complete: true, Paid: true,
		Metadata: map[string]string{payment.MetaOrderID: "10"}})
	rec = do(t, r, http.MethodPost, "/api/payments/verify", token, map[string]any{"orderId": 10, "sessionId": res.SessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, order.StatusPaid, orders.Status(10))
}

func TestPaymentRouter_GapHidesCause(t *testing.T) {
	r, orders, gateway, _ := newPaymentRouter(stubWebhooks{})
	gateway.AddSession(&payment.Session{ID: "cs_1", Complete: true, Paid: true,
		Metadata: map[string]string{payment.MetaOrderID: "10"}})
	orders.MarkPaidErr = errors.New("dial tcp 10.1.2.3:8080: connection refused")

	rec := do(t, r, http.MethodPost, "/api/payments/verify", userToken(t, 1, identity.RoleUser),
		map[string]any{"orderId": 10, "sessionId": "cs_1"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "reconciliation_gap", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "10.1.2.3")
}

func TestPaymentRouter_Webhook(t *testing.T) {
	session := &payment.Session{ID: "cs_1", Metadata: map[string]string{payment.MetaOrderID: "10"}}
	r, orders, gateway, _ := newPaymentRouter(stubWebhooks{session: session})
	gateway.AddSession(&payment.Session{ID: "cs_1", Complete: true, Paid: true,
		Metadata: map[string]string{payment.MetaOrderID: "10"}})

	rec := do(t, r, http.MethodPost, "/webhooks/stripe", "", map[string]string{"type": "checkout.session.completed"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, order.StatusPaid, orders.Status(10))
}

func TestPaymentRouter_WebhookGapQueued(t *testing.T) {
	session := &payment.Session{ID: "cs_1", Metadata: map[string]string{payment.MetaOrderID: "10"}}
	r, orders, gateway, outbox := newPaymentRouter(stubWebhooks{session: session})
	gateway.AddSession(&payment.Session{ID: "cs_1", Complete: true, Paid: true,
		Metadata: map[string]string{payment.MetaOrderID: "10"}})
	orders.MarkPaidErr = errors.New("order service down")

	rec := do(t, r, http.MethodPost, "/webhooks/stripe", "", map[string]string{"type": "checkout.session.completed"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "queued")
	_, ok := outbox.Row(10)
	assert.True(t, ok)
}

func TestPaymentRouter_WebhookOutboxDownAsksRedelivery(t *testing.T) {
	session := &payment.Session{ID: "cs_1", Metadata: map[string]string{payment.MetaOrderID: "10"}}
	r, orders, gateway, outbox := newPaymentRouter(stubWebhooks{session: session})
	gateway.AddSession(&payment.Session{ID: "cs_1", Complete: true, Paid: true,
		Metadata: map[string]string{payment.MetaOrderID: "10"}})
	orders.MarkPaidErr = errors.New("order service down")
	outbox.UpsertErr = errors.New("db down")

	rec := do(t, r, http.MethodPost, "/webhooks/stripe", "", map[string]string{"type": "checkout.session.completed"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "reconciliation_unqueued", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestPaymentRouter_WebhookIgnoredAndRejected(t *testing.T) {
	r, _, _, _ := newPaymentRouter(stubWebhooks{})
	rec := do(t, r, http.MethodPost, "/webhooks/stripe", "", map[string]string{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")

	r, _, _, _ = newPaymentRouter(stubWebhooks{err: payment.ErrInvalidWebhook})
	rec = do(t, r, http.MethodPost, "/webhooks/stripe", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================
// Admin routes
// ============================================

func TestAdminRouter_ReviewFlow(t *testing.T) {
	taskStore := mocks.NewMockAdminTaskStore()
	publisher := busmocks.NewMockPublisher()
	svc := admintask.NewService(taskStore, publisher, zap.NewNop())
	r := api.NewAdminRouter(api.NewAdminHandlers(svc, zap.NewNop()), testAuth())

	reg := event.MerchantRegistered{UserID: 5, MerchantID: 12, MerchantName: "Corner Bakery"}
	raw, _ := json.Marshal(reg)
	task, _, err := svc.CreateMerchantApproval(t.Context(), "msg-1", reg, raw)
	require.NoError(t, err)
	path := "/api/admin/tasks/" + itoa(task.ID)
	operator := userToken(t, 90, identity.RoleAdmin)

	rec := do(t, r, http.MethodGet, "/api/admin/tasks?status=pending", userToken(t, 5, identity.RoleMerchant), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/admin/tasks?status=pending", operator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	rec = do(t, r, http.MethodPost, path+"/claim", operator, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodPost, path+"/reject", operator, map[string]string{"comment": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "comment_required", errorCode(t, rec))

	rec = do(t, r, http.MethodPost, path+"/approve", userToken(t, 91, identity.RoleAdmin), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, r, http.MethodPost, path+"/approve", operator, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"approved"`)
	assert.Len(t, publisher.ByTopic(event.TopicMerchantProcessed), 1)
}
