package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/domain/order"
	"github.com/example/surprisebag/internal/domain/payment"
	"github.com/example/surprisebag/internal/infrastructure/httpclient"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

func newOrderClient(t *testing.T, h http.HandlerFunc) *payment.OrderClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return payment.NewOrderClient(httpclient.New(srv.URL, time.Second, staticToken("svc-token")))
}

// ============================================
// OrderClient
// ============================================

func TestOrderClient_GetOrder(t *testing.T) {
	client := newOrderClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/orders/10", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":10,"orderNo":"SB1","userId":1,"bagId":7,"quantity":2,"totalPrice":"50.00",
			"status":"pending","orderType":"single","createdAt":"2026-01-01T00:00:00Z",
			"bag":{"id":7,"name":"Bakery bag","merchantId":3}}`))
	})

	d, err := client.GetOrder(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, int64(10), d.ID)
	assert.Equal(t, order.StatusPending, d.Status)
	assert.Equal(t, "50", d.TotalPrice.String())
	require.NotNil(t, d.Bag)
	assert.Equal(t, "Bakery bag", d.Bag.Name)
}

func TestOrderClient_GetOrder_NotFound(t *testing.T) {
	client := newOrderClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetOrder(context.Background(), 10)
	assert.ErrorIs(t, err, payment.ErrOrderNotFound)
}

func TestOrderClient_GetOrder_Unavailable(t *testing.T) {
	client := newOrderClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetOrder(context.Background(), 10)
	assert.True(t, apperr.Is(err, apperr.KindCollaborator))
}

func TestOrderClient_MarkPaid(t *testing.T) {
	var body map[string]string
	client := newOrderClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/internal/orders/10/status", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	require.NoError(t, client.MarkPaid(context.Background(), 10))
	assert.Equal(t, "paid", body["status"])
}

func TestOrderClient_MarkPaid_Conflict(t *testing.T) {
	client := newOrderClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"order_cancelled","message":"Order is cancelled"}`))
	})

	err := client.MarkPaid(context.Background(), 10)
	assert.ErrorIs(t, err, payment.ErrOrderNotPayable)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}
