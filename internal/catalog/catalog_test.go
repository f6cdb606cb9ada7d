package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/infrastructure/cache"
	"github.com/example/surprisebag/internal/infrastructure/httpclient"
)

func newServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if body == "500" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ============================================
// HTTP clients
// ============================================

func TestBagClient_GetBag(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/internal/bags/7": `{"id":7,"merchantId":3,"name":"Bread bag","price":"12.50","pickupStart":"2026-01-02T17:00:00Z"}`,
	})
	c := NewBagClient(httpclient.New(srv.URL, time.Second, nil))

	bag, err := c.GetBag(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, int64(3), bag.MerchantID)
	assert.True(t, decimal.RequireFromString("12.50").Equal(bag.Price))
	require.NotNil(t, bag.PickupStart)
	assert.Nil(t, bag.PickupEnd)
}

func TestBagClient_GetBag_NotFound(t *testing.T) {
	srv := newServer(t, nil)
	c := NewBagClient(httpclient.New(srv.URL, time.Second, nil))

	_, err := c.GetBag(context.Background(), 7)

	assert.ErrorIs(t, err, ErrBagNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBagClient_GetBag_Unavailable(t *testing.T) {
	srv := newServer(t, map[string]string{"/internal/bags/7": "500"})
	c := NewBagClient(httpclient.New(srv.URL, time.Second, nil))

	_, err := c.GetBag(context.Background(), 7)

	assert.Equal(t, apperr.KindCollaborator, apperr.KindOf(err))
}

func TestBagClient_ListBagIDsByMerchant(t *testing.T) {
	srv := newServer(t, map[string]string{"/internal/merchants/3/bag-ids": `{"bagIds":[7,8]}`})
	c := NewBagClient(httpclient.New(srv.URL, time.Second, nil))

	ids, err := c.ListBagIDsByMerchant(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, ids)
}

func TestMerchantClient_MerchantIDByUser(t *testing.T) {
	srv := newServer(t, map[string]string{"/internal/merchants/by-user/9": `{"id":3,"userId":9,"name":"Bakery","status":"approved"}`})
	c := NewMerchantClient(httpclient.New(srv.URL, time.Second, nil))

	id, err := c.MerchantIDByUser(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestUserClient_GetUser(t *testing.T) {
	srv := newServer(t, map[string]string{"/internal/users/5": `{"id":5,"nickname":"sam","email":"sam@example.com"}`})
	c := NewUserClient(httpclient.New(srv.URL, time.Second, nil))

	u, err := c.GetUser(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, "sam", u.Nickname)
}

// ============================================
// Merchant cache
// ============================================

type countingResolver struct {
	id    int64
	err   error
	calls int
}

func (r *countingResolver) MerchantIDByUser(ctx context.Context, userID int64) (int64, error) {
	r.calls++
	return r.id, r.err
}

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("redis down")
}
func (brokenStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("redis down")
}
func (brokenStore) Delete(ctx context.Context, key string) error { return errors.New("redis down") }

func TestCachedMerchants_HitAfterMiss(t *testing.T) {
	next := &countingResolver{id: 3}
	store := cache.NewMemoryStore()
	c := NewCachedMerchants(next, store, time.Minute, zap.NewNop())

	id1, err := c.MerchantIDByUser(context.Background(), 9)
	require.NoError(t, err)
	id2, err := c.MerchantIDByUser(context.Background(), 9)
	require.NoError(t, err)

	assert.Equal(t, int64(3), id1)
	assert.Equal(t, int64(3), id2)
	assert.Equal(t, 1, next.calls)

	val, ok, _ := store.Get(context.Background(), "merchant:user:9")
	assert.True(t, ok)
	assert.Equal(t, "3", val)
}

func TestCachedMerchants_Invalidate(t *testing.T) {
	next := &countingResolver{id: 3}
	c := NewCachedMerchants(next, cache.NewMemoryStore(), time.Minute, zap.NewNop())

	_, _ = c.MerchantIDByUser(context.Background(), 9)
	require.NoError(t, c.Invalidate(context.Background(), 9))
	_, _ = c.MerchantIDByUser(context.Background(), 9)

	assert.Equal(t, 2, next.calls)
}

func TestCachedMerchants_StoreFailureFallsThrough(t *testing.T) {
	next := &countingResolver{id: 3}
	c := NewCachedMerchants(next, brokenStore{}, time.Minute, zap.NewNop())

	id, err := c.MerchantIDByUser(context.Background(), 9)

	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestCachedMerchants_UpstreamErrorNotCached(t *testing.T) {
	next := &countingResolver{err: ErrMerchantNotFound}
	store := cache.NewMemoryStore()
	c := NewCachedMerchants(next, store, time.Minute, zap.NewNop())

	_, err := c.MerchantIDByUser(context.Background(), 9)

	assert.ErrorIs(t, err, ErrMerchantNotFound)
	_, ok, _ := store.Get(context.Background(), "merchant:user:9")
	assert.False(t, ok)
}

func TestMerchantInvalidator_Invalidate(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "merchant:user:9", "3", time.Minute))

	require.NoError(t, NewMerchantInvalidator(store).Invalidate(context.Background(), 9))

	_, ok, _ := store.Get(context.Background(), "merchant:user:9")
	assert.False(t, ok)
}
