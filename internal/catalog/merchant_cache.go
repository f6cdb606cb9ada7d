package catalog

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/infrastructure/cache"
)

const (
	merchantCachePrefix = "merchant:user:"
	DefaultMerchantTTL  = 10 * time.Minute
)

// MerchantResolver maps a user to the merchant they act for.
type MerchantResolver interface {
	MerchantIDByUser(ctx context.Context, userID int64) (int64, error)
}

// CachedMerchants caches merchant ids per user. Cache faults fall through to
// the upstream resolver; they never decide authorization on their own.
type CachedMerchants struct {
	next  MerchantResolver
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedMerchants(next MerchantResolver, store cache.Store, ttl time.Duration, log *zap.Logger) *CachedMerchants {
	return &CachedMerchants{next: next, store: store, ttl: ttl, log: log}
}

func merchantKey(userID int64) string {
	return merchantCachePrefix + strconv.FormatInt(userID, 10)
}

func (c *CachedMerchants) MerchantIDByUser(ctx context.Context, userID int64) (int64, error) {
	key := merchantKey(userID)

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("Merchant cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	} else if ok {
		if id, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			return id, nil
		}
		c.log.Warn("Discarding malformed merchant cache entry", zap.String("key", key))
	}

	id, err := c.next.MerchantIDByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := c.store.Set(ctx, key, strconv.FormatInt(id, 10), c.ttl); err != nil {
		c.log.Warn("Merchant cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return id, nil
}

// Invalidate drops the cached merchant id for userID.
func (c *CachedMerchants) Invalidate(ctx context.Context, userID int64) error {
	return c.store.Delete(ctx, merchantKey(userID))
}

// MerchantInvalidator drops cache entries without a resolver behind it.
type MerchantInvalidator struct {
	store cache.Store
}

func NewMerchantInvalidator(store cache.Store) *MerchantInvalidator {
	return &MerchantInvalidator{store: store}
}

func (m *MerchantInvalidator) Invalidate(ctx context.Context, userID int64) error {
	return m.store.Delete(ctx, merchantKey(userID))
}
