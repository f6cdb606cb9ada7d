package cache

import (
	"context"
	"strconv"
	"time"
)

const sessionPrefix = "session:"

// Sessions tracks live access tokens by their jti. The auth service writes
// entries at login and removes them at logout; this side only reads.
type Sessions struct {
	store Store
}

func NewSessions(store Store) *Sessions {
	return &Sessions{store: store}
}

// Active reports whether the token id is still present.
func (s *Sessions) Active(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	_, ok, err := s.store.Get(ctx, sessionPrefix+tokenID)
	return ok, err
}

// Open registers a session for userID until ttl elapses.
func (s *Sessions) Open(ctx context.Context, tokenID string, userID int64, ttl time.Duration) error {
	return s.store.Set(ctx, sessionPrefix+tokenID, strconv.FormatInt(userID, 10), ttl)
}

func (s *Sessions) Revoke(ctx context.Context, tokenID string) error {
	return s.store.Delete(ctx, sessionPrefix+tokenID)
}
