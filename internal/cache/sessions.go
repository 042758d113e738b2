package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/repository"
)

func sessionKey(refreshToken string) string { return "session." + refreshToken }

// SessionCache decorates a SessionStore. The guard reads sessions by refresh
// token on every authenticated request, so that lookup is read-through;
// rotation reads (GetEnabled) stay on the store because they decide which
// concurrent refresh wins.
type SessionCache struct {
	inner repository.SessionStore
	rdb   *redis.Client
	ttl   time.Duration
}

func NewSessionCache(inner repository.SessionStore, rdb *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{inner: inner, rdb: rdb, ttl: ttl}
}

var _ repository.SessionStore = (*SessionCache)(nil)

// GetByRefreshToken returns the cached session or loads and caches it.
func (c *SessionCache) GetByRefreshToken(ctx context.Context, refreshToken string) (*model.RefreshSession, error) {
	if s, ok := get[model.RefreshSession](ctx, c.rdb, sessionKey(refreshToken)); ok {
		return s, nil
	}
	s, err := c.inner.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	set(ctx, c.rdb, sessionKey(refreshToken), s, c.ttl)
	return s, nil
}

// GetEnabled is a pass-through: rotation must observe the authoritative row.
func (c *SessionCache) GetEnabled(ctx context.Context, fingerprint, refreshToken string) (*model.RefreshSession, error) {
	return c.inner.GetEnabled(ctx, fingerprint, refreshToken)
}

// Create inserts through to the store and cache-fills the fresh session so
// the first guarded request after issuance does not pay a store read.
func (c *SessionCache) Create(ctx context.Context, s *model.RefreshSession) error {
	if err := c.inner.Create(ctx, s); err != nil {
		return err
	}
	set(ctx, c.rdb, sessionKey(s.RefreshToken), s, c.ttl)
	return nil
}

// DisableByID disables the row. The caller invalidates by token via
// ClearByRefreshToken; only it knows which token the id belongs to.
func (c *SessionCache) DisableByID(ctx context.Context, id string) error {
	return c.inner.DisableByID(ctx, id)
}

// DisableMatching disables the device's sessions and invalidates every
// affected token's entry.
func (c *SessionCache) DisableMatching(ctx context.Context, userID uint64, fingerprint string, projectID uint64) ([]string, error) {
	tokens, err := c.inner.DisableMatching(ctx, userID, fingerprint, projectID)
	for _, t := range tokens {
		_ = c.ClearByRefreshToken(ctx, t)
	}
	return tokens, err
}

// ClearByRefreshToken drops the cached session.
func (c *SessionCache) ClearByRefreshToken(ctx context.Context, refreshToken string) error {
	return del(ctx, c.rdb, sessionKey(refreshToken))
}
