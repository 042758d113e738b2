package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/repository"
)

func userKey(id uint64) string { return fmt.Sprintf("user.%d", id) }

// UserCache decorates a UserStore with a read-through cache on GetByID. The
// password hash is stripped before caching, so the cached view can be handed
// to the guard and to clients as-is. Credential checks go through
// GetByEmail, which always hits the store.
type UserCache struct {
	inner repository.UserStore
	rdb   *redis.Client
	ttl   time.Duration
}

func NewUserCache(inner repository.UserStore, rdb *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{inner: inner, rdb: rdb, ttl: ttl}
}

var _ repository.UserStore = (*UserCache)(nil)

// GetByID returns the cached user or loads, strips and caches it.
func (c *UserCache) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	if u, ok := get[model.User](ctx, c.rdb, userKey(id)); ok {
		return u, nil
	}
	u, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sanitized := u.Sanitized()
	set(ctx, c.rdb, userKey(id), sanitized, c.ttl)
	return u, nil
}

// GetByEmail is a pass-through: sign-in needs the password hash, which is
// never cached.
func (c *UserCache) GetByEmail(ctx context.Context, projectID uint64, email string) (*model.User, error) {
	return c.inner.GetByEmail(ctx, projectID, email)
}

// Create inserts through to the store and clears any stale entry.
func (c *UserCache) Create(ctx context.Context, u *model.User) error {
	if err := c.inner.Create(ctx, u); err != nil {
		return err
	}
	return c.ClearByID(ctx, u.ID)
}

// Update writes through to the store, then invalidates the entry so the
// next read observes the mutation.
func (c *UserCache) Update(ctx context.Context, u *model.User) error {
	if err := c.inner.Update(ctx, u); err != nil {
		return err
	}
	return c.ClearByID(ctx, u.ID)
}

// ClearByID drops the cached user.
func (c *UserCache) ClearByID(ctx context.Context, id uint64) error {
	return del(ctx, c.rdb, userKey(id))
}
