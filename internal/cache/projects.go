package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/repository"
)

func projectKey(clientID string) string { return "project." + clientID }

// ProjectCache decorates a ProjectStore with a read-through cache on the
// client-id lookup, which the resolver hits on every request.
type ProjectCache struct {
	inner repository.ProjectStore
	rdb   *redis.Client
	ttl   time.Duration
}

func NewProjectCache(inner repository.ProjectStore, rdb *redis.Client, ttl time.Duration) *ProjectCache {
	return &ProjectCache{inner: inner, rdb: rdb, ttl: ttl}
}

var _ repository.ProjectStore = (*ProjectCache)(nil)

// GetByClientID returns the cached project or loads and caches it.
func (c *ProjectCache) GetByClientID(ctx context.Context, clientID string) (*model.Project, error) {
	if p, ok := get[model.Project](ctx, c.rdb, projectKey(clientID)); ok {
		return p, nil
	}
	p, err := c.inner.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	set(ctx, c.rdb, projectKey(p.ClientID), p, c.ttl)
	return p, nil
}

// GetByID is a pass-through; the natural cache key is the client id.
func (c *ProjectCache) GetByID(ctx context.Context, id uint64) (*model.Project, error) {
	return c.inner.GetByID(ctx, id)
}

// Create inserts through to the store and clears any stale entry.
func (c *ProjectCache) Create(ctx context.Context, p *model.Project) error {
	if err := c.inner.Create(ctx, p); err != nil {
		return err
	}
	return c.ClearByClientID(ctx, p.ClientID)
}

// Update writes through to the store, then invalidates.
func (c *ProjectCache) Update(ctx context.Context, p *model.Project) error {
	if err := c.inner.Update(ctx, p); err != nil {
		return err
	}
	return c.ClearByClientID(ctx, p.ClientID)
}

// ListPublic is a pass-through; listings are not cached here.
func (c *ProjectCache) ListPublic(ctx context.Context) ([]model.Project, error) {
	return c.inner.ListPublic(ctx)
}

// ClearByClientID drops the cached project.
func (c *ProjectCache) ClearByClientID(ctx context.Context, clientID string) error {
	return del(ctx, c.rdb, projectKey(clientID))
}
