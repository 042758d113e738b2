package cache

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/repository"
)

// fakeUserStore counts loads so tests can observe cache hits vs misses.
type fakeUserStore struct {
	users map[uint64]*model.User
	loads int
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (*model.User, error) {
	f.loads++
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) GetByEmail(_ context.Context, projectID uint64, email string) (*model.User, error) {
	f.loads++
	for _, u := range f.users {
		if u.ProjectID == projectID && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) Create(_ context.Context, u *model.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) Update(_ context.Context, u *model.User) error {
	f.users[u.ID] = u
	return nil
}

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestUserCacheReadThrough(t *testing.T) {
	_, rdb := testRedis(t)
	inner := &fakeUserStore{users: map[uint64]*model.User{
		1: {ID: 1, Email: "a@b.c", Username: "a", PasswordHash: "$2a$hash", ProjectID: 2},
	}}
	uc := NewUserCache(inner, rdb, time.Minute)
	ctx := context.Background()

	first, err := uc.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("miss load: %v", err)
	}
	// The miss returns the raw record so credential paths keep working.
	if first.PasswordHash == "" {
		t.Fatal("miss must return the stored record unmodified")
	}

	second, err := uc.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("hit load: %v", err)
	}
	if inner.loads != 1 {
		t.Fatalf("store loads = %d, want 1", inner.loads)
	}
	// The cached view is sanitized.
	if second.PasswordHash != "" {
		t.Fatal("cached user still carries the password hash")
	}
}

func TestUserCacheNeverStoresPasswordHash(t *testing.T) {
	mr, rdb := testRedis(t)
	inner := &fakeUserStore{users: map[uint64]*model.User{
		1: {ID: 1, Email: "a@b.c", PasswordHash: "$2a$sekret", ProjectID: 2},
	}}
	uc := NewUserCache(inner, rdb, time.Minute)

	if _, err := uc.GetByID(context.Background(), 1); err != nil {
		t.Fatalf("load: %v", err)
	}
	raw, err := mr.Get("user.1")
	if err != nil {
		t.Fatalf("cached value missing: %v", err)
	}
	if strings.Contains(raw, "sekret") {
		t.Fatal("password hash leaked into redis")
	}
	var cached model.User
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		t.Fatalf("cached value not json: %v", err)
	}
	if cached.Email != "a@b.c" {
		t.Fatalf("cached email = %q", cached.Email)
	}
}

func TestUserCacheInvalidatesOnUpdate(t *testing.T) {
	_, rdb := testRedis(t)
	inner := &fakeUserStore{users: map[uint64]*model.User{
		1: {ID: 1, Email: "old@b.c", ProjectID: 2},
	}}
	uc := NewUserCache(inner, rdb, time.Minute)
	ctx := context.Background()

	if _, err := uc.GetByID(ctx, 1); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if err := uc.Update(ctx, &model.User{ID: 1, Email: "new@b.c", ProjectID: 2}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := uc.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Email != "new@b.c" {
		t.Fatalf("stale read after update: %q", got.Email)
	}
}

func TestUserCacheMissesAreNotCached(t *testing.T) {
	_, rdb := testRedis(t)
	inner := &fakeUserStore{users: map[uint64]*model.User{}}
	uc := NewUserCache(inner, rdb, time.Minute)
	ctx := context.Background()

	if _, err := uc.GetByID(ctx, 42); err == nil {
		t.Fatal("expected not found")
	}
	inner.users[42] = &model.User{ID: 42, Email: "late@b.c"}
	got, err := uc.GetByID(ctx, 42)
	if err != nil {
		t.Fatalf("late row should be visible: %v", err)
	}
	if got.ID != 42 {
		t.Fatalf("got user %d", got.ID)
	}
}
