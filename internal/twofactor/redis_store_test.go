package twofactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
)

func testStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewRedisStore(rdb, time.Hour)
}

func TestCodeRoundTrip(t *testing.T) {
	_, store := testStore(t)
	ctx := context.Background()
	u := &model.User{ID: 7, ProjectID: 3}

	code, err := store.GenerateCode(ctx, u, model.OpCompleteSignUp)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if code == "" {
		t.Fatal("empty code")
	}

	userID, err := store.ValidateCode(ctx, code, 3, model.OpCompleteSignUp)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != 7 {
		t.Fatalf("user id = %d, want 7", userID)
	}

	// Codes are single-use.
	_, err = store.ValidateCode(ctx, code, 3, model.OpCompleteSignUp)
	if !errors.Is(err, apperr.VerificationCodeNotFound()) {
		t.Fatalf("second use err = %v", err)
	}
}

func TestCodeBoundToProjectAndOperation(t *testing.T) {
	_, store := testStore(t)
	ctx := context.Background()
	u := &model.User{ID: 7, ProjectID: 3}

	code, err := store.GenerateCode(ctx, u, model.OpCompleteSignUp)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := store.ValidateCode(ctx, code, 99, model.OpCompleteSignUp); !errors.Is(err, apperr.VerificationCodeNotFound()) {
		t.Fatalf("cross-project err = %v", err)
	}
	if _, err := store.ValidateCode(ctx, code, 3, model.OpCompleteForgotPassword); !errors.Is(err, apperr.VerificationCodeNotFound()) {
		t.Fatalf("cross-operation err = %v", err)
	}
	// A failed validation does not consume the code.
	if _, err := store.ValidateCode(ctx, code, 3, model.OpCompleteSignUp); err != nil {
		t.Fatalf("code consumed by failed validations: %v", err)
	}
}

func TestCodeExpires(t *testing.T) {
	mr, store := testStore(t)
	ctx := context.Background()

	code, err := store.GenerateCode(ctx, &model.User{ID: 7, ProjectID: 3}, model.OpCompleteInvite)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	_, err = store.ValidateCode(ctx, code, 3, model.OpCompleteInvite)
	if !errors.Is(err, apperr.VerificationCodeNotFound()) {
		t.Fatalf("expired code err = %v", err)
	}
}
