package twofactor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/utils"
)

func codeKey(code string) string { return "verify." + code }

// codeRecord is the value stored per issued code.
type codeRecord struct {
	UserID    uint64          `json:"userId"`
	ProjectID uint64          `json:"projectId"`
	Operation model.Operation `json:"operation"`
}

// RedisStore is the default Bridge: codes live in Redis under verify.<code>
// with a TTL and are deleted on successful validation, making each code
// single-use.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

var _ Bridge = (*RedisStore)(nil)

// GenerateCode issues a fresh code bound to the user's project and the
// operation.
func (s *RedisStore) GenerateCode(ctx context.Context, user *model.User, op model.Operation) (string, error) {
	code, err := utils.RandomCode()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(codeRecord{
		UserID:    user.ID,
		ProjectID: user.ProjectID,
		Operation: op,
	})
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, codeKey(code), raw, s.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// ValidateCode resolves and consumes a code. Expired codes simply vanish
// with the Redis TTL, so every failure path is the same "not found" error.
func (s *RedisStore) ValidateCode(ctx context.Context, code string, projectID uint64, op model.Operation) (uint64, error) {
	raw, err := s.rdb.Get(ctx, codeKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, apperr.VerificationCodeNotFound()
		}
		return 0, err
	}
	var rec codeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return 0, apperr.VerificationCodeNotFound().WithCause(err)
	}
	if rec.ProjectID != projectID || rec.Operation != op {
		return 0, apperr.VerificationCodeNotFound()
	}
	if err := s.rdb.Del(ctx, codeKey(code)).Err(); err != nil {
		return 0, err
	}
	return rec.UserID, nil
}
