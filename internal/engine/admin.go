package engine

import (
	"context"
	"errors"
	"time"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/repository"
)

// AssignRoles replaces a user's stored role set. Submitted names are
// validated strictly: any unknown role fails the whole call, nothing is
// granted partially.
func (e *Engine) AssignRoles(ctx context.Context, userID uint64, roleNames []string) (*model.User, error) {
	set := make(model.RoleSet, len(roleNames))
	for _, name := range roleNames {
		r, ok := model.ParseRole(name)
		if !ok {
			return nil, apperr.NonExistentRoleSpecified().WithMeta("role", name)
		}
		set[r] = struct{}{}
	}
	if len(set) == 0 {
		return nil, apperr.NonExistentRoleSpecified().WithMeta("reason", "empty role set")
	}

	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.UserNotFound()
		}
		return nil, err
	}
	u.Roles = set
	if err := e.users.Update(ctx, u); err != nil {
		return nil, err
	}
	e.clearUser(ctx, u.ID)
	return u, nil
}

// RevokeUser blocks the account as of now. Every guarded request by the user
// fails from the next cache refresh on, regardless of live sessions.
func (e *Engine) RevokeUser(ctx context.Context, userID uint64) (*model.User, error) {
	return e.setRevoked(ctx, userID, true)
}

// RestoreUser lifts a revocation.
func (e *Engine) RestoreUser(ctx context.Context, userID uint64) (*model.User, error) {
	return e.setRevoked(ctx, userID, false)
}

func (e *Engine) setRevoked(ctx context.Context, userID uint64, revoked bool) (*model.User, error) {
	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.UserNotFound()
		}
		return nil, err
	}
	if revoked {
		now := time.Now().UTC()
		u.RevokedAt = &now
	} else {
		u.RevokedAt = nil
	}
	if err := e.users.Update(ctx, u); err != nil {
		return nil, err
	}
	e.clearUser(ctx, u.ID)
	return u, nil
}
