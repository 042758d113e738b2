package repository

import (
	"context"

	"github.com/revline/identity-engine/internal/model"
)

// UserStore is the persistence contract for users. The caching layer wraps
// it with a read-through decorator, so everything above the repositories
// depends on these interfaces rather than on *sql.DB.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, projectID uint64, email string) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
}

// ProjectStore is the persistence contract for projects (tenants).
type ProjectStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Project, error)
	GetByClientID(ctx context.Context, clientID string) (*model.Project, error)
	Create(ctx context.Context, p *model.Project) error
	Update(ctx context.Context, p *model.Project) error
	ListPublic(ctx context.Context) ([]model.Project, error)
}

// SessionStore is the persistence contract for refresh sessions.
type SessionStore interface {
	// GetByRefreshToken looks a session up unconditionally, enabled or not.
	GetByRefreshToken(ctx context.Context, refreshToken string) (*model.RefreshSession, error)
	// GetEnabled looks up the single enabled session matching the
	// fingerprint/token pair; a rotated token no longer matches.
	GetEnabled(ctx context.Context, fingerprint, refreshToken string) (*model.RefreshSession, error)
	Create(ctx context.Context, s *model.RefreshSession) error
	// DisableByID marks one session terminal.
	DisableByID(ctx context.Context, id string) error
	// DisableMatching disables every enabled session of the
	// (userID, fingerprint, projectID) tuple, keeping the rotation
	// invariant of at most one enabled session per device. It returns the
	// refresh tokens that were disabled for cache invalidation.
	DisableMatching(ctx context.Context, userID uint64, fingerprint string, projectID uint64) ([]string, error)
}
