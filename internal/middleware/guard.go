package middleware // middleware provides the request guard and rate limiting for handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/project"
	"github.com/revline/identity-engine/internal/repository"
	"github.com/revline/identity-engine/internal/token"
)

// GuardOptions configure the guard per route group. Explicit structs at
// registration time replace any annotation/reflection scheme: what a route
// tolerates is visible right where the route is registered.
type GuardOptions struct {
	// Skip bypasses the guard entirely.
	Skip bool
	// AllowMissingClientSecret resolves the project without demanding the
	// client secret header.
	AllowMissingClientSecret bool
	// SkipSessionCheck accepts an access token without requiring its
	// backing refresh session to be live. Used by sign-out.
	SkipSessionCheck bool
	// AllowEmptyUser lets anonymous requests through (public routes).
	AllowEmptyUser bool
	// Roles is the required role set; empty means any authenticated user.
	Roles []model.Role
}

// SessionReader is the cached session lookup the guard needs.
type SessionReader interface {
	GetByRefreshToken(ctx context.Context, refreshToken string) (*model.RefreshSession, error)
}

// AccessValidator is the pluggable hook the host application can register
// for domain-specific checks. It runs once per guarded request after the
// core checks pass and may enrich the identity, but cannot undo a guard
// decision.
type AccessValidator func(c echo.Context, id *Identity) error

// Guard is the per-request gate: project resolution, token decoding,
// session and revocation checks, role elevation and role enforcement.
type Guard struct {
	resolver *project.Resolver
	tokens   *token.Service
	users    repository.UserStore
	sessions SessionReader

	adminSecretHeader string
	adminSecret       string
	adminEmail        string
	adminRoles        model.RoleSet
	managerRoles      model.RoleSet

	supportedLocale func(string) bool
	defaultLocale   string

	validator AccessValidator
	log       zerolog.Logger
}

func NewGuard(resolver *project.Resolver, tokens *token.Service, users repository.UserStore,
	sessions SessionReader, adminSecretHeader, adminSecret, adminEmail string,
	adminRoles, managerRoles model.RoleSet, supportedLocale func(string) bool,
	defaultLocale string, validator AccessValidator, log zerolog.Logger) *Guard {
	return &Guard{
		resolver:          resolver,
		tokens:            tokens,
		users:             users,
		sessions:          sessions,
		adminSecretHeader: adminSecretHeader,
		adminSecret:       adminSecret,
		adminEmail:        adminEmail,
		adminRoles:        adminRoles,
		managerRoles:      managerRoles,
		supportedLocale:   supportedLocale,
		defaultLocale:     defaultLocale,
		validator:         validator,
		log:               log,
	}
}

// Middleware returns the guard as an echo middleware configured with the
// given options. Every failure is terminal for the request: the guard never
// retries, and each error is logged with request context before it
// propagates to the error handler.
func (g *Guard) Middleware(opts GuardOptions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if opts.Skip {
				return next(c)
			}
			id, err := g.check(c, opts)
			if err != nil {
				g.fail(c, id, err)
				return err
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}

func (g *Guard) check(c echo.Context, opts GuardOptions) (*Identity, error) {
	ctx := c.Request().Context()
	id := &Identity{}

	proj, err := g.resolver.FromRequest(ctx, c.Request(), !opts.AllowMissingClientSecret)
	if err != nil {
		return id, err
	}
	id.Project = proj

	claims, err := g.decodeAccessToken(c)
	if err != nil {
		return id, err
	}
	id.Claims = claims

	if claims != nil && claims.RefreshToken != "" && !opts.SkipSessionCheck {
		sess, err := g.sessions.GetByRefreshToken(ctx, claims.RefreshToken)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return id, apperr.SessionBlocked()
			}
			return id, err
		}
		if !sess.Enabled {
			return id, apperr.SessionBlocked()
		}
		if sess.Expired(time.Now().UTC()) {
			return id, apperr.SessionExpired()
		}
	}

	if claims != nil {
		u, err := g.users.GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return id, apperr.UserNotFound()
			}
			return id, err
		}
		id.User = u
		id.Roles = u.Roles
	}

	// Revocation is account-wide and checked independently of the session
	// state above: a revoked user is out even with a live session.
	if id.User != nil && id.User.Revoked(time.Now().UTC()) {
		return id, apperr.SessionBlocked()
	}

	adminOverride := g.elevate(c, id)

	if len(opts.Roles) > 0 && id.User != nil && !adminOverride {
		if !id.Roles.Intersects(model.NewRoleSet(opts.Roles...)) {
			return id, apperr.Forbidden().
				WithMeta("requiredRoles", opts.Roles).
				WithMeta("userRoles", id.Roles.Slice())
		}
	}

	id.Locale = g.resolveLocale(c, id.User)

	if g.validator != nil {
		if err := g.validator(c, id); err != nil {
			return id, err
		}
	}

	if id.User == nil && !opts.AllowEmptyUser {
		return id, apperr.Forbidden().WithMeta("reason", "no user resolved")
	}
	return id, nil
}

// decodeAccessToken reads the Authorization header. Absence is tolerated;
// a present but invalid token is not.
func (g *Guard) decodeAccessToken(c echo.Context) (*token.Claims, error) {
	auth := c.Request().Header.Get("Authorization")
	if auth == "" {
		return nil, nil
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, apperr.BadAccessToken()
	}
	return g.tokens.Verify(strings.TrimPrefix(auth, "Bearer "))
}

// elevate applies the role elevation rules in order. Rules only ever add
// roles. The returned flag reports an admin-secret override, which also
// bypasses the role requirement check.
func (g *Guard) elevate(c echo.Context, id *Identity) bool {
	if g.adminSecret != "" {
		supplied := c.Request().Header.Get(g.adminSecretHeader)
		if supplied != "" && subtle.ConstantTimeCompare([]byte(supplied), []byte(g.adminSecret)) == 1 {
			id.Roles = model.NewRoleSet(model.RoleAdmin)
			return true
		}
	}
	if id.User == nil {
		return false
	}
	switch {
	case g.adminEmail != "" && strings.EqualFold(id.User.Email, g.adminEmail):
		id.Roles = id.Roles.Union(model.RoleAdmin)
	case id.Roles.Intersects(g.adminRoles):
		id.Roles = id.Roles.Union(model.RoleAdmin)
	case id.Roles.Intersects(g.managerRoles):
		id.Roles = id.Roles.Union(model.RoleManager)
	}
	return false
}

// resolveLocale prefers the user's stored language, then a supported
// Accept-Language value, then the system default.
func (g *Guard) resolveLocale(c echo.Context, u *model.User) string {
	if u != nil && u.Lang != nil && *u.Lang != "" {
		return *u.Lang
	}
	header := c.Request().Header.Get("Accept-Language")
	if header != "" {
		// First tag only; quality factors are ignored.
		lang := strings.TrimSpace(strings.SplitN(header, ",", 2)[0])
		if i := strings.Index(lang, ";"); i >= 0 {
			lang = lang[:i]
		}
		if g.supportedLocale != nil && g.supportedLocale(lang) {
			return strings.ToLower(lang)
		}
	}
	return g.defaultLocale
}

func (g *Guard) fail(c echo.Context, id *Identity, err error) {
	ev := g.log.Error().Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("ip", c.RealIP())
	if id != nil {
		if id.Project != nil {
			ev = ev.Str("client_id", id.Project.ClientID)
		}
		if id.User != nil {
			ev = ev.Uint64("user_id", id.User.ID).Str("roles", id.Roles.String())
		}
	}
	ev.Msg("request rejected by guard")
}
