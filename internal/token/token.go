// Package token implements access-token signing/verification and the
// refresh-session lifecycle: issue, rotate, disable. A session moves through
// issued(enabled) → rotated(disabled, successor created) and is terminal
// once disabled, which is what makes replaying a rotated refresh token fail.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/repository"
	"github.com/revline/identity-engine/internal/utils"
)

// SessionStore is the session persistence the service needs: the repository
// contract plus cache invalidation by token. *cache.SessionCache satisfies
// it.
type SessionStore interface {
	repository.SessionStore
	ClearByRefreshToken(ctx context.Context, refreshToken string) error
}

// Claims is the payload of an access token. The refresh-token back-reference
// lets the guard tie an access token to its session and reject requests from
// blocked devices before expiry.
type Claims struct {
	UserID       uint64   `json:"uid"`
	ProjectID    uint64   `json:"pid"`
	Roles        []string `json:"roles,omitempty"`
	RefreshToken string   `json:"rt,omitempty"`
	jwt.RegisteredClaims
}

// Pair is the result of issuing or rotating a session.
type Pair struct {
	AccessToken    string
	RefreshToken   string
	AccessExpires  time.Time
	RefreshExpires time.Time
	Session        *model.RefreshSession
}

// sessionData is the opaque snapshot carried in refresh_sessions.user_data.
type sessionData struct {
	Roles []string `json:"roles,omitempty"`
}

// Service mints access tokens and manages refresh sessions.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	sessions   SessionStore
	log        zerolog.Logger
}

func NewService(secret string, accessTTL, refreshTTL time.Duration, sessions SessionStore, log zerolog.Logger) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		sessions:   sessions,
		log:        log,
	}
}

// Device captures the client identity a session is bound to.
type Device struct {
	Fingerprint string
	IP          string
	UserAgent   string
}

// IssueForUser creates a fresh session for the user and mints an access
// token. Existing enabled sessions of the same (user, fingerprint, project)
// tuple are disabled first; a failure there is logged and ignored, because a
// leftover stale session must never lock the user out of signing in.
func (s *Service) IssueForUser(ctx context.Context, user *model.User, dev Device) (*Pair, error) {
	if _, err := s.sessions.DisableMatching(ctx, user.ID, dev.Fingerprint, user.ProjectID); err != nil {
		s.log.Error().Err(err).
			Uint64("user_id", user.ID).
			Str("fingerprint", dev.Fingerprint).
			Msg("failed to disable stale sessions")
	}
	data, _ := json.Marshal(sessionData{Roles: rolesToStrings(user.Roles)})
	return s.createSession(ctx, user.ID, user.ProjectID, user.Roles, dev, data)
}

// IssueForRefreshToken rotates a session: the enabled session matching the
// fingerprint/token pair is disabled and a successor is created. The
// successor always inherits the old session's project id, never a
// caller-asserted tenant, so a session cannot migrate across projects via
// request headers.
func (s *Service) IssueForRefreshToken(ctx context.Context, refreshToken string, dev Device) (*Pair, error) {
	old, err := s.sessions.GetEnabled(ctx, dev.Fingerprint, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Covers "never existed" and "already rotated" alike; a replayed
			// token is indistinguishable from a bogus one on purpose.
			return nil, apperr.RefreshTokenNotProvided()
		}
		return nil, err
	}
	now := time.Now().UTC()
	if old.Expired(now) {
		return nil, apperr.SessionExpired()
	}
	if dev.Fingerprint != "" && old.Fingerprint != dev.Fingerprint {
		return nil, apperr.InvalidRefreshSession()
	}
	if dev.IP != "" && old.UserIP != "" && old.UserIP != dev.IP {
		return nil, apperr.InvalidRefreshSession()
	}

	// Disabling the matched row decides the winner under concurrent
	// refreshes; proceeding past a failed disable would let the old token
	// stay alive next to its successor.
	if err := s.sessions.DisableByID(ctx, old.ID); err != nil {
		return nil, err
	}
	if err := s.sessions.ClearByRefreshToken(ctx, old.RefreshToken); err != nil {
		s.log.Error().Err(err).Str("session_id", old.ID).Msg("failed to invalidate rotated session cache entry")
	}

	roles := rolesFromData(old.UserData)
	if dev.UserAgent == "" {
		dev.UserAgent = old.UserAgent
	}
	return s.createSession(ctx, old.UserID, old.ProjectID, roles, dev, old.UserData)
}

// DisableByRefreshToken terminates a session on sign-out. The lookup is
// unconditional: revoking an already-rotated token's row is a valid no-op,
// but a token with no row at all is an error.
func (s *Service) DisableByRefreshToken(ctx context.Context, refreshToken string) error {
	sess, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.RefreshTokenNotProvided()
		}
		return err
	}
	if err := s.sessions.DisableByID(ctx, sess.ID); err != nil {
		return err
	}
	return s.sessions.ClearByRefreshToken(ctx, sess.RefreshToken)
}

// Verify checks signature and expiry of an access token and returns its
// claims. Expiry is reported distinctly so the HTTP layer can answer 401 for
// "expired" and 400 for everything else malformed.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.AccessTokenExpired().WithCause(err)
		}
		return nil, apperr.BadAccessToken().WithCause(err)
	}
	if !tok.Valid {
		return nil, apperr.BadAccessToken()
	}
	return claims, nil
}

func (s *Service) createSession(ctx context.Context, userID, projectID uint64, roles model.RoleSet, dev Device, userData json.RawMessage) (*Pair, error) {
	refresh, err := utils.RandomHex(48)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &model.RefreshSession{
		ID:           uuid.NewString(),
		RefreshToken: refresh,
		UserID:       userID,
		ProjectID:    projectID,
		Fingerprint:  dev.Fingerprint,
		UserIP:       dev.IP,
		UserAgent:    dev.UserAgent,
		ExpiresAt:    now.Add(s.refreshTTL),
		Enabled:      true,
		UserData:     userData,
		CreatedAt:    now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	accessExp := now.Add(s.accessTTL)
	claims := &Claims{
		UserID:       userID,
		ProjectID:    projectID,
		Roles:        rolesToStrings(roles),
		RefreshToken: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(accessExp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:    signed,
		RefreshToken:   refresh,
		AccessExpires:  accessExp,
		RefreshExpires: sess.ExpiresAt,
		Session:        sess,
	}, nil
}

// RefreshTTL exposes the configured refresh lifetime for cookie max-age.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func rolesToStrings(roles model.RoleSet) []string {
	rs := roles.Slice()
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func rolesFromData(data json.RawMessage) model.RoleSet {
	if len(data) == 0 {
		return nil
	}
	var d sessionData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil
	}
	set := make(model.RoleSet, len(d.Roles))
	for _, name := range d.Roles {
		if r, ok := model.ParseRole(name); ok {
			set[r] = struct{}{}
		}
	}
	return set
}
