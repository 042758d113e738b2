package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/revline/identity-engine/internal/model"
)

const sessionColumns = "id,refresh_token,user_id,project_id,fingerprint,user_ip,user_agent,expires_at,enabled,user_data,created_at"

// SessionRepo persists refresh sessions in the `refresh_sessions` table.
// Disabling is a per-row UPDATE guarded by enabled=1, so under concurrent
// rotation the store's row atomicity decides the single winner.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

func scanSession(row *sql.Row) (*model.RefreshSession, error) {
	var (
		s    model.RefreshSession
		data sql.NullString
	)
	err := row.Scan(&s.ID, &s.RefreshToken, &s.UserID, &s.ProjectID,
		&s.Fingerprint, &s.UserIP, &s.UserAgent, &s.ExpiresAt, &s.Enabled,
		&data, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if data.Valid {
		s.UserData = []byte(data.String)
	}
	return &s, nil
}

// GetByRefreshToken finds a session regardless of its enabled state. Used by
// sign-out, which may revoke an already-rotated session's row.
func (r *SessionRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (*model.RefreshSession, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM refresh_sessions WHERE refresh_token=? LIMIT 1",
		refreshToken)
	return scanSession(row)
}

// GetEnabled finds the enabled session matching both the fingerprint and the
// refresh token. A replayed (already rotated) token finds nothing here.
func (r *SessionRepo) GetEnabled(ctx context.Context, fingerprint, refreshToken string) (*model.RefreshSession, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM refresh_sessions WHERE refresh_token=? AND fingerprint=? AND enabled=1 LIMIT 1",
		refreshToken, fingerprint)
	return scanSession(row)
}

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, s *model.RefreshSession) error {
	var data any
	if len(s.UserData) > 0 {
		data = string(s.UserData)
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_sessions (id,refresh_token,user_id,project_id,fingerprint,user_ip,user_agent,expires_at,enabled,user_data) VALUES (?,?,?,?,?,?,?,?,?,?)",
		s.ID, s.RefreshToken, s.UserID, s.ProjectID, s.Fingerprint,
		s.UserIP, s.UserAgent, s.ExpiresAt, s.Enabled, data)
	return err
}

// DisableByID marks one session terminal. Disabled rows are never
// re-enabled.
func (r *SessionRepo) DisableByID(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_sessions SET enabled=0 WHERE id=? AND enabled=1", id)
	return err
}

// DisableMatching disables every enabled session of the
// (userID, fingerprint, projectID) tuple and returns the refresh tokens that
// were disabled so the caller can invalidate their cache entries.
func (r *SessionRepo) DisableMatching(ctx context.Context, userID uint64, fingerprint string, projectID uint64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT refresh_token FROM refresh_sessions WHERE user_id=? AND fingerprint=? AND project_id=? AND enabled=1",
		userID, fingerprint, projectID)
	if err != nil {
		return nil, err
	}
	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			rows.Close()
			return nil, err
		}
		tokens = append(tokens, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE refresh_sessions SET enabled=0 WHERE user_id=? AND fingerprint=? AND project_id=? AND enabled=1",
		userID, fingerprint, projectID)
	return tokens, err
}
