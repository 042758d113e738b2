package model

import (
	"encoding/json"
	"time"
)

// RefreshSession models a row in the `refresh_sessions` table. A session is
// created on sign-in and rotated on every refresh: the matched row is
// disabled and a successor row is inserted carrying the same user data. Once
// Enabled is false the row is terminal; it is never re-enabled, so replaying
// an already-rotated refresh token can never match an enabled session.
//
// Fields:
//  ID           – uuid primary key.
//  RefreshToken – opaque random token, unique; replaced on every rotation.
//  UserID       – owner of the session.
//  ProjectID    – tenant the session was issued under; successors inherit it.
//  Fingerprint  – client-supplied device/browser identifier.
//  UserIP       – IP recorded at issuance.
//  UserAgent    – user agent recorded at issuance.
//  ExpiresAt    – hard expiry of the refresh token.
//  Enabled      – false once rotated, revoked or reuse-detected.
//  UserData     – opaque JSON snapshot (for example roles at issuance time).
type RefreshSession struct {
	ID           string          // refresh_sessions.id (uuid)
	RefreshToken string          // refresh_sessions.refresh_token
	UserID       uint64          // refresh_sessions.user_id
	ProjectID    uint64          // refresh_sessions.project_id
	Fingerprint  string          // refresh_sessions.fingerprint
	UserIP       string          // refresh_sessions.user_ip
	UserAgent    string          // refresh_sessions.user_agent
	ExpiresAt    time.Time       // refresh_sessions.expires_at
	Enabled      bool            // refresh_sessions.enabled
	UserData     json.RawMessage // refresh_sessions.user_data (JSON)
	CreatedAt    time.Time       // refresh_sessions.created_at
}

// Expired reports whether the session's refresh window has passed.
func (s *RefreshSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
