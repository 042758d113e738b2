package model

import "time"

// User represents an application user as stored in the `users` table. Users
// belong to exactly one project; email and username are unique only within
// that project, so the same address may exist in several tenants as distinct
// users.
//
// Fields:
//  ID              – primary key identifier.
//  Email           – email address, unique per (email, project_id).
//  Username        – login name, unique per (username, project_id).
//  PasswordHash    – bcrypt hashed password; never serialized to clients.
//  Roles           – typed role set, stored comma-joined in users.roles.
//  RevokedAt       – once in the past, every session of the user is blocked.
//  EmailVerifiedAt – null until the verification code was confirmed.
//  Lang            – preferred locale (nullable).
//  Timezone        – preferred timezone (nullable).
//  ProjectID       – owning tenant.
type User struct {
	ID              uint64     // users.id
	Email           string     // users.email
	Username        string     // users.username
	PasswordHash    string     // users.password_hash
	Roles           RoleSet    // users.roles (comma-joined)
	RevokedAt       *time.Time // users.revoked_at (nullable)
	EmailVerifiedAt *time.Time // users.email_verified_at (nullable)
	Lang            *string    // users.lang (nullable)
	Timezone        *string    // users.timezone (nullable)
	ProjectID       uint64     // users.project_id
	CreatedAt       time.Time  // users.created_at
	UpdatedAt       time.Time  // users.updated_at
}

// Revoked reports whether the account is revoked as of now. Revocation is
// account-wide and independent of per-device session state.
func (u *User) Revoked(now time.Time) bool {
	return u.RevokedAt != nil && u.RevokedAt.Before(now)
}

// Verified reports whether the email verification was completed.
func (u *User) Verified() bool { return u.EmailVerifiedAt != nil }

// Sanitized returns a copy of the user with the password hash stripped.
// Every value that leaves the repository layer towards a cache or a client
// goes through this.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}
