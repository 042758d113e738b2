package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
)

const userColumns = "id,email,username,password_hash,roles,revoked_at,email_verified_at,lang,timezone,project_id,created_at,updated_at"

// UserRepo persists users in the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u          model.User
		roles      string
		revoked    sql.NullTime
		verified   sql.NullTime
		lang, zone sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &roles,
		&revoked, &verified, &lang, &zone, &u.ProjectID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Roles, _ = model.ParseRoles(roles)
	if revoked.Valid {
		t := revoked.Time
		u.RevokedAt = &t
	}
	if verified.Valid {
		t := verified.Time
		u.EmailVerifiedAt = &t
	}
	if lang.Valid {
		u.Lang = &lang.String
	}
	if zone.Valid {
		u.Timezone = &zone.String
	}
	return &u, nil
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// GetByEmail fetches a user by normalized email within one project.
func (r *UserRepo) GetByEmail(ctx context.Context, projectID uint64, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND project_id=? LIMIT 1",
		email, projectID)
	return scanUser(row)
}

// Create inserts a user and fills its ID. Duplicate email or username within
// the project surface as the matching domain error.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email,username,password_hash,roles,revoked_at,email_verified_at,lang,timezone,project_id) VALUES (?,?,?,?,?,?,?,?,?)",
		u.Email, u.Username, u.PasswordHash, u.Roles.String(),
		u.RevokedAt, u.EmailVerifiedAt, u.Lang, u.Timezone, u.ProjectID)
	if err != nil {
		return translateDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// Update rewrites every mutable column of the user row.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email=?,username=?,password_hash=?,roles=?,revoked_at=?,email_verified_at=?,lang=?,timezone=?,updated_at=? WHERE id=?",
		u.Email, u.Username, u.PasswordHash, u.Roles.String(),
		u.RevokedAt, u.EmailVerifiedAt, u.Lang, u.Timezone, time.Now().UTC(), u.ID)
	if err != nil {
		return translateDuplicate(err)
	}
	return nil
}

// translateDuplicate maps MySQL duplicate-key errors (1062) on the users
// unique indexes to the corresponding domain errors.
func translateDuplicate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		if strings.Contains(me.Message, "uq_users_username") {
			return apperr.UserIsExists().WithCause(err)
		}
		return apperr.EmailIsExists().WithCause(err)
	}
	return err
}
