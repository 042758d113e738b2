package engine

import (
	"context"
	"errors"
	"time"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/repository"
	"github.com/revline/identity-engine/internal/utils"
)

// ForgotPassword starts the recovery flow: it generates a code bound to the
// complete-forgot-password operation and dispatches it to the user's email.
// Without a verification channel the flow cannot run and is reported as a
// code-not-found so callers cannot probe which addresses exist.
func (e *Engine) ForgotPassword(ctx context.Context, project *model.Project, email, redirectURI string) error {
	if e.twoFactor == nil || e.sender == nil {
		return apperr.VerificationCodeNotFound()
	}
	u, err := e.users.GetByEmail(ctx, project.ID, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.UserNotFound()
		}
		return err
	}
	return e.dispatchCode(ctx, project, u, model.OpCompleteForgotPassword, redirectURI)
}

// CompleteForgotPassword validates a recovery code and replaces the user's
// password hash. Like CompleteSignUp, a failed validation is a nil no-op.
func (e *Engine) CompleteForgotPassword(ctx context.Context, projectID uint64, code, password string) (*model.User, error) {
	if e.twoFactor == nil {
		return nil, nil
	}
	userID, err := e.twoFactor.ValidateCode(ctx, code, projectID, model.OpCompleteForgotPassword)
	if err != nil {
		if errors.Is(err, apperr.VerificationCodeNotFound()) {
			return nil, nil
		}
		return nil, err
	}
	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	hash, err := utils.CreatePasswordHash(password, e.bcryptCost)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	if !u.Verified() {
		// Completing recovery proves control of the mailbox.
		now := time.Now().UTC()
		u.EmailVerifiedAt = &now
	}
	if err := e.users.Update(ctx, u); err != nil {
		return nil, err
	}
	e.clearUser(ctx, u.ID)
	return u, nil
}

// UpdateProfileArgs describes a profile mutation. Lang and Timezone are
// tri-state: with the Set flag false the field is untouched; with it true
// the value is applied, including an explicit nil clear.
type UpdateProfileArgs struct {
	Email       *string
	Username    *string
	NewPassword string
	OldPassword string
	SetLang     bool
	Lang        *string
	SetTimezone bool
	Timezone    *string
}

// UpdateProfile mutates only the fields the caller supplied. Changing the
// password requires the current one; submitting the current password as the
// new one is a no-op and does not re-hash.
func (e *Engine) UpdateProfile(ctx context.Context, userID uint64, args UpdateProfileArgs) (*model.User, error) {
	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.UserNotFound()
		}
		return nil, err
	}

	changed := false
	if args.NewPassword != "" {
		if !utils.ComparePasswordWithHash(args.OldPassword, u.PasswordHash) {
			return nil, apperr.WrongOldPassword()
		}
		if !utils.ComparePasswordWithHash(args.NewPassword, u.PasswordHash) {
			hash, err := utils.CreatePasswordHash(args.NewPassword, e.bcryptCost)
			if err != nil {
				return nil, err
			}
			u.PasswordHash = hash
			changed = true
		}
	}
	if args.Email != nil && *args.Email != u.Email {
		u.Email = *args.Email
		changed = true
	}
	if args.Username != nil && *args.Username != u.Username {
		u.Username = *args.Username
		changed = true
	}
	if args.SetLang {
		u.Lang = args.Lang
		changed = true
	}
	if args.SetTimezone {
		u.Timezone = args.Timezone
		changed = true
	}

	if !changed {
		return u, nil
	}
	if err := e.users.Update(ctx, u); err != nil {
		return nil, err
	}
	e.clearUser(ctx, u.ID)
	return u, nil
}
