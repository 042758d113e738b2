// Package engine is the identity orchestrator: it coordinates sign-up,
// sign-in, verification and password recovery across the repositories, the
// token service, the two-factor bridge and the notification sender. It works
// against the raw store and invalidates cache entries explicitly, because
// credential paths need the password hash that the cache strips.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/notifier"
	"github.com/revline/identity-engine/internal/repository"
	"github.com/revline/identity-engine/internal/token"
	"github.com/revline/identity-engine/internal/twofactor"
	"github.com/revline/identity-engine/internal/utils"
)

// UserCacheInvalidator clears cached users after mutations. Satisfied by
// *cache.UserCache.
type UserCacheInvalidator interface {
	ClearByID(ctx context.Context, id uint64) error
}

// Engine coordinates the identity flows. TwoFactor and Sender are optional:
// with either missing there is no verification channel and sign-up
// auto-verifies.
type Engine struct {
	users     repository.UserStore
	userCache UserCacheInvalidator
	tokens    *token.Service
	twoFactor twofactor.Bridge
	sender    notifier.Sender
	templates notifier.TemplateStore

	bcryptCost    int
	verifyEmails  bool
	defaultLocale string
	log           zerolog.Logger
}

func New(users repository.UserStore, userCache UserCacheInvalidator, tokens *token.Service,
	twoFactor twofactor.Bridge, sender notifier.Sender, templates notifier.TemplateStore,
	bcryptCost int, verifyEmails bool, defaultLocale string, log zerolog.Logger) *Engine {
	if templates == nil {
		templates = notifier.NoTemplates{}
	}
	return &Engine{
		users:         users,
		userCache:     userCache,
		tokens:        tokens,
		twoFactor:     twoFactor,
		sender:        sender,
		templates:     templates,
		bcryptCost:    bcryptCost,
		verifyEmails:  verifyEmails,
		defaultLocale: defaultLocale,
		log:           log,
	}
}

// Tokens exposes the token service for handlers that combine credential
// checks with issuance.
func (e *Engine) Tokens() *token.Service { return e.tokens }

// SignIn verifies credentials within one project. It does not mint tokens;
// the caller combines it with the token service.
func (e *Engine) SignIn(ctx context.Context, projectID uint64, email, password string) (*model.User, error) {
	u, err := e.users.GetByEmail(ctx, projectID, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.UserNotFound()
		}
		return nil, err
	}
	if !utils.ComparePasswordWithHash(password, u.PasswordHash) {
		return nil, apperr.WrongPassword()
	}
	if !u.Verified() {
		return nil, apperr.EmailNotVerified()
	}
	return u, nil
}

// SignUpArgs are the user-supplied fields of a registration.
type SignUpArgs struct {
	Email    string
	Username string
	Password string
	Lang     string
}

// SignUp creates a user in the project. When a verification channel exists
// (two-factor bridge plus sender, and verification not disabled), the user
// starts unverified and a code is dispatched bound to the given operation.
// Without a channel, or when dispatch was not actually attempted, the user
// is auto-verified immediately rather than left permanently unverifiable.
func (e *Engine) SignUp(ctx context.Context, project *model.Project, args SignUpArgs, op model.Operation) (*model.User, error) {
	hash, err := utils.CreatePasswordHash(args.Password, e.bcryptCost)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(args.Email))
	username := strings.TrimSpace(args.Username)
	if username == "" {
		// Default the username to the email's local part.
		if at := strings.Index(email, "@"); at > 0 {
			username = email[:at]
		} else {
			username = email
		}
	}

	canVerify := e.verifyEmails && e.twoFactor != nil && e.sender != nil
	now := time.Now().UTC()
	u := &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Roles:        model.NewRoleSet(model.RoleUser),
		ProjectID:    project.ID,
	}
	if args.Lang != "" {
		u.Lang = &args.Lang
	}
	if !canVerify {
		u.EmailVerifiedAt = &now
	}
	if err := e.users.Create(ctx, u); err != nil {
		return nil, err
	}
	if !canVerify {
		return u, nil
	}

	if err := e.dispatchCode(ctx, project, u, op, ""); err != nil {
		// No verification email went out; auto-verify so the account is
		// usable and let the operator see why in the logs.
		e.log.Error().Err(err).
			Uint64("user_id", u.ID).
			Str("operation", string(op)).
			Msg("verification dispatch failed, auto-verifying user")
		verifiedAt := time.Now().UTC()
		u.EmailVerifiedAt = &verifiedAt
		if err := e.users.Update(ctx, u); err != nil {
			return nil, err
		}
		e.clearUser(ctx, u.ID)
	}
	return u, nil
}

// CompleteSignUp validates a verification code and stamps the user's email
// as verified. An unknown or consumed code is a no-op nil return; the
// handler maps that to UserNotFound.
func (e *Engine) CompleteSignUp(ctx context.Context, projectID uint64, code string) (*model.User, error) {
	if e.twoFactor == nil {
		return nil, nil
	}
	userID, err := e.twoFactor.ValidateCode(ctx, code, projectID, model.OpCompleteSignUp)
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
	if !u.Verified() {
		now := time.Now().UTC()
		u.EmailVerifiedAt = &now
		if err := e.users.Update(ctx, u); err != nil {
			return nil, err
		}
		e.clearUser(ctx, u.ID)
	}
	return u, nil
}

// dispatchCode generates a code for the operation and sends the rendered
// notification. A (nil, nil) send result means delivery was not attempted
// and is reported as an error to the caller.
func (e *Engine) dispatchCode(ctx context.Context, project *model.Project, u *model.User, op model.Operation, redirectURI string) error {
	code, err := e.twoFactor.GenerateCode(ctx, u, op)
	if err != nil {
		return err
	}
	locale := e.defaultLocale
	if u.Lang != nil && *u.Lang != "" {
		locale = *u.Lang
	}
	subject, html, text, err := notifier.Render(ctx, e.templates, project.ID, locale, op, notifier.TemplateData{
		Code:        code,
		Username:    u.Username,
		Email:       u.Email,
		ProjectName: project.DisplayName(locale),
		RedirectURI: redirectURI,
	})
	if err != nil {
		return err
	}
	res, err := e.sender.Send(ctx, notifier.Notification{
		Recipients: []notifier.Recipient{{Email: u.Email, Name: u.Username}},
		Subject:    subject,
		HTML:       html,
		Text:       text,
		ProjectID:  project.ID,
		Operation:  op,
	})
	if err != nil {
		return err
	}
	if res == nil {
		return errors.New("notification delivery not attempted")
	}
	return nil
}

func (e *Engine) clearUser(ctx context.Context, id uint64) {
	if e.userCache == nil {
		return
	}
	if err := e.userCache.ClearByID(ctx, id); err != nil {
		e.log.Error().Err(err).Uint64("user_id", id).Msg("user cache invalidation failed")
	}
}
