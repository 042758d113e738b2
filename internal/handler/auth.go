package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/config"
	"github.com/revline/identity-engine/internal/engine"
	"github.com/revline/identity-engine/internal/middleware"
	"github.com/revline/identity-engine/internal/model"
	"github.com/revline/identity-engine/internal/repository"
	"github.com/revline/identity-engine/internal/token"
)

// refreshCookie is the cookie carrying the refresh token between calls.
const refreshCookie = "refreshToken"

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg    *config.Config
	Engine *engine.Engine
	Users  repository.UserStore
}

func NewAuthHandler(cfg *config.Config, eng *engine.Engine, users repository.UserStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Engine: eng, Users: users}
}

// ----- DTOs -----

type signInReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Fingerprint string `json:"fingerprint"`
}
type signUpReq struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Username        string `json:"username,omitempty"`
	Fingerprint     string `json:"fingerprint"`
}
type completeSignUpReq struct {
	Code        string `json:"code"`
	Fingerprint string `json:"fingerprint"`
}
type signOutReq struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}
type forgotPasswordReq struct {
	Email       string `json:"email"`
	RedirectURI string `json:"redirectUri,omitempty"`
}
type completeForgotPasswordReq struct {
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Fingerprint     string `json:"fingerprint"`
}
type refreshTokensReq struct {
	RefreshToken string `json:"refreshToken,omitempty"`
	Fingerprint  string `json:"fingerprint"`
}

type authResp struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         userView `json:"user"`
}
type messageResp struct {
	Message string `json:"message"`
}

// SignIn verifies credentials and issues a fresh token pair.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email/password required")
	}

	id := middleware.CurrentIdentity(c)
	ctx := c.Request().Context()

	u, err := h.Engine.SignIn(ctx, id.Project.ID, req.Email, req.Password)
	if err != nil {
		return err
	}
	pair, err := h.Engine.Tokens().IssueForUser(ctx, u, device(c, req.Fingerprint))
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, pair)
	return c.JSON(http.StatusOK, authResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         newUserView(u, id.Timezone()),
	})
}

// SignUp registers a user in the resolved project and issues tokens
// immediately. When verification is configured the returned user starts
// unverified and the code goes out by email.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email/password required")
	}
	if req.Password != req.ConfirmPassword {
		return echo.NewHTTPError(http.StatusBadRequest, "passwords do not match")
	}

	id := middleware.CurrentIdentity(c)
	ctx := c.Request().Context()

	u, err := h.Engine.SignUp(ctx, id.Project, engine.SignUpArgs{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Lang:     id.Locale,
	}, model.OpCompleteSignUp)
	if err != nil {
		return err
	}
	pair, err := h.Engine.Tokens().IssueForUser(ctx, u, device(c, req.Fingerprint))
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, pair)
	return c.JSON(http.StatusCreated, authResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         newUserView(u, id.Timezone()),
	})
}

// CompleteSignUp consumes a verification code and issues tokens for the now
// verified user.
func (h *AuthHandler) CompleteSignUp(c echo.Context) error {
	var req completeSignUpReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code required")
	}

	id := middleware.CurrentIdentity(c)
	ctx := c.Request().Context()

	u, err := h.Engine.CompleteSignUp(ctx, id.Project.ID, strings.TrimSpace(req.Code))
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.UserNotFound()
	}
	pair, err := h.Engine.Tokens().IssueForUser(ctx, u, device(c, req.Fingerprint))
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, pair)
	return c.JSON(http.StatusOK, authResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         newUserView(u, id.Timezone()),
	})
}

// SignOut revokes the session behind a refresh token. The token is read
// from the body first and from the cookie as a fallback.
func (h *AuthHandler) SignOut(c echo.Context) error {
	var req signOutReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		if cookie, err := c.Cookie(refreshCookie); err == nil {
			refresh = cookie.Value
		}
	}
	if refresh == "" {
		return apperr.RefreshTokenNotProvided()
	}
	if err := h.Engine.Tokens().DisableByRefreshToken(c.Request().Context(), refresh); err != nil {
		return err
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, messageResp{Message: "signed out"})
}

// ForgotPassword starts the password recovery flow.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email required")
	}

	id := middleware.CurrentIdentity(c)
	if err := h.Engine.ForgotPassword(c.Request().Context(), id.Project, req.Email, req.RedirectURI); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResp{Message: "recovery code sent"})
}

// CompleteForgotPassword consumes a recovery code, sets the new password
// and signs the user in.
func (h *AuthHandler) CompleteForgotPassword(c echo.Context) error {
	var req completeForgotPasswordReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code required")
	}
	if req.Password == "" || req.Password != req.ConfirmPassword {
		return echo.NewHTTPError(http.StatusBadRequest, "passwords do not match")
	}

	id := middleware.CurrentIdentity(c)
	ctx := c.Request().Context()

	u, err := h.Engine.CompleteForgotPassword(ctx, id.Project.ID, strings.TrimSpace(req.Code), req.Password)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.UserNotFound()
	}
	pair, err := h.Engine.Tokens().IssueForUser(ctx, u, device(c, req.Fingerprint))
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, pair)
	return c.JSON(http.StatusOK, authResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         newUserView(u, id.Timezone()),
	})
}

// RefreshTokens rotates a refresh session. The old token is read from the
// body or the cookie; the successor session stays pinned to the project the
// session was issued under, whatever the request headers claim.
func (h *AuthHandler) RefreshTokens(c echo.Context) error {
	var req refreshTokensReq
	_ = c.Bind(&req)
	refresh := strings.TrimSpace(req.RefreshToken)
	if refresh == "" {
		if cookie, err := c.Cookie(refreshCookie); err == nil {
			refresh = cookie.Value
		}
	}
	if refresh == "" {
		return apperr.RefreshTokenNotProvided()
	}

	id := middleware.CurrentIdentity(c)
	ctx := c.Request().Context()

	pair, err := h.Engine.Tokens().IssueForRefreshToken(ctx, refresh, device(c, req.Fingerprint))
	if err != nil {
		return err
	}
	u, err := h.Users.GetByID(ctx, pair.Session.UserID)
	if err != nil {
		return err
	}
	h.setRefreshCookie(c, pair)
	return c.JSON(http.StatusOK, authResp{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         newUserView(u, id.Timezone()),
	})
}

// device captures the caller's fingerprint, IP and user agent for session
// binding.
func device(c echo.Context, fingerprint string) token.Device {
	return token.Device{
		Fingerprint: strings.TrimSpace(fingerprint),
		IP:          c.RealIP(),
		UserAgent:   c.Request().UserAgent(),
	}
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, pair *token.Pair) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(h.Engine.Tokens().RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.Cfg.Env != "local",
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.Env != "local",
		SameSite: http.SameSiteLaxMode,
	})
}
