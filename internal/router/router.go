// Package router wires the HTTP surface: route registration with per-route
// guard options and the error handler translating domain errors into the
// {code, message, metadata} body every client sees.
package router

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/revline/identity-engine/internal/apperr"
	"github.com/revline/identity-engine/internal/handler"
	"github.com/revline/identity-engine/internal/middleware"
	"github.com/revline/identity-engine/internal/model"
)

// Handlers collects everything the route table needs.
type Handlers struct {
	Auth    *handler.AuthHandler
	Profile *handler.ProfileHandler
	Project *handler.ProjectHandler
	Admin   *handler.AdminHandler
	Health  echo.HandlerFunc
}

// Register builds the route table. Each route names its guard options at
// registration time, so the full access policy of the service is readable
// from this one function.
func Register(e *echo.Echo, g *middleware.Guard, h Handlers, rateLimit echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health, g.Middleware(middleware.GuardOptions{Skip: true}))

	v1 := e.Group("/v1")

	// Credential endpoints: project secret required, no user expected yet.
	anon := middleware.GuardOptions{AllowEmptyUser: true}
	auth := v1.Group("/auth")
	if rateLimit != nil {
		auth.Use(rateLimit)
	}
	auth.POST("/sign-in", h.Auth.SignIn, g.Middleware(anon))
	auth.POST("/sign-up", h.Auth.SignUp, g.Middleware(anon))
	auth.POST("/complete-sign-up", h.Auth.CompleteSignUp, g.Middleware(anon))
	auth.POST("/forgot-password", h.Auth.ForgotPassword, g.Middleware(anon))
	auth.POST("/complete-forgot-password", h.Auth.CompleteForgotPassword, g.Middleware(anon))
	auth.POST("/refresh-tokens", h.Auth.RefreshTokens, g.Middleware(anon))
	// Sign-out may arrive with an already rotated or expired access token;
	// the refresh token in the body is what gets revoked.
	auth.POST("/sign-out", h.Auth.SignOut, g.Middleware(middleware.GuardOptions{
		AllowEmptyUser:   true,
		SkipSessionCheck: true,
	}))

	// Project listing is public and does not need the client secret.
	v1.GET("/projects", h.Project.ListPublic, g.Middleware(middleware.GuardOptions{
		AllowMissingClientSecret: true,
		AllowEmptyUser:           true,
	}))

	// Profile routes require a live authenticated user.
	v1.GET("/profile", h.Profile.Get, g.Middleware(middleware.GuardOptions{
		Roles: []model.Role{model.RoleUser, model.RoleManager, model.RoleAdmin},
	}))
	v1.PUT("/profile", h.Profile.Update, g.Middleware(middleware.GuardOptions{
		Roles: []model.Role{model.RoleUser, model.RoleManager, model.RoleAdmin},
	}))

	// User administration is admin-only; the admin secret header also opens
	// these through elevation.
	adminOnly := g.Middleware(middleware.GuardOptions{Roles: []model.Role{model.RoleAdmin}})
	v1.PUT("/users/:id/roles", h.Admin.AssignRoles, adminOnly)
	v1.POST("/users/:id/revoke", h.Admin.Revoke, adminOnly)
	v1.POST("/users/:id/restore", h.Admin.Restore, adminOnly)
}

// ErrorHandler returns the echo error handler serializing domain errors.
// Unknown errors are logged with their cause and surface as a plain 500
// without internals.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status = http.StatusInternalServerError
			body   any
		)
		if domain := apperr.As(err); domain != nil {
			status = domain.HTTPStatus
			body = domain
		} else {
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				status = httpErr.Code
				msg, ok := httpErr.Message.(string)
				if !ok {
					msg = http.StatusText(status)
				}
				body = map[string]any{"code": "BAD_REQUEST", "message": msg}
				if status >= http.StatusInternalServerError {
					body = map[string]any{"code": "INTERNAL", "message": http.StatusText(status)}
				}
			} else {
				log.Error().Err(err).
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Msg("unhandled error")
				body = map[string]any{"code": "INTERNAL", "message": "internal server error"}
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
