// Package apperr defines the domain error taxonomy of the engine. Every
// failure that can cross the HTTP boundary is expressed as an *Error with a
// stable machine-readable code, a human-readable message and a suggested
// HTTP status. Handlers never build ad-hoc error bodies; the echo error
// handler serializes these values as {code, message, metadata}.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a rich domain error carrying a stable code and optional metadata.
type Error struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Err        error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is matches errors by code so that errors.Is works across fresh instances.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithMeta attaches a metadata entry and returns the error for chaining.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// WithCause records the underlying error without changing the public shape.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func newErr(code, message string, status int) func() *Error {
	return func() *Error {
		return &Error{Code: code, Message: message, HTTPStatus: status}
	}
}

// Constructors for the engine's error taxonomy. Each call returns a fresh
// instance so metadata never leaks between requests.
var (
	Forbidden                = newErr("FORBIDDEN", "forbidden", http.StatusForbidden)
	EmailNotVerified         = newErr("EMAIL_NOT_VERIFIED", "email is not verified", http.StatusBadRequest)
	SessionBlocked           = newErr("YOUR_SESSION_HAS_BEEN_BLOCKED", "your session has been blocked", http.StatusBadRequest)
	SessionExpired           = newErr("SESSION_EXPIRED", "session expired", http.StatusBadRequest)
	InvalidRefreshSession    = newErr("INVALID_REFRESH_SESSION", "invalid refresh session", http.StatusBadRequest)
	RefreshTokenNotProvided  = newErr("REFRESH_TOKEN_NOT_PROVIDED", "refresh token not provided", http.StatusBadRequest)
	AccessTokenExpired       = newErr("ACCESS_TOKEN_EXPIRED", "access token expired", http.StatusUnauthorized)
	BadAccessToken           = newErr("BAD_ACCESS_TOKEN", "bad access token", http.StatusBadRequest)
	UserNotFound             = newErr("USER_NOT_FOUND", "user not found", http.StatusBadRequest)
	WrongPassword            = newErr("WRONG_PASSWORD", "wrong password", http.StatusBadRequest)
	WrongOldPassword         = newErr("WRONG_OLD_PASSWORD", "wrong old password", http.StatusBadRequest)
	EmailIsExists            = newErr("EMAIL_IS_EXISTS", "user with this email already exists", http.StatusBadRequest)
	UserIsExists             = newErr("USER_IS_EXISTS", "user with this username already exists", http.StatusBadRequest)
	NonExistentRoleSpecified = newErr("NON_EXISTENT_ROLE_SPECIFIED", "non-existent role specified", http.StatusBadRequest)
	VerificationCodeNotFound = newErr("VERIFICATION_CODE_NOT_FOUND", "verification code not found", http.StatusBadRequest)
	ProjectNotFound          = newErr("PROJECT_NOT_FOUND", "project not found", http.StatusBadRequest)
)

// As extracts an *Error from an error chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// CodeOf returns the domain code of err, or empty when err is not a domain error.
func CodeOf(err error) string {
	if e := As(err); e != nil {
		return e.Code
	}
	return ""
}
