package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/revline/identity-engine/internal/engine"
	"github.com/revline/identity-engine/internal/middleware"
	"github.com/revline/identity-engine/internal/model"
)

// ProfileHandler serves the authenticated user's own record.
type ProfileHandler struct {
	Engine *engine.Engine
}

func NewProfileHandler(eng *engine.Engine) *ProfileHandler {
	return &ProfileHandler{Engine: eng}
}

// userView is the public shape of a user. Timestamps are rendered in the
// user's own timezone and the password hash never leaves the server.
type userView struct {
	ID              uint64   `json:"id"`
	Email           string   `json:"email"`
	Username        string   `json:"username"`
	Roles           []string `json:"roles"`
	EmailVerifiedAt *string  `json:"emailVerifiedAt"`
	Lang            *string  `json:"lang"`
	Timezone        *string  `json:"timezone"`
	ProjectID       uint64   `json:"projectId"`
	CreatedAt       string   `json:"createdAt"`
}

func newUserView(u *model.User, loc *time.Location) userView {
	roles := u.Roles.Slice()
	roleNames := make([]string, len(roles))
	for i, r := range roles {
		roleNames[i] = string(r)
	}
	v := userView{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Roles:     roleNames,
		Lang:      u.Lang,
		Timezone:  u.Timezone,
		ProjectID: u.ProjectID,
		CreatedAt: u.CreatedAt.In(loc).Format(time.RFC3339),
	}
	if u.EmailVerifiedAt != nil {
		s := u.EmailVerifiedAt.In(loc).Format(time.RFC3339)
		v.EmailVerifiedAt = &s
	}
	return v
}

// updateProfileReq keeps lang and timezone as raw JSON so an absent field
// can be told apart from an explicit null. Null clears the value, absence
// leaves it untouched.
type updateProfileReq struct {
	Email           *string         `json:"email"`
	Username        *string         `json:"username"`
	Password        string          `json:"password,omitempty"`
	ConfirmPassword string          `json:"confirmPassword,omitempty"`
	OldPassword     string          `json:"oldPassword,omitempty"`
	Lang            json.RawMessage `json:"lang,omitempty"`
	Timezone        json.RawMessage `json:"timezone,omitempty"`
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(c echo.Context) error {
	id := middleware.CurrentIdentity(c)
	return c.JSON(http.StatusOK, newUserView(id.User, id.Timezone()))
}

// Update applies a partial profile change to the caller's record.
func (h *ProfileHandler) Update(c echo.Context) error {
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Password != "" && req.Password != req.ConfirmPassword {
		return echo.NewHTTPError(http.StatusBadRequest, "passwords do not match")
	}

	args := engine.UpdateProfileArgs{
		Email:       normalizeEmail(req.Email),
		Username:    req.Username,
		NewPassword: req.Password,
		OldPassword: req.OldPassword,
	}
	var err error
	if args.SetLang, args.Lang, err = optionalString(req.Lang); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "lang must be a string or null")
	}
	if args.SetTimezone, args.Timezone, err = optionalString(req.Timezone); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "timezone must be a string or null")
	}
	if args.SetTimezone && args.Timezone != nil {
		if _, err := time.LoadLocation(*args.Timezone); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown timezone")
		}
	}

	id := middleware.CurrentIdentity(c)
	u, err := h.Engine.UpdateProfile(c.Request().Context(), id.User.ID, args)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserView(u, id.Timezone()))
}

func normalizeEmail(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.ToLower(strings.TrimSpace(*p))
	return &s
}

// optionalString decodes a raw JSON field that may be absent, null or a
// string. set reports whether the field was present at all.
func optionalString(raw json.RawMessage) (set bool, val *string, err error) {
	if len(raw) == 0 {
		return false, nil, nil
	}
	if string(raw) == "null" {
		return true, nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, nil, err
	}
	return true, &s, nil
}
