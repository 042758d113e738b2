package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/revline/identity-engine/internal/engine"
	"github.com/revline/identity-engine/internal/middleware"
)

// AdminHandler exposes the user administration surface: role assignment and
// account revocation. Routes mount it behind an admin-only guard.
type AdminHandler struct {
	Engine *engine.Engine
}

func NewAdminHandler(eng *engine.Engine) *AdminHandler {
	return &AdminHandler{Engine: eng}
}

type assignRolesReq struct {
	Roles []string `json:"roles"`
}

func userIDParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}

// AssignRoles replaces the stored role set of a user.
func (h *AdminHandler) AssignRoles(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	var req assignRolesReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	id := middleware.CurrentIdentity(c)
	u, err := h.Engine.AssignRoles(c.Request().Context(), userID, req.Roles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserView(u, id.Timezone()))
}

// Revoke blocks a user account.
func (h *AdminHandler) Revoke(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	id := middleware.CurrentIdentity(c)
	u, err := h.Engine.RevokeUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserView(u, id.Timezone()))
}

// Restore lifts a revocation.
func (h *AdminHandler) Restore(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	id := middleware.CurrentIdentity(c)
	u, err := h.Engine.RestoreUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserView(u, id.Timezone()))
}
