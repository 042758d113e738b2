package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/revline/identity-engine/internal/middleware"
	"github.com/revline/identity-engine/internal/repository"
)

// ProjectHandler serves the public project listing.
type ProjectHandler struct {
	Projects repository.ProjectStore
}

func NewProjectHandler(projects repository.ProjectStore) *ProjectHandler {
	return &ProjectHandler{Projects: projects}
}

type projectView struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	ClientID string `json:"clientId"`
}

// ListPublic returns every project flagged public, with names localized to
// the caller's resolved locale.
func (h *ProjectHandler) ListPublic(c echo.Context) error {
	id := middleware.CurrentIdentity(c)

	projects, err := h.Projects.ListPublic(c.Request().Context())
	if err != nil {
		return err
	}
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, projectView{
			ID:       p.ID,
			Name:     p.DisplayName(id.Locale),
			ClientID: p.ClientID,
		})
	}
	return c.JSON(http.StatusOK, views)
}
