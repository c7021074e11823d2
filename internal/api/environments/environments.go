// Package environments implements environment endpoints. Environments live
// under a workspace; listing and creation go through the workspace route and
// its role middleware, while reads and writes on an individual environment
// derive the workspace from the environment row.
package environments

import (
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/apivault/apivault/internal/api/respond"
	"github.com/apivault/apivault/internal/db/models"
	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/middleware"
	"github.com/apivault/apivault/internal/rbac"
)

// Handler serves environment endpoints
type Handler struct {
	environments *repositories.EnvironmentRepository
	workspaces   *repositories.WorkspaceRepository
}

// NewHandler creates an environments handler
func NewHandler(environments *repositories.EnvironmentRepository, workspaces *repositories.WorkspaceRepository) *Handler {
	return &Handler{environments: environments, workspaces: workspaces}
}

func (h *Handler) authorize(c *gin.Context, environmentID string, required rbac.Role) (*models.Environment, bool) {
	env, err := h.environments.GetByID(c.Request.Context(), environmentID)
	if err != nil {
		respond.Internal(c, "Failed to load environment")
		return nil, false
	}
	if env == nil {
		respond.NotFound(c, "Environment not found", "ENVIRONMENT_NOT_FOUND")
		return nil, false
	}
	if _, ok := middleware.AuthorizeWorkspace(c, h.workspaces, env.WorkspaceID, middleware.UserIDFromContext(c), required); !ok {
		return nil, false
	}
	return env, true
}

type createEnvironmentRequest struct {
	Name      string            `json:"name" binding:"required,min=1,max=100"`
	Variables map[string]string `json:"variables"`
}

// Create handles POST /api/v1/workspaces/:id/environments (editor, enforced
// by router middleware)
func (h *Handler) Create(c *gin.Context) {
	var req createEnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid environment payload: "+err.Error())
		return
	}
	if req.Variables == nil {
		req.Variables = map[string]string{}
	}

	env := &models.Environment{
		Name:        req.Name,
		WorkspaceID: c.Param("id"),
		Variables:   req.Variables,
	}
	if err := h.environments.Create(c.Request.Context(), env); err != nil {
		respond.Internal(c, "Failed to create environment")
		return
	}
	respond.Created(c, "Environment created", env)
}

// ListByWorkspace handles GET /api/v1/workspaces/:id/environments (viewer)
func (h *Handler) ListByWorkspace(c *gin.Context) {
	environments, err := h.environments.ListByWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Internal(c, "Failed to list environments")
		return
	}
	respond.OK(c, "", environments)
}

// Get handles GET /api/v1/environments/:id
func (h *Handler) Get(c *gin.Context) {
	env, ok := h.authorize(c, c.Param("id"), rbac.RoleViewer)
	if !ok {
		return
	}
	respond.OK(c, "", env)
}

type updateEnvironmentRequest struct {
	Name      *string           `json:"name"`
	Variables map[string]string `json:"variables"`
}

// Update handles PUT /api/v1/environments/:id. Omitting variables leaves them
// untouched; sending an empty object clears them.
func (h *Handler) Update(c *gin.Context) {
	var req updateEnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid environment payload")
		return
	}

	update := models.EnvironmentUpdate{Name: req.Name, Variables: req.Variables}
	if update.IsEmpty() {
		respond.BadRequest(c, "No fields to update")
		return
	}

	env, ok := h.authorize(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}

	if err := h.environments.Update(c.Request.Context(), env.ID, update); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Environment not found", "ENVIRONMENT_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to update environment")
		return
	}

	updated, err := h.environments.GetByID(c.Request.Context(), env.ID)
	if err != nil {
		respond.Internal(c, "Failed to load updated environment")
		return
	}
	respond.OK(c, "Environment updated", updated)
}

// Delete handles DELETE /api/v1/environments/:id
func (h *Handler) Delete(c *gin.Context) {
	env, ok := h.authorize(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}
	if err := h.environments.Delete(c.Request.Context(), env.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Environment not found", "ENVIRONMENT_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to delete environment")
		return
	}
	respond.OK(c, "Environment deleted", nil)
}
