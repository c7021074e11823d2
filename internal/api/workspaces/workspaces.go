// Package workspaces implements workspace CRUD and membership management.
//
// Authorization model: listing and reading need viewer, metadata updates need
// admin, deletion needs owner. Member management needs admin, except that any
// member may remove themselves to leave a workspace. Two owner guards are
// enforced here: the owner's own role can never be changed, and the owner can
// never be removed or leave. Workspace ownership transfer is not supported;
// the owner exits only by deleting the workspace.
package workspaces

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apivault/apivault/internal/api/respond"
	"github.com/apivault/apivault/internal/db/models"
	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/middleware"
	"github.com/apivault/apivault/internal/rbac"
)

// Handler serves workspace and membership endpoints
type Handler struct {
	workspaces *repositories.WorkspaceRepository
	users      *repositories.UserRepository
	roles      *repositories.RoleRepository
}

// NewHandler creates a workspaces handler
func NewHandler(workspaces *repositories.WorkspaceRepository, users *repositories.UserRepository, roles *repositories.RoleRepository) *Handler {
	return &Handler{workspaces: workspaces, users: users, roles: roles}
}

type createWorkspaceRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=100"`
	Description *string `json:"description"`
	Type        string  `json:"type"`
}

// Create handles POST /api/v1/workspaces
func (h *Handler) Create(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid workspace payload: "+err.Error())
		return
	}

	if req.Type == "" {
		req.Type = models.WorkspaceTypeTeam
	}
	if !models.ValidWorkspaceType(req.Type) {
		respond.BadRequest(c, "Workspace type must be personal, team, or private")
		return
	}

	ws := &models.Workspace{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		OwnerID:     middleware.UserIDFromContext(c),
	}
	if err := h.workspaces.Create(c.Request.Context(), ws); err != nil {
		respond.Internal(c, "Failed to create workspace")
		return
	}

	respond.Created(c, "Workspace created", ws)
}

// List handles GET /api/v1/workspaces. Only workspaces the caller belongs to
// are returned; there is no global listing.
func (h *Handler) List(c *gin.Context) {
	workspaces, err := h.workspaces.ListForUser(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Internal(c, "Failed to list workspaces")
		return
	}
	respond.OK(c, "", workspaces)
}

// Get handles GET /api/v1/workspaces/:id (viewer, enforced by router middleware)
func (h *Handler) Get(c *gin.Context) {
	ws, err := h.workspaces.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Internal(c, "Failed to load workspace")
		return
	}
	if ws == nil {
		respond.NotFound(c, "Workspace not found", "WORKSPACE_NOT_FOUND")
		return
	}
	respond.OK(c, "", ws)
}

type updateWorkspaceRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
}

// Update handles PUT /api/v1/workspaces/:id (admin)
func (h *Handler) Update(c *gin.Context) {
	var req updateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid workspace payload")
		return
	}
	if req.Type != nil && !models.ValidWorkspaceType(*req.Type) {
		respond.BadRequest(c, "Workspace type must be personal, team, or private")
		return
	}

	update := models.WorkspaceUpdate{Name: req.Name, Description: req.Description, Type: req.Type}
	if update.IsEmpty() {
		respond.BadRequest(c, "No fields to update")
		return
	}

	id := c.Param("id")
	if err := h.workspaces.Update(c.Request.Context(), id, update); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Workspace not found", "WORKSPACE_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to update workspace")
		return
	}

	ws, err := h.workspaces.GetByID(c.Request.Context(), id)
	if err != nil {
		respond.Internal(c, "Failed to load updated workspace")
		return
	}
	respond.OK(c, "Workspace updated", ws)
}

// Delete handles DELETE /api/v1/workspaces/:id (owner). Cascades remove
// members, collections, requests, environments, and history.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.workspaces.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Workspace not found", "WORKSPACE_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to delete workspace")
		return
	}
	respond.OK(c, "Workspace deleted", nil)
}

// ListMembers handles GET /api/v1/workspaces/:id/members (viewer)
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.workspaces.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Internal(c, "Failed to list members")
		return
	}
	respond.OK(c, "", members)
}

type addMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// AddMember handles POST /api/v1/workspaces/:id/members (admin). New members
// join by email with any role except owner.
func (h *Handler) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid member payload: "+err.Error())
		return
	}
	if _, err := rbac.ParseRole(req.Role); err != nil {
		respond.BadRequest(c, "Unknown role: "+req.Role)
		return
	}
	if req.Role == rbac.RoleOwner.String() {
		respond.BadRequest(c, "A workspace has exactly one owner")
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respond.Internal(c, "Failed to look up user")
		return
	}
	if user == nil {
		respond.NotFound(c, "No account with that email", "USER_NOT_FOUND")
		return
	}

	workspaceID := c.Param("id")
	if existing, err := h.workspaces.GetMembership(c.Request.Context(), workspaceID, user.ID); err != nil {
		respond.Internal(c, "Failed to check membership")
		return
	} else if existing != nil {
		respond.Error(c, http.StatusConflict, "User is already a member", "ALREADY_MEMBER")
		return
	}

	role, err := h.roles.GetByName(c.Request.Context(), req.Role)
	if err != nil || role == nil {
		respond.Internal(c, "Failed to resolve role")
		return
	}

	member, err := h.workspaces.AddMember(c.Request.Context(), workspaceID, user.ID, role.ID)
	if err != nil {
		respond.Internal(c, "Failed to add member")
		return
	}
	respond.Created(c, "Member added", member)
}

type updateMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateMemberRole handles PUT /api/v1/workspaces/:id/members/:userId (admin)
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid member payload")
		return
	}
	if _, err := rbac.ParseRole(req.Role); err != nil {
		respond.BadRequest(c, "Unknown role: "+req.Role)
		return
	}
	if req.Role == rbac.RoleOwner.String() {
		respond.BadRequest(c, "A workspace has exactly one owner")
		return
	}

	workspaceID := c.Param("id")
	targetID := c.Param("userId")

	ws, err := h.workspaces.GetByID(c.Request.Context(), workspaceID)
	if err != nil || ws == nil {
		respond.Internal(c, "Failed to load workspace")
		return
	}
	if targetID == ws.OwnerID {
		respond.Error(c, http.StatusForbidden, "The owner's role cannot be changed", "CANNOT_CHANGE_OWNER_ROLE")
		return
	}

	role, err := h.roles.GetByName(c.Request.Context(), req.Role)
	if err != nil || role == nil {
		respond.Internal(c, "Failed to resolve role")
		return
	}

	if err := h.workspaces.UpdateMemberRole(c.Request.Context(), workspaceID, targetID, role.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Membership not found", "MEMBER_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to update member role")
		return
	}
	respond.OK(c, "Member role updated", nil)
}

// RemoveMember handles DELETE /api/v1/workspaces/:id/members/:userId.
// Members may remove themselves to leave a workspace, except the owner;
// removing anyone else requires the admin capability.
func (h *Handler) RemoveMember(c *gin.Context) {
	workspaceID := c.Param("id")
	targetID := c.Param("userId")
	actorID := middleware.UserIDFromContext(c)

	actorRole := rbac.RoleUnknown
	var actorPerms map[string]bool
	if m := middleware.MembershipFromContext(c); m != nil {
		actorRole, _ = rbac.ParseRole(m.RoleName)
		actorPerms = m.Permissions
	}

	if targetID == actorID {
		if !rbac.CanActOnSelf(actorID, targetID, actorRole) {
			respond.Error(c, http.StatusForbidden, "The owner cannot be removed", "CANNOT_REMOVE_OWNER")
			return
		}
	} else {
		if !rbac.HasCapability(actorPerms, "admin") {
			respond.Forbidden(c, "Insufficient permissions")
			return
		}
		ws, err := h.workspaces.GetByID(c.Request.Context(), workspaceID)
		if err != nil || ws == nil {
			respond.Internal(c, "Failed to load workspace")
			return
		}
		if targetID == ws.OwnerID {
			respond.Error(c, http.StatusForbidden, "The owner cannot be removed", "CANNOT_REMOVE_OWNER")
			return
		}
	}

	if err := h.workspaces.RemoveMember(c.Request.Context(), workspaceID, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Membership not found", "MEMBER_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to remove member")
		return
	}
	respond.OK(c, "Member removed", nil)
}
