// rbac.go provides workspace-scoped authorization. Access decisions follow the
// role hierarchy in internal/rbac; non-members receive 404 rather than 403 so
// workspace existence is never leaked outside its membership.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/apivault/apivault/internal/db/models"
	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/rbac"
)

// Context keys set by RequireWorkspaceRole
const (
	MembershipKey    = "membership"
	WorkspaceRoleKey = "workspace_role"
)

// RequireWorkspaceRole returns middleware that resolves the caller's membership
// in the workspace named by the route parameter and enforces the minimum role.
// On success the membership is stored in the context for the handler.
func RequireWorkspaceRole(workspaceRepo *repositories.WorkspaceRepository, paramName string, required rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		workspaceID := c.Param(paramName)
		userID := UserIDFromContext(c)

		membership, ok := AuthorizeWorkspace(c, workspaceRepo, workspaceID, userID, required)
		if !ok {
			return
		}

		c.Set(MembershipKey, membership)
		c.Set(WorkspaceRoleKey, membership.RoleName)

		c.Next()
	}
}

// AuthorizeWorkspace checks that userID holds at least the required role in
// workspaceID. It writes the error response and returns ok=false when access
// is denied; handlers use it directly when the workspace is derived from a
// nested resource rather than a route parameter.
func AuthorizeWorkspace(c *gin.Context, workspaceRepo *repositories.WorkspaceRepository, workspaceID, userID string, required rbac.Role) (*models.MembershipWithRole, bool) {
	membership, err := workspaceRepo.GetMembership(c.Request.Context(), workspaceID, userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to check workspace access",
			"code":    "INTERNAL_ERROR",
		})
		return nil, false
	}

	var actual rbac.Role
	if membership != nil {
		actual, _ = rbac.ParseRole(membership.RoleName)
	}

	switch rbac.CheckMembership(membership != nil, actual, required) {
	case rbac.Allow:
		return membership, true
	case rbac.NotAMember:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Workspace not found",
			"code":    "WORKSPACE_NOT_FOUND",
		})
		return nil, false
	default:
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "Insufficient permissions",
			"code":    "INSUFFICIENT_PERMISSIONS",
		})
		return nil, false
	}
}

// MembershipFromContext returns the membership resolved by RequireWorkspaceRole,
// or nil when the route is not workspace-scoped.
func MembershipFromContext(c *gin.Context) *models.MembershipWithRole {
	if v, exists := c.Get(MembershipKey); exists {
		if m, ok := v.(*models.MembershipWithRole); ok {
			return m
		}
	}
	return nil
}
