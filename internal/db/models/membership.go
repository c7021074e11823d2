// Package models - membership.go defines models for user-to-workspace membership,
// including role assignment and enriched views joining user and role details.
package models

import "time"

// Membership represents a user's membership in a workspace. Unique per
// (user, workspace); the sole authority for workspace-scoped access.
type Membership struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	WorkspaceID string    `json:"workspace_id"`
	RoleID      string    `json:"role_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// MembershipWithRole is a membership joined with its role row, used by the
// authorization path so a single query yields both hierarchy and capabilities.
type MembershipWithRole struct {
	Membership
	RoleName    string          `json:"role_name"`
	Permissions map[string]bool `json:"permissions"`
}

// MemberWithUser includes user details for member listing endpoints
type MemberWithUser struct {
	MembershipID string    `json:"membership_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    *string   `json:"first_name,omitempty"`
	LastName     *string   `json:"last_name,omitempty"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	RoleID       string    `json:"role_id"`
	RoleName     string    `json:"role_name"`
	JoinedAt     time.Time `json:"joined_at"`
}
