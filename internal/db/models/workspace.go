// Package models - workspace.go defines the Workspace model, the top-level tenant
// container owning collections, environments, and memberships.
package models

import "time"

// Workspace types accepted by the API
const (
	WorkspaceTypePersonal = "personal"
	WorkspaceTypeTeam     = "team"
	WorkspaceTypePrivate  = "private"
)

// Workspace represents a workspace in the system
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Type        string    `json:"type"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkspaceWithRole is a workspace joined with the requesting user's role,
// returned by listing endpoints so clients can render per-workspace actions.
type WorkspaceWithRole struct {
	Workspace
	UserRole    string          `json:"user_role"`
	Permissions map[string]bool `json:"permissions"`
}

// ValidWorkspaceType reports whether t is one of the accepted workspace types
func ValidWorkspaceType(t string) bool {
	switch t {
	case WorkspaceTypePersonal, WorkspaceTypeTeam, WorkspaceTypePrivate:
		return true
	}
	return false
}

// WorkspaceUpdate is an explicit partial-update value object for workspaces
type WorkspaceUpdate struct {
	Name        *string
	Description *string
	Type        *string
}

// IsEmpty reports whether no field is set
func (u WorkspaceUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Type == nil
}
