// Package models - role.go defines the Role reference model. The four roles
// (owner, admin, editor, viewer) are seeded by migration and never mutated at
// runtime; their relative ordering lives in internal/rbac.
package models

// Role represents one of the fixed workspace roles
type Role struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Permissions map[string]bool `json:"permissions"`
	Description *string         `json:"description,omitempty"`
}
