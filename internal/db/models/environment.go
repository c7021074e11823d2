// Package models - environment.go defines the Environment model: a named set of
// key/value variables scoped to a workspace, used for request templating.
// Variable values are sealed (AES-256-GCM) before they reach storage; the
// Variables map on this struct always holds plaintext on the application side.
package models

import "time"

// Environment represents a workspace-scoped variable set
type Environment struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	WorkspaceID string            `json:"workspace_id"`
	Variables   map[string]string `json:"variables"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// EnvironmentUpdate is an explicit partial-update value object. A nil Variables
// map leaves variables untouched; an empty non-nil map clears them.
type EnvironmentUpdate struct {
	Name      *string
	Variables map[string]string
}

// IsEmpty reports whether no field is set
func (u EnvironmentUpdate) IsEmpty() bool {
	return u.Name == nil && u.Variables == nil
}
