// Package models - collection.go defines Collection and Folder models for
// organizing stored requests within a workspace.
package models

import "time"

// Collection groups requests within a workspace
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	WorkspaceID string    `json:"workspace_id"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Folder is an optional grouping level inside a collection
type Folder struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CollectionID string    `json:"collection_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CollectionUpdate is an explicit partial-update value object for collections
type CollectionUpdate struct {
	Name        *string
	Description *string
}

// IsEmpty reports whether no field is set
func (u CollectionUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil
}
