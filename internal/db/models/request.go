// Package models - request.go defines the RequestDefinition model: a stored HTTP
// request template whose URL, header values, and body may contain {{variable}}
// placeholders resolved at execution time.
package models

import (
	"strings"
	"time"
)

// ValidMethods is the fixed set of accepted HTTP methods
var ValidMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// NormalizeMethod uppercases m and reports whether it is an accepted method.
// Methods are stored uppercase; consumers treat them case-insensitively.
func NormalizeMethod(m string) (string, bool) {
	up := strings.ToUpper(strings.TrimSpace(m))
	return up, ValidMethods[up]
}

// RequestDefinition represents a stored request template
type RequestDefinition struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  *string           `json:"description,omitempty"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         *string           `json:"body,omitempty"`
	QueryParams  map[string]string `json:"query_params,omitempty"`
	CollectionID string            `json:"collection_id"`
	FolderID     *string           `json:"folder_id,omitempty"`
	WorkspaceID  string            `json:"workspace_id"`
	CreatedBy    string            `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// RequestUpdate is an explicit partial-update value object for stored requests.
// Pointer fields distinguish "absent" from "set to empty"; map fields follow
// the same convention as EnvironmentUpdate (nil = untouched, empty = clear).
type RequestUpdate struct {
	Name        *string
	Description *string
	Method      *string
	URL         *string
	Headers     map[string]string
	Body        *string
	QueryParams map[string]string
	FolderID    *string
}

// IsEmpty reports whether no field is set
func (u RequestUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Method == nil &&
		u.URL == nil && u.Headers == nil && u.Body == nil &&
		u.QueryParams == nil && u.FolderID == nil
}
