// Package collections implements collection and folder endpoints. Collections
// are created and listed under a workspace; reads and writes on an individual
// collection or folder derive the workspace from the resource itself, so a
// request that names a collection in a workspace the caller cannot see gets
// the same 404 as a collection that does not exist.
package collections

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

// Handler serves collection and folder endpoints
type Handler struct {
	collections *repositories.CollectionRepository
	workspaces  *repositories.WorkspaceRepository
}

// NewHandler creates a collections handler
func NewHandler(collections *repositories.CollectionRepository, workspaces *repositories.WorkspaceRepository) *Handler {
	return &Handler{collections: collections, workspaces: workspaces}
}

// authorize loads the collection and checks the caller's role in its
// workspace. On failure the response has already been written.
func (h *Handler) authorize(c *gin.Context, collectionID string, required rbac.Role) (*models.Collection, bool) {
	coll, err := h.collections.GetByID(c.Request.Context(), collectionID)
	if err != nil {
		respond.Internal(c, "Failed to load collection")
		return nil, false
	}
	if coll == nil {
		respond.NotFound(c, "Collection not found", "COLLECTION_NOT_FOUND")
		return nil, false
	}
	if _, ok := middleware.AuthorizeWorkspace(c, h.workspaces, coll.WorkspaceID, middleware.UserIDFromContext(c), required); !ok {
		return nil, false
	}
	return coll, true
}

type createCollectionRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=100"`
	Description *string `json:"description"`
}

// Create handles POST /api/v1/workspaces/:id/collections (editor, enforced by
// router middleware)
func (h *Handler) Create(c *gin.Context) {
	var req createCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid collection payload: "+err.Error())
		return
	}

	coll := &models.Collection{
		Name:        req.Name,
		Description: req.Description,
		WorkspaceID: c.Param("id"),
		CreatedBy:   middleware.UserIDFromContext(c),
	}
	if err := h.collections.Create(c.Request.Context(), coll); err != nil {
		respond.Internal(c, "Failed to create collection")
		return
	}
	respond.Created(c, "Collection created", coll)
}

// ListByWorkspace handles GET /api/v1/workspaces/:id/collections (viewer)
func (h *Handler) ListByWorkspace(c *gin.Context) {
	collections, err := h.collections.ListByWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Internal(c, "Failed to list collections")
		return
	}
	respond.OK(c, "", collections)
}

// Get handles GET /api/v1/collections/:id
func (h *Handler) Get(c *gin.Context) {
	coll, ok := h.authorize(c, c.Param("id"), rbac.RoleViewer)
	if !ok {
		return
	}
	respond.OK(c, "", coll)
}

type updateCollectionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update handles PUT /api/v1/collections/:id
func (h *Handler) Update(c *gin.Context) {
	var req updateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid collection payload")
		return
	}

	update := models.CollectionUpdate{Name: req.Name, Description: req.Description}
	if update.IsEmpty() {
		respond.BadRequest(c, "No fields to update")
		return
	}

	coll, ok := h.authorize(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}

	if err := h.collections.Update(c.Request.Context(), coll.ID, update); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Collection not found", "COLLECTION_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to update collection")
		return
	}

	updated, err := h.collections.GetByID(c.Request.Context(), coll.ID)
	if err != nil {
		respond.Internal(c, "Failed to load updated collection")
		return
	}
	respond.OK(c, "Collection updated", updated)
}

// Delete handles DELETE /api/v1/collections/:id. Cascades remove the
// collection's folders and requests.
func (h *Handler) Delete(c *gin.Context) {
	coll, ok := h.authorize(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}
	if err := h.collections.Delete(c.Request.Context(), coll.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Collection not found", "COLLECTION_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to delete collection")
		return
	}
	respond.OK(c, "Collection deleted", nil)
}

type createFolderRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// CreateFolder handles POST /api/v1/collections/:id/folders
func (h *Handler) CreateFolder(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid folder payload: "+err.Error())
		return
	}

	coll, ok := h.authorize(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}

	folder := &models.Folder{Name: req.Name, CollectionID: coll.ID}
	if err := h.collections.CreateFolder(c.Request.Context(), folder); err != nil {
		respond.Internal(c, "Failed to create folder")
		return
	}
	respond.Created(c, "Folder created", folder)
}

// ListFolders handles GET /api/v1/collections/:id/folders
func (h *Handler) ListFolders(c *gin.Context) {
	coll, ok := h.authorize(c, c.Param("id"), rbac.RoleViewer)
	if !ok {
		return
	}
	folders, err := h.collections.ListFolders(c.Request.Context(), coll.ID)
	if err != nil {
		respond.Internal(c, "Failed to list folders")
		return
	}
	respond.OK(c, "", folders)
}

// authorizeFolder resolves a folder through its collection to the owning
// workspace and checks the caller's role there.
func (h *Handler) authorizeFolder(c *gin.Context, folderID string, required rbac.Role) (*models.Folder, bool) {
	folder, err := h.collections.GetFolderByID(c.Request.Context(), folderID)
	if err != nil {
		respond.Internal(c, "Failed to load folder")
		return nil, false
	}
	if folder == nil {
		respond.NotFound(c, "Folder not found", "FOLDER_NOT_FOUND")
		return nil, false
	}
	if _, ok := h.authorize(c, folder.CollectionID, required); !ok {
		return nil, false
	}
	return folder, true
}

type renameFolderRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// RenameFolder handles PUT /api/v1/folders/:id
func (h *Handler) RenameFolder(c *gin.Context) {
	var req renameFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid folder payload: "+err.Error())
		return
	}

	folder, ok := h.authorizeFolder(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}

	if err := h.collections.RenameFolder(c.Request.Context(), folder.ID, req.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Folder not found", "FOLDER_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to rename folder")
		return
	}
	folder.Name = req.Name
	respond.OK(c, "Folder renamed", folder)
}

// DeleteFolder handles DELETE /api/v1/folders/:id. Requests in the folder
// stay in the collection without a folder.
func (h *Handler) DeleteFolder(c *gin.Context) {
	folder, ok := h.authorizeFolder(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}
	if err := h.collections.DeleteFolder(c.Request.Context(), folder.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Folder not found", "FOLDER_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to delete folder")
		return
	}
	respond.OK(c, "Folder deleted", nil)
}
