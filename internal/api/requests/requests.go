// Package requests implements stored-request endpoints: CRUD on request
// definitions, execution, and the execution history views. Requests are
// created under a collection; individual request routes derive the owning
// workspace from the request row, so non-members get the same 404 as a
// missing request.
package requests

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/apivault/apivault/internal/api/respond"
	"github.com/apivault/apivault/internal/db/models"
	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/middleware"
	"github.com/apivault/apivault/internal/rbac"
	"github.com/apivault/apivault/internal/runner"
)

// Handler serves request definition, execution, and history endpoints
type Handler struct {
	requests    *repositories.RequestRepository
	collections *repositories.CollectionRepository
	workspaces  *repositories.WorkspaceRepository
	history     *repositories.HistoryRepository
	engine      *runner.Engine
}

// NewHandler creates a requests handler
func NewHandler(
	requests *repositories.RequestRepository,
	collections *repositories.CollectionRepository,
	workspaces *repositories.WorkspaceRepository,
	history *repositories.HistoryRepository,
	engine *runner.Engine,
) *Handler {
	return &Handler{
		requests:    requests,
		collections: collections,
		workspaces:  workspaces,
		history:     history,
		engine:      engine,
	}
}

func (h *Handler) authorize(c *gin.Context, requestID string, required rbac.Role) (*models.RequestDefinition, bool) {
	def, err := h.requests.GetByID(c.Request.Context(), requestID)
	if err != nil {
		respond.Internal(c, "Failed to load request")
		return nil, false
	}
	if def == nil {
		respond.NotFound(c, "Request not found", "REQUEST_NOT_FOUND")
		return nil, false
	}
	if _, ok := middleware.AuthorizeWorkspace(c, h.workspaces, def.WorkspaceID, middleware.UserIDFromContext(c), required); !ok {
		return nil, false
	}
	return def, true
}

// authorizeCollection checks the caller's role in the workspace owning a
// collection, for the routes nested under /collections/:id.
func (h *Handler) authorizeCollection(c *gin.Context, collectionID string, required rbac.Role) (*models.Collection, bool) {
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

type createRequestRequest struct {
	Name        string            `json:"name" binding:"required,min=1,max=200"`
	Description *string           `json:"description"`
	Method      string            `json:"method" binding:"required"`
	URL         string            `json:"url" binding:"required"`
	Headers     map[string]string `json:"headers"`
	Body        *string           `json:"body"`
	QueryParams map[string]string `json:"query_params"`
	FolderID    *string           `json:"folder_id"`
}

// Create handles POST /api/v1/collections/:id/requests
func (h *Handler) Create(c *gin.Context) {
	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	method, ok := models.NormalizeMethod(req.Method)
	if !ok {
		respond.BadRequest(c, "Unsupported HTTP method: "+req.Method)
		return
	}

	coll, ok := h.authorizeCollection(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}

	if req.FolderID != nil {
		folder, err := h.collections.GetFolderByID(c.Request.Context(), *req.FolderID)
		if err != nil {
			respond.Internal(c, "Failed to load folder")
			return
		}
		if folder == nil || folder.CollectionID != coll.ID {
			respond.NotFound(c, "Folder not found in this collection", "FOLDER_NOT_FOUND")
			return
		}
	}

	def := &models.RequestDefinition{
		Name:         req.Name,
		Description:  req.Description,
		Method:       method,
		URL:          req.URL,
		Headers:      req.Headers,
		Body:         req.Body,
		QueryParams:  req.QueryParams,
		CollectionID: coll.ID,
		FolderID:     req.FolderID,
		WorkspaceID:  coll.WorkspaceID,
		CreatedBy:    middleware.UserIDFromContext(c),
	}
	if err := h.requests.Create(c.Request.Context(), def); err != nil {
		respond.Internal(c, "Failed to create request")
		return
	}
	respond.Created(c, "Request created", def)
}

// ListByCollection handles GET /api/v1/collections/:id/requests. An optional
// folder_id query parameter narrows the listing to one folder.
func (h *Handler) ListByCollection(c *gin.Context) {
	coll, ok := h.authorizeCollection(c, c.Param("id"), rbac.RoleViewer)
	if !ok {
		return
	}

	var (
		defs []*models.RequestDefinition
		err  error
	)
	if folderID := c.Query("folder_id"); folderID != "" {
		defs, err = h.requests.ListByFolder(c.Request.Context(), folderID)
	} else {
		defs, err = h.requests.ListByCollection(c.Request.Context(), coll.ID)
	}
	if err != nil {
		respond.Internal(c, "Failed to list requests")
		return
	}
	respond.OK(c, "", defs)
}

// Get handles GET /api/v1/requests/:id
func (h *Handler) Get(c *gin.Context) {
	def, ok := h.authorize(c, c.Param("id"), rbac.RoleViewer)
	if !ok {
		return
	}
	respond.OK(c, "", def)
}

type updateRequestRequest struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Method      *string           `json:"method"`
	URL         *string           `json:"url"`
	Headers     map[string]string `json:"headers"`
	Body        *string           `json:"body"`
	QueryParams map[string]string `json:"query_params"`
	FolderID    *string           `json:"folder_id"`
}

// Update handles PUT /api/v1/requests/:id. Setting folder_id to an empty
// string moves the request out of its folder.
func (h *Handler) Update(c *gin.Context) {
	var req updateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request payload")
		return
	}

	if req.Method != nil {
		method, ok := models.NormalizeMethod(*req.Method)
		if !ok {
			respond.BadRequest(c, "Unsupported HTTP method: "+*req.Method)
			return
		}
		req.Method = &method
	}

	update := models.RequestUpdate{
		Name:        req.Name,
		Description: req.Description,
		Method:      req.Method,
		URL:         req.URL,
		Headers:     req.Headers,
		Body:        req.Body,
		QueryParams: req.QueryParams,
		FolderID:    req.FolderID,
	}
	if update.IsEmpty() {
		respond.BadRequest(c, "No fields to update")
		return
	}

	def, ok := h.authorize(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}

	if req.FolderID != nil && *req.FolderID != "" {
		folder, err := h.collections.GetFolderByID(c.Request.Context(), *req.FolderID)
		if err != nil {
			respond.Internal(c, "Failed to load folder")
			return
		}
		if folder == nil || folder.CollectionID != def.CollectionID {
			respond.NotFound(c, "Folder not found in this collection", "FOLDER_NOT_FOUND")
			return
		}
	}

	if err := h.requests.Update(c.Request.Context(), def.ID, update); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Request not found", "REQUEST_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to update request")
		return
	}

	updated, err := h.requests.GetByID(c.Request.Context(), def.ID)
	if err != nil {
		respond.Internal(c, "Failed to load updated request")
		return
	}
	respond.OK(c, "Request updated", updated)
}

// Delete handles DELETE /api/v1/requests/:id. History rows for the request are
// removed by cascade.
func (h *Handler) Delete(c *gin.Context) {
	def, ok := h.authorize(c, c.Param("id"), rbac.RoleEditor)
	if !ok {
		return
	}
	if err := h.requests.Delete(c.Request.Context(), def.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "Request not found", "REQUEST_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to delete request")
		return
	}
	respond.OK(c, "Request deleted", nil)
}

type executeRequest struct {
	EnvironmentID *string `json:"environment_id"`
}

// Execute handles POST /api/v1/requests/:id/execute. Any member of the owning
// workspace may execute; the engine itself resolves visibility, so a request
// the caller cannot see yields a 404. An upstream response with any status
// code is a success; transport failures return 200 with an error descriptor in
// the recorded execution.
func (h *Handler) Execute(c *gin.Context) {
	var req executeRequest
	// an empty body executes against the template as stored
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "Invalid execute payload")
			return
		}
	}

	record, err := h.engine.Execute(c.Request.Context(), c.Param("id"), req.EnvironmentID, middleware.UserIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, runner.ErrRequestNotFound):
			respond.NotFound(c, "Request not found", "REQUEST_NOT_FOUND")
		case errors.Is(err, runner.ErrEnvironmentNotFound):
			respond.NotFound(c, "Environment not found", "ENVIRONMENT_NOT_FOUND")
		case errors.Is(err, runner.ErrInvalidURL):
			respond.BadRequest(c, "Request URL is not valid after substitution")
		default:
			respond.Internal(c, "Failed to execute request")
		}
		return
	}
	respond.OK(c, "Request executed", record)
}

// historyPage reads limit and offset query parameters with defaults and caps
// applied by the repository.
func historyPage(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return repositories.NormalizeHistoryPage(limit, offset)
}

// History handles GET /api/v1/requests/:id/history
func (h *Handler) History(c *gin.Context) {
	def, ok := h.authorize(c, c.Param("id"), rbac.RoleViewer)
	if !ok {
		return
	}
	limit, offset := historyPage(c)
	records, err := h.history.ListByRequest(c.Request.Context(), def.ID, limit, offset)
	if err != nil {
		respond.Internal(c, "Failed to list history")
		return
	}
	respond.OK(c, "", records)
}

// WorkspaceHistory handles GET /api/v1/workspaces/:id/history (viewer,
// enforced by router middleware)
func (h *Handler) WorkspaceHistory(c *gin.Context) {
	limit, offset := historyPage(c)
	records, err := h.history.ListByWorkspace(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respond.Internal(c, "Failed to list history")
		return
	}
	respond.OK(c, "", records)
}

// GetHistoryRecord handles GET /api/v1/history/:id. The record's workspace is
// resolved through its request for the membership check.
func (h *Handler) GetHistoryRecord(c *gin.Context) {
	record, workspaceID, err := h.history.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Internal(c, "Failed to load history record")
		return
	}
	if record == nil {
		respond.NotFound(c, "History record not found", "HISTORY_NOT_FOUND")
		return
	}
	if _, ok := middleware.AuthorizeWorkspace(c, h.workspaces, workspaceID, middleware.UserIDFromContext(c), rbac.RoleViewer); !ok {
		return
	}
	respond.OK(c, "", record)
}

// DeleteHistoryRecord handles DELETE /api/v1/history/:id. A record may be
// deleted by whoever executed it or by a workspace admin or owner.
func (h *Handler) DeleteHistoryRecord(c *gin.Context) {
	record, workspaceID, err := h.history.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Internal(c, "Failed to load history record")
		return
	}
	if record == nil {
		respond.NotFound(c, "History record not found", "HISTORY_NOT_FOUND")
		return
	}
	userID := middleware.UserIDFromContext(c)
	membership, ok := middleware.AuthorizeWorkspace(c, h.workspaces, workspaceID, userID, rbac.RoleViewer)
	if !ok {
		return
	}
	if record.UserID != userID {
		role, _ := rbac.ParseRole(membership.RoleName)
		if rbac.Check(role, rbac.RoleAdmin) != rbac.Allow {
			respond.Forbidden(c, "Insufficient permissions")
			return
		}
	}
	if err := h.history.Delete(c.Request.Context(), record.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respond.NotFound(c, "History record not found", "HISTORY_NOT_FOUND")
			return
		}
		respond.Internal(c, "Failed to delete history record")
		return
	}
	respond.OK(c, "History record deleted", nil)
}

// ClearRequestHistory handles DELETE /api/v1/requests/:id/history (admin)
func (h *Handler) ClearRequestHistory(c *gin.Context) {
	def, ok := h.authorize(c, c.Param("id"), rbac.RoleAdmin)
	if !ok {
		return
	}
	deleted, err := h.history.DeleteByRequest(c.Request.Context(), def.ID)
	if err != nil {
		respond.Internal(c, "Failed to clear history")
		return
	}
	respond.OK(c, "History cleared", gin.H{"deleted": deleted})
}
