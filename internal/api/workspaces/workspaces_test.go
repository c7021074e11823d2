package workspaces

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/apivault/apivault/internal/db/models"
	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/middleware"
)

const (
	testUserID      = "11111111-1111-1111-1111-111111111111"
	testOwnerID     = "22222222-2222-2222-2222-222222222222"
	testWorkspaceID = "33333333-3333-3333-3333-333333333333"
	testMemberID    = "44444444-4444-4444-4444-444444444444"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var workspaceCols = []string{"id", "name", "description", "type", "owner_id", "created_at", "updated_at"}

// newRouter wires the handler behind a stub identity with an admin
// membership. Role middleware is exercised separately; these tests cover
// handler behavior.
func newRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	return newRouterAs(t, "admin", map[string]bool{"read": true, "write": true, "delete": true, "admin": true})
}

func newRouterAs(t *testing.T, roleName string, perms map[string]bool) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	h := NewHandler(
		repositories.NewWorkspaceRepository(mockDB),
		repositories.NewUserRepository(mockDB),
		repositories.NewRoleRepository(mockDB),
	)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, testUserID)
		c.Set(middleware.MembershipKey, &models.MembershipWithRole{
			Membership: models.Membership{
				ID:          "m-1",
				UserID:      testUserID,
				WorkspaceID: testWorkspaceID,
			},
			RoleName:    roleName,
			Permissions: perms,
		})
		c.Next()
	})
	router.POST("/workspaces", h.Create)
	router.GET("/workspaces", h.List)
	router.GET("/workspaces/:id", h.Get)
	router.PUT("/workspaces/:id", h.Update)
	router.DELETE("/workspaces/:id", h.Delete)
	router.GET("/workspaces/:id/members", h.ListMembers)
	router.POST("/workspaces/:id/members", h.AddMember)
	router.PUT("/workspaces/:id/members/:userId", h.UpdateMemberRole)
	router.DELETE("/workspaces/:id/members/:userId", h.RemoveMember)

	return router, mock
}

func doJSON(router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if payload != nil {
		body, _ := json.Marshal(payload)
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreate_AssignsOwnerMembership(t *testing.T) {
	router, mock := newRouter(t)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO workspaces`).
		WithArgs("Team API", nil, "team", testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(testWorkspaceID, now, now))
	mock.ExpectExec(`INSERT INTO workspace_members`).
		WithArgs(testUserID, testWorkspaceID).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := doJSON(router, http.MethodPost, "/workspaces", gin.H{"name": "Team API"})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreate_RejectsUnknownType(t *testing.T) {
	router, _ := newRouter(t)

	w := doJSON(router, http.MethodPost, "/workspaces", gin.H{"name": "X", "type": "shared"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGet_NotFound(t *testing.T) {
	router, mock := newRouter(t)

	mock.ExpectQuery(`SELECT .* FROM workspaces`).
		WithArgs(testWorkspaceID).
		WillReturnRows(sqlmock.NewRows(workspaceCols))

	w := doJSON(router, http.MethodGet, "/workspaces/"+testWorkspaceID, nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAddMember_OwnerRoleRejected(t *testing.T) {
	router, _ := newRouter(t)

	w := doJSON(router, http.MethodPost, "/workspaces/"+testWorkspaceID+"/members", gin.H{
		"email": "bob@example.com",
		"role":  "owner",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestAddMember_UnknownUser(t *testing.T) {
	router, mock := newRouter(t)

	mock.ExpectQuery(`SELECT .* FROM users WHERE email`).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "password_hash",
			"first_name", "last_name", "avatar_url", "created_at", "updated_at",
		}))

	w := doJSON(router, http.MethodPost, "/workspaces/"+testWorkspaceID+"/members", gin.H{
		"email": "ghost@example.com",
		"role":  "editor",
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAddMember_AlreadyMember(t *testing.T) {
	router, mock := newRouter(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM users WHERE email`).
		WithArgs("bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "email", "password_hash",
			"first_name", "last_name", "avatar_url", "created_at", "updated_at",
		}).AddRow(testOwnerID, "bob", "bob@example.com", "hash", nil, nil, nil, now, now))
	mock.ExpectQuery(`SELECT .* FROM workspace_members`).
		WithArgs(testWorkspaceID, testOwnerID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "workspace_id", "role_id", "created_at", "role_name", "permissions",
		}).AddRow("m-1", testOwnerID, testWorkspaceID, "r-1", now, "editor", `{"write":true}`))

	w := doJSON(router, http.MethodPost, "/workspaces/"+testWorkspaceID+"/members", gin.H{
		"email": "bob@example.com",
		"role":  "viewer",
	})

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409, body: %s", w.Code, w.Body.String())
	}
}

func TestUpdateMemberRole_OwnerProtected(t *testing.T) {
	router, mock := newRouter(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM workspaces`).
		WithArgs(testWorkspaceID).
		WillReturnRows(sqlmock.NewRows(workspaceCols).
			AddRow(testWorkspaceID, "Team API", nil, "team", testOwnerID, now, now))

	w := doJSON(router, http.MethodPut,
		"/workspaces/"+testWorkspaceID+"/members/"+testOwnerID,
		gin.H{"role": "viewer"})

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "CANNOT_CHANGE_OWNER_ROLE" {
		t.Errorf("code = %q, want CANNOT_CHANGE_OWNER_ROLE", resp.Code)
	}
}

func TestRemoveMember_OwnerProtected(t *testing.T) {
	router, mock := newRouter(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM workspaces`).
		WithArgs(testWorkspaceID).
		WillReturnRows(sqlmock.NewRows(workspaceCols).
			AddRow(testWorkspaceID, "Team API", nil, "team", testOwnerID, now, now))

	w := doJSON(router, http.MethodDelete,
		"/workspaces/"+testWorkspaceID+"/members/"+testOwnerID, nil)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "CANNOT_REMOVE_OWNER" {
		t.Errorf("code = %q, want CANNOT_REMOVE_OWNER", resp.Code)
	}
}

func TestRemoveMember_AdminRemovesMember(t *testing.T) {
	router, mock := newRouter(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM workspaces`).
		WithArgs(testWorkspaceID).
		WillReturnRows(sqlmock.NewRows(workspaceCols).
			AddRow(testWorkspaceID, "Team API", nil, "team", testOwnerID, now, now))
	mock.ExpectExec(`DELETE FROM workspace_members`).
		WithArgs(testWorkspaceID, testMemberID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(router, http.MethodDelete,
		"/workspaces/"+testWorkspaceID+"/members/"+testMemberID, nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRemoveMember_MemberLeavesWorkspace(t *testing.T) {
	router, mock := newRouterAs(t, "viewer", map[string]bool{"read": true})

	mock.ExpectExec(`DELETE FROM workspace_members`).
		WithArgs(testWorkspaceID, testUserID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(router, http.MethodDelete,
		"/workspaces/"+testWorkspaceID+"/members/"+testUserID, nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRemoveMember_ViewerCannotRemoveOthers(t *testing.T) {
	router, _ := newRouterAs(t, "viewer", map[string]bool{"read": true})

	w := doJSON(router, http.MethodDelete,
		"/workspaces/"+testWorkspaceID+"/members/"+testMemberID, nil)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403, body: %s", w.Code, w.Body.String())
	}
}

func TestRemoveMember_OwnerCannotLeave(t *testing.T) {
	router, _ := newRouterAs(t, "owner", map[string]bool{"read": true, "write": true, "delete": true, "admin": true})

	w := doJSON(router, http.MethodDelete,
		"/workspaces/"+testWorkspaceID+"/members/"+testUserID, nil)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "CANNOT_REMOVE_OWNER" {
		t.Errorf("code = %q, want CANNOT_REMOVE_OWNER", resp.Code)
	}
}

func TestDelete_Success(t *testing.T) {
	router, mock := newRouter(t)

	mock.ExpectExec(`DELETE FROM workspaces`).
		WithArgs(testWorkspaceID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(router, http.MethodDelete, "/workspaces/"+testWorkspaceID, nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
