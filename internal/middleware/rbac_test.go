package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/rbac"
)

var membershipCols = []string{
	"id", "user_id", "workspace_id", "role_id", "created_at", "role_name", "permissions",
}

const testWorkspaceID = "22222222-2222-2222-2222-222222222222"

func newRBACRouter(t *testing.T, required rbac.Role) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repositories.NewWorkspaceRepository(db)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(UserIDKey, testUserID)
	})
	r.GET("/workspaces/:id", RequireWorkspaceRole(repo, "id", required), func(c *gin.Context) {
		m := MembershipFromContext(c)
		if m == nil {
			c.String(http.StatusInternalServerError, "membership missing from context")
			return
		}
		c.String(http.StatusOK, m.RoleName)
	})
	return r, mock
}

func membershipRow(roleName, permissions string) *sqlmock.Rows {
	return sqlmock.NewRows(membershipCols).
		AddRow("33333333-3333-3333-3333-333333333333", testUserID, testWorkspaceID,
			"44444444-4444-4444-4444-444444444444", time.Now(), roleName, []byte(permissions))
}

func TestRequireWorkspaceRole_SufficientRole(t *testing.T) {
	r, mock := newRBACRouter(t, rbac.RoleEditor)
	mock.ExpectQuery("SELECT wm.id.*FROM workspace_members wm").
		WillReturnRows(membershipRow("admin", `{"read":true,"write":true,"delete":true,"admin":true}`))

	req := httptest.NewRequest(http.MethodGet, "/workspaces/"+testWorkspaceID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "admin" {
		t.Errorf("role = %q, want admin", w.Body.String())
	}
}

func TestRequireWorkspaceRole_ExactRole(t *testing.T) {
	r, mock := newRBACRouter(t, rbac.RoleViewer)
	mock.ExpectQuery("SELECT wm.id.*FROM workspace_members wm").
		WillReturnRows(membershipRow("viewer", `{"read":true,"write":false,"delete":false,"admin":false}`))

	req := httptest.NewRequest(http.MethodGet, "/workspaces/"+testWorkspaceID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireWorkspaceRole_InsufficientRole(t *testing.T) {
	r, mock := newRBACRouter(t, rbac.RoleAdmin)
	mock.ExpectQuery("SELECT wm.id.*FROM workspace_members wm").
		WillReturnRows(membershipRow("editor", `{"read":true,"write":true,"delete":false,"admin":false}`))

	req := httptest.NewRequest(http.MethodGet, "/workspaces/"+testWorkspaceID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for member with insufficient role", w.Code)
	}
}

func TestRequireWorkspaceRole_NonMemberGets404(t *testing.T) {
	r, mock := newRBACRouter(t, rbac.RoleViewer)
	mock.ExpectQuery("SELECT wm.id.*FROM workspace_members wm").
		WillReturnRows(sqlmock.NewRows(membershipCols))

	req := httptest.NewRequest(http.MethodGet, "/workspaces/"+testWorkspaceID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 so outsiders cannot probe workspace existence", w.Code)
	}
}

func TestRequireWorkspaceRole_DBFailure(t *testing.T) {
	r, mock := newRBACRouter(t, rbac.RoleViewer)
	mock.ExpectQuery("SELECT wm.id.*FROM workspace_members wm").
		WillReturnError(sqlmock.ErrCancelled)

	req := httptest.NewRequest(http.MethodGet, "/workspaces/"+testWorkspaceID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
