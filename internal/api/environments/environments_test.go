package environments

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/apivault/apivault/internal/crypto"
	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/middleware"
)

const (
	testUserID      = "11111111-1111-1111-1111-111111111111"
	testWorkspaceID = "22222222-2222-2222-2222-222222222222"
	testEnvID       = "77777777-7777-7777-7777-777777777777"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var environmentCols = []string{"id", "name", "workspace_id", "variables", "created_at", "updated_at"}

func newRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *crypto.EnvCipher) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	cipher, err := crypto.NewEnvCipher(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	h := NewHandler(
		repositories.NewEnvironmentRepository(sqlx.NewDb(mockDB, "sqlmock"), cipher),
		repositories.NewWorkspaceRepository(mockDB),
	)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, testUserID)
		c.Next()
	})
	router.POST("/workspaces/:id/environments", h.Create)
	router.GET("/workspaces/:id/environments", h.ListByWorkspace)
	router.GET("/environments/:id", h.Get)
	router.PUT("/environments/:id", h.Update)
	router.DELETE("/environments/:id", h.Delete)

	return router, mock, cipher
}

func expectEnvironmentRow(t *testing.T, mock sqlmock.Sqlmock, cipher *crypto.EnvCipher, variables map[string]string) {
	t.Helper()
	sealed, err := cipher.SealMap(variables)
	if err != nil {
		t.Fatalf("failed to seal variables: %v", err)
	}
	varsJSON, _ := json.Marshal(sealed)
	now := time.Now()
	mock.ExpectQuery("SELECT id.*FROM environments").
		WithArgs(testEnvID).
		WillReturnRows(sqlmock.NewRows(environmentCols).
			AddRow(testEnvID, "Production", testWorkspaceID, varsJSON, now, now))
}

func expectMembership(mock sqlmock.Sqlmock, roleName string) {
	now := time.Now()
	mock.ExpectQuery("SELECT wm.id.*FROM workspace_members wm").
		WithArgs(testWorkspaceID, testUserID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "workspace_id", "role_id", "created_at", "role_name", "permissions",
		}).AddRow("m-1", testUserID, testWorkspaceID, "r-1", now, roleName, `{"read":true}`))
}

func doJSON(router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body []byte
	if payload != nil {
		body, _ = json.Marshal(payload)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreate_ReturnsPlaintextVariables(t *testing.T) {
	router, mock, _ := newRouter(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO environments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(testEnvID, now, now))

	w := doJSON(router, http.MethodPost, "/workspaces/"+testWorkspaceID+"/environments", gin.H{
		"name":      "Production",
		"variables": gin.H{"base_url": "https://api.example.com"},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			Variables map[string]string `json:"variables"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.Variables["base_url"] != "https://api.example.com" {
		t.Errorf("variables = %v, want plaintext base_url", resp.Data.Variables)
	}
}

func TestGet_DecryptsVariables(t *testing.T) {
	router, mock, cipher := newRouter(t)

	expectEnvironmentRow(t, mock, cipher, map[string]string{"token": "s3cret"})
	expectMembership(mock, "viewer")

	w := doJSON(router, http.MethodGet, "/environments/"+testEnvID, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data struct {
			Variables map[string]string `json:"variables"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Data.Variables["token"] != "s3cret" {
		t.Errorf("variables = %v, want decrypted token", resp.Data.Variables)
	}
}

func TestUpdate_ViewerForbidden(t *testing.T) {
	router, mock, cipher := newRouter(t)

	expectEnvironmentRow(t, mock, cipher, nil)
	expectMembership(mock, "viewer")

	w := doJSON(router, http.MethodPut, "/environments/"+testEnvID, gin.H{"name": "Staging"})

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestUpdate_EmptyPayloadRejected(t *testing.T) {
	router, _, _ := newRouter(t)

	w := doJSON(router, http.MethodPut, "/environments/"+testEnvID, gin.H{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDelete_EditorSucceeds(t *testing.T) {
	router, mock, cipher := newRouter(t)

	expectEnvironmentRow(t, mock, cipher, nil)
	expectMembership(mock, "editor")
	mock.ExpectExec("DELETE FROM environments").
		WithArgs(testEnvID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(router, http.MethodDelete, "/environments/"+testEnvID, nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
