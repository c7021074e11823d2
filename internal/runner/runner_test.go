package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/apivault/apivault/internal/crypto"
	"github.com/apivault/apivault/internal/db/repositories"
)

var requestCols = []string{
	"id", "name", "description", "method", "url", "headers", "body", "query_params",
	"collection_id", "folder_id", "workspace_id", "created_by", "created_at", "updated_at",
}

var environmentCols = []string{
	"id", "name", "workspace_id", "variables", "created_at", "updated_at",
}

const (
	testRequestID   = "55555555-5555-5555-5555-555555555555"
	testUserID      = "11111111-1111-1111-1111-111111111111"
	testWorkspaceID = "22222222-2222-2222-2222-222222222222"
	testEnvID       = "77777777-7777-7777-7777-777777777777"
)

type engineMocks struct {
	requests     sqlmock.Sqlmock
	environments sqlmock.Sqlmock
	history      sqlmock.Sqlmock
	cipher       *crypto.EnvCipher
}

func newTestEngine(t *testing.T, timeout time.Duration, maxBody int64) (*Engine, *engineMocks) {
	t.Helper()

	reqDB, reqMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { reqDB.Close() })

	envDB, envMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { envDB.Close() })

	histDB, histMock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { histDB.Close() })

	cipher, err := crypto.NewEnvCipher(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("NewEnvCipher: %v", err)
	}

	engine := NewEngine(
		repositories.NewRequestRepository(reqDB),
		repositories.NewEnvironmentRepository(sqlx.NewDb(envDB, "sqlmock"), cipher),
		repositories.NewHistoryRepository(sqlx.NewDb(histDB, "sqlmock")),
		timeout,
		maxBody,
	)
	return engine, &engineMocks{requests: reqMock, environments: envMock, history: histMock, cipher: cipher}
}

func expectRequestRow(m sqlmock.Sqlmock, method, url string, headers map[string]string, body *string) {
	var headersJSON []byte
	if headers != nil {
		headersJSON, _ = json.Marshal(headers)
	}
	m.ExpectQuery("SELECT r.id.*JOIN workspace_members").
		WillReturnRows(sqlmock.NewRows(requestCols).
			AddRow(testRequestID, "test request", nil, method, url, headersJSON, body, nil,
				"66666666-6666-6666-6666-666666666666", nil, testWorkspaceID, testUserID,
				time.Now(), time.Now()))
}

func expectHistoryInsert(m sqlmock.Sqlmock) {
	m.ExpectQuery("INSERT INTO request_history").
		WillReturnRows(sqlmock.NewRows([]string{"id", "executed_at"}).
			AddRow("88888888-8888-8888-8888-888888888888", time.Now()))
}

func expectEnvironmentRow(t *testing.T, m *engineMocks, workspaceID string, variables map[string]string) {
	t.Helper()
	sealed, err := m.cipher.SealMap(variables)
	if err != nil {
		t.Fatalf("SealMap: %v", err)
	}
	varsJSON, _ := json.Marshal(sealed)
	m.environments.ExpectQuery("SELECT e.id.*JOIN workspace_members").
		WillReturnRows(sqlmock.NewRows(environmentCols).
			AddRow(testEnvID, "Production", workspaceID, varsJSON, time.Now(), time.Now()))
}

// ---------------------------------------------------------------------------
// Execute
// ---------------------------------------------------------------------------

func TestExecute_CapturesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	engine, mocks := newTestEngine(t, 5*time.Second, 1<<20)
	expectRequestRow(mocks.requests, "GET", server.URL, nil, nil)
	expectHistoryInsert(mocks.history)

	rec, err := engine.Execute(context.Background(), testRequestID, nil, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.StatusCode == nil || *rec.StatusCode != 200 {
		t.Errorf("status = %v, want 200", rec.StatusCode)
	}
	if rec.ResponseBody == nil || *rec.ResponseBody != "ok" {
		t.Errorf("body = %v, want ok", rec.ResponseBody)
	}
	if rec.ResponseHeaders["X-Upstream"] != "yes" {
		t.Errorf("headers = %v", rec.ResponseHeaders)
	}
	if rec.Error != nil {
		t.Errorf("error = %v, want nil", rec.Error)
	}
	if err := mocks.history.ExpectationsWereMet(); err != nil {
		t.Errorf("history not recorded: %v", err)
	}
}

func TestExecute_ErrorStatusIsStillSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	engine, mocks := newTestEngine(t, 5*time.Second, 1<<20)
	expectRequestRow(mocks.requests, "GET", server.URL, nil, nil)
	expectHistoryInsert(mocks.history)

	rec, err := engine.Execute(context.Background(), testRequestID, nil, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.StatusCode == nil || *rec.StatusCode != 500 {
		t.Errorf("status = %v, want 500", rec.StatusCode)
	}
	if rec.Error != nil {
		t.Error("5xx from upstream must not produce an execution error")
	}
}

func TestExecute_NetworkErrorRecorded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // connection refused from here on

	engine, mocks := newTestEngine(t, 5*time.Second, 1<<20)
	expectRequestRow(mocks.requests, "GET", url, nil, nil)
	expectHistoryInsert(mocks.history)

	rec, err := engine.Execute(context.Background(), testRequestID, nil, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.StatusCode != nil {
		t.Errorf("status = %v, want nil", rec.StatusCode)
	}
	if rec.Error == nil {
		t.Fatal("expected execution error")
	}
	if rec.Error.Type != "NETWORK_ERROR" {
		t.Errorf("type = %q, want NETWORK_ERROR", rec.Error.Type)
	}
	if rec.Error.Code != "CONNECTION_REFUSED" {
		t.Errorf("code = %q, want CONNECTION_REFUSED", rec.Error.Code)
	}
	if err := mocks.history.ExpectationsWereMet(); err != nil {
		t.Errorf("history not recorded: %v", err)
	}
}

func TestExecute_TimeoutRecorded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	engine, mocks := newTestEngine(t, 50*time.Millisecond, 1<<20)
	expectRequestRow(mocks.requests, "GET", server.URL, nil, nil)
	expectHistoryInsert(mocks.history)

	rec, err := engine.Execute(context.Background(), testRequestID, nil, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Error == nil {
		t.Fatal("expected execution error")
	}
	if rec.Error.Code != "TIMEOUT" {
		t.Errorf("code = %q, want TIMEOUT", rec.Error.Code)
	}
}

func TestExecute_EnvironmentVariablesApplied(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	engine, mocks := newTestEngine(t, 5*time.Second, 1<<20)
	expectRequestRow(mocks.requests, "GET", server.URL,
		map[string]string{"Authorization": "Bearer {{token}}"}, nil)
	expectEnvironmentRow(t, mocks, testWorkspaceID, map[string]string{"token": "s3cret"})
	expectHistoryInsert(mocks.history)

	envID := testEnvID
	rec, err := engine.Execute(context.Background(), testRequestID, &envID, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q, want substituted token", gotAuth)
	}
	if rec.StatusCode == nil || *rec.StatusCode != 204 {
		t.Errorf("status = %v, want 204", rec.StatusCode)
	}
}

func TestExecute_BodySentForPost(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := new(strings.Builder)
		buf := make([]byte, 1024)
		for {
			n, err := r.Body.Read(buf)
			b.Write(buf[:n])
			if err != nil {
				break
			}
		}
		gotBody = b.String()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	engine, mocks := newTestEngine(t, 5*time.Second, 1<<20)
	body := `{"title":"{{title}}"}`
	expectRequestRow(mocks.requests, "POST", server.URL, nil, &body)
	expectEnvironmentRow(t, mocks, testWorkspaceID, map[string]string{"title": "hello"})
	expectHistoryInsert(mocks.history)

	envID := testEnvID
	if _, err := engine.Execute(context.Background(), testRequestID, &envID, testUserID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody != `{"title":"hello"}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestExecute_ResponseBodyTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 4096))
	}))
	defer server.Close()

	engine, mocks := newTestEngine(t, 5*time.Second, 100)
	expectRequestRow(mocks.requests, "GET", server.URL, nil, nil)
	expectHistoryInsert(mocks.history)

	rec, err := engine.Execute(context.Background(), testRequestID, nil, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ResponseBody == nil || len(*rec.ResponseBody) != 100 {
		t.Errorf("captured %d bytes, want 100", len(*rec.ResponseBody))
	}
}

// ---------------------------------------------------------------------------
// Lookup failures
// ---------------------------------------------------------------------------

func TestExecute_RequestNotFound(t *testing.T) {
	engine, mocks := newTestEngine(t, 5*time.Second, 1<<20)
	mocks.requests.ExpectQuery("SELECT r.id.*JOIN workspace_members").
		WillReturnRows(sqlmock.NewRows(requestCols))

	_, err := engine.Execute(context.Background(), testRequestID, nil, testUserID)
	if !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("err = %v, want ErrRequestNotFound", err)
	}
}

func TestExecute_EnvironmentNotFound(t *testing.T) {
	engine, mocks := newTestEngine(t, 5*time.Second, 1<<20)
	expectRequestRow(mocks.requests, "GET", "https://api.example.com", nil, nil)
	mocks.environments.ExpectQuery("SELECT e.id.*JOIN workspace_members").
		WillReturnRows(sqlmock.NewRows(environmentCols))

	envID := testEnvID
	_, err := engine.Execute(context.Background(), testRequestID, &envID, testUserID)
	if !errors.Is(err, ErrEnvironmentNotFound) {
		t.Errorf("err = %v, want ErrEnvironmentNotFound", err)
	}
}

func TestExecute_EnvironmentFromOtherWorkspaceRejected(t *testing.T) {
	engine, mocks := newTestEngine(t, 5*time.Second, 1<<20)
	expectRequestRow(mocks.requests, "GET", "https://api.example.com", nil, nil)
	expectEnvironmentRow(t, mocks, "other-workspace", map[string]string{"k": "v"})

	envID := testEnvID
	_, err := engine.Execute(context.Background(), testRequestID, &envID, testUserID)
	if !errors.Is(err, ErrEnvironmentNotFound) {
		t.Errorf("err = %v, want ErrEnvironmentNotFound", err)
	}
}
