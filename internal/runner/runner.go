package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/apivault/apivault/internal/db/models"
	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/telemetry"
)

// Sentinel errors returned by Execute. Both cover the inaccessible case as
// well as the truly missing one, so callers cannot leak resource existence to
// non-members.
var (
	ErrRequestNotFound     = errors.New("request not found")
	ErrEnvironmentNotFound = errors.New("environment not found")
)

// Engine executes stored requests and records every attempt. The HTTP client
// enforces the execution timeout; redirects are followed with the client's
// default policy.
type Engine struct {
	requests     *repositories.RequestRepository
	environments *repositories.EnvironmentRepository
	history      *repositories.HistoryRepository
	client       *http.Client
	maxBodyBytes int64
}

// NewEngine creates an execution engine. maxBodyBytes caps how much of the
// upstream response body is captured into history.
func NewEngine(
	requests *repositories.RequestRepository,
	environments *repositories.EnvironmentRepository,
	history *repositories.HistoryRepository,
	timeout time.Duration,
	maxBodyBytes int64,
) *Engine {
	return &Engine{
		requests:     requests,
		environments: environments,
		history:      history,
		client:       &http.Client{Timeout: timeout},
		maxBodyBytes: maxBodyBytes,
	}
}

// Execute runs a stored request on behalf of userID and appends exactly one
// history row for the attempt. An upstream response with any status code is a
// successful execution; only transport-level failures produce an error record.
// environmentID selects the variable set; nil executes the template as stored.
func (e *Engine) Execute(ctx context.Context, requestID string, environmentID *string, userID string) (*models.ExecutionRecord, error) {
	def, err := e.requests.GetByIDForUser(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, ErrRequestNotFound
	}

	variables := map[string]string{}
	if environmentID != nil {
		env, err := e.environments.GetByIDForUser(ctx, *environmentID, userID)
		if err != nil {
			return nil, err
		}
		if env == nil {
			return nil, ErrEnvironmentNotFound
		}
		if env.WorkspaceID != def.WorkspaceID {
			return nil, ErrEnvironmentNotFound
		}
		variables = env.Variables
	}

	mat, err := Materialize(def, variables)
	if err != nil {
		return nil, err
	}

	record := &models.ExecutionRecord{
		RequestID: def.ID,
		UserID:    userID,
	}

	start := time.Now()
	resp, callErr := e.do(ctx, mat)
	elapsed := time.Since(start)
	record.DurationMs = elapsed.Milliseconds()

	if callErr != nil {
		record.Error = classifyError(callErr)
		slog.Warn("request execution failed",
			"request_id", def.ID,
			"method", mat.Method,
			"duration_ms", record.DurationMs,
			"error", callErr)
	} else {
		defer resp.Body.Close()
		status := resp.StatusCode
		record.StatusCode = &status
		record.ResponseHeaders = flattenHeaders(resp.Header)

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, e.maxBodyBytes))
		if readErr != nil {
			// keep the truncated capture; the execution itself succeeded
			slog.Warn("failed to read full response body", "request_id", def.ID, "error", readErr)
		}
		text := string(body)
		record.ResponseBody = &text

		slog.Info("request executed",
			"request_id", def.ID,
			"method", mat.Method,
			"status", status,
			"duration_ms", record.DurationMs)
	}

	telemetry.RequestExecutionsTotal.
		WithLabelValues(telemetry.ExecutionOutcomeLabel(record.StatusCode)).Inc()
	telemetry.RequestExecutionDuration.Observe(elapsed.Seconds())

	if err := e.history.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (e *Engine) do(ctx context.Context, mat *MaterializedRequest) (*http.Response, error) {
	var body io.Reader
	if mat.Body != nil {
		body = strings.NewReader(*mat.Body)
	}

	req, err := http.NewRequestWithContext(ctx, mat.Method, mat.URL, body)
	if err != nil {
		return nil, err
	}
	for name, value := range mat.Headers {
		req.Header.Set(name, value)
	}
	return e.client.Do(req)
}

// classifyError maps a transport failure to an execution error descriptor.
// HTTP-level outcomes never reach this path.
func classifyError(err error) *models.ExecutionError {
	execErr := &models.ExecutionError{
		Message: err.Error(),
		Type:    models.ExecutionErrorTypeNetwork,
	}

	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		execErr.Code = "TIMEOUT"
	case errors.As(err, &netErr) && netErr.Timeout():
		execErr.Code = "TIMEOUT"
	case strings.Contains(err.Error(), "connection refused"):
		execErr.Code = "CONNECTION_REFUSED"
	case strings.Contains(err.Error(), "no such host"):
		execErr.Code = "DNS_FAILURE"
	}
	return execErr
}

// flattenHeaders keeps the first value of each response header. History stores
// a flat map; repeated headers are rare in practice and the first value is the
// one clients act on.
func flattenHeaders(h http.Header) map[string]string {
	flat := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}
	return flat
}
