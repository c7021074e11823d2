// history_repository.go implements HistoryRepository for the append-only
// execution log. Rows are inserted once and never updated; queries are
// paginated and ordered most recent first.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/apivault/apivault/internal/db/models"
)

// Pagination defaults for history listings
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// NormalizeHistoryPage clamps limit and offset to safe values
func NormalizeHistoryPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// HistoryRepository handles database operations for execution history
type HistoryRepository struct {
	db *sqlx.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create appends one execution record. The table CHECK constraint enforces
// that exactly one of status_code / error_message is present.
func (r *HistoryRepository) Create(ctx context.Context, rec *models.ExecutionRecord) error {
	var headersJSON interface{}
	if rec.ResponseHeaders != nil {
		b, err := json.Marshal(rec.ResponseHeaders)
		if err != nil {
			return fmt.Errorf("failed to encode response headers: %w", err)
		}
		headersJSON = b
	}

	var errorJSON interface{}
	if rec.Error != nil {
		b, err := json.Marshal(rec.Error)
		if err != nil {
			return fmt.Errorf("failed to encode execution error: %w", err)
		}
		errorJSON = b
	}

	query := `INSERT INTO request_history
			  (request_id, user_id, status_code, response_headers, response_body, duration_ms, error_message)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id, executed_at`

	err := r.db.QueryRowxContext(ctx, query,
		rec.RequestID, rec.UserID, rec.StatusCode, headersJSON, rec.ResponseBody,
		rec.DurationMs, errorJSON,
	).Scan(&rec.ID, &rec.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}
	return nil
}

func scanExecutionFields(rec *models.ExecutionRecord, headersJSON, errorJSON []byte) error {
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &rec.ResponseHeaders); err != nil {
			return fmt.Errorf("failed to decode response headers: %w", err)
		}
	}
	if len(errorJSON) > 0 {
		rec.Error = &models.ExecutionError{}
		if err := json.Unmarshal(errorJSON, rec.Error); err != nil {
			return fmt.Errorf("failed to decode execution error: %w", err)
		}
	}
	return nil
}

// ListByRequest returns execution records for one stored request, newest first
func (r *HistoryRepository) ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]*models.ExecutionRecord, error) {
	limit, offset = NormalizeHistoryPage(limit, offset)

	query := `SELECT id, request_id, user_id, status_code, response_headers, response_body,
			  duration_ms, error_message, executed_at
			  FROM request_history
			  WHERE request_id = $1
			  ORDER BY executed_at DESC
			  LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryxContext(ctx, query, requestID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution history: %w", err)
	}
	defer rows.Close()

	records := make([]*models.ExecutionRecord, 0)
	for rows.Next() {
		rec := &models.ExecutionRecord{}
		var headersJSON, errorJSON []byte
		err := rows.Scan(&rec.ID, &rec.RequestID, &rec.UserID, &rec.StatusCode,
			&headersJSON, &rec.ResponseBody, &rec.DurationMs, &errorJSON, &rec.ExecutedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		if err := scanExecutionFields(rec, headersJSON, errorJSON); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListByWorkspace returns execution records across a workspace joined with the
// request name and executor username, newest first.
func (r *HistoryRepository) ListByWorkspace(ctx context.Context, workspaceID string, limit, offset int) ([]*models.ExecutionRecordWithContext, error) {
	limit, offset = NormalizeHistoryPage(limit, offset)

	query := `SELECT h.id, h.request_id, h.user_id, h.status_code, h.response_headers, h.response_body,
			  h.duration_ms, h.error_message, h.executed_at,
			  req.name AS request_name, u.username AS executed_by
			  FROM request_history h
			  JOIN requests req ON h.request_id = req.id
			  JOIN users u ON h.user_id = u.id
			  WHERE req.workspace_id = $1
			  ORDER BY h.executed_at DESC
			  LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryxContext(ctx, query, workspaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace history: %w", err)
	}
	defer rows.Close()

	records := make([]*models.ExecutionRecordWithContext, 0)
	for rows.Next() {
		rec := &models.ExecutionRecordWithContext{}
		var headersJSON, errorJSON []byte
		err := rows.Scan(&rec.ID, &rec.RequestID, &rec.UserID, &rec.StatusCode,
			&headersJSON, &rec.ResponseBody, &rec.DurationMs, &errorJSON, &rec.ExecutedAt,
			&rec.RequestName, &rec.ExecutedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		if err := scanExecutionFields(&rec.ExecutionRecord, headersJSON, errorJSON); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetByID retrieves a single execution record along with the workspace it
// belongs to, so the caller can authorize against the owning workspace.
func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*models.ExecutionRecord, string, error) {
	query := `SELECT h.id, h.request_id, h.user_id, h.status_code, h.response_headers, h.response_body,
			  h.duration_ms, h.error_message, h.executed_at, req.workspace_id
			  FROM request_history h
			  JOIN requests req ON h.request_id = req.id
			  WHERE h.id = $1`

	rec := &models.ExecutionRecord{}
	var headersJSON, errorJSON []byte
	var workspaceID string
	err := r.db.QueryRowxContext(ctx, query, id).Scan(&rec.ID, &rec.RequestID, &rec.UserID,
		&rec.StatusCode, &headersJSON, &rec.ResponseBody, &rec.DurationMs, &errorJSON,
		&rec.ExecutedAt, &workspaceID)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get execution record: %w", err)
	}
	if err := scanExecutionFields(rec, headersJSON, errorJSON); err != nil {
		return nil, "", err
	}
	return rec, workspaceID, nil
}

// Delete removes one execution record
func (r *HistoryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM request_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete execution record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete execution record: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByRequest clears all history for one stored request
func (r *HistoryRepository) DeleteByRequest(ctx context.Context, requestID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM request_history WHERE request_id = $1`, requestID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear request history: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clear request history: %w", err)
	}
	return rows, nil
}
