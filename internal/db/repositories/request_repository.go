// request_repository.go implements RequestRepository for stored request
// templates. Headers and query parameters are persisted as JSONB; the helper
// scanRequest centralizes decoding so every accessor returns fully hydrated
// models.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/apivault/apivault/internal/db/models"
)

// RequestRepository handles database operations for stored requests
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func marshalStringMap(m map[string]string) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode map: %w", err)
	}
	return b, nil
}

func unmarshalStringMap(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode map: %w", err)
	}
	return m, nil
}

// Create inserts a new stored request
func (r *RequestRepository) Create(ctx context.Context, req *models.RequestDefinition) error {
	headers, err := marshalStringMap(req.Headers)
	if err != nil {
		return err
	}
	params, err := marshalStringMap(req.QueryParams)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO requests (name, description, method, url, headers, body, query_params,
		                      collection_id, folder_id, workspace_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, req.Name, req.Description, req.Method, req.URL, headers, req.Body, params,
		req.CollectionID, req.FolderID, req.WorkspaceID, req.CreatedBy,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func scanRequest(row interface{ Scan(...interface{}) error }) (*models.RequestDefinition, error) {
	req := &models.RequestDefinition{}
	var headersJSON, paramsJSON []byte
	err := row.Scan(
		&req.ID,
		&req.Name,
		&req.Description,
		&req.Method,
		&req.URL,
		&headersJSON,
		&req.Body,
		&paramsJSON,
		&req.CollectionID,
		&req.FolderID,
		&req.WorkspaceID,
		&req.CreatedBy,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if req.Headers, err = unmarshalStringMap(headersJSON); err != nil {
		return nil, err
	}
	if req.QueryParams, err = unmarshalStringMap(paramsJSON); err != nil {
		return nil, err
	}
	return req, nil
}

const requestColumns = `id, name, description, method, url, headers, body, query_params,
	collection_id, folder_id, workspace_id, created_by, created_at, updated_at`

// GetByID retrieves a stored request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.RequestDefinition, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE id = $1
	`, id)

	req, err := scanRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// GetByIDForUser retrieves a stored request only if the user is a member of its
// workspace. Non-members and missing requests are indistinguishable; both
// return nil.
func (r *RequestRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.RequestDefinition, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT r.id, r.name, r.description, r.method, r.url, r.headers, r.body, r.query_params,
		       r.collection_id, r.folder_id, r.workspace_id, r.created_by, r.created_at, r.updated_at
		FROM requests r
		JOIN workspace_members wm ON r.workspace_id = wm.workspace_id
		WHERE r.id = $1 AND wm.user_id = $2
	`, id, userID)

	req, err := scanRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// ListByCollection returns the stored requests in a collection
func (r *RequestRepository) ListByCollection(ctx context.Context, collectionID string) ([]*models.RequestDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE collection_id = $1
		ORDER BY created_at DESC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*models.RequestDefinition, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// ListByFolder returns the stored requests in a folder
func (r *RequestRepository) ListByFolder(ctx context.Context, folderID string) ([]*models.RequestDefinition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE folder_id = $1
		ORDER BY created_at DESC
	`, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*models.RequestDefinition, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Update applies a partial update. Nil maps leave the stored value untouched;
// empty maps overwrite it with an empty object.
func (r *RequestRepository) Update(ctx context.Context, id string, update models.RequestUpdate) error {
	if update.IsEmpty() {
		return fmt.Errorf("no fields to update")
	}

	query := `UPDATE requests SET updated_at = NOW()`
	args := make([]interface{}, 0)
	paramIndex := 1

	if update.Name != nil {
		query += fmt.Sprintf(`, name = $%d`, paramIndex)
		args = append(args, *update.Name)
		paramIndex++
	}
	if update.Description != nil {
		query += fmt.Sprintf(`, description = $%d`, paramIndex)
		args = append(args, *update.Description)
		paramIndex++
	}
	if update.Method != nil {
		query += fmt.Sprintf(`, method = $%d`, paramIndex)
		args = append(args, *update.Method)
		paramIndex++
	}
	if update.URL != nil {
		query += fmt.Sprintf(`, url = $%d`, paramIndex)
		args = append(args, *update.URL)
		paramIndex++
	}
	if update.Headers != nil {
		headers, err := marshalStringMap(update.Headers)
		if err != nil {
			return err
		}
		query += fmt.Sprintf(`, headers = $%d`, paramIndex)
		args = append(args, headers)
		paramIndex++
	}
	if update.Body != nil {
		query += fmt.Sprintf(`, body = $%d`, paramIndex)
		args = append(args, *update.Body)
		paramIndex++
	}
	if update.QueryParams != nil {
		params, err := marshalStringMap(update.QueryParams)
		if err != nil {
			return err
		}
		query += fmt.Sprintf(`, query_params = $%d`, paramIndex)
		args = append(args, params)
		paramIndex++
	}
	if update.FolderID != nil {
		query += fmt.Sprintf(`, folder_id = $%d`, paramIndex)
		if *update.FolderID == "" {
			args = append(args, nil)
		} else {
			args = append(args, *update.FolderID)
		}
		paramIndex++
	}

	query += fmt.Sprintf(` WHERE id = $%d`, paramIndex)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a stored request; cascades remove its execution history
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
