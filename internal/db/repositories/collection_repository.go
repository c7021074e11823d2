// collection_repository.go implements CollectionRepository for collections and
// folders. Collections belong to a workspace; folders belong to a collection.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apivault/apivault/internal/db/models"
)

// CollectionRepository handles database operations for collections and folders
type CollectionRepository struct {
	db *sql.DB
}

// NewCollectionRepository creates a new collection repository
func NewCollectionRepository(db *sql.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Create inserts a new collection
func (r *CollectionRepository) Create(ctx context.Context, c *models.Collection) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO collections (name, description, workspace_id, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, c.Name, c.Description, c.WorkspaceID, c.CreatedBy).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// GetByID retrieves a collection by ID
func (r *CollectionRepository) GetByID(ctx context.Context, id string) (*models.Collection, error) {
	c := &models.Collection{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, workspace_id, created_by, created_at, updated_at
		FROM collections
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Description, &c.WorkspaceID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return c, nil
}

// ListByWorkspace returns all collections in a workspace
func (r *CollectionRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Collection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, workspace_id, created_by, created_at, updated_at
		FROM collections
		WHERE workspace_id = $1
		ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := make([]*models.Collection, 0)
	for rows.Next() {
		c := &models.Collection{}
		err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.WorkspaceID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// Update applies a partial update
func (r *CollectionRepository) Update(ctx context.Context, id string, update models.CollectionUpdate) error {
	if update.IsEmpty() {
		return fmt.Errorf("no fields to update")
	}

	query := `UPDATE collections SET updated_at = NOW()`
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

	query += fmt.Sprintf(` WHERE id = $%d`, paramIndex)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a collection; cascades remove its folders and requests
func (r *CollectionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// === Folder Operations ===

// CreateFolder inserts a folder under a collection
func (r *CollectionRepository) CreateFolder(ctx context.Context, f *models.Folder) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO folders (name, collection_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, f.Name, f.CollectionID).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// GetFolderByID retrieves a folder by ID
func (r *CollectionRepository) GetFolderByID(ctx context.Context, id string) (*models.Folder, error) {
	f := &models.Folder{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, collection_id, created_at, updated_at
		FROM folders
		WHERE id = $1
	`, id).Scan(&f.ID, &f.Name, &f.CollectionID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return f, nil
}

// ListFolders returns the folders in a collection
func (r *CollectionRepository) ListFolders(ctx context.Context, collectionID string) ([]*models.Folder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, collection_id, created_at, updated_at
		FROM folders
		WHERE collection_id = $1
		ORDER BY name ASC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	folders := make([]*models.Folder, 0)
	for rows.Next() {
		f := &models.Folder{}
		err := rows.Scan(&f.ID, &f.Name, &f.CollectionID, &f.CreatedAt, &f.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// RenameFolder updates a folder's name
func (r *CollectionRepository) RenameFolder(ctx context.Context, id, name string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE folders SET name = $1, updated_at = NOW() WHERE id = $2
	`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteFolder removes a folder; requests inside it keep their collection but
// lose the folder reference via ON DELETE SET NULL.
func (r *CollectionRepository) DeleteFolder(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
