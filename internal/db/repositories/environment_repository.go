// environment_repository.go implements EnvironmentRepository, providing
// database queries for workspace environments. Variable values are sealed by
// the injected cipher before they reach storage and opened on the way out, so
// callers only ever see plaintext maps.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/apivault/apivault/internal/crypto"
	"github.com/apivault/apivault/internal/db/models"
)

// EnvironmentRepository handles database operations for environments
type EnvironmentRepository struct {
	db     *sqlx.DB
	cipher *crypto.EnvCipher
}

// NewEnvironmentRepository creates a new environment repository
func NewEnvironmentRepository(db *sqlx.DB, cipher *crypto.EnvCipher) *EnvironmentRepository {
	return &EnvironmentRepository{db: db, cipher: cipher}
}

func (r *EnvironmentRepository) sealVariables(vars map[string]string) ([]byte, error) {
	sealed, err := r.cipher.SealMap(vars)
	if err != nil {
		return nil, fmt.Errorf("failed to seal variables: %w", err)
	}
	if sealed == nil {
		sealed = map[string]string{}
	}
	b, err := json.Marshal(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode variables: %w", err)
	}
	return b, nil
}

func (r *EnvironmentRepository) openVariables(raw []byte) (map[string]string, error) {
	sealed := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sealed); err != nil {
			return nil, fmt.Errorf("failed to decode variables: %w", err)
		}
	}
	vars, err := r.cipher.OpenMap(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open variables: %w", err)
	}
	if vars == nil {
		vars = map[string]string{}
	}
	return vars, nil
}

// Create inserts a new environment
func (r *EnvironmentRepository) Create(ctx context.Context, env *models.Environment) error {
	varsJSON, err := r.sealVariables(env.Variables)
	if err != nil {
		return err
	}

	query := `INSERT INTO environments (name, workspace_id, variables)
			  VALUES ($1, $2, $3)
			  RETURNING id, created_at, updated_at`

	err = r.db.QueryRowxContext(ctx, query, env.Name, env.WorkspaceID, varsJSON).
		Scan(&env.ID, &env.CreatedAt, &env.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create environment: %w", err)
	}
	if env.Variables == nil {
		env.Variables = map[string]string{}
	}
	return nil
}

// GetByID retrieves an environment by ID
func (r *EnvironmentRepository) GetByID(ctx context.Context, id string) (*models.Environment, error) {
	query := `SELECT id, name, workspace_id, variables, created_at, updated_at
			  FROM environments WHERE id = $1`

	var env models.Environment
	var varsJSON []byte
	err := r.db.QueryRowxContext(ctx, query, id).Scan(
		&env.ID, &env.Name, &env.WorkspaceID, &varsJSON, &env.CreatedAt, &env.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}
	if env.Variables, err = r.openVariables(varsJSON); err != nil {
		return nil, err
	}
	return &env, nil
}

// GetByIDForUser retrieves an environment only if the user is a member of its
// workspace. Non-members and missing environments both return nil.
func (r *EnvironmentRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Environment, error) {
	query := `SELECT e.id, e.name, e.workspace_id, e.variables, e.created_at, e.updated_at
			  FROM environments e
			  JOIN workspace_members wm ON e.workspace_id = wm.workspace_id
			  WHERE e.id = $1 AND wm.user_id = $2`

	var env models.Environment
	var varsJSON []byte
	err := r.db.QueryRowxContext(ctx, query, id, userID).Scan(
		&env.ID, &env.Name, &env.WorkspaceID, &varsJSON, &env.CreatedAt, &env.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}
	if env.Variables, err = r.openVariables(varsJSON); err != nil {
		return nil, err
	}
	return &env, nil
}

// ListByWorkspace returns all environments in a workspace
func (r *EnvironmentRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*models.Environment, error) {
	query := `SELECT id, name, workspace_id, variables, created_at, updated_at
			  FROM environments WHERE workspace_id = $1
			  ORDER BY name ASC`

	rows, err := r.db.QueryxContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	defer rows.Close()

	environments := make([]*models.Environment, 0)
	for rows.Next() {
		var env models.Environment
		var varsJSON []byte
		if err := rows.Scan(&env.ID, &env.Name, &env.WorkspaceID, &varsJSON, &env.CreatedAt, &env.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}
		if env.Variables, err = r.openVariables(varsJSON); err != nil {
			return nil, err
		}
		environments = append(environments, &env)
	}
	return environments, rows.Err()
}

// Update applies a partial update. A nil Variables map leaves the stored
// variables untouched; an empty non-nil map clears them.
func (r *EnvironmentRepository) Update(ctx context.Context, id string, update models.EnvironmentUpdate) error {
	if update.IsEmpty() {
		return fmt.Errorf("no fields to update")
	}

	query := `UPDATE environments SET updated_at = NOW()`
	args := make([]interface{}, 0)
	paramIndex := 1

	if update.Name != nil {
		query += fmt.Sprintf(`, name = $%d`, paramIndex)
		args = append(args, *update.Name)
		paramIndex++
	}
	if update.Variables != nil {
		varsJSON, err := r.sealVariables(update.Variables)
		if err != nil {
			return err
		}
		query += fmt.Sprintf(`, variables = $%d`, paramIndex)
		args = append(args, varsJSON)
		paramIndex++
	}

	query += fmt.Sprintf(` WHERE id = $%d`, paramIndex)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update environment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update environment: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an environment
func (r *EnvironmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM environments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete environment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete environment: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
