// role_repository.go implements RoleRepository for the fixed role reference data.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/apivault/apivault/internal/db/models"
)

// RoleRepository handles database operations for the roles reference table
type RoleRepository struct {
	db *sql.DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func scanRole(row *sql.Row) (*models.Role, error) {
	role := &models.Role{}
	var permissionsJSON []byte
	err := row.Scan(&role.ID, &role.Name, &permissionsJSON, &role.Description)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode role permissions: %w", err)
	}
	return role, nil
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	query := `SELECT id, name, permissions, description FROM roles WHERE id = $1`
	return scanRole(r.db.QueryRowContext(ctx, query, id))
}

// GetByName retrieves a role by its canonical name
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	query := `SELECT id, name, permissions, description FROM roles WHERE name = $1`
	return scanRole(r.db.QueryRowContext(ctx, query, name))
}

// List returns all roles in insertion order
func (r *RoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, permissions, description FROM roles ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]*models.Role, 0)
	for rows.Next() {
		role := &models.Role{}
		var permissionsJSON []byte
		if err := rows.Scan(&role.ID, &role.Name, &permissionsJSON, &role.Description); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if err := json.Unmarshal(permissionsJSON, &role.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode role permissions: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
