// workspace_repository.go implements WorkspaceRepository, providing database
// queries for workspace CRUD, membership management, and role lookup. Membership
// rows are the sole authority for workspace-scoped access, so every accessor
// that feeds an authorization decision lives here.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/apivault/apivault/internal/db/models"
)

// WorkspaceRepository handles database operations for workspaces and memberships
type WorkspaceRepository struct {
	db *sql.DB
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(db *sql.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Create inserts a workspace and the creator's owner membership in one
// transaction, so a workspace can never exist without an owner member.
func (r *WorkspaceRepository) Create(ctx context.Context, ws *models.Workspace) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO workspaces (name, description, type, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, ws.Name, ws.Description, ws.Type, ws.OwnerID).Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspace_members (user_id, workspace_id, role_id)
		SELECT $1, $2, id FROM roles WHERE name = 'owner'
	`, ws.OwnerID, ws.ID)
	if err != nil {
		return fmt.Errorf("failed to assign owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workspace creation: %w", err)
	}
	return nil
}

// GetByID retrieves a workspace by ID
func (r *WorkspaceRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	query := `
		SELECT id, name, description, type, owner_id, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`

	ws := &models.Workspace{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ws.ID,
		&ws.Name,
		&ws.Description,
		&ws.Type,
		&ws.OwnerID,
		&ws.CreatedAt,
		&ws.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// ListForUser returns the workspaces the user is a member of, with their role
func (r *WorkspaceRepository) ListForUser(ctx context.Context, userID string) ([]*models.WorkspaceWithRole, error) {
	query := `
		SELECT w.id, w.name, w.description, w.type, w.owner_id, w.created_at, w.updated_at,
		       r.name AS role_name, r.permissions
		FROM workspaces w
		JOIN workspace_members wm ON w.id = wm.workspace_id
		JOIN roles r ON wm.role_id = r.id
		WHERE wm.user_id = $1
		ORDER BY w.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	workspaces := make([]*models.WorkspaceWithRole, 0)
	for rows.Next() {
		ws := &models.WorkspaceWithRole{}
		var permissionsJSON []byte
		err := rows.Scan(
			&ws.ID,
			&ws.Name,
			&ws.Description,
			&ws.Type,
			&ws.OwnerID,
			&ws.CreatedAt,
			&ws.UpdatedAt,
			&ws.UserRole,
			&permissionsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		if err := json.Unmarshal(permissionsJSON, &ws.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode role permissions: %w", err)
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, rows.Err()
}

// Update applies a partial update
func (r *WorkspaceRepository) Update(ctx context.Context, id string, update models.WorkspaceUpdate) error {
	if update.IsEmpty() {
		return fmt.Errorf("no fields to update")
	}

	query := `UPDATE workspaces SET updated_at = NOW()`
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
	if update.Type != nil {
		query += fmt.Sprintf(`, type = $%d`, paramIndex)
		args = append(args, *update.Type)
		paramIndex++
	}

	query += fmt.Sprintf(` WHERE id = $%d`, paramIndex)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a workspace; cascades take members, collections, requests, and history
func (r *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// === Membership Operations ===

// GetMembership retrieves a user's membership in a workspace joined with its
// role, or nil when the user is not a member. This single query feeds both the
// hierarchy check and the capability check.
func (r *WorkspaceRepository) GetMembership(ctx context.Context, workspaceID, userID string) (*models.MembershipWithRole, error) {
	query := `
		SELECT wm.id, wm.user_id, wm.workspace_id, wm.role_id, wm.created_at,
		       r.name AS role_name, r.permissions
		FROM workspace_members wm
		JOIN roles r ON wm.role_id = r.id
		WHERE wm.workspace_id = $1 AND wm.user_id = $2
	`

	m := &models.MembershipWithRole{}
	var permissionsJSON []byte
	err := r.db.QueryRowContext(ctx, query, workspaceID, userID).Scan(
		&m.ID,
		&m.UserID,
		&m.WorkspaceID,
		&m.RoleID,
		&m.CreatedAt,
		&m.RoleName,
		&permissionsJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not a member
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if err := json.Unmarshal(permissionsJSON, &m.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode role permissions: %w", err)
	}
	return m, nil
}

// AddMember adds a user to a workspace with the given role
// HasAdminMembership reports whether the user holds the admin or owner role in
// any workspace. Used to gate the user-management surface.
func (r *WorkspaceRepository) HasAdminMembership(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM workspace_members wm
			JOIN roles r ON wm.role_id = r.id
			WHERE wm.user_id = $1 AND r.name IN ('admin', 'owner')
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check admin membership: %w", err)
	}
	return exists, nil
}

func (r *WorkspaceRepository) AddMember(ctx context.Context, workspaceID, userID, roleID string) (*models.Membership, error) {
	m := &models.Membership{
		UserID:      userID,
		WorkspaceID: workspaceID,
		RoleID:      roleID,
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO workspace_members (user_id, workspace_id, role_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, userID, workspaceID, roleID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return m, nil
}

// UpdateMemberRole changes a member's role. Concurrent changes on the same
// membership are last-write-wins; contention is low enough that no
// optimistic-concurrency check is applied.
func (r *WorkspaceRepository) UpdateMemberRole(ctx context.Context, workspaceID, userID, roleID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE workspace_members SET role_id = $1
		WHERE workspace_id = $2 AND user_id = $3
	`, roleID, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RemoveMember removes a user from a workspace
func (r *WorkspaceRepository) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMembers returns all members of a workspace with user and role details
func (r *WorkspaceRepository) ListMembers(ctx context.Context, workspaceID string) ([]*models.MemberWithUser, error) {
	query := `
		SELECT wm.id, u.id, u.username, u.email, u.first_name, u.last_name, u.avatar_url,
		       r.id, r.name, wm.created_at
		FROM workspace_members wm
		JOIN users u ON wm.user_id = u.id
		JOIN roles r ON wm.role_id = r.id
		WHERE wm.workspace_id = $1
		ORDER BY wm.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.MemberWithUser, 0)
	for rows.Next() {
		m := &models.MemberWithUser{}
		err := rows.Scan(
			&m.MembershipID,
			&m.UserID,
			&m.Username,
			&m.Email,
			&m.FirstName,
			&m.LastName,
			&m.AvatarURL,
			&m.RoleID,
			&m.RoleName,
			&m.JoinedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
