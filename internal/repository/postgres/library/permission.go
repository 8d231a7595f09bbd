package library

import (
	"context"
	"fmt"

	models "librarian/internal/domain/models/library"
	libraryRepo "librarian/internal/domain/repositories/library"
	"librarian/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPermissionRepository implements the PermissionRepository interface
type PostgresPermissionRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(config *postgres.RepositoryConfig) libraryRepo.PermissionRepository {
	return &PostgresPermissionRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Grant inserts a grant; duplicates are ignored
func (r *PostgresPermissionRepository) Grant(ctx context.Context, grant models.PermissionGrant) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (resource_id, kind, role_id, action)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resource_id, action, role_id) DO NOTHING
	`, r.tables.Permissions)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, grant.ResourceID, string(grant.Kind), grant.RoleID, string(grant.Action)); err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

// Revoke deletes a grant if present
func (r *PostgresPermissionRepository) Revoke(ctx context.Context, grant models.PermissionGrant) error {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE resource_id = $1 AND action = $2 AND role_id = $3
	`, r.tables.Permissions)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, grant.ResourceID, string(grant.Action), grant.RoleID); err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	return nil
}

// ListByResource returns all grants on a resource
func (r *PostgresPermissionRepository) ListByResource(ctx context.Context, resourceID string) ([]models.PermissionGrant, error) {
	query := fmt.Sprintf(`
		SELECT resource_id, kind, role_id, action FROM %s
		WHERE resource_id = $1
		ORDER BY action, role_id
	`, r.tables.Permissions)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, resourceID)
	if err != nil {
		if postgres.IsPgInvalidIDError(err) {
			return []models.PermissionGrant{}, nil
		}
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	grants := []models.PermissionGrant{}
	for rows.Next() {
		var g models.PermissionGrant
		var kind, action string
		if err := rows.Scan(&g.ResourceID, &kind, &g.RoleID, &action); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		if g.Kind, err = models.ParseResourceKind(kind); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		if g.Action, err = models.ParseAction(action); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return grants, nil
}

// ListByResourceAction returns the role IDs granted action on a resource
func (r *PostgresPermissionRepository) ListByResourceAction(ctx context.Context, resourceID string, action models.Action) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT role_id FROM %s
		WHERE resource_id = $1 AND action = $2
		ORDER BY role_id
	`, r.tables.Permissions)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, resourceID, string(action))
	if err != nil {
		if postgres.IsPgInvalidIDError(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list permission roles: %w", err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	return roles, nil
}

// ReplaceForAction swaps the role set for one action. Callers wrap it in a
// transaction when several actions must change together.
func (r *PostgresPermissionRepository) ReplaceForAction(ctx context.Context, resourceID string, kind models.ResourceKind, action models.Action, roleIDs []string) error {
	executor := postgres.GetExecutor(ctx, r.pool)

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE resource_id = $1 AND action = $2`, r.tables.Permissions)
	if _, err := executor.Exec(ctx, deleteQuery, resourceID, string(action)); err != nil {
		return fmt.Errorf("clear permissions: %w", err)
	}

	if len(roleIDs) == 0 {
		return nil
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (resource_id, kind, role_id, action)
		SELECT $1, $2, role_id, $3 FROM unnest($4::text[]) AS role_id
		ON CONFLICT (resource_id, action, role_id) DO NOTHING
	`, r.tables.Permissions)
	if _, err := executor.Exec(ctx, insertQuery, resourceID, string(kind), string(action), roleIDs); err != nil {
		return fmt.Errorf("insert permissions: %w", err)
	}

	return nil
}
