package library

import (
	"context"

	models "librarian/internal/domain/models/library"
)

// PermissionRepository stores (resource, role, action) grants as a set
type PermissionRepository interface {
	// Grant adds a grant; granting twice is a no-op
	Grant(ctx context.Context, grant models.PermissionGrant) error

	// Revoke removes a grant; revoking a missing grant is a no-op
	Revoke(ctx context.Context, grant models.PermissionGrant) error

	// ListByResource returns every grant attached to a resource
	ListByResource(ctx context.Context, resourceID string) ([]models.PermissionGrant, error)

	// ListByResourceAction returns the roles granted action on a resource
	ListByResourceAction(ctx context.Context, resourceID string, action models.Action) ([]string, error)

	// ReplaceForAction makes roleIDs the exact role set for (resource, action)
	ReplaceForAction(ctx context.Context, resourceID string, kind models.ResourceKind, action models.Action, roleIDs []string) error
}
