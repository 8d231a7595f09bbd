package memory

import (
	"context"
	"sort"

	models "librarian/internal/domain/models/library"
	libraryRepo "librarian/internal/domain/repositories/library"
)

// PermissionRepository implements libraryRepo.PermissionRepository in memory
type PermissionRepository struct {
	store *Store
}

// NewPermissionRepository creates a permission repository over store
func NewPermissionRepository(store *Store) libraryRepo.PermissionRepository {
	return &PermissionRepository{store: store}
}

func (r *PermissionRepository) Grant(ctx context.Context, grant models.PermissionGrant) error {
	defer r.store.lock(ctx)()

	r.store.putGrant(ctx, grant)
	return nil
}

func (r *PermissionRepository) Revoke(ctx context.Context, grant models.PermissionGrant) error {
	defer r.store.lock(ctx)()

	r.store.deleteGrant(ctx, grantKey{resourceID: grant.ResourceID, action: grant.Action, roleID: grant.RoleID})
	return nil
}

func (r *PermissionRepository) ListByResource(ctx context.Context, resourceID string) ([]models.PermissionGrant, error) {
	defer r.store.rlock(ctx)()

	grants := []models.PermissionGrant{}
	for key, g := range r.store.grants {
		if key.resourceID == resourceID {
			grants = append(grants, g)
		}
	}
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].Action != grants[j].Action {
			return grants[i].Action < grants[j].Action
		}
		return grants[i].RoleID < grants[j].RoleID
	})
	return grants, nil
}

func (r *PermissionRepository) ListByResourceAction(ctx context.Context, resourceID string, action models.Action) ([]string, error) {
	defer r.store.rlock(ctx)()

	roles := []string{}
	for key := range r.store.grants {
		if key.resourceID == resourceID && key.action == action {
			roles = append(roles, key.roleID)
		}
	}
	sort.Strings(roles)
	return roles, nil
}

func (r *PermissionRepository) ReplaceForAction(ctx context.Context, resourceID string, kind models.ResourceKind, action models.Action, roleIDs []string) error {
	defer r.store.lock(ctx)()

	for key := range r.store.grants {
		if key.resourceID == resourceID && key.action == action {
			r.store.deleteGrant(ctx, key)
		}
	}
	for _, role := range roleIDs {
		r.store.putGrant(ctx, models.PermissionGrant{
			ResourceID: resourceID,
			Kind:       kind,
			RoleID:     role,
			Action:     action,
		})
	}
	return nil
}
