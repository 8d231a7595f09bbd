package library

import (
	"context"
	"fmt"
	"log/slog"

	"librarian/internal/domain"
	"librarian/internal/domain/models"
	libModels "librarian/internal/domain/models/library"
	libraryRepo "librarian/internal/domain/repositories/library"
)

// Decision is the outcome of a permission check. Source is the level of the
// resource chain whose grants decided it; nil when no level restricted the
// action or the caller is an admin.
type Decision struct {
	Allowed bool
	Reason  string
	Source  *libModels.ResourceRef
}

// PermissionChecker resolves grants along the resource chain
// dataset -> folder -> ancestor folders -> library. The nearest level
// holding any grant for the action decides; with no grants anywhere,
// access is allowed and modify/manage are denied. Admins always pass.
type PermissionChecker struct {
	folders  libraryRepo.FolderRepository
	datasets libraryRepo.DatasetRepository
	perms    libraryRepo.PermissionRepository
	logger   *slog.Logger
}

// NewPermissionChecker creates a permission checker
func NewPermissionChecker(
	folders libraryRepo.FolderRepository,
	datasets libraryRepo.DatasetRepository,
	perms libraryRepo.PermissionRepository,
	logger *slog.Logger,
) *PermissionChecker {
	return &PermissionChecker{
		folders:  folders,
		datasets: datasets,
		perms:    perms,
		logger:   logger,
	}
}

// Check evaluates action on ref for identity
func (c *PermissionChecker) Check(ctx context.Context, identity models.Identity, ref libModels.ResourceRef, action libModels.Action) (Decision, error) {
	if identity.Admin {
		return Decision{Allowed: true, Reason: "admin"}, nil
	}

	chain, err := c.chain(ctx, ref)
	if err != nil {
		return Decision{}, err
	}

	for i := range chain {
		level := chain[i]
		if !level.Kind.Grantable() {
			continue
		}
		roles, err := c.perms.ListByResourceAction(ctx, level.ID, action)
		if err != nil {
			return Decision{}, fmt.Errorf("load %s grants for %s %s: %w", action, level.Kind, level.ID, err)
		}
		if len(roles) == 0 {
			continue
		}
		if identity.HasAnyRole(roles) {
			return Decision{Allowed: true, Reason: "role granted", Source: &level}, nil
		}
		return Decision{Allowed: false, Reason: "no granted role", Source: &level}, nil
	}

	if action.DefaultAllowed() {
		return Decision{Allowed: true, Reason: "unrestricted"}, nil
	}
	return Decision{Allowed: false, Reason: "no grant"}, nil
}

// Require is Check returning a ForbiddenError on deny
func (c *PermissionChecker) Require(ctx context.Context, identity models.Identity, ref libModels.ResourceRef, action libModels.Action) error {
	decision, err := c.Check(ctx, identity, ref, action)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		c.logger.Debug("permission denied",
			"user_id", identity.UserID,
			"kind", ref.Kind,
			"resource_id", ref.ID,
			"action", action,
			"reason", decision.Reason,
		)
		return domain.Forbidden(string(action), string(ref.Kind), ref.ID)
	}
	return nil
}

// chain lists the resolution levels for ref, nearest first
func (c *PermissionChecker) chain(ctx context.Context, ref libModels.ResourceRef) ([]libModels.ResourceRef, error) {
	switch ref.Kind {
	case libModels.KindLibrary:
		return []libModels.ResourceRef{ref}, nil

	case libModels.KindFolder:
		folder, err := c.folders.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return c.folderChain(ctx, folder, ref)

	case libModels.KindDataset:
		ds, err := c.datasets.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		folder, err := c.folders.GetByID(ctx, ds.FolderID)
		if err != nil {
			return nil, err
		}
		return c.folderChain(ctx, folder, ref)

	default:
		return nil, fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
}

func (c *PermissionChecker) folderChain(ctx context.Context, folder *libModels.Folder, head libModels.ResourceRef) ([]libModels.ResourceRef, error) {
	ancestors, err := c.folders.Ancestors(ctx, folder.ID)
	if err != nil {
		return nil, err
	}

	chain := make([]libModels.ResourceRef, 0, len(ancestors)+3)
	if head.Kind != libModels.KindFolder {
		chain = append(chain, head)
	}
	chain = append(chain, libModels.ResourceRef{ID: folder.ID, Kind: libModels.KindFolder})
	for _, a := range ancestors {
		chain = append(chain, libModels.ResourceRef{ID: a.ID, Kind: libModels.KindFolder})
	}
	chain = append(chain, libModels.ResourceRef{ID: folder.LibraryID, Kind: libModels.KindLibrary})
	return chain, nil
}
