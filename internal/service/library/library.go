// Package library implements the library, folder and content services.
// Every operation resolves its target, then checks the caller's permission
// before touching the repositories; admin-only operations check the
// identity's admin flag instead.
package library

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"librarian/internal/domain"
	"librarian/internal/domain/models"
	libModels "librarian/internal/domain/models/library"
	"librarian/internal/domain/repositories"
	libraryRepo "librarian/internal/domain/repositories/library"
	libSvc "librarian/internal/domain/services/library"
)

// libraryService implements the LibraryService interface
type libraryService struct {
	resolver
	perms   libraryRepo.PermissionRepository
	checker *PermissionChecker
	txm     repositories.TransactionManager
	logger  *slog.Logger
}

// NewLibraryService creates a new library service
func NewLibraryService(
	libraries libraryRepo.LibraryRepository,
	folders libraryRepo.FolderRepository,
	perms libraryRepo.PermissionRepository,
	checker *PermissionChecker,
	txm repositories.TransactionManager,
	logger *slog.Logger,
) libSvc.LibraryService {
	return &libraryService{
		resolver: resolver{libraries: libraries, folders: folders},
		perms:    perms,
		checker:  checker,
		txm:      txm,
		logger:   logger,
	}
}

func requireAdmin(identity models.Identity, action string) error {
	if !identity.Admin {
		return &domain.ForbiddenError{Message: "only administrators can " + action}
	}
	return nil
}

// CreateLibrary creates a library and its root folder in one transaction
func (s *libraryService) CreateLibrary(ctx context.Context, identity models.Identity, req *libSvc.CreateLibraryRequest) (*libModels.Library, error) {
	if err := requireAdmin(identity, "create libraries"); err != nil {
		return nil, err
	}
	if err := validateCreateLibrary(req); err != nil {
		return nil, validationFailed(err)
	}

	now := time.Now()
	lib := &libModels.Library{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Synopsis:    req.Synopsis,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.txm.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.libraries.Create(txCtx, lib); err != nil {
			return err
		}
		root := &libModels.Folder{
			LibraryID:   lib.ID,
			Name:        lib.Name,
			Description: lib.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.folders.Create(txCtx, root); err != nil {
			return err
		}
		if err := s.libraries.SetRootFolder(txCtx, lib.ID, root.ID); err != nil {
			return err
		}
		lib.RootFolderID = root.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("library created",
		"id", lib.ID,
		"name", lib.Name,
		"root_folder_id", lib.RootFolderID,
		"user_id", identity.UserID,
	)

	return lib, nil
}

// GetLibrary retrieves a library the caller can access
func (s *libraryService) GetLibrary(ctx context.Context, identity models.Identity, id string) (*libModels.Library, error) {
	lib, err := s.library(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Require(ctx, identity, libraryRef(lib.ID), libModels.ActionAccess); err != nil {
		return nil, err
	}
	return lib, nil
}

// ListLibraries lists the libraries the caller can access
func (s *libraryService) ListLibraries(ctx context.Context, identity models.Identity, includeDeleted bool) ([]libModels.Library, error) {
	libraries, err := s.libraries.List(ctx, includeDeleted && identity.Admin)
	if err != nil {
		return nil, err
	}
	if identity.Admin {
		return libraries, nil
	}

	visible := make([]libModels.Library, 0, len(libraries))
	for _, lib := range libraries {
		decision, err := s.checker.Check(ctx, identity, libraryRef(lib.ID), libModels.ActionAccess)
		if err != nil {
			return nil, err
		}
		if decision.Allowed {
			visible = append(visible, lib)
		}
	}
	return visible, nil
}

// UpdateLibrary applies a partial update
func (s *libraryService) UpdateLibrary(ctx context.Context, identity models.Identity, id string, req *libSvc.UpdateLibraryRequest) (*libModels.Library, error) {
	if err := requireAdmin(identity, "update libraries"); err != nil {
		return nil, err
	}
	if err := validateUpdateLibrary(req); err != nil {
		return nil, validationFailed(err)
	}

	patch := libModels.LibraryPatch{
		Name:        trimmed(req.Name),
		Description: req.Description,
		Synopsis:    req.Synopsis,
	}
	if patch.IsEmpty() {
		return s.libraries.GetByID(ctx, id)
	}

	lib, err := s.libraries.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("library updated",
		"id", lib.ID,
		"name", lib.Name,
		"user_id", identity.UserID,
	)

	return lib, nil
}

// DeleteLibrary flips the deleted flag; repeating a call changes nothing
func (s *libraryService) DeleteLibrary(ctx context.Context, identity models.Identity, id string, undelete bool) (*libModels.Library, error) {
	if err := requireAdmin(identity, "delete libraries"); err != nil {
		return nil, err
	}

	lib, err := s.libraries.SetDeleted(ctx, id, !undelete)
	if err != nil {
		return nil, err
	}

	s.logger.Info("library deleted flag set",
		"id", lib.ID,
		"deleted", lib.Deleted,
		"user_id", identity.UserID,
	)

	return lib, nil
}

// GetPermissions lists the library's grants per action
func (s *libraryService) GetPermissions(ctx context.Context, identity models.Identity, id string) (*libModels.LibraryPermissions, error) {
	lib, err := s.library(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Require(ctx, identity, libraryRef(lib.ID), libModels.ActionManage); err != nil {
		return nil, err
	}

	grants, err := s.perms.ListByResource(ctx, lib.ID)
	if err != nil {
		return nil, err
	}
	perms := libModels.GroupByAction(grants)
	return &perms, nil
}

// SetPermissions replaces the role lists supplied in req atomically
func (s *libraryService) SetPermissions(ctx context.Context, identity models.Identity, id string, req *libSvc.SetPermissionsRequest) (*libModels.LibraryPermissions, error) {
	lib, err := s.library(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Require(ctx, identity, libraryRef(lib.ID), libModels.ActionManage); err != nil {
		return nil, err
	}
	if err := validateSetPermissions(req); err != nil {
		return nil, validationFailed(err)
	}

	updates := map[libModels.Action][]string{}
	if req.AccessRoleIDs != nil {
		updates[libModels.ActionAccess] = dedupe(req.AccessRoleIDs)
	}
	if req.ModifyRoleIDs != nil {
		updates[libModels.ActionModify] = dedupe(req.ModifyRoleIDs)
	}
	if req.ManageRoleIDs != nil {
		updates[libModels.ActionManage] = dedupe(req.ManageRoleIDs)
	}

	err = s.txm.ExecTx(ctx, func(txCtx context.Context) error {
		for _, action := range libModels.AllActions {
			roles, ok := updates[action]
			if !ok {
				continue
			}
			if err := s.perms.ReplaceForAction(txCtx, lib.ID, libModels.KindLibrary, action, roles); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("library permissions set",
		"id", lib.ID,
		"actions", len(updates),
		"user_id", identity.UserID,
	)

	grants, err := s.perms.ListByResource(ctx, lib.ID)
	if err != nil {
		return nil, err
	}
	perms := libModels.GroupByAction(grants)
	return &perms, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
