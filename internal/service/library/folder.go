package library

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"librarian/internal/domain"
	"librarian/internal/domain/models"
	libModels "librarian/internal/domain/models/library"
	libraryRepo "librarian/internal/domain/repositories/library"
	libSvc "librarian/internal/domain/services/library"
)

// folderService implements the FolderService interface
type folderService struct {
	resolver
	checker *PermissionChecker
	logger  *slog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	libraries libraryRepo.LibraryRepository,
	folders libraryRepo.FolderRepository,
	datasets libraryRepo.DatasetRepository,
	checker *PermissionChecker,
	logger *slog.Logger,
) libSvc.FolderService {
	return &folderService{
		resolver: resolver{libraries: libraries, folders: folders, datasets: datasets},
		checker:  checker,
		logger:   logger,
	}
}

// CreateFolder creates a folder under the parent folder, or under the
// library root when no parent is given
func (s *folderService) CreateFolder(ctx context.Context, identity models.Identity, req *libSvc.CreateFolderRequest) (*libModels.Folder, error) {
	parent, lib, err := s.parentFor(ctx, req)
	if err != nil {
		return nil, err
	}
	if lib.Deleted || parent.Deleted {
		return nil, notFound("folder", parent.ID)
	}

	if err := s.checker.Require(ctx, identity, folderRef(parent.ID), libModels.ActionModify); err != nil {
		return nil, err
	}
	if err := validateCreateFolder(req); err != nil {
		return nil, validationFailed(err)
	}

	now := time.Now()
	folder := &libModels.Folder{
		LibraryID:   lib.ID,
		ParentID:    &parent.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, err
	}

	s.logger.Info("folder created",
		"id", folder.ID,
		"name", folder.Name,
		"parent_id", parent.ID,
		"library_id", lib.ID,
		"user_id", identity.UserID,
	)

	return folder, nil
}

func (s *folderService) parentFor(ctx context.Context, req *libSvc.CreateFolderRequest) (*libModels.Folder, *libModels.Library, error) {
	if req.ParentFolderID == "" {
		if req.LibraryID == "" {
			return nil, nil, &domain.ValidationError{Message: "library id or parent folder id is required"}
		}
		lib, err := s.libraries.GetByID(ctx, req.LibraryID)
		if err != nil {
			return nil, nil, err
		}
		root, err := s.folders.GetByID(ctx, lib.RootFolderID)
		if err != nil {
			return nil, nil, err
		}
		return root, lib, nil
	}

	parent, err := s.folders.GetByID(ctx, req.ParentFolderID)
	if err != nil {
		return nil, nil, err
	}
	if req.LibraryID != "" && parent.LibraryID != req.LibraryID {
		return nil, nil, notFound("folder", req.ParentFolderID)
	}
	lib, err := s.libraries.GetByID(ctx, parent.LibraryID)
	if err != nil {
		return nil, nil, err
	}
	return parent, lib, nil
}

// GetFolder retrieves a folder the caller can access
func (s *folderService) GetFolder(ctx context.Context, identity models.Identity, id string) (*libModels.Folder, error) {
	folder, _, err := s.folderWithLibrary(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Require(ctx, identity, folderRef(folder.ID), libModels.ActionAccess); err != nil {
		return nil, err
	}
	return folder, nil
}

// ListContents returns a folder with the child folders and datasets the
// caller can see. Deleted children are only included for admins, and a
// deleted library lists no children unless includeDeleted is set.
func (s *folderService) ListContents(ctx context.Context, identity models.Identity, libraryID, folderID string, includeDeleted bool) (*libModels.FolderContents, error) {
	lib, err := s.library(ctx, identity, libraryID)
	if err != nil {
		return nil, err
	}
	folder, err := s.folder(ctx, identity, lib, folderID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Require(ctx, identity, folderRef(folder.ID), libModels.ActionAccess); err != nil {
		return nil, err
	}

	includeDeleted = includeDeleted && identity.Admin
	if lib.Deleted && !includeDeleted {
		return &libModels.FolderContents{
			Folder:   folder,
			Folders:  []libModels.Folder{},
			Datasets: []libModels.Dataset{},
		}, nil
	}

	children, err := s.folders.ListChildren(ctx, folder.ID, includeDeleted)
	if err != nil {
		return nil, err
	}
	visible := make([]libModels.Folder, 0, len(children))
	for _, child := range children {
		decision, err := s.checker.Check(ctx, identity, folderRef(child.ID), libModels.ActionAccess)
		if err != nil {
			return nil, err
		}
		if decision.Allowed {
			visible = append(visible, child)
		}
	}

	datasets, err := s.datasets.ListByFolder(ctx, folder.ID, includeDeleted)
	if err != nil {
		return nil, err
	}

	return &libModels.FolderContents{
		Folder:   folder,
		Folders:  visible,
		Datasets: datasets,
	}, nil
}

// UpdateFolder applies a partial update
func (s *folderService) UpdateFolder(ctx context.Context, identity models.Identity, id string, req *libSvc.UpdateFolderRequest) (*libModels.Folder, error) {
	folder, _, err := s.folderWithLibrary(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Require(ctx, identity, folderRef(folder.ID), libModels.ActionModify); err != nil {
		return nil, err
	}
	if err := validateUpdateFolder(req); err != nil {
		return nil, validationFailed(err)
	}

	patch := libModels.FolderPatch{Name: trimmed(req.Name), Description: req.Description}
	if patch.Name == nil && patch.Description == nil {
		return folder, nil
	}

	updated, err := s.folders.Update(ctx, folder.ID, patch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder updated",
		"id", updated.ID,
		"name", updated.Name,
		"user_id", identity.UserID,
	)

	return updated, nil
}

// DeleteFolder flips the folder's deleted flag. Children are not touched.
func (s *folderService) DeleteFolder(ctx context.Context, identity models.Identity, id string, undelete bool) (*libModels.Folder, error) {
	folder, err := s.folders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.owner(ctx, folder.LibraryID); err != nil {
		return nil, err
	}
	if folder.IsRoot() {
		return nil, &domain.ValidationError{Message: "a library root folder cannot be deleted; delete the library instead"}
	}
	if err := s.checker.Require(ctx, identity, folderRef(folder.ID), libModels.ActionModify); err != nil {
		return nil, err
	}

	updated, err := s.folders.SetDeleted(ctx, folder.ID, !undelete)
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder deleted flag set",
		"id", updated.ID,
		"deleted", updated.Deleted,
		"user_id", identity.UserID,
	)

	return updated, nil
}
