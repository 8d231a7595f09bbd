package library

import (
	"context"

	models "librarian/internal/domain/models/library"
)

// FolderRepository defines data access operations for folders
type FolderRepository interface {
	// Create inserts a folder; ParentID nil creates a library root
	Create(ctx context.Context, folder *models.Folder) error

	// GetByID retrieves a folder regardless of its deleted flag
	GetByID(ctx context.Context, id string) (*models.Folder, error)

	// Update applies a partial update and returns the stored row
	Update(ctx context.Context, id string, patch models.FolderPatch) (*models.Folder, error)

	// SetDeleted sets the lifecycle flag. Idempotent; returns the stored row.
	SetDeleted(ctx context.Context, id string, deleted bool) (*models.Folder, error)

	// ListChildren lists immediate child folders ordered by name
	ListChildren(ctx context.Context, folderID string, includeDeleted bool) ([]models.Folder, error)

	// Ancestors returns the parent chain of folderID, nearest first, ending at the root.
	// The folder itself is not included.
	Ancestors(ctx context.Context, folderID string) ([]models.Folder, error)
}
