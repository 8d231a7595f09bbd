package library

import (
	"context"

	models "librarian/internal/domain/models/library"
)

// LibraryRepository defines data access operations for libraries
type LibraryRepository interface {
	// Create inserts a library. RootFolderID must already reference a folder
	// created in the same transaction.
	Create(ctx context.Context, lib *models.Library) error

	// GetByID retrieves a library regardless of its deleted flag
	GetByID(ctx context.Context, id string) (*models.Library, error)

	// List retrieves libraries ordered by name; deleted ones only when includeDeleted
	List(ctx context.Context, includeDeleted bool) ([]models.Library, error)

	// Update applies a partial update and returns the stored row
	Update(ctx context.Context, id string, patch models.LibraryPatch) (*models.Library, error)

	// SetRootFolder links the root folder after both rows exist
	SetRootFolder(ctx context.Context, id, folderID string) error

	// SetDeleted sets the lifecycle flag. Idempotent; returns the stored row.
	SetDeleted(ctx context.Context, id string, deleted bool) (*models.Library, error)
}
