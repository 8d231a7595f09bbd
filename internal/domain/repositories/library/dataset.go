package library

import (
	"context"

	models "librarian/internal/domain/models/library"
)

// DatasetRepository defines data access operations for datasets
type DatasetRepository interface {
	// Create inserts a dataset in its initial state
	Create(ctx context.Context, ds *models.Dataset) error

	// GetByID retrieves a dataset regardless of its deleted flag
	GetByID(ctx context.Context, id string) (*models.Dataset, error)

	// ListByFolder lists datasets directly in a folder ordered by name
	ListByFolder(ctx context.Context, folderID string, includeDeleted bool) ([]models.Dataset, error)

	// CompareAndSwapState persists ds (state and ingestion fields) only if the
	// stored state still equals expected. Returns false when another writer won.
	CompareAndSwapState(ctx context.Context, ds *models.Dataset, expected models.DatasetState) (bool, error)

	// SetDeleted sets the lifecycle flag. Idempotent; returns the stored row.
	SetDeleted(ctx context.Context, id string, deleted bool) (*models.Dataset, error)
}
