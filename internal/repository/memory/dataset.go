package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"librarian/internal/domain"
	models "librarian/internal/domain/models/library"
	libraryRepo "librarian/internal/domain/repositories/library"
)

// DatasetRepository implements libraryRepo.DatasetRepository in memory
type DatasetRepository struct {
	store *Store
}

// NewDatasetRepository creates a dataset repository over store
func NewDatasetRepository(store *Store) libraryRepo.DatasetRepository {
	return &DatasetRepository{store: store}
}

func (r *DatasetRepository) Create(ctx context.Context, ds *models.Dataset) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.folders[ds.FolderID]; !ok {
		return fmt.Errorf("folder %s: %w", ds.FolderID, domain.ErrNotFound)
	}
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	stampCreate(&ds.CreatedAt, &ds.UpdatedAt)
	r.store.putDataset(ctx, cloneDataset(*ds))
	return nil
}

func (r *DatasetRepository) GetByID(ctx context.Context, id string) (*models.Dataset, error) {
	defer r.store.rlock(ctx)()

	ds, ok := r.store.datasets[id]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
	}
	ds = cloneDataset(ds)
	return &ds, nil
}

func (r *DatasetRepository) ListByFolder(ctx context.Context, folderID string, includeDeleted bool) ([]models.Dataset, error) {
	defer r.store.rlock(ctx)()

	datasets := []models.Dataset{}
	for _, ds := range r.store.datasets {
		if ds.FolderID != folderID || (ds.Deleted && !includeDeleted) {
			continue
		}
		datasets = append(datasets, cloneDataset(ds))
	}
	sort.Slice(datasets, func(i, j int) bool {
		if datasets[i].Name != datasets[j].Name {
			return datasets[i].Name < datasets[j].Name
		}
		return datasets[i].CreatedAt.Before(datasets[j].CreatedAt)
	})
	return datasets, nil
}

func (r *DatasetRepository) CompareAndSwapState(ctx context.Context, ds *models.Dataset, expected models.DatasetState) (bool, error) {
	defer r.store.lock(ctx)()

	stored, ok := r.store.datasets[ds.ID]
	if !ok {
		return false, fmt.Errorf("dataset %s: %w", ds.ID, domain.ErrNotFound)
	}
	if stored.State != expected {
		return false, nil
	}

	stored.State = ds.State
	stored.FileExt = ds.FileExt
	stored.DataType = ds.DataType
	stored.FileSize = ds.FileSize
	stored.Peek = ds.Peek
	stored.Error = ds.Error
	stored.StorageRef = ds.StorageRef
	stored.UpdatedAt = ds.UpdatedAt
	r.store.putDataset(ctx, cloneDataset(stored))
	return true, nil
}

func (r *DatasetRepository) SetDeleted(ctx context.Context, id string, deleted bool) (*models.Dataset, error) {
	defer r.store.lock(ctx)()

	ds, ok := r.store.datasets[id]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
	}
	if ds.Deleted != deleted {
		ds.Deleted = deleted
		ds.UpdatedAt = time.Now()
		r.store.putDataset(ctx, ds)
	}
	ds = cloneDataset(ds)
	return &ds, nil
}

func cloneDataset(ds models.Dataset) models.Dataset {
	if ds.Error != nil {
		detail := *ds.Error
		ds.Error = &detail
	}
	return ds
}
