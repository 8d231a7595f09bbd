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

// FolderRepository implements libraryRepo.FolderRepository in memory
type FolderRepository struct {
	store *Store
}

// NewFolderRepository creates a folder repository over store
func NewFolderRepository(store *Store) libraryRepo.FolderRepository {
	return &FolderRepository{store: store}
}

func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	defer r.store.lock(ctx)()

	if _, ok := r.store.libraries[folder.LibraryID]; !ok {
		return fmt.Errorf("library %s: %w", folder.LibraryID, domain.ErrNotFound)
	}
	if folder.ParentID != nil {
		if _, ok := r.store.folders[*folder.ParentID]; !ok {
			return fmt.Errorf("folder %s: %w", *folder.ParentID, domain.ErrNotFound)
		}
	}

	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	stampCreate(&folder.CreatedAt, &folder.UpdatedAt)
	r.store.putFolder(ctx, cloneFolder(*folder))
	return nil
}

func (r *FolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	defer r.store.rlock(ctx)()

	f, ok := r.store.folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	f = cloneFolder(f)
	return &f, nil
}

func (r *FolderRepository) Update(ctx context.Context, id string, patch models.FolderPatch) (*models.Folder, error) {
	defer r.store.lock(ctx)()

	f, ok := r.store.folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	patch.Apply(&f)
	f.UpdatedAt = time.Now()
	r.store.putFolder(ctx, f)
	f = cloneFolder(f)
	return &f, nil
}

func (r *FolderRepository) SetDeleted(ctx context.Context, id string, deleted bool) (*models.Folder, error) {
	defer r.store.lock(ctx)()

	f, ok := r.store.folders[id]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
	}
	if f.Deleted != deleted {
		f.Deleted = deleted
		f.UpdatedAt = time.Now()
		r.store.putFolder(ctx, f)
	}
	f = cloneFolder(f)
	return &f, nil
}

func (r *FolderRepository) ListChildren(ctx context.Context, folderID string, includeDeleted bool) ([]models.Folder, error) {
	defer r.store.rlock(ctx)()

	children := []models.Folder{}
	for _, f := range r.store.folders {
		if f.ParentID == nil || *f.ParentID != folderID {
			continue
		}
		if f.Deleted && !includeDeleted {
			continue
		}
		children = append(children, cloneFolder(f))
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

func (r *FolderRepository) Ancestors(ctx context.Context, folderID string) ([]models.Folder, error) {
	defer r.store.rlock(ctx)()

	f, ok := r.store.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
	}

	chain := []models.Folder{}
	seen := map[string]bool{folderID: true}
	for f.ParentID != nil {
		parent, ok := r.store.folders[*f.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		chain = append(chain, cloneFolder(parent))
		f = parent
	}
	return chain, nil
}

func cloneFolder(f models.Folder) models.Folder {
	if f.ParentID != nil {
		parent := *f.ParentID
		f.ParentID = &parent
	}
	return f
}
