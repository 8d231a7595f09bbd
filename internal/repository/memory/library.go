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

// LibraryRepository implements libraryRepo.LibraryRepository in memory
type LibraryRepository struct {
	store *Store
}

// NewLibraryRepository creates a library repository over store
func NewLibraryRepository(store *Store) libraryRepo.LibraryRepository {
	return &LibraryRepository{store: store}
}

func (r *LibraryRepository) Create(ctx context.Context, lib *models.Library) error {
	defer r.store.lock(ctx)()

	if lib.ID == "" {
		lib.ID = uuid.NewString()
	}
	if _, exists := r.store.libraries[lib.ID]; exists {
		return &domain.ConflictError{Message: "library already exists", ResourceType: "library", ResourceID: lib.ID}
	}
	stampCreate(&lib.CreatedAt, &lib.UpdatedAt)
	r.store.putLibrary(ctx, *lib)
	return nil
}

func (r *LibraryRepository) GetByID(ctx context.Context, id string) (*models.Library, error) {
	defer r.store.rlock(ctx)()

	lib, ok := r.store.libraries[id]
	if !ok {
		return nil, fmt.Errorf("library %s: %w", id, domain.ErrNotFound)
	}
	return &lib, nil
}

func (r *LibraryRepository) List(ctx context.Context, includeDeleted bool) ([]models.Library, error) {
	defer r.store.rlock(ctx)()

	libraries := []models.Library{}
	for _, lib := range r.store.libraries {
		if lib.Deleted && !includeDeleted {
			continue
		}
		libraries = append(libraries, lib)
	}
	sort.Slice(libraries, func(i, j int) bool {
		if libraries[i].Name != libraries[j].Name {
			return libraries[i].Name < libraries[j].Name
		}
		return libraries[i].CreatedAt.Before(libraries[j].CreatedAt)
	})
	return libraries, nil
}

func (r *LibraryRepository) Update(ctx context.Context, id string, patch models.LibraryPatch) (*models.Library, error) {
	defer r.store.lock(ctx)()

	lib, ok := r.store.libraries[id]
	if !ok {
		return nil, fmt.Errorf("library %s: %w", id, domain.ErrNotFound)
	}
	patch.Apply(&lib)
	lib.UpdatedAt = time.Now()
	r.store.putLibrary(ctx, lib)
	return &lib, nil
}

func (r *LibraryRepository) SetRootFolder(ctx context.Context, id, folderID string) error {
	defer r.store.lock(ctx)()

	lib, ok := r.store.libraries[id]
	if !ok {
		return fmt.Errorf("library %s: %w", id, domain.ErrNotFound)
	}
	lib.RootFolderID = folderID
	r.store.putLibrary(ctx, lib)
	return nil
}

func (r *LibraryRepository) SetDeleted(ctx context.Context, id string, deleted bool) (*models.Library, error) {
	defer r.store.lock(ctx)()

	lib, ok := r.store.libraries[id]
	if !ok {
		return nil, fmt.Errorf("library %s: %w", id, domain.ErrNotFound)
	}
	if lib.Deleted != deleted {
		lib.Deleted = deleted
		lib.UpdatedAt = time.Now()
		r.store.putLibrary(ctx, lib)
	}
	return &lib, nil
}

func stampCreate(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}
