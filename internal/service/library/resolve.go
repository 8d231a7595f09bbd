package library

import (
	"context"
	"fmt"

	"librarian/internal/domain"
	"librarian/internal/domain/models"
	libModels "librarian/internal/domain/models/library"
	libraryRepo "librarian/internal/domain/repositories/library"
)

// resolver loads entities addressed through a library and hides deleted
// ones from non-admins. Entities of another library are reported missing.
type resolver struct {
	libraries libraryRepo.LibraryRepository
	folders   libraryRepo.FolderRepository
	datasets  libraryRepo.DatasetRepository
}

func notFound(kind, id string) error {
	return &domain.NotFoundError{Message: fmt.Sprintf("%s %s not found", kind, id)}
}

// library returns a library visible to identity
func (r *resolver) library(ctx context.Context, identity models.Identity, id string) (*libModels.Library, error) {
	lib, err := r.libraries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lib.Deleted && !identity.Admin {
		return nil, notFound("library", id)
	}
	return lib, nil
}

// owner returns the library of an entity addressed by its own id. Children
// of a deleted library stay addressable, so the deleted flag is not checked.
func (r *resolver) owner(ctx context.Context, id string) (*libModels.Library, error) {
	return r.libraries.GetByID(ctx, id)
}

// folder returns a folder of lib; an empty id selects the root
func (r *resolver) folder(ctx context.Context, identity models.Identity, lib *libModels.Library, id string) (*libModels.Folder, error) {
	if id == "" {
		id = lib.RootFolderID
	}
	folder, err := r.folders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if folder.LibraryID != lib.ID {
		return nil, notFound("folder", id)
	}
	if folder.Deleted && !identity.Admin {
		return nil, notFound("folder", id)
	}
	return folder, nil
}

// folderWithLibrary loads a folder addressed by id alone
func (r *resolver) folderWithLibrary(ctx context.Context, identity models.Identity, id string) (*libModels.Folder, *libModels.Library, error) {
	folder, err := r.folders.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	lib, err := r.owner(ctx, folder.LibraryID)
	if err != nil {
		return nil, nil, err
	}
	if folder.Deleted && !identity.Admin {
		return nil, nil, notFound("folder", id)
	}
	return folder, lib, nil
}

// dataset returns a non-deleted dataset of the library libraryID
func (r *resolver) dataset(ctx context.Context, identity models.Identity, libraryID, id string) (*libModels.Dataset, error) {
	ds, err := r.datasetInLibrary(ctx, libraryID, id)
	if err != nil {
		return nil, err
	}
	if ds.Deleted && !identity.Admin {
		return nil, notFound("dataset", id)
	}
	return ds, nil
}

// datasetInLibrary is dataset without hiding deleted datasets
func (r *resolver) datasetInLibrary(ctx context.Context, libraryID, id string) (*libModels.Dataset, error) {
	if _, err := r.owner(ctx, libraryID); err != nil {
		return nil, err
	}
	ds, err := r.datasets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ds.LibraryID != libraryID {
		return nil, notFound("dataset", id)
	}
	return ds, nil
}

func libraryRef(id string) libModels.ResourceRef {
	return libModels.ResourceRef{ID: id, Kind: libModels.KindLibrary}
}

func folderRef(id string) libModels.ResourceRef {
	return libModels.ResourceRef{ID: id, Kind: libModels.KindFolder}
}

func datasetRef(id string) libModels.ResourceRef {
	return libModels.ResourceRef{ID: id, Kind: libModels.KindDataset}
}
