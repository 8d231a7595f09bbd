package library

import (
	"context"

	"librarian/internal/domain/models"
	library "librarian/internal/domain/models/library"
)

// CreateLibraryRequest represents a request to create a library
type CreateLibraryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Synopsis    string `json:"synopsis"`
}

// UpdateLibraryRequest is a partial update; omitted fields are unchanged
type UpdateLibraryRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Synopsis    *string `json:"synopsis,omitempty"`
}

// SetPermissionsRequest replaces the role set of every action whose list is
// non-nil. A nil list leaves that action untouched; an empty list clears it.
type SetPermissionsRequest struct {
	AccessRoleIDs []string `json:"access_ids"`
	ModifyRoleIDs []string `json:"modify_ids"`
	ManageRoleIDs []string `json:"manage_ids"`
}

// LibraryService defines library lifecycle operations. Every method takes
// the caller identity supplied by the authentication layer.
type LibraryService interface {
	// CreateLibrary creates a library and its root folder (admin only)
	CreateLibrary(ctx context.Context, identity models.Identity, req *CreateLibraryRequest) (*library.Library, error)

	// GetLibrary returns a library the caller can access
	GetLibrary(ctx context.Context, identity models.Identity, id string) (*library.Library, error)

	// ListLibraries returns the libraries the caller can access.
	// Deleted libraries are only listed for admins that ask for them.
	ListLibraries(ctx context.Context, identity models.Identity, includeDeleted bool) ([]library.Library, error)

	// UpdateLibrary applies a partial update (admin only)
	UpdateLibrary(ctx context.Context, identity models.Identity, id string, req *UpdateLibraryRequest) (*library.Library, error)

	// DeleteLibrary sets (or with undelete clears) the deleted flag (admin only)
	DeleteLibrary(ctx context.Context, identity models.Identity, id string, undelete bool) (*library.Library, error)

	// GetPermissions lists the library's grants per action (manage)
	GetPermissions(ctx context.Context, identity models.Identity, id string) (*library.LibraryPermissions, error)

	// SetPermissions replaces the library's grants per action (manage)
	SetPermissions(ctx context.Context, identity models.Identity, id string, req *SetPermissionsRequest) (*library.LibraryPermissions, error)
}
