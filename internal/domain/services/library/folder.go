package library

import (
	"context"

	"librarian/internal/domain/models"
	library "librarian/internal/domain/models/library"
)

// CreateFolderRequest represents a request to create a folder.
// An empty ParentFolderID means the library root.
type CreateFolderRequest struct {
	LibraryID      string `json:"-"`
	ParentFolderID string `json:"folder_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
}

// UpdateFolderRequest is a partial update; omitted fields are unchanged
type UpdateFolderRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// FolderService defines folder operations
type FolderService interface {
	// CreateFolder creates a folder under the parent (modify on the parent)
	CreateFolder(ctx context.Context, identity models.Identity, req *CreateFolderRequest) (*library.Folder, error)

	// GetFolder returns a folder the caller can access
	GetFolder(ctx context.Context, identity models.Identity, id string) (*library.Folder, error)

	// ListContents returns a folder with its child folders and datasets.
	// An empty folderID means the library root.
	ListContents(ctx context.Context, identity models.Identity, libraryID, folderID string, includeDeleted bool) (*library.FolderContents, error)

	// UpdateFolder applies a partial update (modify)
	UpdateFolder(ctx context.Context, identity models.Identity, id string, req *UpdateFolderRequest) (*library.Folder, error)

	// DeleteFolder sets (or with undelete clears) the deleted flag (modify).
	// Library roots cannot be deleted on their own.
	DeleteFolder(ctx context.Context, identity models.Identity, id string, undelete bool) (*library.Folder, error)
}
