package library

import (
	"context"
	"io"

	"librarian/internal/domain/models"
	library "librarian/internal/domain/models/library"
)

// CreateContentRequest carries an upload. An empty FolderID means the
// library root; an empty or "auto" FileExt detects the format.
type CreateContentRequest struct {
	LibraryID string
	FolderID  string
	Name      string
	FileExt   string
	Source    io.Reader
}

// ContentService defines dataset operations within a library
type ContentService interface {
	// CreateContent submits an upload for ingestion (modify on the folder).
	// The returned dataset is in a transient state; callers poll GetContent.
	CreateContent(ctx context.Context, identity models.Identity, req *CreateContentRequest) (*library.Dataset, error)

	// GetContent returns the current dataset snapshot (access)
	GetContent(ctx context.Context, identity models.Identity, libraryID, datasetID string) (*library.Dataset, error)

	// OpenContent streams the stored bytes of a finished dataset (access).
	// Fails with TransientStateError before ingestion ends and with
	// IngestionError if it failed.
	OpenContent(ctx context.Context, identity models.Identity, libraryID, datasetID string) (*library.Dataset, io.ReadCloser, error)

	// DeleteContent sets (or with undelete clears) the deleted flag (modify)
	DeleteContent(ctx context.Context, identity models.Identity, libraryID, datasetID string, undelete bool) (*library.Dataset, error)
}
