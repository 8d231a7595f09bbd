package library

import (
	"context"
	"io"

	library "librarian/internal/domain/models/library"
)

// SubmitRequest is an upload handed to the ingestion pipeline
type SubmitRequest struct {
	FolderID string
	Name     string
	FileExt  string
	Source   io.Reader
}

// IngestionPipeline owns the dataset state machine
type IngestionPipeline interface {
	// Submit records a new dataset, moves it to uploading and returns it.
	// Storage and analysis continue in the background.
	Submit(ctx context.Context, req *SubmitRequest) (*library.Dataset, error)

	// Advance applies an event. Events reaching a terminal dataset are
	// ignored and the current snapshot is returned.
	Advance(ctx context.Context, datasetID string, event library.Event) (*library.Dataset, error)

	// Get returns the current snapshot regardless of state
	Get(ctx context.Context, datasetID string) (*library.Dataset, error)
}

// StorageBackend persists raw upload bytes
type StorageBackend interface {
	// Put stores r and returns its reference and byte size
	Put(ctx context.Context, r io.Reader) (ref string, size int64, err error)

	// Open reads back the bytes behind ref
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Job asks the job backend to analyse a stored dataset
type Job struct {
	DatasetID  string
	StorageRef string
	FileExt    string
	Size       int64
}

// JobBackend analyses stored datasets and reports back through Advance
type JobBackend interface {
	Dispatch(ctx context.Context, job Job) error
}
