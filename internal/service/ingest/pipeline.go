// Package ingest runs uploaded content through the dataset state machine:
// new -> uploading -> processing -> ok | error.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"librarian/internal/datatypes"
	"librarian/internal/domain"
	models "librarian/internal/domain/models/library"
	libraryRepo "librarian/internal/domain/repositories/library"
	libSvc "librarian/internal/domain/services/library"
)

// casAttempts bounds the retries of a transition that lost a compare-and-set race
const casAttempts = 5

const defaultDatasetName = "Uploaded file"

// PipelineConfig holds pipeline settings
type PipelineConfig struct {
	SpoolDir       string
	MaxUploadBytes int64
}

// Pipeline implements libSvc.IngestionPipeline
type Pipeline struct {
	libraries libraryRepo.LibraryRepository
	folders   libraryRepo.FolderRepository
	datasets  libraryRepo.DatasetRepository
	storage   libSvc.StorageBackend
	jobs      libSvc.JobBackend
	registry  *datatypes.Registry
	cfg       PipelineConfig
	logger    *slog.Logger

	uploads sync.WaitGroup
}

// NewPipeline creates an ingestion pipeline
func NewPipeline(
	libraries libraryRepo.LibraryRepository,
	folders libraryRepo.FolderRepository,
	datasets libraryRepo.DatasetRepository,
	storage libSvc.StorageBackend,
	jobs libSvc.JobBackend,
	registry *datatypes.Registry,
	cfg PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = os.TempDir()
	}
	return &Pipeline{
		libraries: libraries,
		folders:   folders,
		datasets:  datasets,
		storage:   storage,
		jobs:      jobs,
		registry:  registry,
		cfg:       cfg,
		logger:    logger,
	}
}

// Submit validates the target folder, spools the upload and records the
// dataset. The returned snapshot is in uploading; storing and dispatching
// the analysis job happen on a background goroutine.
func (p *Pipeline) Submit(ctx context.Context, req *libSvc.SubmitRequest) (*models.Dataset, error) {
	ext, err := p.registry.ValidateDeclared(req.FileExt)
	if err != nil {
		return nil, err
	}
	if req.Source == nil {
		return nil, &domain.ValidationError{Message: "no content supplied"}
	}

	folder, err := p.folders.GetByID(ctx, req.FolderID)
	if err != nil {
		return nil, err
	}
	lib, err := p.libraries.GetByID(ctx, folder.LibraryID)
	if err != nil {
		return nil, err
	}
	if lib.Deleted || folder.Deleted {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("folder %s not found", folder.ID)}
	}

	spoolPath, err := p.spool(req.Source)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultDatasetName
	}

	now := time.Now()
	ds := &models.Dataset{
		LibraryID: lib.ID,
		FolderID:  folder.ID,
		Name:      name,
		FileExt:   ext,
		State:     models.StateNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.datasets.Create(ctx, ds); err != nil {
		os.Remove(spoolPath)
		return nil, err
	}

	started, err := p.Advance(ctx, ds.ID, models.UploadStarted{})
	if err != nil {
		os.Remove(spoolPath)
		if _, failErr := p.Advance(ctx, ds.ID, models.Failed{Detail: "upload could not be started"}); failErr != nil {
			p.logger.Error("recording upload start failure", "id", ds.ID, "error", failErr)
		}
		return nil, err
	}

	p.logger.Info("dataset submitted",
		"id", ds.ID,
		"folder_id", folder.ID,
		"library_id", lib.ID,
		"file_ext", ext,
	)

	// The request body is gone once the handler returns; the spooled copy
	// outlives it.
	bg := context.WithoutCancel(ctx)
	p.uploads.Add(1)
	go func() {
		defer p.uploads.Done()
		p.upload(bg, ds.ID, ext, spoolPath)
	}()

	return started, nil
}

// spool copies src into a temp file, enforcing MaxUploadBytes.
func (p *Pipeline) spool(src io.Reader) (string, error) {
	if err := os.MkdirAll(p.cfg.SpoolDir, 0o755); err != nil {
		return "", fmt.Errorf("creating spool dir: %w", err)
	}
	f, err := os.CreateTemp(p.cfg.SpoolDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("creating spool file: %w", err)
	}
	defer f.Close()

	reader := src
	if p.cfg.MaxUploadBytes > 0 {
		reader = io.LimitReader(src, p.cfg.MaxUploadBytes+1)
	}
	n, err := io.Copy(f, reader)
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if p.cfg.MaxUploadBytes > 0 && n > p.cfg.MaxUploadBytes {
		os.Remove(f.Name())
		return "", &domain.ValidationError{
			Message: fmt.Sprintf("upload exceeds %s limit", humanize.Bytes(uint64(p.cfg.MaxUploadBytes))),
		}
	}
	return f.Name(), nil
}

// upload stores the spooled bytes and hands the dataset to the job backend.
// Any failure moves the dataset to error.
func (p *Pipeline) upload(ctx context.Context, datasetID, ext, spoolPath string) {
	defer os.Remove(spoolPath)

	fail := func(detail string, err error) {
		p.logger.Error("dataset upload failed", "id", datasetID, "error", err)
		if _, advErr := p.Advance(ctx, datasetID, models.Failed{Detail: detail}); advErr != nil {
			p.logger.Error("recording upload failure", "id", datasetID, "error", advErr)
		}
	}

	f, err := os.Open(spoolPath)
	if err != nil {
		fail("upload spool missing", err)
		return
	}
	ref, size, err := p.storage.Put(ctx, f)
	f.Close()
	if err != nil {
		fail("storing content failed", err)
		return
	}

	ds, err := p.Advance(ctx, datasetID, models.UploadCompleted{StorageRef: ref, Size: size})
	if err != nil {
		p.logger.Error("recording upload completion", "id", datasetID, "error", err)
		return
	}
	if ds.State != models.StateProcessing {
		return
	}

	p.logger.Debug("dataset stored", "id", datasetID, "ref", ref, "size", humanize.Bytes(uint64(size)))

	job := libSvc.Job{DatasetID: datasetID, StorageRef: ref, FileExt: ext, Size: size}
	if err := p.jobs.Dispatch(ctx, job); err != nil {
		fail("analysis could not be scheduled", err)
	}
}

// Advance applies event to the dataset. The write is a compare-and-set on
// the state read, retried when another writer moved the dataset first.
func (p *Pipeline) Advance(ctx context.Context, datasetID string, event models.Event) (*models.Dataset, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := p.datasets.GetByID(ctx, datasetID)
		if err != nil {
			return nil, err
		}

		next, changed, err := models.Apply(*current, event)
		if err != nil {
			var terr *models.TransitionError
			if errors.As(err, &terr) {
				return nil, &domain.ConflictError{
					Message:      fmt.Sprintf("dataset %s: %v", datasetID, terr),
					ResourceType: "dataset",
					ResourceID:   datasetID,
				}
			}
			return nil, err
		}
		if !changed {
			p.logger.Warn("event ignored on terminal dataset",
				"id", datasetID,
				"state", current.State,
				"event", models.EventName(event),
			)
			return current, nil
		}

		next.UpdatedAt = time.Now()
		ok, err := p.datasets.CompareAndSwapState(ctx, &next, current.State)
		if err != nil {
			return nil, err
		}
		if ok {
			p.logger.Debug("dataset transitioned",
				"id", datasetID,
				"from", current.State,
				"to", next.State,
				"event", models.EventName(event),
			)
			return &next, nil
		}
	}

	return nil, &domain.ConflictError{
		Message:      fmt.Sprintf("dataset %s changed concurrently", datasetID),
		ResourceType: "dataset",
		ResourceID:   datasetID,
	}
}

// Get returns the current snapshot
func (p *Pipeline) Get(ctx context.Context, datasetID string) (*models.Dataset, error) {
	return p.datasets.GetByID(ctx, datasetID)
}

// Wait blocks until every background upload started so far has finished
func (p *Pipeline) Wait() {
	p.uploads.Wait()
}
