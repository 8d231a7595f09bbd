package library

import (
	"context"
	"io"
	"log/slog"

	"librarian/internal/domain"
	"librarian/internal/domain/models"
	libModels "librarian/internal/domain/models/library"
	libraryRepo "librarian/internal/domain/repositories/library"
	libSvc "librarian/internal/domain/services/library"
)

// contentService implements the ContentService interface
type contentService struct {
	resolver
	pipeline libSvc.IngestionPipeline
	storage  libSvc.StorageBackend
	checker  *PermissionChecker
	logger   *slog.Logger
}

// NewContentService creates a new content service
func NewContentService(
	libraries libraryRepo.LibraryRepository,
	folders libraryRepo.FolderRepository,
	datasets libraryRepo.DatasetRepository,
	pipeline libSvc.IngestionPipeline,
	storage libSvc.StorageBackend,
	checker *PermissionChecker,
	logger *slog.Logger,
) libSvc.ContentService {
	return &contentService{
		resolver: resolver{libraries: libraries, folders: folders, datasets: datasets},
		pipeline: pipeline,
		storage:  storage,
		checker:  checker,
		logger:   logger,
	}
}

// CreateContent hands an upload to the ingestion pipeline
func (s *contentService) CreateContent(ctx context.Context, identity models.Identity, req *libSvc.CreateContentRequest) (*libModels.Dataset, error) {
	lib, err := s.library(ctx, identity, req.LibraryID)
	if err != nil {
		return nil, err
	}
	folder, err := s.folder(ctx, identity, lib, req.FolderID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Require(ctx, identity, folderRef(folder.ID), libModels.ActionModify); err != nil {
		return nil, err
	}

	return s.pipeline.Submit(ctx, &libSvc.SubmitRequest{
		FolderID: folder.ID,
		Name:     req.Name,
		FileExt:  req.FileExt,
		Source:   req.Source,
	})
}

// GetContent returns the dataset snapshot in whatever state it is
func (s *contentService) GetContent(ctx context.Context, identity models.Identity, libraryID, datasetID string) (*libModels.Dataset, error) {
	ds, err := s.dataset(ctx, identity, libraryID, datasetID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Require(ctx, identity, datasetRef(ds.ID), libModels.ActionAccess); err != nil {
		return nil, err
	}
	return ds, nil
}

// OpenContent opens the stored bytes of a dataset that finished ingestion
func (s *contentService) OpenContent(ctx context.Context, identity models.Identity, libraryID, datasetID string) (*libModels.Dataset, io.ReadCloser, error) {
	ds, err := s.GetContent(ctx, identity, libraryID, datasetID)
	if err != nil {
		return nil, nil, err
	}

	switch ds.State {
	case libModels.StateOK:
	case libModels.StateError:
		detail := "unknown error"
		if ds.Error != nil {
			detail = *ds.Error
		}
		return ds, nil, &domain.IngestionError{DatasetID: ds.ID, Detail: detail}
	default:
		return ds, nil, &domain.TransientStateError{DatasetID: ds.ID, State: string(ds.State)}
	}

	rc, err := s.storage.Open(ctx, ds.StorageRef)
	if err != nil {
		return ds, nil, err
	}
	return ds, rc, nil
}

// DeleteContent flips the dataset's deleted flag
func (s *contentService) DeleteContent(ctx context.Context, identity models.Identity, libraryID, datasetID string, undelete bool) (*libModels.Dataset, error) {
	ds, err := s.datasetInLibrary(ctx, libraryID, datasetID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Require(ctx, identity, datasetRef(ds.ID), libModels.ActionModify); err != nil {
		return nil, err
	}

	updated, err := s.datasets.SetDeleted(ctx, ds.ID, !undelete)
	if err != nil {
		return nil, err
	}

	s.logger.Info("dataset deleted flag set",
		"id", updated.ID,
		"deleted", updated.Deleted,
		"user_id", identity.UserID,
	)

	return updated, nil
}
