package library

import (
	"context"
	"fmt"

	"librarian/internal/domain"
	models "librarian/internal/domain/models/library"
	libraryRepo "librarian/internal/domain/repositories/library"
	"librarian/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const datasetColumns = `id, library_id, folder_id, name, file_ext, data_type, file_size, peek, state, error, storage_ref, deleted, created_at, updated_at`

// PostgresDatasetRepository implements the DatasetRepository interface
type PostgresDatasetRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(config *postgres.RepositoryConfig) libraryRepo.DatasetRepository {
	return &PostgresDatasetRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanDataset(row pgx.Row, ds *models.Dataset) error {
	return row.Scan(
		&ds.ID,
		&ds.LibraryID,
		&ds.FolderID,
		&ds.Name,
		&ds.FileExt,
		&ds.DataType,
		&ds.FileSize,
		&ds.Peek,
		&ds.State,
		&ds.Error,
		&ds.StorageRef,
		&ds.Deleted,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
}

// Create inserts a dataset
func (r *PostgresDatasetRepository) Create(ctx context.Context, ds *models.Dataset) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (library_id, folder_id, name, file_ext, data_type, file_size, peek, state, storage_ref, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, r.tables.Datasets)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		ds.LibraryID,
		ds.FolderID,
		ds.Name,
		ds.FileExt,
		ds.DataType,
		ds.FileSize,
		ds.Peek,
		string(ds.State),
		ds.StorageRef,
		ds.Deleted,
		ds.CreatedAt,
		ds.UpdatedAt,
	).Scan(&ds.ID, &ds.CreatedAt, &ds.UpdatedAt)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("dataset folder or library missing: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create dataset: %w", err)
	}

	return nil
}

// GetByID retrieves a dataset by ID
func (r *PostgresDatasetRepository) GetByID(ctx context.Context, id string) (*models.Dataset, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, datasetColumns, r.tables.Datasets)

	var ds models.Dataset
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanDataset(executor.QueryRow(ctx, query, id), &ds); err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get dataset: %w", err)
	}

	return &ds, nil
}

// ListByFolder lists datasets directly in a folder
func (r *PostgresDatasetRepository) ListByFolder(ctx context.Context, folderID string, includeDeleted bool) ([]models.Dataset, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE folder_id = $1 AND ($2 OR deleted = FALSE)
		ORDER BY name, created_at
	`, datasetColumns, r.tables.Datasets)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, folderID, includeDeleted)
	if err != nil {
		if postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	datasets := []models.Dataset{}
	for rows.Next() {
		var ds models.Dataset
		if err := scanDataset(rows, &ds); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}

	return datasets, nil
}

// CompareAndSwapState writes the ingestion fields only while the stored state
// still matches expected, so two writers racing on the same event can't both win.
func (r *PostgresDatasetRepository) CompareAndSwapState(ctx context.Context, ds *models.Dataset, expected models.DatasetState) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET state = $3,
		    file_ext = $4,
		    data_type = $5,
		    file_size = $6,
		    peek = $7,
		    error = $8,
		    storage_ref = $9,
		    updated_at = $10
		WHERE id = $1 AND state = $2
	`, r.tables.Datasets)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		ds.ID,
		string(expected),
		string(ds.State),
		ds.FileExt,
		ds.DataType,
		ds.FileSize,
		ds.Peek,
		ds.Error,
		ds.StorageRef,
		ds.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgInvalidIDError(err) {
			return false, fmt.Errorf("dataset %s: %w", ds.ID, domain.ErrNotFound)
		}
		return false, fmt.Errorf("update dataset state: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// SetDeleted sets the deleted flag
func (r *PostgresDatasetRepository) SetDeleted(ctx context.Context, id string, deleted bool) (*models.Dataset, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET updated_at = CASE WHEN deleted = $2 THEN updated_at ELSE NOW() END,
		    deleted = $2
		WHERE id = $1
		RETURNING %s
	`, r.tables.Datasets, datasetColumns)

	var ds models.Dataset
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanDataset(executor.QueryRow(ctx, query, id, deleted), &ds); err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("set dataset deleted: %w", err)
	}

	return &ds, nil
}
