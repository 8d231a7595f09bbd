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

const folderColumns = `id, library_id, parent_id::text, name, description, deleted, created_at, updated_at`

// PostgresFolderRepository implements the FolderRepository interface
type PostgresFolderRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewFolderRepository creates a new folder repository
func NewFolderRepository(config *postgres.RepositoryConfig) libraryRepo.FolderRepository {
	return &PostgresFolderRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanFolder(row pgx.Row, f *models.Folder) error {
	return row.Scan(
		&f.ID,
		&f.LibraryID,
		&f.ParentID,
		&f.Name,
		&f.Description,
		&f.Deleted,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
}

// Create inserts a folder
func (r *PostgresFolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (library_id, parent_id, name, description, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, r.tables.Folders)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		folder.LibraryID,
		folder.ParentID,
		folder.Name,
		folder.Description,
		folder.Deleted,
		folder.CreatedAt,
		folder.UpdatedAt,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("folder parent or library missing: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, folderColumns, r.tables.Folders)

	var folder models.Folder
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanFolder(executor.QueryRow(ctx, query, id), &folder); err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get folder: %w", err)
	}

	return &folder, nil
}

// Update applies a partial update
func (r *PostgresFolderRepository) Update(ctx context.Context, id string, patch models.FolderPatch) (*models.Folder, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, r.tables.Folders, folderColumns)

	var folder models.Folder
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanFolder(executor.QueryRow(ctx, query, id, patch.Name, patch.Description), &folder); err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update folder: %w", err)
	}

	return &folder, nil
}

// SetDeleted sets the deleted flag on one folder; children are untouched
func (r *PostgresFolderRepository) SetDeleted(ctx context.Context, id string, deleted bool) (*models.Folder, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET updated_at = CASE WHEN deleted = $2 THEN updated_at ELSE NOW() END,
		    deleted = $2
		WHERE id = $1
		RETURNING %s
	`, r.tables.Folders, folderColumns)

	var folder models.Folder
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanFolder(executor.QueryRow(ctx, query, id, deleted), &folder); err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("folder %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("set folder deleted: %w", err)
	}

	return &folder, nil
}

// ListChildren lists immediate child folders
func (r *PostgresFolderRepository) ListChildren(ctx context.Context, folderID string, includeDeleted bool) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id = $1 AND ($2 OR deleted = FALSE)
		ORDER BY name
	`, folderColumns, r.tables.Folders)

	return r.queryFolders(ctx, query, folderID, includeDeleted)
}

// Ancestors walks parent_id upwards with a recursive CTE, nearest parent first
func (r *PostgresFolderRepository) Ancestors(ctx context.Context, folderID string) ([]models.Folder, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE chain AS (
			SELECT f.*, 0 AS depth FROM %[1]s f
			WHERE f.id = (SELECT parent_id FROM %[1]s WHERE id = $1)
			UNION ALL
			SELECT p.*, c.depth + 1 FROM %[1]s p
			JOIN chain c ON p.id = c.parent_id
		)
		SELECT %[2]s FROM chain ORDER BY depth
	`, r.tables.Folders, folderColumns)

	return r.queryFolders(ctx, query, folderID)
}

func (r *PostgresFolderRepository) queryFolders(ctx context.Context, query string, args ...interface{}) ([]models.Folder, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		if postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("folder: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("query folders: %w", err)
	}
	defer rows.Close()

	folders := []models.Folder{}
	for rows.Next() {
		var folder models.Folder
		if err := scanFolder(rows, &folder); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}

	return folders, nil
}
