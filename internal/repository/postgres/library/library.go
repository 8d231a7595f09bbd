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

const libraryColumns = `id, name, description, synopsis, COALESCE(root_folder_id::text, ''), deleted, created_at, updated_at`

// PostgresLibraryRepository implements the LibraryRepository interface
type PostgresLibraryRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewLibraryRepository creates a new library repository
func NewLibraryRepository(config *postgres.RepositoryConfig) libraryRepo.LibraryRepository {
	return &PostgresLibraryRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanLibrary(row pgx.Row, lib *models.Library) error {
	return row.Scan(
		&lib.ID,
		&lib.Name,
		&lib.Description,
		&lib.Synopsis,
		&lib.RootFolderID,
		&lib.Deleted,
		&lib.CreatedAt,
		&lib.UpdatedAt,
	)
}

// Create inserts a library and fills in its generated ID and timestamps
func (r *PostgresLibraryRepository) Create(ctx context.Context, lib *models.Library) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, description, synopsis, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, r.tables.Libraries)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		lib.Name,
		lib.Description,
		lib.Synopsis,
		lib.Deleted,
		lib.CreatedAt,
		lib.UpdatedAt,
	).Scan(&lib.ID, &lib.CreatedAt, &lib.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create library: %w", err)
	}

	return nil
}

// GetByID retrieves a library by ID
func (r *PostgresLibraryRepository) GetByID(ctx context.Context, id string) (*models.Library, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, libraryColumns, r.tables.Libraries)

	var lib models.Library
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanLibrary(executor.QueryRow(ctx, query, id), &lib); err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("library %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get library: %w", err)
	}

	return &lib, nil
}

// List retrieves libraries ordered by name
func (r *PostgresLibraryRepository) List(ctx context.Context, includeDeleted bool) ([]models.Library, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE ($1 OR deleted = FALSE)
		ORDER BY name, created_at
	`, libraryColumns, r.tables.Libraries)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	libraries := []models.Library{}
	for rows.Next() {
		var lib models.Library
		if err := scanLibrary(rows, &lib); err != nil {
			return nil, fmt.Errorf("scan library: %w", err)
		}
		libraries = append(libraries, lib)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate libraries: %w", err)
	}

	return libraries, nil
}

// Update applies the supplied fields in a single statement so concurrent
// partial updates of different fields don't overwrite each other.
func (r *PostgresLibraryRepository) Update(ctx context.Context, id string, patch models.LibraryPatch) (*models.Library, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    synopsis = COALESCE($4, synopsis),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, r.tables.Libraries, libraryColumns)

	var lib models.Library
	executor := postgres.GetExecutor(ctx, r.pool)
	err := scanLibrary(executor.QueryRow(ctx, query, id, patch.Name, patch.Description, patch.Synopsis), &lib)
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("library %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update library: %w", err)
	}

	return &lib, nil
}

// SetRootFolder links the library to its root folder
func (r *PostgresLibraryRepository) SetRootFolder(ctx context.Context, id, folderID string) error {
	query := fmt.Sprintf(`UPDATE %s SET root_folder_id = $2 WHERE id = $1`, r.tables.Libraries)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id, folderID)
	if err != nil {
		return fmt.Errorf("set root folder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("library %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetDeleted sets the deleted flag. updated_at only moves when the flag changes.
func (r *PostgresLibraryRepository) SetDeleted(ctx context.Context, id string, deleted bool) (*models.Library, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET updated_at = CASE WHEN deleted = $2 THEN updated_at ELSE NOW() END,
		    deleted = $2
		WHERE id = $1
		RETURNING %s
	`, r.tables.Libraries, libraryColumns)

	var lib models.Library
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := scanLibrary(executor.QueryRow(ctx, query, id, deleted), &lib); err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidIDError(err) {
			return nil, fmt.Errorf("library %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("set library deleted: %w", err)
	}

	return &lib, nil
}
