package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the library tables if they don't exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				synopsis TEXT NOT NULL DEFAULT '',
				root_folder_id UUID,
				deleted BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, tables.Libraries),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				library_id UUID NOT NULL REFERENCES %s(id),
				parent_id UUID REFERENCES %s(id),
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				deleted BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, tables.Folders, tables.Libraries, tables.Folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_parent_idx ON %s(parent_id)`, tables.Folders, tables.Folders),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
				library_id UUID NOT NULL REFERENCES %s(id),
				folder_id UUID NOT NULL REFERENCES %s(id),
				name TEXT NOT NULL,
				file_ext TEXT NOT NULL DEFAULT '',
				data_type TEXT NOT NULL DEFAULT '',
				file_size BIGINT NOT NULL DEFAULT 0,
				peek TEXT NOT NULL DEFAULT '',
				state TEXT NOT NULL,
				error TEXT,
				storage_ref TEXT NOT NULL DEFAULT '',
				deleted BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, tables.Datasets, tables.Libraries, tables.Folders),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_folder_idx ON %s(folder_id)`, tables.Datasets, tables.Datasets),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				resource_id UUID NOT NULL,
				kind TEXT NOT NULL,
				role_id TEXT NOT NULL,
				action TEXT NOT NULL,
				PRIMARY KEY (resource_id, action, role_id)
			)`, tables.Permissions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DropSchema drops every library table (dev/test only).
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, table := range []string{tables.Permissions, tables.Datasets, tables.Folders, tables.Libraries} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

// TruncateSchema removes every row but keeps the tables (dev/test only).
func TruncateSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	stmt := fmt.Sprintf("TRUNCATE %s, %s, %s, %s", tables.Permissions, tables.Datasets, tables.Folders, tables.Libraries)
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}
