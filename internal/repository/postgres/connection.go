package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"librarian/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Libraries   string
	Folders     string
	Datasets    string
	Permissions string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Libraries:   fmt.Sprintf("%slibraries", prefix),
		Folders:     fmt.Sprintf("%slibrary_folders", prefix),
		Datasets:    fmt.Sprintf("%slibrary_datasets", prefix),
		Permissions: fmt.Sprintf("%slibrary_permissions", prefix),
	}
}

// PoolSettings are the pool bounds used by CreateConnectionPool
const (
	PoolMaxConns = 25
	PoolMinConns = 5
)

// CreateConnectionPool creates a pgx connection pool and waits for the
// database to accept connections, retrying with exponential backoff for up
// to connectTimeout.
//
// Port 6543 (PgBouncer transaction pooling) cannot use prepared statements,
// so the pool switches to QueryExecModeCacheDescribe there unless the URL
// already sets default_query_exec_mode.
func CreateConnectionPool(ctx context.Context, databaseURL string, connectTimeout time.Duration, logger *slog.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	config.MaxConns = PoolMaxConns
	config.MinConns = PoolMinConns

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		logger.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create connection pool: %w", err))
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		pool = p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = connectTimeout

	notify := func(err error, wait time.Duration) {
		logger.Warn("database not ready, retrying", "error", err, "retry_in", wait)
	}

	if err := backoff.RetryNotify(connect, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}

	return pool, nil
}

// GetExecutor returns the transaction stored in ctx, or the pool when there is none.
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx := repositories.GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
