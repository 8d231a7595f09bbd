package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"librarian/internal/auth"
	"librarian/internal/config"
	"librarian/internal/datatypes"
	"librarian/internal/domain/repositories"
	libraryRepo "librarian/internal/domain/repositories/library"
	"librarian/internal/handler"
	"librarian/internal/middleware"
	"librarian/internal/repository/memory"
	"librarian/internal/repository/postgres"
	postgresLibrary "librarian/internal/repository/postgres/library"
	"librarian/internal/service/ingest"
	serviceLibrary "librarian/internal/service/library"
	"librarian/internal/storage/blob"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

// stores bundles the repositories of one backend
type stores struct {
	libraries libraryRepo.LibraryRepository
	folders   libraryRepo.FolderRepository
	datasets  libraryRepo.DatasetRepository
	perms     libraryRepo.PermissionRepository
	txManager repositories.TransactionManager
	close     func()
}

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"table_prefix", cfg.TablePrefix,
	)

	ctx := context.Background()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer st.close()

	// Blob storage and datatype registry
	blobs, err := blob.NewStore(cfg.StorageDir, logger)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	registry, err := datatypes.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load datatype registry: %v", err)
	}
	logger.Info("datatype registry initialized", "extensions", len(registry.Extensions()))

	// Ingestion: the runner is the pipeline's job backend and reports back to it
	runner := ingest.NewRunner(ingest.RunnerConfig{
		Workers:    cfg.IngestWorkers,
		QueueSize:  cfg.IngestQueueSize,
		JobTimeout: cfg.IngestJobTimeout,
	}, ingest.NewStoredContentAnalyzer(blobs, registry), logger)

	pipeline := ingest.NewPipeline(st.libraries, st.folders, st.datasets, blobs, runner, registry, ingest.PipelineConfig{
		SpoolDir:       filepath.Join(cfg.StorageDir, ".spool"),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)
	runner.Start(pipeline)

	// Services
	checker := serviceLibrary.NewPermissionChecker(st.folders, st.datasets, st.perms, logger)
	libraryService := serviceLibrary.NewLibraryService(st.libraries, st.folders, st.perms, checker, st.txManager, logger)
	folderService := serviceLibrary.NewFolderService(st.libraries, st.folders, st.datasets, checker, logger)
	contentService := serviceLibrary.NewContentService(st.libraries, st.folders, st.datasets, pipeline, blobs, checker, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Handlers{
		Libraries: handler.NewLibraryHandler(libraryService, logger),
		Folders:   handler.NewFolderHandler(folderService, logger),
		Contents:  handler.NewContentHandler(folderService, contentService, registry, cfg.MaxUploadBytes, logger),
	})

	// Build middleware chain
	var h http.Handler = mux

	// Order: CORS → Recovery → Auth → Routes
	if cfg.JWKSURL != "" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
		h = middleware.AuthMiddleware(jwtVerifier, middleware.AdminByEmail(cfg.IsAdminEmail), logger)(h)
	} else if cfg.Environment == "dev" {
		logger.Warn("SUPABASE_URL not set: authentication disabled, every request is anonymous")
	} else {
		log.Fatalf("SUPABASE_URL is required outside dev")
	}
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  5 * time.Minute, // large multipart uploads
		WriteTimeout: 0,               // downloads stream for as long as they need
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	// Uploads already accepted finish storing; queued analyses are dropped
	// and their datasets stay in processing.
	pipeline.Wait()
	runner.Stop()
	logger.Info("server stopped")
}

// openStores builds the repositories for cfg.StoreBackend
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store: data is lost on restart")
		store := memory.NewStore()
		return &stores{
			libraries: memory.NewLibraryRepository(store),
			folders:   memory.NewFolderRepository(store),
			datasets:  memory.NewDatasetRepository(store),
			perms:     memory.NewPermissionRepository(store),
			txManager: memory.NewTransactionManager(store, logger),
			close:     func() {},
		}, nil

	case "postgres":
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, 30*time.Second, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("database connected",
			"max_conns", postgres.PoolMaxConns,
			"min_conns", postgres.PoolMinConns,
		)

		tables := postgres.NewTableNames(cfg.TablePrefix)
		if cfg.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("schema ensured", "prefix", cfg.TablePrefix)
		}

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		}
		return &stores{
			libraries: postgresLibrary.NewLibraryRepository(repoConfig),
			folders:   postgresLibrary.NewFolderRepository(repoConfig),
			datasets:  postgresLibrary.NewDatasetRepository(repoConfig),
			perms:     postgresLibrary.NewPermissionRepository(repoConfig),
			txManager: postgres.NewTransactionManager(pool, logger),
			close:     pool.Close,
		}, nil

	default:
		return nil, errors.New("STORE_BACKEND must be postgres or memory")
	}
}
