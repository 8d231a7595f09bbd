package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"librarian/internal/config"
	"librarian/internal/datatypes"
	"librarian/internal/domain/models"
	libModels "librarian/internal/domain/models/library"
	libSvc "librarian/internal/domain/services/library"
	"librarian/internal/repository/postgres"
	postgresLibrary "librarian/internal/repository/postgres/library"
	"librarian/internal/service/ingest"
	serviceLibrary "librarian/internal/service/library"
	"librarian/internal/storage/blob"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// sampleDataset is a built-in dataset seeded when no --sample is given
type sampleDataset struct {
	name    string
	ext     string
	content string
}

var builtinSamples = []sampleDataset{
	{
		name:    "reads.fasta",
		ext:     "fasta",
		content: ">seq1 sample read\nACGTACGTTAGC\n>seq2 sample read\nTTGACCGATACG\n",
	},
	{
		name:    "regions.bed",
		ext:     "bed",
		content: "chr1\t100\t200\tpeak1\nchr1\t300\t450\tpeak2\nchr2\t50\t90\tpeak3\n",
	},
	{
		name:    "notes.txt",
		ext:     "auto",
		content: "Seeded by cmd/seed.\nUse this library to try uploads and permissions.\n",
	},
}

func main() {
	dropTables := pflag.Bool("drop-tables", false, "Drop all library tables before seeding (fresh start)")
	schemaOnly := pflag.Bool("schema-only", false, "Only set up schema, don't seed any library")
	clearData := pflag.Bool("clear-data", false, "Delete all libraries, folders and datasets (keep schema)")
	libraryName := pflag.String("library", "Sample Library", "Name of the library to create")
	samples := pflag.StringSlice("sample", nil, "Files to upload into the library (default: built-in samples)")
	fileType := pflag.String("file-type", datatypes.AutoExt, "Declared extension for --sample files")
	timeout := pflag.Duration("timeout", time.Minute, "How long to wait for each dataset to finish ingestion")
	pflag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg := config.Load()

	// Destructive operations are never allowed in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: cannot run --drop-tables or --clear-data in production")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, 30*time.Second, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping all library tables...")
		if err := postgres.DropSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	log.Printf("Ensuring schema (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}

	if *schemaOnly {
		log.Println("Schema setup complete (schema-only mode)")
		return
	}

	if *clearData {
		if err := postgres.TruncateSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("Data cleared")
		return
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	libraries := postgresLibrary.NewLibraryRepository(repoConfig)
	folders := postgresLibrary.NewFolderRepository(repoConfig)
	datasets := postgresLibrary.NewDatasetRepository(repoConfig)
	perms := postgresLibrary.NewPermissionRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	blobs, err := blob.NewStore(cfg.StorageDir, logger)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	registry, err := datatypes.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load datatype registry: %v", err)
	}

	runner := ingest.NewRunner(ingest.RunnerConfig{
		Workers:    cfg.IngestWorkers,
		QueueSize:  cfg.IngestQueueSize,
		JobTimeout: cfg.IngestJobTimeout,
	}, ingest.NewStoredContentAnalyzer(blobs, registry), logger)
	pipeline := ingest.NewPipeline(libraries, folders, datasets, blobs, runner, registry, ingest.PipelineConfig{
		SpoolDir:       filepath.Join(cfg.StorageDir, ".spool"),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)
	runner.Start(pipeline)
	defer runner.Stop()
	defer pipeline.Wait()

	checker := serviceLibrary.NewPermissionChecker(folders, datasets, perms, logger)
	libraryService := serviceLibrary.NewLibraryService(libraries, folders, perms, checker, txManager, logger)
	folderService := serviceLibrary.NewFolderService(libraries, folders, datasets, checker, logger)
	contentService := serviceLibrary.NewContentService(libraries, folders, datasets, pipeline, blobs, checker, logger)

	admin := models.NewUserIdentity("seed", "", nil, true)

	library, err := libraryService.CreateLibrary(ctx, admin, &libSvc.CreateLibraryRequest{
		Name:        *libraryName,
		Description: "Seeded library",
		Synopsis:    "Sample datasets for local development",
	})
	if err != nil {
		log.Fatalf("Failed to create library: %v", err)
	}
	log.Printf("Created library %q (ID: %s)", library.Name, library.ID)

	folder, err := folderService.CreateFolder(ctx, admin, &libSvc.CreateFolderRequest{
		LibraryID: library.ID,
		Name:      "Samples",
	})
	if err != nil {
		log.Fatalf("Failed to create folder: %v", err)
	}

	uploads, err := collectSamples(*samples, *fileType)
	if err != nil {
		log.Fatalf("Failed to read samples: %v", err)
	}

	failed := 0
	for i, sample := range uploads {
		ds, err := contentService.CreateContent(ctx, admin, &libSvc.CreateContentRequest{
			LibraryID: library.ID,
			FolderID:  folder.ID,
			Name:      sample.name,
			FileExt:   sample.ext,
			Source:    strings.NewReader(sample.content),
		})
		if err != nil {
			log.Printf("Failed to upload %s: %v", sample.name, err)
			failed++
			continue
		}

		final, err := ingest.Poll(ctx, func(ctx context.Context) (*libModels.Dataset, error) {
			return contentService.GetContent(ctx, admin, library.ID, ds.ID)
		}, ingest.PollOptions{InitialInterval: 100 * time.Millisecond, MaxInterval: 2 * time.Second, Timeout: *timeout})
		if err != nil {
			log.Printf("Dataset %s did not finish: %v", sample.name, err)
			failed++
			continue
		}
		if !final.IsReady() {
			log.Printf("Dataset %s failed: %s", sample.name, valueOr(final.Error))
			failed++
			continue
		}

		log.Printf("Created dataset %d/%d: %s (%s, %s)",
			i+1, len(uploads), final.Name, final.FileExt, humanize.Bytes(uint64(final.FileSize)))
	}

	if failed > 0 {
		log.Fatalf("Seeding finished with %d failed dataset(s)", failed)
	}
	log.Println("Seeding complete")
}

// collectSamples reads the --sample files, or returns the built-in samples
func collectSamples(paths []string, ext string) ([]sampleDataset, error) {
	if len(paths) == 0 {
		return builtinSamples, nil
	}
	out := make([]sampleDataset, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		out = append(out, sampleDataset{name: filepath.Base(p), ext: ext, content: string(data)})
	}
	return out, nil
}

func valueOr(s *string) string {
	if s == nil {
		return "unknown error"
	}
	return *s
}
