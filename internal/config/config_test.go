package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"ENVIRONMENT", "TABLE_PREFIX", "ADMIN_USERS", "INGEST_WORKERS", "INGEST_JOB_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Environment != "dev" {
		t.Errorf("expected dev environment, got %q", cfg.Environment)
	}
	if cfg.TablePrefix != "dev_" {
		t.Errorf("expected dev_ prefix, got %q", cfg.TablePrefix)
	}
	if cfg.IngestWorkers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.IngestWorkers)
	}
	if cfg.IngestJobTimeout != 2*time.Minute {
		t.Errorf("expected 2m job timeout, got %s", cfg.IngestJobTimeout)
	}
	if len(cfg.AdminUsers) != 0 {
		t.Errorf("expected no admins, got %v", cfg.AdminUsers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("ADMIN_USERS", " root@example.org, ops@example.org ,")
	t.Setenv("INGEST_WORKERS", "not-a-number")
	t.Setenv("INGEST_JOB_TIMEOUT", "30s")

	cfg := Load()

	if cfg.TablePrefix != "prod_" {
		t.Errorf("expected prod_ prefix, got %q", cfg.TablePrefix)
	}
	if cfg.Debug {
		t.Error("debug should default to false in prod")
	}
	if cfg.IngestWorkers != 4 {
		t.Errorf("invalid INGEST_WORKERS should fall back to default, got %d", cfg.IngestWorkers)
	}
	if cfg.IngestJobTimeout != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.IngestJobTimeout)
	}
	if !cfg.IsAdminEmail("ROOT@example.org") {
		t.Error("admin match should be case-insensitive")
	}
	if cfg.IsAdminEmail("") || cfg.IsAdminEmail("user@example.org") {
		t.Error("non-admin email matched")
	}
}

func TestSetupLogFile_PrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"librarian-2020-01-01T00-00-00.log",
		"librarian-2020-01-02T00-00-00.log",
		"librarian-2020-01-03T00-00-00.log",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	f, err := SetupLogFile(dir, 2)
	if err != nil {
		t.Fatalf("SetupLogFile: %v", err)
	}
	defer f.Close()

	files, _ := filepath.Glob(filepath.Join(dir, logFilePattern))
	if len(files) != 2 {
		t.Fatalf("expected 2 files after pruning, got %d: %v", len(files), files)
	}
	if _, err := os.Stat(filepath.Join(dir, "librarian-2020-01-01T00-00-00.log")); !os.IsNotExist(err) {
		t.Error("oldest log file should have been removed")
	}
}
