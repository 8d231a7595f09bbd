package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	Environment   string
	DatabaseURL   string
	StoreBackend  string // "postgres" or "memory"
	SupabaseURL   string
	JWKSURL       string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins   string
	TablePrefix   string
	AutoMigrate   bool
	AdminUsers    []string // Emails treated as administrators
	StorageDir    string
	LogDir        string
	LogMaxFiles   int
	// Ingestion
	IngestWorkers    int
	IngestQueueSize  int
	IngestJobTimeout time.Duration
	MaxUploadBytes   int64
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	jwksURL := ""
	if supabaseURL != "" {
		jwksURL = supabaseURL + "/auth/v1/.well-known/jwks.json"
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		Environment:  env,
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		StoreBackend: getEnv("STORE_BACKEND", "postgres"),
		SupabaseURL:  supabaseURL,
		JWKSURL:      jwksURL,
		CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:  tablePrefix,
		AutoMigrate:  getEnv("AUTO_MIGRATE", "false") == "true",
		AdminUsers:   splitList(getEnv("ADMIN_USERS", "")),
		StorageDir:   getEnv("STORAGE_DIR", "./data/objects"),
		LogDir:       getEnv("LOG_DIR", ""),
		LogMaxFiles:  getEnvInt("LOG_MAX_FILES", 10),
		// Ingestion
		IngestWorkers:    getEnvInt("INGEST_WORKERS", 4),
		IngestQueueSize:  getEnvInt("INGEST_QUEUE_SIZE", 256),
		IngestJobTimeout: getEnvDuration("INGEST_JOB_TIMEOUT", 2*time.Minute),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// IsAdminEmail reports whether email is listed in ADMIN_USERS (case-insensitive)
func (c *Config) IsAdminEmail(email string) bool {
	if email == "" {
		return false
	}
	for _, admin := range c.AdminUsers {
		if strings.EqualFold(admin, email) {
			return true
		}
	}
	return false
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
