package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Storage   StorageConfig
	// DownloadLimit applied to newly created batches.
	DownloadLimit int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Quiet    bool
}

// StorageConfig selects where rendered PDFs and evidence photos live.
// Backend "disk" writes beneath the local directories; "minio" sends
// everything to an S3-compatible object store.
type StorageConfig struct {
	Backend     string
	ArtifactDir string
	EvidenceDir string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	downloadLimit := 3
	if v := os.Getenv("DOWNLOAD_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid DOWNLOAD_LIMIT: %q", v)
		}
		downloadLimit = n
	}

	return &Config{
		Env:       getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "3000"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "vouchers"),
			Quiet:    getEnv("DB_QUIET", "false") == "true",
		},
		Storage: StorageConfig{
			Backend:        getEnv("STORAGE_BACKEND", "disk"),
			ArtifactDir:    getEnv("ARTIFACT_DIR", "./pdfs"),
			EvidenceDir:    getEnv("EVIDENCE_DIR", "./evidence"),
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    getEnv("MINIO_BUCKET", "vouchers"),
			MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		},
		DownloadLimit: downloadLimit,
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
