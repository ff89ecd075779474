// Package config provides configuration for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Blob storage backends
const (
	BlobBackendAzure = "azure"
	BlobBackendS3    = "s3"
	BlobBackendLocal = "local"
)

// Metadata store backends
const (
	MetadataBackendCosmos = "cosmos"
	MetadataBackendMySQL  = "mysql"
	MetadataBackendMemory = "memory"
)

const (
	defaultServerPort      = 3000
	defaultStagingDir      = "tempUploads"
	defaultMaxUploadSize   = 500 * 1024 * 1024
	defaultReferenceTTL    = 365 * 24 * time.Hour
	defaultListingPageSize = 100
	defaultS3Region        = "us-east-1"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	Blob     BlobConfig
	Metadata MetadataConfig
	Upload   UploadConfig
	Listing  ListingConfig
}

// DatabaseConfig holds MySQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port      int
	UploadsDir string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// BlobConfig selects and configures the blob store
type BlobConfig struct {
	Backend string
	Azure   AzureBlobConfig
	S3      S3Config
	Local   LocalBlobConfig
}

// AzureBlobConfig holds Azure Blob Storage settings
type AzureBlobConfig struct {
	ConnectionString string
	Container        string
}

// S3Config holds S3 settings. Endpoint is only set for S3-compatible stores.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

// LocalBlobConfig holds settings for blobs kept on local disk
type LocalBlobConfig struct {
	BasePath      string
	BaseURL       string
	SigningSecret string
}

// MetadataConfig selects and configures the metadata store
type MetadataConfig struct {
	Backend string
	Cosmos  CosmosConfig
}

// CosmosConfig holds Cosmos DB settings
type CosmosConfig struct {
	ConnectionString string
	Database         string
	Container        string
}

// UploadConfig holds upload pipeline settings
type UploadConfig struct {
	StagingDir   string
	MaxSize      int64
	ReferenceTTL time.Duration
}

// ListingConfig holds listing settings
type ListingConfig struct {
	PageSize int
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	var err error

	// Server configuration
	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = os.Getenv("PORT")
	}
	if cfg.Server.Port, err = intOrDefault("SERVER_PORT", serverPortStr, defaultServerPort); err != nil {
		return nil, err
	}
	cfg.Server.UploadsDir = os.Getenv("UPLOADS_DIR")

	// Logging configuration
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// Blob storage configuration
	if err := loadBlobConfig(cfg); err != nil {
		return nil, err
	}

	// Metadata store configuration
	if err := loadMetadataConfig(cfg); err != nil {
		return nil, err
	}

	// Upload configuration
	cfg.Upload.StagingDir = os.Getenv("STAGING_DIR")
	if cfg.Upload.StagingDir == "" {
		cfg.Upload.StagingDir = defaultStagingDir
	}

	maxSize, err := intOrDefault("MAX_UPLOAD_SIZE", os.Getenv("MAX_UPLOAD_SIZE"), defaultMaxUploadSize)
	if err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	cfg.Upload.MaxSize = int64(maxSize)

	cfg.Upload.ReferenceTTL = defaultReferenceTTL
	if ttlStr := os.Getenv("READ_REFERENCE_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid READ_REFERENCE_TTL: %w", err)
		}
		if ttl <= 0 {
			return nil, fmt.Errorf("READ_REFERENCE_TTL must be positive")
		}
		cfg.Upload.ReferenceTTL = ttl
	}

	// Listing configuration
	if cfg.Listing.PageSize, err = intOrDefault("LISTING_PAGE_SIZE", os.Getenv("LISTING_PAGE_SIZE"), defaultListingPageSize); err != nil {
		return nil, err
	}
	if cfg.Listing.PageSize <= 0 {
		return nil, fmt.Errorf("LISTING_PAGE_SIZE must be positive")
	}

	return cfg, nil
}

func loadBlobConfig(cfg *Config) error {
	cfg.Blob.Backend = strings.ToLower(os.Getenv("BLOB_BACKEND"))
	if cfg.Blob.Backend == "" {
		cfg.Blob.Backend = BlobBackendAzure
	}

	switch cfg.Blob.Backend {
	case BlobBackendAzure:
		cfg.Blob.Azure.ConnectionString = os.Getenv("AZURE_STORAGE_CONNECTION_STRING")
		if cfg.Blob.Azure.ConnectionString == "" {
			return fmt.Errorf("AZURE_STORAGE_CONNECTION_STRING is required")
		}
		cfg.Blob.Azure.Container = os.Getenv("AZURE_STORAGE_CONTAINER_NAME")
		if cfg.Blob.Azure.Container == "" {
			return fmt.Errorf("AZURE_STORAGE_CONTAINER_NAME is required")
		}
	case BlobBackendS3:
		cfg.Blob.S3.Bucket = os.Getenv("S3_BUCKET")
		if cfg.Blob.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required")
		}
		cfg.Blob.S3.Region = os.Getenv("S3_REGION")
		if cfg.Blob.S3.Region == "" {
			cfg.Blob.S3.Region = defaultS3Region
		}
		cfg.Blob.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	case BlobBackendLocal:
		cfg.Blob.Local.BasePath = os.Getenv("MEDIA_BASE_PATH")
		if cfg.Blob.Local.BasePath == "" {
			return fmt.Errorf("MEDIA_BASE_PATH is required")
		}
		cfg.Blob.Local.SigningSecret = os.Getenv("MEDIA_SIGNING_SECRET")
		if cfg.Blob.Local.SigningSecret == "" {
			return fmt.Errorf("MEDIA_SIGNING_SECRET is required")
		}
		cfg.Blob.Local.BaseURL = strings.TrimRight(os.Getenv("MEDIA_BASE_URL"), "/")
		if cfg.Blob.Local.BaseURL == "" {
			cfg.Blob.Local.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		}
	default:
		return fmt.Errorf("unsupported BLOB_BACKEND %q", cfg.Blob.Backend)
	}

	return nil
}

func loadMetadataConfig(cfg *Config) error {
	cfg.Metadata.Backend = strings.ToLower(os.Getenv("METADATA_BACKEND"))
	if cfg.Metadata.Backend == "" {
		cfg.Metadata.Backend = MetadataBackendCosmos
	}

	switch cfg.Metadata.Backend {
	case MetadataBackendCosmos:
		cosmos := &cfg.Metadata.Cosmos
		cosmos.ConnectionString = os.Getenv("COSMOS_DB_CONNECTION_STRING")
		if cosmos.ConnectionString == "" {
			return fmt.Errorf("COSMOS_DB_CONNECTION_STRING is required")
		}
		cosmos.Database = os.Getenv("COSMOS_DB_DATABASE")
		if cosmos.Database == "" {
			return fmt.Errorf("COSMOS_DB_DATABASE is required")
		}
		cosmos.Container = os.Getenv("COSMOS_DB_CONTAINER")
		if cosmos.Container == "" {
			return fmt.Errorf("COSMOS_DB_CONTAINER is required")
		}
	case MetadataBackendMySQL:
		return loadDatabaseConfig(cfg)
	case MetadataBackendMemory:
	default:
		return fmt.Errorf("unsupported METADATA_BACKEND %q", cfg.Metadata.Backend)
	}

	return nil
}

func loadDatabaseConfig(cfg *Config) error {
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	return nil
}

// intOrDefault parses value as an int, returning def when value is empty
func intOrDefault(name, value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

// parseOrigins splits a comma-separated origin list, allowing all origins when empty
func parseOrigins(value string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(value, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	if c.Database.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}
