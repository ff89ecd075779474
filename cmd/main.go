package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/clipvault/video-service/docs"
	"github.com/clipvault/video-service/internal/config"
	"github.com/clipvault/video-service/internal/handlers"
	"github.com/clipvault/video-service/internal/logger"
	loggerMiddleware "github.com/clipvault/video-service/internal/logger/middleware"
	sharedMiddleware "github.com/clipvault/video-service/internal/middleware"
	"github.com/clipvault/video-service/internal/repositories"
	"github.com/clipvault/video-service/internal/services"
	"github.com/clipvault/video-service/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Video Service API
// @version 1.0
// @description API for uploading and listing videos
// @termsOfService http://swagger.io/terms/

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:3000
// @BasePath /api
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Video Service",
		zap.String("blob_backend", cfg.Blob.Backend),
		zap.String("metadata_backend", cfg.Metadata.Backend),
	)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()

	// Initialize staging area
	staging, err := storage.NewStagingArea(cfg.Upload.StagingDir)
	if err != nil {
		logger.Logger.Fatal("Failed to create staging area", zap.Error(err))
	}

	// Initialize blob store
	blobStore, localStore, err := newBlobStore(startupCtx, cfg)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	// Initialize metadata store
	videoRepo, closeRepo, err := newVideoRepository(cfg)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize metadata store", zap.Error(err))
	}
	defer closeRepo()

	// Initialize services
	uploadService := services.NewUploadService(staging, blobStore, videoRepo, logger.Logger, cfg.Upload.ReferenceTTL)
	listingService := services.NewListingService(videoRepo, cfg.Listing.PageSize)

	// Initialize handlers
	videoHandler := handlers.NewVideoHandler(uploadService, listingService, logger.Logger)
	healthHandler := handlers.NewHealthHandler(logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(sharedMiddleware.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(sharedMiddleware.RecoveryMiddleware(logger.Logger))
	r.Use(sharedMiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))
	r.Use(sharedMiddleware.RequestSizeLimitMiddleware(cfg.Upload.MaxSize))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Locally stored videos are served by this process
	if localStore != nil {
		handlers.NewMediaHandler(localStore, logger.Logger).RegisterRoutes(r)
	}

	if cfg.Server.UploadsDir != "" {
		handlers.RegisterUploadsDir(r, cfg.Server.UploadsDir)
	}

	// Scope router to /api
	r.Route("/api", func(r chi.Router) {
		videoHandler.RegisterRoutes(r)
	})

	// Start server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute, // Large video uploads
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// newBlobStore builds the configured blob store. The local store is also returned
// on its own so its download route can be mounted.
func newBlobStore(ctx context.Context, cfg *config.Config) (services.BlobStore, *storage.LocalBlobStore, error) {
	switch cfg.Blob.Backend {
	case config.BlobBackendAzure:
		store, err := storage.NewAzureBlobStore(cfg.Blob.Azure.ConnectionString, cfg.Blob.Azure.Container)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureContainer(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.BlobBackendS3:
		store, err := storage.NewS3BlobStore(ctx, cfg.Blob.S3.Bucket, cfg.Blob.S3.Region, cfg.Blob.S3.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Upload.ReferenceTTL > storage.MaxS3PresignTTL {
			logger.Logger.Warn("read reference TTL exceeds the S3 presign limit and will be clamped",
				zap.Duration("configured", cfg.Upload.ReferenceTTL),
				zap.Duration("max", storage.MaxS3PresignTTL),
			)
		}
		return store, nil, nil
	case config.BlobBackendLocal:
		store, err := storage.NewLocalBlobStore(cfg.Blob.Local.BasePath, cfg.Blob.Local.BaseURL, cfg.Blob.Local.SigningSecret)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported blob backend %q", cfg.Blob.Backend)
	}
}

// newVideoRepository builds the configured metadata store and a func releasing its resources
func newVideoRepository(cfg *config.Config) (services.VideoRepository, func(), error) {
	noop := func() {}

	switch cfg.Metadata.Backend {
	case config.MetadataBackendCosmos:
		repo, err := repositories.NewCosmosVideoRepository(
			cfg.Metadata.Cosmos.ConnectionString,
			cfg.Metadata.Cosmos.Database,
			cfg.Metadata.Cosmos.Container,
		)
		if err != nil {
			return nil, nil, err
		}
		return repo, noop, nil
	case config.MetadataBackendMySQL:
		db, err := connectDB(cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := runMigrations(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repositories.NewMySQLVideoRepository(db), func() { db.Close() }, nil
	case config.MetadataBackendMemory:
		logger.Logger.Warn("Using in-memory metadata store, records are lost on restart")
		return repositories.NewMemoryVideoRepository(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported metadata backend %q", cfg.Metadata.Backend)
	}
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "videos_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Get the working directory or use migrations folder relative to the binary
	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Try parent directory if running from cmd
		if _, err := os.Stat("../migrations"); err == nil {
			migrationPath = "file://../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
