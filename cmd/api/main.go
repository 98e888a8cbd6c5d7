package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gessa-sistemas/boletosgo/internal/config"
	"github.com/gessa-sistemas/boletosgo/internal/database"
	"github.com/gessa-sistemas/boletosgo/internal/handlers"
	"github.com/gessa-sistemas/boletosgo/internal/models"
	"github.com/gessa-sistemas/boletosgo/internal/services/evidence"
	"github.com/gessa-sistemas/boletosgo/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema (Critical for Zero-Config)
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.UserAuth{},
		&models.Contractor{},
		&models.DiningSite{},
		&models.PriceTier{},
		&models.VoucherBatch{},
		&models.Voucher{},
		&models.ScanEvent{},
		&models.DownloadRecord{},
		&models.AuthorizationRequest{},
		&models.AuditEntry{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Evidence storage: local disk unless an object store is configured
	var store evidence.Store
	if cfg.Storage.Backend == "minio" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		store, err = evidence.NewMinioStore(ctx,
			cfg.Storage.MinioEndpoint,
			cfg.Storage.MinioAccessKey,
			cfg.Storage.MinioSecretKey,
			cfg.Storage.MinioBucket,
			cfg.Storage.MinioUseSSL,
		)
		cancel()
		if err != nil {
			log.Fatalf("Failed to init MinIO storage: %v", err)
		}
		log.Println("✅ Evidence storage: MinIO")
	} else {
		store = evidence.NewDiskStore(cfg.Storage.EvidenceDir)
		log.Printf("✅ Evidence storage: disk (%s)", cfg.Storage.EvidenceDir)
	}

	// 5. Live scan feed hub
	hub := websocket.NewHub()
	go hub.Run()

	// 6. Set up HTTP router
	router := handlers.NewRouter(db.DB, cfg, hub, store)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Voucher API starting on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
