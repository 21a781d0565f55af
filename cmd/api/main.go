package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scoutdesk/scoutdesk/internal/cache"
	"github.com/scoutdesk/scoutdesk/internal/config"
	"github.com/scoutdesk/scoutdesk/internal/database"
	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/handlers"
	"github.com/scoutdesk/scoutdesk/internal/models"
	"github.com/scoutdesk/scoutdesk/internal/pipeline"
	"github.com/scoutdesk/scoutdesk/internal/services/notion"
	"github.com/scoutdesk/scoutdesk/internal/services/places"
	"github.com/scoutdesk/scoutdesk/internal/services/suggest"
	"github.com/scoutdesk/scoutdesk/internal/writeback"
	"github.com/scoutdesk/scoutdesk/internal/ws"
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

	// 3. Auto-Migrate Schema
	log.Println("🚀 Synchronizing database schema...")
	if err := db.AutoMigrate(
		&models.UserAuth{},
		&models.JobRun{},
	); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. External collaborators
	store := notion.NewService(cfg.Notion)

	var geo gateway.Geocoder
	if cfg.Google.MapsAPIKey != "" {
		geo, err = places.NewService(cfg.Google.MapsAPIKey)
		if err != nil {
			log.Fatalf("Failed to init geocoder: %v", err)
		}
	} else {
		log.Println("⚠️ GOOGLE_MAPS_API_KEY not set, normalization runs without upstream lookups")
	}

	var suggester *suggest.Suggester
	if cfg.Google.GeminiAPIKey != "" {
		suggester, err = suggest.New(context.Background(), cfg.Google.GeminiAPIKey, cfg.Google.GeminiModel)
		if err != nil {
			log.Printf("⚠️ Address suggester disabled: %v", err)
		} else {
			defer suggester.Close()
		}
	}

	// 5. Pipeline wiring
	snap := cache.New(store, cfg.Pipeline.CacheTTL)
	hub := ws.NewHub()
	go hub.Run()

	pipe := pipeline.NewService(store, geo, snap, db.DB, hub, pipeline.Options{
		ProximityMeters: cfg.Pipeline.ProximityMeters,
		WriteRatePerSec: cfg.Pipeline.WriteRatePerSec,
		RetryPolicy: writeback.RetryPolicy{
			MaxAttempts:       cfg.Pipeline.RetryMaxAttempts,
			BaseDelay:         cfg.Pipeline.RetryBaseDelay,
			BackoffMultiplier: cfg.Pipeline.RetryMultiplier,
		},
	})

	// 6. HTTP router and server
	router := handlers.NewRouter(db, cfg, pipe, hub, suggester)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Console server starting on port %s\n", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
