package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/cmkbridge/cmkbridge/internal/cache"
	"github.com/cmkbridge/cmkbridge/internal/checkmk"
	"github.com/cmkbridge/cmkbridge/internal/config"
	"github.com/cmkbridge/cmkbridge/internal/coordinator"
	"github.com/cmkbridge/cmkbridge/internal/database"
	"github.com/cmkbridge/cmkbridge/internal/handlers"
	"github.com/cmkbridge/cmkbridge/internal/ingest"
	"github.com/cmkbridge/cmkbridge/internal/middleware"
	"github.com/cmkbridge/cmkbridge/internal/poller"
	"github.com/cmkbridge/cmkbridge/internal/servicedesk"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting Checkmk/ServiceDesk bridge...")

	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	store := database.NewStore(db)
	problemCache := cache.New()
	if err := problemCache.Refresh(store); err != nil {
		log.Printf("Warning: initial cache refresh failed: %v", err)
	} else {
		log.Printf("Problem cache primed with %d linked problem(s)", problemCache.Len())
	}

	monitor, err := checkmk.NewClient(checkmk.Config{
		BaseURL:    cfg.CheckmkURL,
		APIVersion: cfg.CheckmkAPIVersion,
		Username:   cfg.CheckmkUsername,
		Secret:     cfg.CheckmkSecret,
	})
	if err != nil {
		log.Fatalf("Failed to initialize Checkmk client: %v", err)
	}

	tickets, err := servicedesk.NewClient(servicedesk.Config{
		BaseURL:       cfg.SDPURL,
		APIVersion:    cfg.SDPAPIVersion,
		AuthToken:     cfg.SDPAuthToken,
		RequesterName: cfg.SDPRequesterName,
		RequesterID:   cfg.SDPRequesterID,
		Priority:      cfg.SDPPriority,
	})
	if err != nil {
		log.Fatalf("Failed to initialize ServiceDesk client: %v", err)
	}

	pipeline := &ingest.Pipeline{
		Store:   store,
		Cache:   problemCache,
		Tickets: ingest.NewTicketService(tickets, cfg.SDPServiceTemplateID, cfg.SDPHostTemplateID),
	}

	reconciler := &coordinator.Coordinator{
		Tickets:  tickets,
		Monitor:  monitor,
		Store:    store,
		Cache:    problemCache,
		Interval: cfg.ReconcileInterval,
	}

	// Background loops share one context; cancelling it stops them all
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	pollers := []*poller.Poller{
		poller.New("servicedesk-requests", cfg.PollInterval, cfg.PollMaxRetries, tickets.RefreshRequests),
		poller.New("checkmk-hosts", cfg.PollInterval, cfg.PollMaxRetries, monitor.RefreshHosts),
		poller.New("checkmk-services", cfg.PollInterval, cfg.PollMaxRetries, monitor.RefreshServices),
		poller.New("problem-cache", cfg.CacheRefreshInterval, cfg.PollMaxRetries, func(ctx context.Context) error {
			return problemCache.Refresh(store)
		}),
	}
	for _, p := range pollers {
		wg.Add(1)
		go func(p *poller.Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	// HTTP boundary
	notifyHandler := handlers.NewNotifyHandler(pipeline)
	mux := http.NewServeMux()
	notifyHandler.SetupRoutes(mux)

	// The liveness probe authenticates like every other route
	authMiddleware := middleware.NewAuthMiddleware(&middleware.AuthConfig{
		TokenHash: cfg.AuthTokenHash,
		Enabled:   cfg.AuthEnabled,
	})
	if cfg.AuthEnabled {
		log.Printf("Bearer-token authentication enabled")
	} else {
		log.Printf("Bearer-token authentication DISABLED")
	}

	corsMiddleware := middleware.NewCORSMiddleware()
	handler := middleware.RequestIDMiddleware(corsMiddleware.Wrap(authMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal, cleaning up...")

	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if err := database.Close(db); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Shutdown complete")
}
