package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/kpiledger/internal/api"
	"github.com/rpattn/kpiledger/internal/config"
	"github.com/rpattn/kpiledger/internal/db"
	"github.com/rpattn/kpiledger/internal/middleware"
	"github.com/rpattn/kpiledger/internal/repository"
	"github.com/rpattn/kpiledger/internal/session"

	"github.com/rs/cors"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The change log archive lives in Postgres when enabled, in memory otherwise
	var archive repository.ChangeLogRepository = repository.NewMemoryChangeLogRepository()
	if cfg.Database.Enabled {
		conn, err := db.NewConnection(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer conn.Close()

		if err := db.RunMigrations(conn.Pool); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		archive = repository.NewChangeLogRepository(conn.Pool)
	}

	sessions := session.NewManager(archive, session.Options{
		DataFile:    cfg.Ledger.DataFile,
		Validate:    cfg.Ledger.Validate,
		IdleTimeout: cfg.Server.SessionIdleTimeout,
		MaxSessions: cfg.Server.MaxSessions,
	})
	go sessions.Run(ctx, time.Minute)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{session.HeaderName, "Content-Disposition"},
	})

	apiHandler := middleware.LoggingMiddleware(
		middleware.SessionMiddleware(api.NewHandler(sessions, cfg.Ledger.RecentChanges)),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/", corsHandler.Handler(apiHandler))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting KPI ledger API on %s", cfg.Server.Addr)
		log.Printf("Data file: %s", cfg.Ledger.DataFile)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
