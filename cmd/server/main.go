/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the DSP reconciliation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env files, environment, flags)
  2. Build the logger
  3. Initialize SQLite store and upload folder
  4. Create reconciliation service and API handler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  PORT, DB_PATH, UPLOAD_FOLDER, LOG_LEVEL, LOG_FORMAT, CORS_ORIGINS,
  MAX_UPLOAD_SIZE, METRICS_PATH, SHUTDOWN_TIMEOUT (see config/config.go)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/dsp.db"

  # Run on different port with JSON logs
  LOG_FORMAT=json ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - reconcile/service.go: Preview / Commit
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/dsp-reconciler/api"
	"github.com/warp/dsp-reconciler/config"
	"github.com/warp/dsp-reconciler/reconcile"
	"github.com/warp/dsp-reconciler/store/sqlite"
	"github.com/warp/dsp-reconciler/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logger := cfg.Logger()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	files, err := upload.NewDir(cfg.UploadFolder)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize upload folder")
	}

	svc := reconcile.NewService(reconcile.ServiceOptions{
		Catalog:    store,
		Store:      store,
		References: store,
		Files:      files,
		Logger:     logger,
	})

	handler := api.NewHandler(svc, store, store, logger)
	handler.MaxUploadSize = cfg.MaxUploadSize

	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		MetricsPath: cfg.MetricsPath,
	})

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":          server.Addr,
			"db":            cfg.DBPath,
			"upload_folder": files.Root(),
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		return
	}

	logger.Info("Server stopped")
}
