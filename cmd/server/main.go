// Package main is the entry point for the seven-segment decoder server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fidde/segment_decoder/internal/analyzer"
	"github.com/fidde/segment_decoder/internal/api"
	"github.com/fidde/segment_decoder/internal/config"
	"github.com/fidde/segment_decoder/internal/receiver"
	"github.com/fidde/segment_decoder/internal/storage"
	"github.com/fidde/segment_decoder/internal/storage/sessions"
)

func main() {
	log.Println("Starting segment decoder...")

	cfg, err := config.Load(getEnv("SEGDECODE_CONFIG", ""))
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := cfg.NewLogger(os.Stderr)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.NewStorage(startCtx, cfg.StorageOptions(), logger)
	cancelStart()
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	log.Printf("Storage backend: %s", cfg.Storage.Backend)

	sessionStore, err := sessions.NewWithConfig(cfg.SessionOptions())
	if err != nil {
		log.Fatalf("Failed to create session store: %v", err)
	}

	entries := analyzer.NewEntryAnalyzer(cfg.Analyzer.Workers)
	log.Printf("Decoding with %d workers", entries.Workers())

	// Create OTLP receivers
	httpReceiver := receiver.NewHTTPReceiver(cfg.Server.OTLPHTTPAddr, store, entries, logger)
	grpcReceiver := receiver.NewGRPCReceiver(cfg.Server.OTLPGRPCAddr, store, entries, logger)

	// Create REST API server
	apiServer := api.NewServer(cfg.Server.APIAddr, store, api.Options{
		Analyzer: entries,
		Sessions: sessionStore,
		Logger:   logger,
	})

	// Start pprof server for profiling (separate port)
	pprofAddr := getEnv("SEGDECODE_PPROF_ADDR", "localhost:6060")
	go func() {
		log.Printf("Starting pprof server on http://%s/debug/pprof", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			log.Printf("pprof server error: %v", err)
		}
	}()

	// Start servers in goroutines
	errChan := make(chan error, 3)

	go func() {
		log.Printf("Starting OTLP HTTP receiver on %s", cfg.Server.OTLPHTTPAddr)
		if err := httpReceiver.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("OTLP HTTP receiver error: %w", err)
		}
	}()

	go func() {
		log.Printf("Starting OTLP gRPC receiver on %s", cfg.Server.OTLPGRPCAddr)
		if err := grpcReceiver.Start(); err != nil {
			errChan <- fmt.Errorf("OTLP gRPC receiver error: %w", err)
		}
	}()

	go func() {
		log.Printf("Starting REST API server on %s", cfg.Server.APIAddr)
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Give servers time to start
	time.Sleep(100 * time.Millisecond)
	log.Println("All servers started successfully")
	log.Println("OTLP endpoints:")
	log.Printf("  - HTTP: http://%s/v1/logs", cfg.Server.OTLPHTTPAddr)
	log.Printf("  - gRPC: %s", cfg.Server.OTLPGRPCAddr)
	log.Println("API endpoints:")
	log.Printf("  - Decode: http://%s/api/v1/decode", cfg.Server.APIAddr)
	log.Printf("  - Entries: http://%s/api/v1/entries", cfg.Server.APIAddr)
	log.Printf("  - Summary: http://%s/api/v1/summary", cfg.Server.APIAddr)
	log.Printf("  - Sessions: http://%s/api/v1/sessions", cfg.Server.APIAddr)
	log.Printf("  - Health: http://%s/api/v1/health", cfg.Server.APIAddr)
	log.Printf("  - Metrics: http://%s/metrics", cfg.Server.APIAddr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		store.Close()
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down...", sig)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Shutting down servers...")
	if err := httpReceiver.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down OTLP HTTP receiver: %v", err)
	}
	if err := grpcReceiver.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down OTLP gRPC receiver: %v", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}

	log.Println("Closing storage...")
	if err := store.Close(); err != nil {
		log.Printf("Error closing storage: %v", err)
	}

	log.Println("Shutdown complete")
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
