// Package main provides the websocket server for pagewright.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pagewright/pagewright/internal/config"
	"github.com/pagewright/pagewright/internal/db"
	"github.com/pagewright/pagewright/internal/fsops"
	"github.com/pagewright/pagewright/internal/handlers"
	"github.com/pagewright/pagewright/internal/llm"
	"github.com/pagewright/pagewright/internal/metrics"
	"github.com/pagewright/pagewright/internal/router"
	"github.com/pagewright/pagewright/internal/server"
	"github.com/pagewright/pagewright/internal/store"
)

const version = "0.1.0"

func main() {
	// Parse flags
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("pagewright-server starting",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"surrealdb_url", cfg.SurrealDBURL,
		"llm_provider", cfg.LLMProvider,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.NewCollector()

	// Connect to database
	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	dbClient, err := db.NewClient(ctx, dbCfg, logger, collector)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(context.Background())
	}()

	// Initialize database schema
	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	// Wipe database if requested (via flag or env var)
	if *wipeDB || os.Getenv("PAGEWRIGHT_WIPE_DB") == "true" {
		if err := dbClient.WipeData(ctx); err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		logger.Warn("database wiped")
	}

	// Create model gateway
	model, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		logger.Error("failed to create model gateway", "error", err)
		os.Exit(1)
	}
	logger.Info("model gateway initialized", "model", model.Model())

	// Wire the conversation pipeline
	convStore := store.New(dbClient, logger)
	deps := &handlers.Dependencies{
		Gateway:       model,
		Templates:     dbClient,
		Files:         fsops.NewDirWriter(cfg.OutputDir, logger),
		Logger:        logger,
		Metrics:       collector,
		ParseAttempts: cfg.ParseAttempts,
	}
	r := router.New(convStore, model,
		handlers.NewChatHandler(deps), handlers.NewTemplateHandler(deps),
		router.Options{
			HistoryWindow: cfg.HistoryWindow,
			ParseAttempts: cfg.ParseAttempts,
			Logger:        logger,
			Metrics:       collector,
		})

	// Run server (blocks until context cancelled)
	srv := server.New(cfg.ListenAddr, r, logger, collector)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
