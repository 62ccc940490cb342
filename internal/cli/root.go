// Package cli provides the command-line interface for pagewright.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagewright/pagewright/internal/config"
	"github.com/pagewright/pagewright/internal/db"
	"github.com/pagewright/pagewright/internal/fsops"
	"github.com/pagewright/pagewright/internal/handlers"
	"github.com/pagewright/pagewright/internal/llm"
	"github.com/pagewright/pagewright/internal/metrics"
	"github.com/pagewright/pagewright/internal/router"
	"github.com/pagewright/pagewright/internal/store"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and shared services
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	dbClient   *db.Client
	convStore  *store.Store
	collector  *metrics.Collector

	// Lazy-initialized LLM components
	model     *llm.Model
	submitter *router.Router
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pagewright",
	Short: "Conversational web page builder",
	Long: `Pagewright is a conversational assistant for designing and building
web pages. It classifies each message, routes it to a chat or template
handler, and writes any generated files into your workspace.

Conversations are stored durably and survive restarts.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// Load config and logging
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		collector = metrics.NewCollector()

		// Connect to database
		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger, collector)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		// Initialize schema
		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		convStore = store.New(dbClient, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Close database connection and flush the log file
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// getRouter creates the router with lazy LLM initialization. Only the
// commands that actually talk to the model pay the provider setup cost.
func getRouter(ctx context.Context) (*router.Router, error) {
	if submitter != nil {
		return submitter, nil
	}

	var err error
	model, err = llm.NewModel(ctx, cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}

	deps := &handlers.Dependencies{
		Gateway:       model,
		Templates:     dbClient,
		Files:         fsops.NewDirWriter(cfg.OutputDir, logger),
		Logger:        logger,
		Metrics:       collector,
		ParseAttempts: cfg.ParseAttempts,
	}
	submitter = router.New(convStore, model,
		handlers.NewChatHandler(deps), handlers.NewTemplateHandler(deps),
		router.Options{
			HistoryWindow: cfg.HistoryWindow,
			ParseAttempts: cfg.ParseAttempts,
			Logger:        logger,
			Metrics:       collector,
		})
	return submitter, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(usageCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
