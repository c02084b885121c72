package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thedatamonk/spendly/internal/config"
	"github.com/thedatamonk/spendly/internal/db"
	"github.com/thedatamonk/spendly/internal/ledger"
)

var (
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "spendly",
	Short: "Spendly - a conversational ledger of who owes whom",
	Long: `Spendly tracks money owed to you and money you owe, driven by plain
chat messages. Every change is confirmed before it is written.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		zcfg := zap.NewProductionConfig()
		if verbose || cfg.Debug() {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, migrateCmd, parseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openLedger connects the Postgres ledger, or falls back to memory when no
// database is configured. The returned func releases the connection.
func openLedger(ctx context.Context) (ledger.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, keeping the ledger in memory")
		return ledger.NewMemoryStore(), func() {}, nil
	}
	database, err := db.New(ctx, cfg.DatabaseURL, logger.Named("db"))
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunMigrations(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, database.Close, nil
}
