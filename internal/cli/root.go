// Package cli implements feedpulsectl, the operator tool for registering
// accounts, managing subscriptions and inspecting rankings.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lueurxax/feedpulse/internal/platform/config"
	"github.com/lueurxax/feedpulse/internal/platform/observability"
	db "github.com/lueurxax/feedpulse/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:          "feedpulsectl",
	Short:        "Operate a feedpulse deployment",
	SilenceUsage: true,
}

// Execute runs the command line until completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(newImportSessionCmd())
	rootCmd.AddCommand(newSubscribeCmd())
	rootCmd.AddCommand(newTopCmd())
}

type env struct {
	cfg      *config.Base
	database *db.DB
	logger   *zerolog.Logger
}

// openEnv loads the base configuration, connects and migrates the database.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadBase()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.AppEnv)

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns:          cfg.DBMaxConnections,
		MinConns:          cfg.DBMinConnections,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}, &logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := database.Migrate(ctx); err != nil {
		database.Close()

		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &env{cfg: cfg, database: database, logger: &logger}, nil
}

func (e *env) Close() {
	e.database.Close()
}
