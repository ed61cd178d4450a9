// Package main provides the entry point for the studypath admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"studypath/cmd/adm/commands"
	"studypath/internal/config"
	"studypath/internal/database"
	"studypath/internal/observability"
	"studypath/internal/services"

	"github.com/spf13/cobra"
)

var (
	cfg         *config.Config
	logger      *observability.Logger
	userService *services.UserService
)

func main() {
	ctx := context.Background()

	cfgInstance, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg = cfgInstance

	// Admin CLI stays quiet and offline
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	tp, mp, loggerInstance, err := observability.SetupObservability(&cfg.OpenTelemetry, "studypath-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	logger = loggerInstance
	defer func() {
		if shutdownable, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
			_ = shutdownable.Shutdown(context.TODO())
		}
		if mp != nil {
			_ = mp.Shutdown(context.TODO())
		}
	}()

	dbManager := database.NewManager(logger)
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	userService = services.NewUserServiceWithLogger(db, cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "studypath admin CLI",
		Long:  "Administrative tooling for the studypath backend: migrations, catalog seeding and user management.",
	}

	rootCmd.AddCommand(commands.DatabaseCommands(logger, db, cfg.Database.URL))
	rootCmd.AddCommand(commands.SubjectCommands(logger, db))
	rootCmd.AddCommand(commands.UserCommands(userService, logger, db))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
