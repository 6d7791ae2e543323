package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akeren/waitlist-edge/config"
	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/migrations"
	"github.com/akeren/waitlist-edge/pkg/utils"
)

func main() {
	logger := log.NewLoggerWithJSONOutput()

	config.InitializeEnvFile(logger) // Load envs early for CLI consistency

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "migrate":
		dbCfg := config.NewDBConfig()
		if !dbCfg.IsConfigured() {
			logger.Error("Database is not configured, nothing to migrate", "driver", dbCfg.Driver)
			os.Exit(1)
		}

		db, err := config.NewDatabase(logger, dbCfg)
		if err != nil {
			logger.Error("Failed to connect to database for migration", "error", err.Error())

			os.Exit(1)
		}

		sqlDB, err := db.DB()
		if err != nil {
			logger.Error("Failed to get SQL DB instance for migration", "error", err.Error())
			os.Exit(1)
		}
		defer func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Failed to close SQL DB after migration", "error", err.Error())
			}
		}()

		migrationsDir := utils.GetEnvTrimmedOrDefault("MIGRATIONS_DIR", filepath.Join("migrations", dbCfg.Driver))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := migrations.Up(ctx, sqlDB, migrations.Config{
			Driver: dbCfg.Driver,
			Dir:    migrationsDir,
			Logger: logger,
		}); err != nil {
			logger.Error("Database migration failed", "error", err.Error())
			os.Exit(1)
		}

		logger.Info("Database migrations completed")
		return

	case "help", "-h", "--help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: cli <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate  Create or upgrade the waitlist table for DATABASE_DRIVER and exit")
	fmt.Println("  help     Show this message")
}
