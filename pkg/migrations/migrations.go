package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type migrator interface {
	Up() error
	Close() (sourceErr error, databaseErr error)
}

var driverFactory = func(db *sql.DB, cfg Config) (database.Driver, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: cfg.MigrationsTable})
	default:
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: cfg.MigrationsTable})
	}
}

var migratorFactory = func(sourceURL, databaseName string, driver database.Driver) (migrator, error) {
	return migrate.NewWithDatabaseInstance(sourceURL, databaseName, driver)
}

// databaseName is the name golang-migrate registers each driver under.
func databaseName(driver string) string {
	if driver == DriverSQLite {
		return "sqlite3"
	}
	return "postgres"
}

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type Config struct {
	// Driver is DriverPostgres (default) or DriverSQLite.
	Driver          string
	Dir             string
	MigrationsTable string
	Logger          Logger
}

func Up(ctx context.Context, db *sql.DB, cfg Config) error {
	if db == nil {
		return fmt.Errorf("migrations: db is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	switch cfg.Driver {
	case "":
		cfg.Driver = DriverPostgres
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("migrations: unsupported driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = filepath.Join("migrations", cfg.Driver)
	}
	if strings.TrimSpace(cfg.MigrationsTable) == "" {
		cfg.MigrationsTable = "schema_migrations"
	}

	absDir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return fmt.Errorf("migrations: resolve dir: %w", err)
	}

	// Build a proper file:// URL with correct escaping and path separators.
	// Use ToSlash to normalize Windows backslashes to forward slashes.
	sourceURL := (&url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(absDir),
	}).String()

	driver, err := driverFactory(db, cfg)
	if err != nil {
		return fmt.Errorf("migrations: %s driver: %w", cfg.Driver, err)
	}

	m, err := migratorFactory(sourceURL, databaseName(cfg.Driver), driver)
	if err != nil {
		return fmt.Errorf("migrations: init: %w", err)
	}
	closeOnce := sync.Once{}
	closeMigrator := func() {
		closeOnce.Do(func() {
			srcErr, dbErr := m.Close()
			if cfg.Logger != nil {
				if srcErr != nil {
					cfg.Logger.Warn("Migrations source close error", "error", srcErr)
				}
				if dbErr != nil {
					cfg.Logger.Warn("Migrations db close error", "error", dbErr)
				}
			}
		})
	}
	defer closeMigrator()

	if cfg.Logger != nil {
		cfg.Logger.Info("Running SQL migrations", "driver", cfg.Driver, "dir", absDir, "table", cfg.MigrationsTable)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Up()
	}()

	select {
	case <-ctx.Done():
		// Best-effort interruption. migrate doesn't accept a context directly.
		closeMigrator()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			if err == migrate.ErrNoChange {
				if cfg.Logger != nil {
					cfg.Logger.Info("No migrations to apply")
				}
				return nil
			}
			return fmt.Errorf("migrations: up: %w", err)
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("Migrations applied successfully")
	}
	return nil
}
