package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/internal/models"
	"github.com/akeren/waitlist-edge/pkg/constants"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	Driver          string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string // Default: "require" for prod safety
}

func NewDBConfig() *DBConfig {
	return &DBConfig{
		Driver:          strings.ToLower(sanitizeEnv(GetValueFromEnvironmentVariable("DATABASE_DRIVER", DriverPostgres))),
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Minute,
		SSLMode:         "require",
	}
}

// IsConfigured reports whether any destination store settings are present.
func (cfg *DBConfig) IsConfigured() bool {
	switch cfg.Driver {
	case DriverSQLite:
		return sanitizeEnv(GetValueFromEnvironmentVariable("SQLITE_PATH", "")) != ""
	default:
		return sanitizeEnv(GetValueFromEnvironmentVariable("APP_DATABASE_URL", "")) != "" ||
			sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_HOST", "")) != ""
	}
}

func NewDatabase(logger *log.Logger, cfg *DBConfig) (*gorm.DB, error) {
	if cfg == nil {
		cfg = NewDBConfig()
	}

	dialector, err := buildDialector(logger, cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		logger.Error("Failed to get database instance", "error", err)
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// One writer keeps SQLite from returning SQLITE_BUSY under concurrent signups.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		logger.Error("Database ping failed", "error", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Database connection established successfully", "driver", cfg.Driver)
	return gdb, nil
}

// NewDatabaseOrNil never fails: a missing or unreachable store leaves the
// handle nil and the waitlist endpoints answer 503.
func NewDatabaseOrNil(logger *log.Logger, cfg *DBConfig) *gorm.DB {
	if cfg == nil {
		cfg = NewDBConfig()
	}

	if !cfg.IsConfigured() {
		logger.Warn("Database is not configured; waitlist endpoints will report it unavailable", "driver", cfg.Driver)
		return nil
	}

	db, err := NewDatabase(logger, cfg)
	if err != nil {
		logger.Error("Database unavailable; waitlist endpoints will report it unavailable", "error", err)
		return nil
	}

	return db
}

func buildDialector(logger *log.Logger, cfg *DBConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite:
		path := sanitizeEnv(GetValueFromEnvironmentVariable("SQLITE_PATH", ""))
		if path == "" {
			return nil, fmt.Errorf("missing required database env vars: SQLITE_PATH")
		}
		logger.Info("Connecting to database", "driver", DriverSQLite, "path", path)
		return sqlite.Open(path), nil
	case DriverPostgres, "":
		dsn, err := buildPostgresDSN(logger, cfg)
		if err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q (supported: %s, %s)", cfg.Driver, DriverPostgres, DriverSQLite)
	}
}

func buildPostgresDSN(logger *log.Logger, cfg *DBConfig) (string, error) {
	appDatabaseURL := sanitizeEnv(GetValueFromEnvironmentVariable("APP_DATABASE_URL", ""))
	if appDatabaseURL != "" {
		logger.Info("Using APP_DATABASE_URL for database connection")
		return appDatabaseURL, nil
	}

	host, portStr, user, pass, dbName, ssl := getDatabaseEnvParams()
	if ssl == "" {
		ssl = cfg.SSLMode
	}

	missing := []string{}

	if host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}

	if portStr == "" {
		missing = append(missing, "POSTGRES_PORT")
	}

	if user == "" {
		missing = append(missing, "POSTGRES_USER")
	}

	if dbName == "" {
		missing = append(missing, "POSTGRES_DB_NAME")
	}

	if len(missing) > 0 {
		logger.Error("Missing required database environment variables", "missing_vars", strings.Join(missing, ", "))
		return "", fmt.Errorf("missing required database env vars: %s", strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Error("Invalid POSTGRES_PORT", "error", err)
		return "", fmt.Errorf("invalid POSTGRES_PORT %q: %w", portStr, err)
	}

	logger.Info("Connecting to database",
		"driver", DriverPostgres,
		"host", host,
		"port", port,
		"user", user,
		"dbname", dbName,
		"sslmode", ssl,
	)

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, pass, dbName, ssl,
	), nil
}

func getDatabaseEnvParams() (host, port, user, pass, dbName, ssl string) {
	host = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_HOST", ""))
	port = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_PORT", ""))
	user = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_USER", ""))
	pass = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_PASSWORD", ""))
	dbName = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_DB_NAME", ""))
	ssl = sanitizeEnv(GetValueFromEnvironmentVariable("POSTGRES_SSLMODE", ""))

	return host, port, user, pass, dbName, ssl
}

func sanitizeEnv(v string) string {
	s := strings.TrimSpace(v)

	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}

	return s
}

func AutoMigrate(logger *log.Logger, db *gorm.DB, models ...interface{}) error {
	if db == nil {
		logger.Error("Cannot migrate: db is empty")
		return fmt.Errorf("cannot migrate: db is empty")
	}

	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Database migration failed", "error", err)
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	logger.Info("Database migration completed successfully")

	return nil
}

// AutoMigrateWaitlist creates the canonical waitlist shape under the
// configured table name, so --auto-migrate and the service agree on WAITLIST_TABLE.
func AutoMigrateWaitlist(logger *log.Logger, db *gorm.DB, table string) error {
	if db == nil {
		return AutoMigrate(logger, db)
	}

	table = strings.TrimSpace(table)
	if table == "" {
		table = constants.DefaultWaitlistTable
	}

	logger.Info("Auto-migrating waitlist table", "table", table)
	return AutoMigrate(logger, db.Table(table), &models.WaitlistRecord{})
}

func CloseDatabase(db *gorm.DB, logger *log.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get SQL DB instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	} else {
		logger.Info("Database closed successfully")
	}
}
