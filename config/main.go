package config

import (
	"context"
	"os"
	"time"

	"github.com/akeren/waitlist-edge/config/router"
	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/analytics"
	"github.com/akeren/waitlist-edge/pkg/constants"
	"github.com/akeren/waitlist-edge/pkg/utils"
	"gorm.io/gorm"
)

type ApplicationConfig struct {
	// DB is nil when the destination store is unconfigured or unreachable.
	DB              *gorm.DB
	DatabaseDriver  string
	RouterService   *router.RouterService
	Logger          *log.Logger
	Cache           Cache
	Captcha         *CaptchaConfig
	Analytics       *analytics.Tracker
	Config          *AppConfig
	TracingShutdown func(context.Context) error
}

type AppConfig struct {
	RequestTimeout time.Duration
	WaitlistTable  string
}

func NewAppConfig() *AppConfig {
	config := &AppConfig{
		RequestTimeout: constants.DefaultRequestTimeout,
		WaitlistTable:  utils.GetEnvTrimmedOrDefault("WAITLIST_TABLE", constants.DefaultWaitlistTable),
	}

	if timeoutStr := os.Getenv("REQUEST_TIMEOUT"); timeoutStr != "" {
		if parsed, err := time.ParseDuration(timeoutStr); err == nil && parsed > 0 {
			config.RequestTimeout = parsed
		}
	}

	return config
}

func (ac *ApplicationConfig) Cleanup() {
	if ac.TracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ac.TracingShutdown(ctx); err != nil {
			ac.Logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}

	if ac.DB != nil {
		CloseDatabase(ac.DB, ac.Logger)
	}

	if ac.RouterService != nil {
		ac.RouterService.Cleanup()
	}

	if ac.Cache != nil {
		_ = CloseCache(ac.Cache, ac.Logger)
	}

	ac.Logger.Info("Application cleanup completed")
}

func LoadApplicationConfiguration(logger *log.Logger, autoMigrate bool) (*ApplicationConfig, error) {
	InitializeEnvFile(logger)

	if autoMigrate {
		appEnv := GetAppEnv()
		if err := ValidateAutoMigrateAllowed(appEnv); err != nil {
			return nil, err
		}
		if appEnv == "" {
			logger.Warn("APP_ENV not set; allowing --auto-migrate as development")
		}
	}

	captchaConfig, err := NewCaptchaConfig(logger)
	if err != nil {
		return nil, err
	}

	tracingShutdown, err := SetupTracing(logger)
	if err != nil {
		return nil, err
	}

	appConfig := NewAppConfig()
	dbConfig := NewDBConfig()
	db := NewDatabaseOrNil(logger, dbConfig)

	if autoMigrate && db != nil {
		if err := AutoMigrateWaitlist(logger, db, appConfig.WaitlistTable); err != nil {
			return nil, err
		}
	}

	cache := NewCacheConfig().NewCacheOrNil(logger)
	tracker := NewAnalyticsTracker(logger, NewAnalyticsConfig(), cache)

	routerService := router.CreateRouterService(logger, &router.RouterConfig{
		RequestTimeout: appConfig.RequestTimeout,
	})

	logger.Info("Application configuration loaded successfully",
		"waitlist_table", appConfig.WaitlistTable,
		"database_configured", db != nil,
		"analytics_ready", tracker.Ready(),
	)

	return &ApplicationConfig{
		DB:              db,
		DatabaseDriver:  dbConfig.Driver,
		RouterService:   routerService,
		Logger:          logger,
		Cache:           cache,
		Captcha:         captchaConfig,
		Analytics:       tracker,
		Config:          appConfig,
		TracingShutdown: tracingShutdown,
	}, nil
}
