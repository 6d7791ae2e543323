package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/akeren/waitlist-edge/config"
	"github.com/akeren/waitlist-edge/domain"
	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/constants"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := log.NewLoggerWithJSONOutput()

	appConfig, err := config.LoadApplicationConfiguration(logger, autoMigrateRequested(os.Args[1:]))
	if err != nil {
		logger.Error("Failed to load application configuration", "error", err.Error())
		os.Exit(1)
	}

	domain.SetupCoreDomain(appConfig)
	logStartup(logger, appConfig)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := appConfig.RouterService.RunHTTPServer(); err != nil {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Error("Server error", "error", err)
		appConfig.Cleanup()
		os.Exit(1)
	case sig := <-quit:
		logger.Info("Shutdown signal received, draining signups", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := appConfig.RouterService.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		appConfig.Cleanup()

		logger.Info("waitlist-edge stopped")
	}
}

func autoMigrateRequested(args []string) bool {
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "--auto-migrate", "-m":
			return true
		}
	}
	return false
}

func logStartup(logger *log.Logger, appConfig *config.ApplicationConfig) {
	driver := appConfig.DatabaseDriver
	if appConfig.DB == nil {
		driver = "none"
	}

	logger.Info("waitlist-edge starting",
		"version", constants.ServiceVersion,
		"waitlist_table", appConfig.Config.WaitlistTable,
		"database_driver", driver,
		"captcha_verify_url", appConfig.Captcha.VerifyURL,
		"captcha_dev_mode", appConfig.Captcha.DevMode,
		"analytics_ready", appConfig.Analytics.Ready(),
		"request_timeout", appConfig.Config.RequestTimeout.String(),
	)
}
