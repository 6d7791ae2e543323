package monitoring

import (
	"context"
	"time"

	"github.com/akeren/waitlist-edge/config/router"
	"github.com/akeren/waitlist-edge/internal/log"
	"gorm.io/gorm"
)

const healthCheckTimeout = 2 * time.Second

type Cache interface {
	Ping(ctx context.Context) error
}

// Analytics reports whether product events are being published.
type Analytics interface {
	Ready() bool
}

type HealthStatus struct {
	Database  int `json:"database"`  // 1 = healthy, 0 = unhealthy/not configured
	Cache     int `json:"cache"`     // 1 = healthy, 0 = unhealthy/not configured
	Analytics int `json:"analytics"` // 1 = publishing, 0 = disabled
	Uptime    int `json:"uptime"`    // uptime in seconds
}

type MonitoringController struct {
	db        *gorm.DB
	logger    *log.Logger
	cache     Cache
	analytics Analytics
	startTime time.Time
}

func NewMonitoringController(db *gorm.DB, logger *log.Logger, cache Cache, analytics Analytics) *router.RESTController {
	ctrl := &MonitoringController{
		db:        db,
		logger:    logger,
		cache:     cache,
		analytics: analytics,
		startTime: time.Now(),
	}

	return router.NewRESTController(
		"MonitoringController",
		"/",
		func(routerService *router.RouterService, controller *router.RESTController) {
			routerService.AddGetHandler(controller, "", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.monitor(c)
			})

			routerService.AddGetHandler(controller, "health", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.healthCheck(routerService, c)
			})
		},
	)
}

func (ctrl *MonitoringController) healthCheck(
	routerService *router.RouterService,
	c *router.RequestContext,
) *router.ServiceResult {
	logger := routerService.GetLogger(c)
	logger.Info("Health check endpoint called")

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	healthStatus := ctrl.performHealthChecks(ctx, logger)

	return &router.ServiceResult{
		StatusCode: 200,
		Data:       healthStatus,
		Message:    "waitlist-edge health check completed",
	}
}

func (ctrl *MonitoringController) monitor(
	c *router.RequestContext,
) *router.ServiceResult {
	return &router.ServiceResult{
		StatusCode: 200,
		Data:       "Monitoring endpoint is operational.",
		Message:    "Monitoring successful",
	}
}

func (ctrl *MonitoringController) performHealthChecks(ctx context.Context, logger *log.Logger) HealthStatus {
	status := HealthStatus{
		Uptime: int(time.Since(ctrl.startTime).Seconds()),
	}

	checkDatabaseConnectivity(ctx, ctrl, &status, logger)

	checkCacheConnectivity(ctx, ctrl, &status, logger)

	if ctrl.analytics != nil && ctrl.analytics.Ready() {
		status.Analytics = 1
	}

	return status
}

func checkCacheConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.cache == nil {
		status.Cache = 0
		logger.Info("Cache not configured, cache health check skipped")
		return
	}

	if ctrl.cache.Ping(ctx) == nil {
		status.Cache = 1
		logger.Info("Cache health check passed")
	} else {
		status.Cache = 0
		logger.Error("Cache health check failed")
	}
}

func checkDatabaseConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.db == nil {
		status.Database = 0
		logger.Warn("Database not configured, database health check skipped")
		return
	}

	if ctrl.checkDatabase(ctx) {
		status.Database = 1
		logger.Info("Database health check passed")
	} else {
		status.Database = 0
		logger.Error("Database health check failed")
	}
}

func (ctrl *MonitoringController) checkDatabase(ctx context.Context) bool {
	sqlDB, err := ctrl.db.DB()
	if err != nil {
		return false
	}

	return sqlDB.PingContext(ctx) == nil
}
