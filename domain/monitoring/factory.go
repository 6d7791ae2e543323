package monitoring

import (
	"github.com/akeren/waitlist-edge/config/router"
	"github.com/akeren/waitlist-edge/internal/log"
	"gorm.io/gorm"
)

type MonitoringControllerFactory interface {
	CreateController() *router.RESTController
}

type DefaultMonitoringControllerFactory struct {
	db        *gorm.DB
	logger    *log.Logger
	cache     Cache
	analytics Analytics
}

func NewMonitoringControllerFactory(db *gorm.DB, logger *log.Logger, cache Cache, analytics Analytics) MonitoringControllerFactory {
	return &DefaultMonitoringControllerFactory{
		db:        db,
		logger:    logger,
		cache:     cache,
		analytics: analytics,
	}
}

func (f *DefaultMonitoringControllerFactory) CreateController() *router.RESTController {
	return NewMonitoringController(f.db, f.logger, f.cache, f.analytics)
}
