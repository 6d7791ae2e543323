package waitlist

import (
	"github.com/akeren/waitlist-edge/config/router"
	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/captcha"
	"gorm.io/gorm"
)

type WaitlistServiceFactory interface {
	CreateService() WaitlistService
	CreateController() *router.RESTController
}

type DefaultWaitlistServiceFactory struct {
	db       *gorm.DB
	logger   *log.Logger
	verifier captcha.Verifier
	tracker  EventTracker
	config   ServiceConfig
}

// NewWaitlistServiceFactory accepts a nil db: the endpoints then answer 503
// instead of the process refusing to start.
func NewWaitlistServiceFactory(
	db *gorm.DB,
	logger *log.Logger,
	verifier captcha.Verifier,
	tracker EventTracker,
	config ServiceConfig,
) WaitlistServiceFactory {
	return &DefaultWaitlistServiceFactory{
		db:       db,
		logger:   logger,
		verifier: verifier,
		tracker:  tracker,
		config:   config,
	}
}

func (f *DefaultWaitlistServiceFactory) CreateService() WaitlistService {
	repository := NewWaitlistRepository(f.db)
	return NewWaitlistService(f.logger, repository, f.verifier, f.tracker, f.config)
}

func (f *DefaultWaitlistServiceFactory) CreateController() *router.RESTController {
	return NewWaitlistController(f.CreateService(), f.logger)
}
