package domain

import (
	"github.com/akeren/waitlist-edge/config"
	"github.com/akeren/waitlist-edge/domain/monitoring"
	"github.com/akeren/waitlist-edge/domain/waitlist"
	"github.com/akeren/waitlist-edge/pkg/captcha"
)

func SetupCoreDomain(appConfig *config.ApplicationConfig) {
	monitoringFactory := monitoring.NewMonitoringControllerFactory(appConfig.DB, appConfig.Logger, appConfig.Cache, appConfig.Analytics)
	appConfig.RouterService.MountController(monitoringFactory.CreateController())

	waitlistFactory := waitlist.NewWaitlistServiceFactory(
		appConfig.DB,
		appConfig.Logger,
		captcha.NewTurnstileVerifier(appConfig.Captcha.VerifyURL),
		appConfig.Analytics,
		waitlist.ServiceConfig{
			Table:         appConfig.Config.WaitlistTable,
			CaptchaSecret: appConfig.Captcha.Secret,
		},
	)
	appConfig.RouterService.MountController(waitlistFactory.CreateController())
}
