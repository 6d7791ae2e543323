package config

import (
	"fmt"

	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/captcha"
	"github.com/akeren/waitlist-edge/pkg/utils"
)

type CaptchaConfig struct {
	Secret    string
	VerifyURL string
	DevMode   bool
}

// NewCaptchaConfig substitutes the always-passing Turnstile test secret only in
// development mode: APP_ENV is development-like or CAPTCHA_DEV_MODE=true.
// Anywhere else a missing TURNSTILE_SECRET_KEY is a startup error.
func NewCaptchaConfig(logger *log.Logger) (*CaptchaConfig, error) {
	cfg := &CaptchaConfig{
		Secret:    sanitizeEnv(utils.GetEnvTrimmed("TURNSTILE_SECRET_KEY")),
		VerifyURL: utils.GetEnvTrimmedOrDefault("TURNSTILE_VERIFY_URL", captcha.VerifyURL),
		DevMode:   utils.GetEnvBool("CAPTCHA_DEV_MODE", IsDevelopmentEnv(GetAppEnv())),
	}

	if cfg.Secret != "" {
		return cfg, nil
	}

	if !cfg.DevMode {
		logger.Error("TURNSTILE_SECRET_KEY is not set outside development mode")
		return nil, fmt.Errorf("TURNSTILE_SECRET_KEY is required when %s=%q and CAPTCHA_DEV_MODE is off", AppEnvKey, GetAppEnv())
	}

	logger.Warn("TURNSTILE_SECRET_KEY not set; using the Turnstile test secret (development mode)")
	cfg.Secret = captcha.TestSecretKey
	return cfg, nil
}
