package config

import (
	"fmt"

	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/analytics"
	"github.com/akeren/waitlist-edge/pkg/utils"
)

type AnalyticsConfig struct {
	Enabled bool
	Stream  string
	AppEnv  string
}

func NewAnalyticsConfig() *AnalyticsConfig {
	return &AnalyticsConfig{
		Enabled: utils.GetEnvBool("ANALYTICS_ENABLED", false),
		Stream:  utils.GetEnvTrimmedOrDefault("ANALYTICS_STREAM", analytics.DefaultStream),
		AppEnv:  GetAppEnv(),
	}
}

// NewAnalyticsTracker always returns a tracker. Events are only published in
// production with ANALYTICS_ENABLED=true and a reachable Redis.
func NewAnalyticsTracker(logger *log.Logger, cfg *AnalyticsConfig, cache Cache) *analytics.Tracker {
	if cfg == nil {
		cfg = NewAnalyticsConfig()
	}

	tracker := analytics.NewTracker(logger)

	_ = tracker.Init(func() (analytics.Sink, error) {
		if !cfg.Enabled || !IsProductionEnv(cfg.AppEnv) {
			return nil, nil
		}

		client := GetRedisClient(cache)
		if client == nil {
			return nil, fmt.Errorf("analytics requires Redis: set REDIS_HOST")
		}

		logger.Info("Analytics events routed to Redis stream", "stream", cfg.Stream)
		return analytics.NewRedisStreamSink(client, cfg.Stream), nil
	})

	return tracker
}
