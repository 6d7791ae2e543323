package config

import (
	"testing"

	"github.com/akeren/waitlist-edge/pkg/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalyticsConfig_Defaults(t *testing.T) {
	t.Setenv("ANALYTICS_ENABLED", "")
	t.Setenv("ANALYTICS_STREAM", "")
	t.Setenv("APP_ENV", "Production")

	cfg := NewAnalyticsConfig()
	assert.False(t, cfg.Enabled)
	assert.NotEmpty(t, cfg.Stream)
	assert.Equal(t, "production", cfg.AppEnv)
}

func TestNewAnalyticsTracker(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *AnalyticsConfig
		wantErr bool
	}{
		{
			name: "disabled",
			cfg:  &AnalyticsConfig{Enabled: false, Stream: "s", AppEnv: "production"},
		},
		{
			name: "enabled outside production",
			cfg:  &AnalyticsConfig{Enabled: true, Stream: "s", AppEnv: "development"},
		},
		{
			name:    "enabled in production without redis",
			cfg:     &AnalyticsConfig{Enabled: true, Stream: "s", AppEnv: "production"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewAnalyticsTracker(quietLogger(), tt.cfg, nil)
			require.NotNil(t, tracker)

			assert.False(t, tracker.Ready())

			// Init is idempotent, so a second call reports the first outcome.
			err := tracker.Init(func() (analytics.Sink, error) { return nil, nil })
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
