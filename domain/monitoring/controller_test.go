package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akeren/waitlist-edge/config/router"
	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type pingCache struct{ err error }

func (p pingCache) Ping(context.Context) error { return p.err }

type readyFlag bool

func (r readyFlag) Ready() bool { return bool(r) }

func healthOf(t *testing.T, db *gorm.DB, cache Cache, analytics Analytics) HealthStatus {
	t.Helper()
	t.Setenv("METRICS_ENABLED", "false")

	logger := log.NewLogger(io.Discard, slog.LevelError)
	rs := router.CreateRouterService(logger, &router.RouterConfig{RequestTimeout: 5 * time.Second})
	rs.MountController(NewMonitoringControllerFactory(db, logger, cache, analytics).CreateController())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	rs.GetEngine().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func TestHealthCheck_NothingConfigured(t *testing.T) {
	status := healthOf(t, nil, nil, nil)

	assert.Equal(t, 0, status.Database)
	assert.Equal(t, 0, status.Cache)
	assert.Equal(t, 0, status.Analytics)
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	status := healthOf(t, db, pingCache{}, readyFlag(true))

	assert.Equal(t, 1, status.Database)
	assert.Equal(t, 1, status.Cache)
	assert.Equal(t, 1, status.Analytics)
}

func TestHealthCheck_CacheDown(t *testing.T) {
	status := healthOf(t, nil, pingCache{err: errors.New("connection refused")}, readyFlag(false))

	assert.Equal(t, 0, status.Cache)
	assert.Equal(t, 0, status.Analytics)
}
