package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akeren/waitlist-edge/config"
	"github.com/akeren/waitlist-edge/config/router"
	"github.com/akeren/waitlist-edge/domain"
	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/analytics"
	"github.com/akeren/waitlist-edge/pkg/migrations"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "integration-secret"

// Tokens understood by the fake siteverify server.
const (
	tokenPass = "pass"
	tokenFail = "fail"
	tokenDown = "down"
)

type WaitlistAPITestSuite struct {
	suite.Suite
	dbPath     string
	db         *gorm.DB
	verifier   *httptest.Server
	verifyHits atomic.Int32
	server     *httptest.Server
	baseURL    string
	logger     *log.Logger
}

func TestWaitlistAPITestSuite(t *testing.T) {
	suite.Run(t, new(WaitlistAPITestSuite))
}

func (s *WaitlistAPITestSuite) SetupSuite() {
	s.T().Setenv("METRICS_ENABLED", "false")
	s.logger = log.NewLogger(io.Discard, slog.LevelError)

	s.verifier = httptest.NewServer(http.HandlerFunc(s.siteverify))
}

func (s *WaitlistAPITestSuite) TearDownSuite() {
	if s.verifier != nil {
		s.verifier.Close()
	}
}

// SetupTest gives every test a freshly migrated database and a new router.
func (s *WaitlistAPITestSuite) SetupTest() {
	s.verifyHits.Store(0)
	s.dbPath = filepath.Join(s.T().TempDir(), "waitlist.db")
	s.migrate()
	s.db = s.openDB()
	s.mount(s.db)
}

func (s *WaitlistAPITestSuite) TearDownTest() {
	if s.server != nil {
		s.server.Close()
	}
	config.CloseDatabase(s.db, s.logger)
}

func (s *WaitlistAPITestSuite) siteverify(w http.ResponseWriter, r *http.Request) {
	s.verifyHits.Add(1)

	if err := r.ParseForm(); err != nil || r.PostForm.Get("secret") != testSecret {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.PostForm.Get("response") {
	case tokenPass:
		_, _ = w.Write([]byte(`{"success":true,"error-codes":[]}`))
	case tokenDown:
		w.WriteHeader(http.StatusBadGateway)
	default:
		_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}
}

func (s *WaitlistAPITestSuite) migrate() {
	raw, err := sql.Open("sqlite3", s.dbPath)
	s.Require().NoError(err)
	defer raw.Close()

	err = migrations.Up(context.Background(), raw, migrations.Config{
		Driver: migrations.DriverSQLite,
		Dir:    filepath.Join("..", "migrations", "sqlite"),
	})
	s.Require().NoError(err)
}

func (s *WaitlistAPITestSuite) openDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(s.dbPath), &gorm.Config{})
	s.Require().NoError(err)

	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func (s *WaitlistAPITestSuite) mount(db *gorm.DB) {
	if s.server != nil {
		s.server.Close()
	}

	appConfig := &config.ApplicationConfig{
		DB:     db,
		Logger: s.logger,
		Captcha: &config.CaptchaConfig{
			Secret:    testSecret,
			VerifyURL: s.verifier.URL,
		},
		Analytics: analytics.NewTracker(s.logger),
		Config:    &config.AppConfig{RequestTimeout: 10 * time.Second, WaitlistTable: "waitlist"},
	}
	appConfig.RouterService = router.CreateRouterService(s.logger, &router.RouterConfig{RequestTimeout: 10 * time.Second})

	domain.SetupCoreDomain(appConfig)

	s.server = httptest.NewServer(appConfig.RouterService.GetEngine())
	s.baseURL = s.server.URL
}

func (s *WaitlistAPITestSuite) subscribe(email, token string) (int, map[string]any) {
	body, err := json.Marshal(map[string]string{
		"email":                 email,
		"cf-turnstile-response": token,
	})
	s.Require().NoError(err)

	resp, err := http.Post(s.baseURL+"/api/subscribe", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (s *WaitlistAPITestSuite) list() (int, map[string]any) {
	resp, err := http.Get(s.baseURL + "/api/list")
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (s *WaitlistAPITestSuite) countRows() int64 {
	var n int64
	s.Require().NoError(s.db.Table("waitlist").Count(&n).Error)
	return n
}

func (s *WaitlistAPITestSuite) TestSubscribe_StoresLowercasedEmail() {
	status, body := s.subscribe("  Jane.Doe@Example.COM ", tokenPass)

	s.Equal(http.StatusOK, status)
	s.Equal(true, body["success"])
	s.Equal("Successfully joined waitlist!", body["message"])

	var email string
	s.Require().NoError(s.db.Table("waitlist").Select("email").Row().Scan(&email))
	s.Equal("jane.doe@example.com", email)
}

func (s *WaitlistAPITestSuite) TestSubscribe_CaseVariedDuplicate() {
	status, _ := s.subscribe("a@b.com", tokenPass)
	s.Require().Equal(http.StatusOK, status)

	status, body := s.subscribe("A@B.COM", tokenPass)

	s.Equal(http.StatusOK, status)
	s.Equal("You're already on the waitlist!", body["message"])
	s.Equal(int64(1), s.countRows())
}

func (s *WaitlistAPITestSuite) TestSubscribe_RepeatIsIdempotent() {
	for i := 0; i < 3; i++ {
		status, _ := s.subscribe("repeat@example.com", tokenPass)
		s.Equal(http.StatusOK, status)
	}
	s.Equal(int64(1), s.countRows())
}

func (s *WaitlistAPITestSuite) TestSubscribe_CaptchaRejected() {
	status, body := s.subscribe("a@b.com", tokenFail)

	s.Equal(http.StatusBadRequest, status)
	s.Equal("CAPTCHA verification failed", body["error"])
	s.Equal([]any{"invalid-input-response"}, body["codes"])
	s.Equal(int64(0), s.countRows())
}

func (s *WaitlistAPITestSuite) TestSubscribe_VerifierDown() {
	status, body := s.subscribe("a@b.com", tokenDown)

	s.Equal(http.StatusServiceUnavailable, status)
	s.Equal("CAPTCHA verification service unavailable", body["error"])
	s.Equal(int64(0), s.countRows())
}

func (s *WaitlistAPITestSuite) TestSubscribe_InvalidInputSkipsVerifier() {
	status, body := s.subscribe("not-an-email", tokenPass)

	s.Equal(http.StatusBadRequest, status)
	s.Equal("Valid email is required", body["error"])
	s.Equal(int32(0), s.verifyHits.Load())
}

func (s *WaitlistAPITestSuite) TestSubscribe_WebsiteFormRoute() {
	resp, err := http.Post(s.baseURL+"/api/waitlist", "application/json",
		bytes.NewBufferString(`{"email":"form@example.com","cf-turnstile-response":"pass"}`))
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(int64(1), s.countRows())
}

func (s *WaitlistAPITestSuite) TestSubscribe_TableWithoutEmailColumn() {
	s.Require().NoError(s.db.Exec(`DROP TABLE waitlist`).Error)
	s.Require().NoError(s.db.Exec(`CREATE TABLE waitlist (id INTEGER PRIMARY KEY, address TEXT)`).Error)

	status, body := s.subscribe("a@b.com", tokenPass)

	s.Equal(http.StatusServiceUnavailable, status)
	s.Contains(body["error"], "Database schema mismatch")
}

func (s *WaitlistAPITestSuite) TestSubscribe_RequiredExtraColumn() {
	s.Require().NoError(s.db.Exec(`DROP TABLE waitlist`).Error)
	s.Require().NoError(s.db.Exec(`CREATE TABLE waitlist (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE, source TEXT NOT NULL)`).Error)

	status, body := s.subscribe("a@b.com", tokenPass)

	s.Equal(http.StatusServiceUnavailable, status)
	s.Contains(body["error"], "source")
}

func (s *WaitlistAPITestSuite) TestSubscribe_MissingTable() {
	s.Require().NoError(s.db.Exec(`DROP TABLE waitlist`).Error)

	status, body := s.subscribe("a@b.com", tokenPass)

	s.Equal(http.StatusServiceUnavailable, status)
	s.Contains(body["error"], "Database schema not initialized")
}

func (s *WaitlistAPITestSuite) TestSubscribe_EmailOnlyTable() {
	s.Require().NoError(s.db.Exec(`DROP TABLE waitlist`).Error)
	s.Require().NoError(s.db.Exec(`CREATE TABLE waitlist (email TEXT PRIMARY KEY)`).Error)

	status, _ := s.subscribe("only@example.com", tokenPass)

	s.Equal(http.StatusOK, status)
	s.Equal(int64(1), s.countRows())
}

func (s *WaitlistAPITestSuite) TestSubscribe_NoDatabase() {
	s.mount(nil)

	status, body := s.subscribe("a@b.com", tokenPass)

	s.Equal(http.StatusServiceUnavailable, status)
	s.Equal("Database not configured", body["error"])
}

func (s *WaitlistAPITestSuite) TestList_NewestFirst() {
	s.Require().NoError(s.db.Exec(`INSERT INTO waitlist (email, subscribed_at) VALUES
		('old@example.com', '2026-01-01 10:00:00'),
		('new@example.com', '2026-03-01 10:00:00'),
		('mid@example.com', '2026-02-01 10:00:00')`).Error)

	status, body := s.list()

	s.Equal(http.StatusOK, status)
	s.Equal(float64(3), body["count"])

	subscribers, ok := body["subscribers"].([]any)
	s.Require().True(ok)
	s.Require().Len(subscribers, 3)

	var order []string
	for _, item := range subscribers {
		order = append(order, item.(map[string]any)["email"].(string))
	}
	s.Equal([]string{"new@example.com", "mid@example.com", "old@example.com"}, order)
}

func (s *WaitlistAPITestSuite) TestList_Empty() {
	status, body := s.list()

	s.Equal(http.StatusOK, status)
	s.Equal(float64(0), body["count"])
	s.Equal([]any{}, body["subscribers"])
}

func (s *WaitlistAPITestSuite) TestHealthCheck_ReportsDatabase() {
	resp, err := http.Get(s.baseURL + "/health")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var response map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&response))

	data := response["data"].(map[string]any)
	s.Equal(float64(1), data["database"])
	s.Equal(float64(0), data["cache"])
	s.Equal(float64(0), data["analytics"])
}
