package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privacyops/console/internal/auth"
	"github.com/privacyops/console/internal/console"
	"github.com/privacyops/console/internal/observability"
	"github.com/privacyops/console/internal/shared"
	"github.com/privacyops/console/internal/view"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := &Config{
		APIBaseURL:      "http://127.0.0.1:1",
		APITimeout:      time.Second,
		SessionCookie:   "test_session",
		CSRFSecret:      "csrfsecret",
		CacheBackend:    CacheBackendRedis,
		DefaultPageSize: 25,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	services, err := NewConsole(ctx, cfg, redisClient, logger, metrics)
	require.NoError(t, err)
	t.Cleanup(services.Registry.Close)

	templates, err := view.NewEngine()
	require.NoError(t, err)
	sessions := shared.NewSessionManager(redisClient, cfg.SessionCookie, time.Hour, false)
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	authService := auth.NewService(auth.NewAPIUpstream(services.Client), auth.RegistryWorkspaces{Registry: services.Registry}, logger)

	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessions,
		CSRFManager:    csrf,
		AuthHandler:    auth.NewHandler(logger, authService, templates, sessions, csrf),
		ConsoleHandler: console.NewHandler(logger, templates, services.Registry, csrf, nil),
		Metrics:        metrics,
	})
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
}

func TestRouterServesStaticAssets(t *testing.T) {
	router := newTestRouter(t)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/static/css/console.css", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "public, max-age=3600", res.Header().Get("Cache-Control"))
	assert.Contains(t, res.Header().Get("Content-Type"), "text/css")
}

func TestRouterSendsAnonymousUsersToLogin(t *testing.T) {
	router := newTestRouter(t)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/privacy-requests", nil))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/auth/login", res.Header().Get("Location"))

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.NotEmpty(t, res.Result().Cookies())
}

func TestRouterRejectsPostWithoutCSRFToken(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("username=a&password=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRouterExposesMetrics(t *testing.T) {
	router := newTestRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `console_http_requests_total{code="200",route="/healthz"} 1`)
	assert.Contains(t, body, `console_jobs_total{status="success",task="export:csv"} 0`)
}
