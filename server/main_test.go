package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/san-kum/pose-coach/server/config"
	"github.com/san-kum/pose-coach/server/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	t.Setenv("ESTIMATOR_MODE", config.EstimatorScripted)
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("REDIS_HOST", "")

	cfg := config.LoadConfig()
	require.NoError(t, cfg.ValidateConfig(zap.NewNop()))

	server, err := NewServer(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { server.Shutdown(time.Second) })
	return server
}

func serve(s *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestServer_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache":"ok"`)
	assert.Equal(t, "camera=(self), microphone=(), geolocation=()", w.Header().Get("Permissions-Policy"))

	w = serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "pose_coach_server_request"))
}

func TestServer_AdminRequiresRole(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/v1/admin/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auth := middleware.NewAuthMiddleware("test-secret", zap.NewNop())
	token, err := auth.GenerateToken("u1", "coach", "user", time.Minute)
	require.NoError(t, err)

	w = serve(s, http.MethodGet, "/api/v1/admin/sessions", token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	token, err = issueAdminToken(s.config, "ops", time.Minute)
	require.NoError(t, err)

	w = serve(s, http.MethodGet, "/api/v1/admin/sessions", token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(s, http.MethodPost, "/api/v1/admin/templates/reload", token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(s, http.MethodGet, "/api/v1/admin/rate-limit", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active_clients"`)
}

func TestIssueAdminToken_NeedsSecret(t *testing.T) {
	cfg := &config.Config{}
	_, err := issueAdminToken(cfg, "ops", time.Minute)
	assert.ErrorContains(t, err, "JWT_SECRET_KEY")
}

func TestServer_PublicAPI(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/v1/exercises", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"squat"`)

	w = serve(s, http.MethodPost, "/api/v1/render-overlay", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
