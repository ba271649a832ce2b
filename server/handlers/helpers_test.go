package handlers

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/san-kum/pose-coach/server/analyzer"
	"github.com/san-kum/pose-coach/server/cache"
	"github.com/san-kum/pose-coach/server/estimator"
	"github.com/san-kum/pose-coach/server/metrics"
	"github.com/san-kum/pose-coach/server/presenter"
	"github.com/san-kum/pose-coach/server/processor"
	"github.com/san-kum/pose-coach/server/session"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	router    *gin.Engine
	sessions  *session.Manager
	processor *processor.FrameProcessor
	registry  *analyzer.Registry
}

// newTestEnv wires the handlers the way main does, with an estimator that
// only understands client supplied landmarks.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	registry, err := analyzer.NewRegistry("", logger)
	require.NoError(t, err)
	pres, err := presenter.New(presenter.DefaultThresholds())
	require.NoError(t, err)

	est := estimator.ClientLandmarks{}

	cfg := session.DefaultConfig()
	cfg.Constraints.FrameRate = 100
	cfg.Budget = time.Second
	cfg.WindowSize = 1
	cfg.StartTimeout = 5 * time.Second

	sessions := session.NewManager(cfg, session.Deps{
		Estimator: est,
		Registry:  registry,
		Presenter: pres,
		Metrics:   metrics.NewTestManager(),
		Logger:    logger,
	}, logger)

	mem := cache.NewMemoryCache(100, time.Minute, logger)
	fp := processor.NewFrameProcessor(est, registry, pres, mem, processor.DefaultProcessorConfig(), logger)

	t.Cleanup(func() {
		sessions.Shutdown()
		_ = fp.Shutdown(time.Second)
		_ = mem.Close()
	})

	api := NewAPIHandler(fp, registry, sessions, logger)
	ws := NewWebSocketHandler(sessions, []string{"*"}, 1<<20, logger)

	router := gin.New()
	router.GET("/ws", ws.HandleWebSocket)
	v1 := router.Group("/api/v1")
	v1.GET("/exercises", api.ListExercises)
	v1.GET("/exercises/:id", api.GetExercise)
	v1.POST("/analyze-pose", api.AnalyzePose)
	v1.POST("/analyze-frame", api.AnalyzeFrame)
	v1.POST("/render-overlay", api.RenderOverlay)
	v1.GET("/stats", api.GetStats)
	v1.GET("/admin/cache-stats", api.GetCacheStats)
	v1.GET("/admin/sessions", api.ListSessions)
	v1.POST("/admin/templates/reload", api.ReloadTemplates)

	return &testEnv{router: router, sessions: sessions, processor: fp, registry: registry}
}
