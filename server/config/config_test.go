package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, EstimatorRemote, cfg.Estimator.Mode)
	assert.Equal(t, 33*time.Millisecond, cfg.Estimator.FrameBudget)
	assert.Equal(t, 640, cfg.Capture.Width)
	assert.Equal(t, 480, cfg.Capture.Height)
	assert.Equal(t, 30, cfg.Capture.FrameRate)
	assert.Equal(t, 5, cfg.Analyzer.WindowSize)
	assert.Equal(t, 80, cfg.Presenter.GoodScore)
	assert.Equal(t, 60, cfg.Presenter.FairScore)
	assert.Equal(t, 3*time.Second, cfg.Presenter.ToastDuration)
	assert.Equal(t, 30, cfg.Presenter.NoPoseHintMiss)
	assert.Equal(t, 4096, cfg.Processor.MaxFrameSize)
	assert.Empty(t, cfg.Redis.Host)

	require.NoError(t, cfg.ValidateConfig(zap.NewNop()))
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ESTIMATOR_MODE", "scripted")
	t.Setenv("ESTIMATOR_FRAME_BUDGET", "50ms")
	t.Setenv("CAPTURE_FRAME_RATE", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ENABLE_HTTPS", "true")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, EstimatorScripted, cfg.Estimator.Mode)
	assert.Equal(t, 50*time.Millisecond, cfg.Estimator.FrameBudget)
	assert.Equal(t, 30, cfg.Capture.FrameRate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Security.EnableHTTPS)
}

func TestValidateConfig_CollectsAllProblems(t *testing.T) {
	cfg := LoadConfig()
	cfg.Server.Port = 0
	cfg.Estimator.Mode = "magic"
	cfg.Capture.FrameRate = 0
	cfg.Presenter.FairScore = 90
	cfg.Redis.Host = "localhost"
	cfg.Redis.Port = 70000
	cfg.Processor.MaxFrameSize = 0

	err := cfg.ValidateConfig(zap.NewNop())
	require.Error(t, err)

	assert.Len(t, multierr.Errors(errors.Unwrap(err)), 6)
	assert.Contains(t, err.Error(), "server port")
	assert.Contains(t, err.Error(), `unknown estimator mode "magic"`)
	assert.Contains(t, err.Error(), "frame rate")
	assert.Contains(t, err.Error(), "score thresholds")
	assert.Contains(t, err.Error(), "Redis port")
	assert.Contains(t, err.Error(), "max frame size")
}

func TestValidateConfig_RemoteNeedsURL(t *testing.T) {
	cfg := LoadConfig()
	cfg.Estimator.BaseURL = ""
	assert.Error(t, cfg.ValidateConfig(zap.NewNop()))

	cfg.Estimator.Mode = EstimatorNone
	assert.NoError(t, cfg.ValidateConfig(zap.NewNop()))
}
