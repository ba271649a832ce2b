package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	EstimatorRemote   = "remote"
	EstimatorScripted = "scripted"
	// EstimatorNone accepts only landmarks computed on the client.
	EstimatorNone = "none"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Estimator EstimatorConfig `json:"estimator"`
	Capture   CaptureConfig   `json:"capture"`
	Analyzer  AnalyzerConfig  `json:"analyzer"`
	Presenter PresenterConfig `json:"presenter"`
	Processor ProcessorConfig `json:"processor"`
	Security  SecurityConfig  `json:"security"`
	Redis     RedisConfig     `json:"redis"`
	Logging   LoggingConfig   `json:"logging"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Environment     string        `json:"environment"`
	StaticDir       string        `json:"static_dir"`
}

type EstimatorConfig struct {
	Mode                string        `json:"mode"`
	BaseURL             string        `json:"base_url"`
	Timeout             time.Duration `json:"timeout"`
	MaxRetries          int           `json:"max_retries"`
	RetryDelay          time.Duration `json:"retry_delay"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	// FrameBudget bounds one live frame; slower frames are skipped.
	FrameBudget time.Duration `json:"frame_budget"`
}

type CaptureConfig struct {
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	FrameRate    int           `json:"frame_rate"`
	StartTimeout time.Duration `json:"start_timeout"`
}

type AnalyzerConfig struct {
	TemplateDir string `json:"template_dir"`
	WindowSize  int    `json:"window_size"`
}

type PresenterConfig struct {
	GoodScore      int           `json:"good_score"`
	FairScore      int           `json:"fair_score"`
	ToastDuration  time.Duration `json:"toast_duration"`
	NoPoseHintMiss int           `json:"no_pose_hint_frames"`
}

type ProcessorConfig struct {
	MaxQueueSize      int           `json:"max_queue_size"`
	MaxWorkers        int           `json:"max_workers"`
	ProcessingTimeout time.Duration `json:"processing_timeout"`
	CacheTTL          time.Duration `json:"cache_ttl"`
	CacheSize         int           `json:"cache_size"`
	MaxFrameSize      int           `json:"max_frame_size"`
}

type SecurityConfig struct {
	JWTSecretKey   string        `json:"jwt_secret_key"`
	AllowedOrigins []string      `json:"allowed_origins"`
	RateLimitRPS   int           `json:"rate_limit_rps"`
	RateLimitBurst int           `json:"rate_limit_burst"`
	MaxRequestSize int64         `json:"max_request_size"`
	RequestTimeout time.Duration `json:"request_timeout"`
	EnableHTTPS    bool          `json:"enable_https"`
	CertFile       string        `json:"cert_file"`
	KeyFile        string        `json:"key_file"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Output     string `json:"output"`
	FileName   string `json:"file_name"`
	MaxSize    int    `json:"max_size"`
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"`
	Compress   bool   `json:"compress"`
}

func LoadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			Environment:     getEnv("ENVIRONMENT", "development"),
			StaticDir:       getEnv("STATIC_DIR", "./client"),
		},
		Estimator: EstimatorConfig{
			Mode:                getEnv("ESTIMATOR_MODE", EstimatorRemote),
			BaseURL:             getEnv("ESTIMATOR_BASE_URL", "http://localhost:5000"),
			Timeout:             getEnvAsDuration("ESTIMATOR_TIMEOUT", 5*time.Second),
			MaxRetries:          getEnvAsInt("ESTIMATOR_MAX_RETRIES", 2),
			RetryDelay:          getEnvAsDuration("ESTIMATOR_RETRY_DELAY", 50*time.Millisecond),
			HealthCheckInterval: getEnvAsDuration("ESTIMATOR_HEALTH_CHECK_INTERVAL", 30*time.Second),
			FrameBudget:         getEnvAsDuration("ESTIMATOR_FRAME_BUDGET", 33*time.Millisecond),
		},
		Capture: CaptureConfig{
			Width:        getEnvAsInt("CAPTURE_WIDTH", 640),
			Height:       getEnvAsInt("CAPTURE_HEIGHT", 480),
			FrameRate:    getEnvAsInt("CAPTURE_FRAME_RATE", 30),
			StartTimeout: getEnvAsDuration("CAPTURE_START_TIMEOUT", 30*time.Second),
		},
		Analyzer: AnalyzerConfig{
			TemplateDir: getEnv("TEMPLATE_DIR", ""),
			WindowSize:  getEnvAsInt("SMOOTHING_WINDOW", 5),
		},
		Presenter: PresenterConfig{
			GoodScore:      getEnvAsInt("SCORE_GOOD", 80),
			FairScore:      getEnvAsInt("SCORE_FAIR", 60),
			ToastDuration:  getEnvAsDuration("TOAST_DURATION", 3*time.Second),
			NoPoseHintMiss: getEnvAsInt("NO_POSE_HINT_FRAMES", 30),
		},
		Processor: ProcessorConfig{
			MaxQueueSize:      getEnvAsInt("PROCESSOR_QUEUE_SIZE", 100),
			MaxWorkers:        getEnvAsInt("PROCESSOR_WORKERS", 4),
			ProcessingTimeout: getEnvAsDuration("PROCESSOR_TIMEOUT", 10*time.Second),
			CacheTTL:          getEnvAsDuration("CACHE_TTL", 5*time.Minute),
			CacheSize:         getEnvAsInt("CACHE_SIZE", 1000),
			MaxFrameSize:      getEnvAsInt("MAX_FRAME_SIZE", 4096),
		},
		Security: SecurityConfig{
			JWTSecretKey:   getEnv("JWT_SECRET_KEY", ""),
			AllowedOrigins: getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 200),
			MaxRequestSize: getEnvAsInt64("MAX_REQUEST_SIZE", 10*1024*1024), // 10MB
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
			EnableHTTPS:    getEnvAsBool("ENABLE_HTTPS", false),
			CertFile:       getEnv("CERT_FILE", ""),
			KeyFile:        getEnv("KEY_FILE", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "pose-coach"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			FileName:   getEnv("LOG_FILE", ""),
			MaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvAsInt("LOG_MAX_AGE", 28),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
		},
	}

	return config
}

func (c *Config) ValidateConfig(logger *zap.Logger) error {
	var err error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server port must be between 1 and 65535"))
	}

	switch c.Estimator.Mode {
	case EstimatorRemote:
		if c.Estimator.BaseURL == "" {
			err = multierr.Append(err, fmt.Errorf("estimator base URL is required in %s mode", EstimatorRemote))
		}
	case EstimatorScripted, EstimatorNone:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown estimator mode %q", c.Estimator.Mode))
	}
	if c.Estimator.FrameBudget <= 0 {
		err = multierr.Append(err, fmt.Errorf("estimator frame budget must be positive"))
	}
	if c.Estimator.MaxRetries < 0 {
		err = multierr.Append(err, fmt.Errorf("estimator max retries must not be negative"))
	}

	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		err = multierr.Append(err, fmt.Errorf("capture resolution must be positive"))
	}
	if c.Capture.FrameRate <= 0 || c.Capture.FrameRate > 120 {
		err = multierr.Append(err, fmt.Errorf("capture frame rate must be between 1 and 120"))
	}

	if c.Analyzer.WindowSize < 1 {
		err = multierr.Append(err, fmt.Errorf("smoothing window must hold at least one pose"))
	}

	if c.Presenter.FairScore < 0 || c.Presenter.GoodScore > 100 || c.Presenter.FairScore > c.Presenter.GoodScore {
		err = multierr.Append(err, fmt.Errorf("score thresholds must satisfy 0 <= fair <= good <= 100"))
	}
	if c.Presenter.ToastDuration <= 0 {
		err = multierr.Append(err, fmt.Errorf("toast duration must be positive"))
	}
	if c.Presenter.NoPoseHintMiss < 1 {
		err = multierr.Append(err, fmt.Errorf("no pose hint threshold must be at least one frame"))
	}

	if c.Processor.MaxWorkers < 1 || c.Processor.MaxQueueSize < 1 {
		err = multierr.Append(err, fmt.Errorf("processor needs at least one worker and queue slot"))
	}
	if c.Processor.MaxFrameSize < 1 {
		err = multierr.Append(err, fmt.Errorf("max frame size must be positive"))
	}

	if c.Security.JWTSecretKey == "" {
		logger.Warn("JWT secret key not set, using random key")
	}

	if c.Security.MaxRequestSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("max request size must be positive"))
	}

	if c.Security.EnableHTTPS && (c.Security.CertFile == "" || c.Security.KeyFile == "") {
		err = multierr.Append(err, fmt.Errorf("HTTPS needs both a cert file and a key file"))
	}

	if c.Redis.Host == "" {
		logger.Info("Redis host not set, using in-memory cache")
	} else if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("Redis port must be between 1 and 65535"))
	}

	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
