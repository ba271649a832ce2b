package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/pose-coach/server/analyzer"
	"github.com/san-kum/pose-coach/server/cache"
	"github.com/san-kum/pose-coach/server/capture"
	"github.com/san-kum/pose-coach/server/config"
	"github.com/san-kum/pose-coach/server/estimator"
	"github.com/san-kum/pose-coach/server/handlers"
	"github.com/san-kum/pose-coach/server/logging"
	"github.com/san-kum/pose-coach/server/metrics"
	"github.com/san-kum/pose-coach/server/middleware"
	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/presenter"
	"github.com/san-kum/pose-coach/server/processor"
	"github.com/san-kum/pose-coach/server/session"
	"go.uber.org/zap"
)

const serviceName = "pose-coach"

type Server struct {
	router         *gin.Engine
	logger         *zap.Logger
	frameProcessor *processor.FrameProcessor
	sessions       *session.Manager
	estimator      *estimator.Client
	cache          cache.Cache
	rateLimiter    *middleware.RateLimiter
	config         *config.Config
}

func main() {
	issueToken := flag.String("issue-admin-token", "", "print an admin token for the given user id and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of an issued admin token")
	flag.Parse()

	// Load configuration
	cfg := config.LoadConfig()

	if *issueToken != "" {
		token, err := issueAdminToken(cfg, *issueToken, *tokenTTL)
		if err != nil {
			log.Fatal("Failed to issue admin token: ", err)
		}
		fmt.Println(token)
		return
	}

	// Initialize logger
	logger, closeLogger, err := logging.New(logging.Params{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FileName:   cfg.Logging.FileName,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer closeLogger()

	// Validate configuration
	if err := cfg.ValidateConfig(logger); err != nil {
		logger.Fatal("Configuration validation failed", zap.Error(err))
	}

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment),
			zap.String("estimator", cfg.Estimator.Mode))

		var err error
		if cfg.Security.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Security.CertFile, cfg.Security.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	server.Shutdown(cfg.Server.ShutdownTimeout)

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// issueAdminToken signs an admin token with the configured secret, so that
// the running service accepts it.
func issueAdminToken(cfg *config.Config, userID string, ttl time.Duration) (string, error) {
	if cfg.Security.JWTSecretKey == "" {
		return "", errors.New("JWT_SECRET_KEY must be set to issue tokens")
	}
	auth := middleware.NewAuthMiddleware(cfg.Security.JWTSecretKey, zap.NewNop())
	return auth.GenerateToken(userID, userID, middleware.RoleAdmin, ttl)
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("pose_coach", "server", promRegistry)

	registry, err := analyzer.NewRegistry(cfg.Analyzer.TemplateDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load exercise templates: %w", err)
	}

	pres, err := presenter.New(presenter.Thresholds{
		Good: cfg.Presenter.GoodScore,
		Fair: cfg.Presenter.FairScore,
	})
	if err != nil {
		return nil, err
	}

	// Try Redis first, fallback to memory cache
	var cacheInstance cache.Cache
	if cfg.Redis.Host != "" {
		redisCache, err := cache.NewRedisCache(context.Background(), cache.RedisOptions{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Processor.CacheTTL,
			Prefix:   cfg.Redis.Prefix,
		}, logger)
		if err != nil {
			logger.Warn("Failed to connect to Redis, using memory cache", zap.Error(err))
			cacheInstance = cache.NewMemoryCache(cfg.Processor.CacheSize, cfg.Processor.CacheTTL, logger)
		} else {
			cacheInstance = redisCache
		}
	} else {
		cacheInstance = cache.NewMemoryCache(cfg.Processor.CacheSize, cfg.Processor.CacheTTL, logger)
	}

	var (
		poseEstimator estimator.Estimator
		remote        *estimator.Client
		modelVersion  = cfg.Estimator.Mode
	)
	switch cfg.Estimator.Mode {
	case config.EstimatorRemote:
		clientConfig := estimator.DefaultClientConfig()
		if cfg.Estimator.Timeout > 0 {
			clientConfig.Timeout = cfg.Estimator.Timeout
		}
		if cfg.Estimator.RetryDelay > 0 {
			clientConfig.RetryDelay = cfg.Estimator.RetryDelay
		}
		clientConfig.MaxRetries = cfg.Estimator.MaxRetries
		clientConfig.HealthCheckInterval = cfg.Estimator.HealthCheckInterval
		remote = estimator.NewClient(cfg.Estimator.BaseURL, clientConfig, logger)
		poseEstimator = remote
		if info, err := remote.ModelInfo(context.Background()); err == nil {
			if v, ok := info["version"].(string); ok {
				modelVersion = v
			}
		} else {
			logger.Warn("Failed to fetch pose model info", zap.Error(err))
		}
	case config.EstimatorScripted:
		poseEstimator = estimator.SquatScript(60)
	}

	frameProcessor := processor.NewFrameProcessor(poseEstimator, registry, pres, cacheInstance, processor.ProcessorConfig{
		MaxQueueSize:      cfg.Processor.MaxQueueSize,
		MaxWorkers:        cfg.Processor.MaxWorkers,
		ProcessingTimeout: cfg.Processor.ProcessingTimeout,
		CacheTTL:          cfg.Processor.CacheTTL,
		MaxFrameSize:      cfg.Processor.MaxFrameSize,
		ModelVersion:      modelVersion,
	}, logger)

	sessionConfig := session.DefaultConfig()
	sessionConfig.Constraints = capture.Constraints{
		Width:     cfg.Capture.Width,
		Height:    cfg.Capture.Height,
		Facing:    capture.FacingUser,
		FrameRate: cfg.Capture.FrameRate,
	}
	sessionConfig.Budget = cfg.Estimator.FrameBudget
	sessionConfig.NoPoseHint = cfg.Presenter.NoPoseHintMiss
	sessionConfig.ToastDuration = cfg.Presenter.ToastDuration
	sessionConfig.WindowSize = cfg.Analyzer.WindowSize
	if cfg.Capture.StartTimeout > 0 {
		sessionConfig.StartTimeout = cfg.Capture.StartTimeout
	}

	sessions := session.NewManager(sessionConfig, session.Deps{
		NewSource: func() capture.Source { return capture.NewSyntheticSource(serviceName) },
		Estimator: estimator.ClientLandmarks{Next: poseEstimator},
		Registry:  registry,
		Presenter: pres,
		Metrics:   metricsManager,
		Logger:    logger,
	}, logger)

	rateLimiter := middleware.NewRateLimiter(
		cfg.Security.RateLimitRPS,
		cfg.Security.RateLimitBurst,
		logger,
	)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Security.JWTSecretKey, logger)

	router := gin.New()

	router.Use(middleware.RequestLogger(logger, metricsManager))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.Security.MaxRequestSize))

	wsHandler := handlers.NewWebSocketHandler(sessions, cfg.Security.AllowedOrigins, cfg.Security.MaxRequestSize, logger)
	if cfg.Estimator.Mode == config.EstimatorScripted {
		wsHandler.WithDemoCamera()
	}
	apiHandler := handlers.NewAPIHandler(frameProcessor, registry, sessions, logger)

	var probes []middleware.HealthProbe
	if remote != nil {
		// the background checker keeps Healthy current; only re-probe on failure
		probes = append(probes, middleware.HealthProbe{Name: "estimator", Check: func(ctx context.Context) error {
			if remote.Healthy() {
				return nil
			}
			return remote.HealthCheck(ctx)
		}})
	}
	probes = append(probes, middleware.HealthProbe{Name: "cache", Check: func(ctx context.Context) error {
		_, err := cacheInstance.GetStats(ctx)
		return err
	}})

	setupRoutes(router, routes{
		ws:          wsHandler,
		api:         apiHandler,
		auth:        authMiddleware,
		rateLimiter: rateLimiter,
		health:      middleware.HealthCheck(serviceName, probes...),
		metrics:     promRegistry,
		timeout:     cfg.Security.RequestTimeout,
		staticDir:   cfg.Server.StaticDir,
	})

	return &Server{
		router:         router,
		logger:         logger,
		frameProcessor: frameProcessor,
		sessions:       sessions,
		estimator:      remote,
		cache:          cacheInstance,
		rateLimiter:    rateLimiter,
		config:         cfg,
	}, nil
}

// Shutdown stops the live sessions first so every camera is released, then
// the one-shot pipeline and the shared clients.
func (s *Server) Shutdown(timeout time.Duration) {
	s.sessions.Shutdown()

	if err := s.frameProcessor.Shutdown(timeout); err != nil {
		s.logger.Error("Failed to shutdown frame processor", zap.Error(err))
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Shutdown()
	}

	if s.estimator != nil {
		s.estimator.Close()
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Failed to close cache", zap.Error(err))
		}
	}
}

type routes struct {
	ws          *handlers.WebSocketHandler
	api         *handlers.APIHandler
	auth        *middleware.AuthMiddleware
	rateLimiter *middleware.RateLimiter
	health      gin.HandlerFunc
	metrics     *prometheus.Registry
	timeout     time.Duration
	staticDir   string
}

func setupRoutes(router *gin.Engine, r routes) {
	// Health check and metrics (no auth required)
	router.GET("/health", r.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.metrics, promhttp.HandlerOpts{})))

	// WebSocket endpoint (rate limited on connect)
	router.GET("/ws", r.rateLimiter.RateLimit(), r.ws.HandleWebSocket)

	api := router.Group("/api/v1")
	api.Use(r.auth.OptionalAuth())
	api.Use(r.rateLimiter.RateLimit())
	api.Use(middleware.InputValidation())
	api.Use(middleware.TimeoutHandler(r.timeout))
	{
		api.GET("/health", r.health)

		api.GET("/exercises", r.api.ListExercises)
		api.GET("/exercises/:id", r.api.GetExercise)

		api.POST("/analyze-pose", r.api.AnalyzePose)
		api.POST("/analyze-frame", r.api.AnalyzeFrame)
		api.POST("/render-overlay", r.api.RenderOverlay)

		api.GET("/stats", r.api.GetStats)

		// Admin endpoints (require authentication)
		admin := api.Group("/admin")
		admin.Use(r.auth.RequireAuth())
		admin.Use(r.auth.RequireRole(middleware.RoleAdmin))
		{
			admin.GET("/cache-stats", r.api.GetCacheStats)
			admin.GET("/sessions", r.api.ListSessions)
			admin.POST("/templates/reload", r.api.ReloadTemplates)
			admin.GET("/rate-limit", func(c *gin.Context) {
				c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: r.rateLimiter.GetGlobalStats()})
			})
		}
	}

	// Static files
	if r.staticDir != "" {
		if _, err := os.Stat(r.staticDir); err == nil {
			router.Static("/static", r.staticDir)
			router.StaticFile("/", r.staticDir+"/index.html")
		}
	}
}
