package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/san-kum/pose-coach/server/analyzer"
	"github.com/san-kum/pose-coach/server/estimator"
	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/processor"
	"github.com/san-kum/pose-coach/server/session"
	"go.uber.org/zap"
)

const apiVersion = "v1"

// APIHandler serves the REST side: exercise templates, one-shot analysis
// and operational stats.
type APIHandler struct {
	processor *processor.FrameProcessor
	registry  *analyzer.Registry
	sessions  *session.Manager
	logger    *zap.Logger

	mu    sync.Mutex
	stats SystemStats
}

type SystemStats struct {
	TotalRequests  int64     `json:"total_requests"`
	ProcessedOK    int64     `json:"processed_ok"`
	ProcessedError int64     `json:"processed_error"`
	AvgProcessTime float64   `json:"avg_process_time_ms"`
	StartedAt      time.Time `json:"started_at"`
}

type ExerciseInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
	Rules   int    `json:"rules"`
	Driver  string `json:"driver,omitempty"`
}

type AnalyzePoseRequest struct {
	Exercise  string            `json:"exercise" binding:"required"`
	Phase     models.Phase      `json:"phase"`
	Mirror    bool              `json:"mirror"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Landmarks []models.Landmark `json:"landmarks" binding:"required"`
}

type AnalyzeFrameRequest struct {
	Exercise  string       `json:"exercise" binding:"required"`
	Phase     models.Phase `json:"phase"`
	Mirror    bool         `json:"mirror"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Timestamp int64        `json:"timestamp"`
	ImageData string       `json:"image_data" binding:"required"`
}

type RenderOverlayRequest struct {
	ImageData string            `json:"image_data"`
	Landmarks []models.Landmark `json:"landmarks"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Mirror    bool              `json:"mirror"`
	Label     string            `json:"label"`
}

func NewAPIHandler(fp *processor.FrameProcessor, registry *analyzer.Registry, sessions *session.Manager, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		processor: fp,
		registry:  registry,
		sessions:  sessions,
		logger:    logger,
		stats:     SystemStats{StartedAt: time.Now()},
	}
}

func (h *APIHandler) ListExercises(c *gin.Context) {
	templates := h.registry.List()
	exercises := make([]ExerciseInfo, 0, len(templates))
	for _, t := range templates {
		exercises = append(exercises, ExerciseInfo{
			ID:      t.ID,
			Name:    t.Name,
			Version: t.Version,
			Rules:   len(t.Rules),
			Driver:  t.Phase.Driver,
		})
	}
	respond(c, http.StatusOK, exercises)
}

func (h *APIHandler) GetExercise(c *gin.Context) {
	t, err := h.registry.Get(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "unknown_exercise", err.Error())
		return
	}
	respond(c, http.StatusOK, t)
}

func (h *APIHandler) AnalyzePose(c *gin.Context) {
	var request AnalyzePoseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Debug("Invalid request format", zap.Error(err))
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return
	}

	h.analyze(c, &processor.Request{
		Exercise: request.Exercise,
		Phase:    request.Phase,
		Mirror:   request.Mirror,
		Frame: models.Frame{
			Width:     request.Width,
			Height:    request.Height,
			Timestamp: request.Timestamp,
			ClientID:  c.ClientIP(),
			Pose:      &models.Pose{Landmarks: request.Landmarks, Timestamp: request.Timestamp},
		},
	})
}

func (h *APIHandler) AnalyzeFrame(c *gin.Context) {
	var request AnalyzeFrameRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.Debug("Invalid request format", zap.Error(err))
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return
	}

	imageData, err := extractImageData(request.ImageData)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_image", "Invalid image data")
		return
	}

	h.analyze(c, &processor.Request{
		Exercise: request.Exercise,
		Phase:    request.Phase,
		Mirror:   request.Mirror,
		Frame: models.Frame{
			ImageData: imageData,
			Width:     request.Width,
			Height:    request.Height,
			Timestamp: request.Timestamp,
			ClientID:  c.ClientIP(),
		},
	})
}

func (h *APIHandler) analyze(c *gin.Context, request *processor.Request) {
	startTime := time.Now()

	result, err := h.processor.ProcessFrame(c.Request.Context(), request)
	if err != nil {
		h.count(false, 0)
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Frame processing failed", zap.Error(err), zap.String("client_ip", c.ClientIP()))
		}
		respondError(c, status, code, err.Error())
		return
	}

	h.count(true, time.Since(startTime))
	respond(c, http.StatusOK, result)
}

func (h *APIHandler) RenderOverlay(c *gin.Context) {
	var request RenderOverlayRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
		return
	}

	frame := &models.Frame{Width: request.Width, Height: request.Height, ClientID: c.ClientIP()}
	switch {
	case len(request.Landmarks) > 0:
		frame.Pose = &models.Pose{Landmarks: request.Landmarks}
	case request.ImageData != "":
		imageData, err := extractImageData(request.ImageData)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_image", "Invalid image data")
			return
		}
		frame.ImageData = imageData
	default:
		respondError(c, http.StatusBadRequest, "invalid_request", "Either landmarks or image_data is required")
		return
	}

	png, err := h.processor.RenderOverlay(c.Request.Context(), frame, request.Mirror, request.Label)
	if err != nil {
		status, code := classify(err)
		respondError(c, status, code, err.Error())
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *APIHandler) GetStats(c *gin.Context) {
	h.mu.Lock()
	stats := h.stats
	h.mu.Unlock()

	var successRate, errorRate float64
	if stats.TotalRequests > 0 {
		successRate = float64(stats.ProcessedOK) / float64(stats.TotalRequests) * 100
		errorRate = float64(stats.ProcessedError) / float64(stats.TotalRequests) * 100
	}

	respond(c, http.StatusOK, gin.H{
		"system":    stats,
		"processor": h.processor.GetStats(),
		"queue":     h.processor.GetQueueStats(),
		"sessions":  h.sessions.Count(),
		"metrics": gin.H{
			"success_rate":   successRate,
			"error_rate":     errorRate,
			"uptime_seconds": time.Since(stats.StartedAt).Seconds(),
		},
	})
}

func (h *APIHandler) GetCacheStats(c *gin.Context) {
	stats, err := h.processor.GetCacheStats(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "cache_unavailable", err.Error())
		return
	}

	counts := make(map[string]int64)
	for _, t := range h.registry.List() {
		counts[t.ID] = h.processor.AnalysisCount(c.Request.Context(), t.ID)
	}
	respond(c, http.StatusOK, gin.H{"cache": stats, "analyses": counts})
}

func (h *APIHandler) ListSessions(c *gin.Context) {
	respond(c, http.StatusOK, h.sessions.List())
}

func (h *APIHandler) ReloadTemplates(c *gin.Context) {
	if err := h.registry.Reload(); err != nil {
		h.logger.Warn("Template reload failed", zap.Error(err))
		respondError(c, http.StatusUnprocessableEntity, "invalid_template", err.Error())
		return
	}

	ids := make([]string, 0)
	for _, t := range h.registry.List() {
		ids = append(ids, t.ID)
	}
	h.logger.Info("Templates reloaded", zap.Strings("exercises", ids))
	respond(c, http.StatusOK, gin.H{"exercises": ids})
}

func (h *APIHandler) count(ok bool, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stats.TotalRequests++
	if !ok {
		h.stats.ProcessedError++
		return
	}
	h.stats.ProcessedOK++

	current := float64(latency.Microseconds()) / 1000
	if h.stats.AvgProcessTime == 0 {
		h.stats.AvgProcessTime = current
	} else {
		alpha := 0.1
		h.stats.AvgProcessTime = alpha*current + (1-alpha)*h.stats.AvgProcessTime
	}
}

// classify maps a processing error to an HTTP status and an error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, analyzer.ErrUnknownExercise):
		return http.StatusNotFound, "unknown_exercise"
	case errors.Is(err, estimator.ErrNoPose):
		return http.StatusUnprocessableEntity, "no_pose"
	case errors.Is(err, estimator.ErrInvalidPose):
		return http.StatusBadRequest, "invalid_pose"
	case errors.Is(err, processor.ErrQueueFull), errors.Is(err, processor.ErrShuttingDown):
		return http.StatusServiceUnavailable, "busy"
	case errors.Is(err, processor.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, processor.ErrInvalidPhase):
		return http.StatusBadRequest, "invalid_phase"
	case errors.Is(err, processor.ErrFrameTooLarge):
		return http.StatusBadRequest, "frame_too_large"
	default:
		return http.StatusInternalServerError, "processing_failed"
	}
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, models.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta(c),
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.APIResponse{
		Success: false,
		Error:   &models.APIError{Code: code, Message: message},
		Meta:    meta(c),
	})
}

func meta(c *gin.Context) *models.ResponseMeta {
	return &models.ResponseMeta{
		RequestID: c.GetHeader("X-Request-ID"),
		Timestamp: time.Now(),
		Version:   apiVersion,
	}
}

// extractImageData accepts a data URL or plain base64.
func extractImageData(data string) ([]byte, error) {
	if data == "" {
		return nil, fmt.Errorf("empty image data")
	}
	if i := strings.IndexByte(data, ','); i >= 0 {
		if !strings.HasPrefix(data, "data:") {
			return nil, fmt.Errorf("invalid data URL format")
		}
		data = data[i+1:]
	}

	imageData, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return imageData, nil
}
