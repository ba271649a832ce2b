// Package processor analyzes single frames or landmark sets outside of a
// live session, for clients that upload one image or that run their own
// on-device pose model.
package processor

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/san-kum/pose-coach/server/analyzer"
	"github.com/san-kum/pose-coach/server/cache"
	"github.com/san-kum/pose-coach/server/estimator"
	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/presenter"
	"github.com/san-kum/pose-coach/server/render"
	"go.uber.org/zap"
)

var (
	ErrQueueFull     = errors.New("processing queue full, try again later")
	ErrShuttingDown  = errors.New("processing cancelled - queue shutting down")
	ErrTimeout       = errors.New("processing timeout")
	ErrInvalidPhase  = errors.New("unknown phase")
	ErrFrameTooLarge = errors.New("frame dimensions too large")
)

type FrameProcessor struct {
	estimator estimator.Estimator
	registry  *analyzer.Registry
	presenter *presenter.Presenter
	logger    *zap.Logger
	queue     *ProcessingQueue
	config    ProcessorConfig
	cache     cache.Cache

	mutex sync.RWMutex
	stats ProcessorStats
}

type ProcessorStats struct {
	StartTime             time.Time `json:"start_time"`
	TotalProcessed        int64     `json:"total_processed"`
	SuccessfullyProcessed int64     `json:"successfully_processed"`
	FailedProcessed       int64     `json:"failed_processed"`
	CacheHits             int64     `json:"cache_hits"`
	AverageLatency        float64   `json:"average_latency_ms"`
	QueueSize             int       `json:"queue_size"`
	ActiveWorkers         int       `json:"active_workers"`
}

type ProcessorConfig struct {
	MaxQueueSize      int
	MaxWorkers        int
	ProcessingTimeout time.Duration
	CacheTTL          time.Duration
	// MaxFrameSize bounds width and height of frames and overlays, in pixels.
	MaxFrameSize int
	ModelVersion string
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		MaxQueueSize:      100,
		MaxWorkers:        4,
		ProcessingTimeout: 10 * time.Second,
		CacheTTL:          10 * time.Minute,
		MaxFrameSize:      4096,
	}
}

// Request is a one-shot analysis. The frame carries either image bytes for
// the estimator or a pose computed by the client. An empty Phase lets the
// processor infer it from the pose.
type Request struct {
	Exercise string       `json:"exercise"`
	Phase    models.Phase `json:"phase,omitempty"`
	Mirror   bool         `json:"mirror"`
	Frame    models.Frame `json:"frame"`
}

type Result struct {
	Analysis models.AnalysisResult `json:"analysis"`
	Summary  presenter.Summary     `json:"summary"`
	Cached   bool                  `json:"cached"`
}

func NewFrameProcessor(
	est estimator.Estimator,
	registry *analyzer.Registry,
	pres *presenter.Presenter,
	c cache.Cache,
	config ProcessorConfig,
	logger *zap.Logger,
) *FrameProcessor {
	processor := &FrameProcessor{
		estimator: estimator.ClientLandmarks{Next: est},
		registry:  registry,
		presenter: pres,
		logger:    logger,
		config:    config,
		cache:     c,
		stats: ProcessorStats{
			StartTime:     time.Now(),
			ActiveWorkers: config.MaxWorkers,
		},
	}

	processor.queue = NewProcessingQueue(config.MaxQueueSize, config.MaxWorkers, processor.processFrame)

	return processor
}

func (fp *FrameProcessor) ProcessFrame(ctx context.Context, request *Request) (*Result, error) {
	startTime := time.Now()
	fp.count(func(s *ProcessorStats) { s.TotalProcessed++ })

	tmpl, err := fp.registry.Get(request.Exercise)
	if err != nil {
		fp.count(func(s *ProcessorStats) { s.FailedProcessed++ })
		return nil, err
	}
	if request.Phase != "" && !request.Phase.Valid() {
		fp.count(func(s *ProcessorStats) { s.FailedProcessed++ })
		return nil, fmt.Errorf("%w %q", ErrInvalidPhase, request.Phase)
	}
	if err := fp.checkSize(request.Frame); err != nil {
		fp.count(func(s *ProcessorStats) { s.FailedProcessed++ })
		return nil, err
	}

	cacheKey, err := fp.cacheKey(tmpl, request)
	if err != nil {
		return nil, err
	}

	if fp.cache != nil {
		var cached Result
		if err := fp.cache.Get(ctx, cacheKey, &cached); err == nil {
			fp.logger.Debug("Cache hit for frame", zap.String("key", cacheKey))
			fp.count(func(s *ProcessorStats) {
				s.SuccessfullyProcessed++
				s.CacheHits++
			})
			cached.Cached = true
			return &cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, fp.config.ProcessingTimeout)
	defer cancel()

	resultChan := make(chan *ProcessingResult, 1)
	queueItem := &QueueItem{
		Ctx:        ctx,
		Request:    request,
		ResultChan: resultChan,
		StartTime:  startTime,
	}

	if err := fp.queue.Enqueue(queueItem); err != nil {
		fp.count(func(s *ProcessorStats) { s.FailedProcessed++ })
		return nil, err
	}

	select {
	case result := <-resultChan:
		if result.Error != nil {
			fp.count(func(s *ProcessorStats) { s.FailedProcessed++ })
			return nil, result.Error
		}

		latency := time.Since(startTime)
		fp.count(func(s *ProcessorStats) {
			s.SuccessfullyProcessed++
			s.updateLatency(latency)
		})

		if fp.cache != nil {
			if err := fp.cache.Set(ctx, cacheKey, result.Result, fp.config.CacheTTL); err != nil {
				fp.logger.Warn("Failed to cache result", zap.Error(err))
			}
			if _, err := fp.cache.Increment(ctx, "count:"+tmpl.ID); err != nil {
				fp.logger.Warn("Failed to count analysis", zap.Error(err))
			}
		}

		return result.Result, nil

	case <-ctx.Done():
		fp.count(func(s *ProcessorStats) { s.FailedProcessed++ })
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

func (fp *FrameProcessor) processFrame(item *QueueItem) {
	result, err := fp.analyze(item.Ctx, item.Request)
	item.ResultChan <- &ProcessingResult{Result: result, Error: err}
}

func (fp *FrameProcessor) analyze(ctx context.Context, request *Request) (*Result, error) {
	start := time.Now()

	tmpl, err := fp.registry.Get(request.Exercise)
	if err != nil {
		return nil, err
	}

	p, err := fp.estimator.Estimate(ctx, &request.Frame)
	if err != nil {
		return nil, err
	}

	a := analyzer.New(tmpl, analyzer.WithAspect(aspect(request.Frame)))
	phase := request.Phase
	if phase == "" {
		phase = models.PhaseIdle
		if guessed, ok := a.GuessPhase(p); ok {
			phase = guessed
		}
	}
	ev := a.Evaluate(p, phase)

	width, height := frameSize(request.Frame)
	return &Result{
		Analysis: models.AnalysisResult{
			Evaluation:     ev,
			Annotations:    render.Overlay(p, width, height, request.Mirror, render.DefaultStyle()),
			ProcessingTime: float64(time.Since(start).Microseconds()) / 1000,
			ModelVersion:   fp.config.ModelVersion,
			Timestamp:      time.Now().Unix(),
		},
		Summary: fp.presenter.Summarize(ev),
	}, nil
}

// RenderOverlay draws the skeleton for a frame and returns it as PNG.
func (fp *FrameProcessor) RenderOverlay(ctx context.Context, frame *models.Frame, mirror bool, label string) ([]byte, error) {
	if err := fp.checkSize(*frame); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, fp.config.ProcessingTimeout)
	defer cancel()

	p, err := fp.estimator.Estimate(ctx, frame)
	if err != nil {
		return nil, err
	}

	width, height := frameSize(*frame)
	skeleton := render.NewSkeleton(width, height, render.DefaultStyle())
	skeleton.Draw(p, mirror)
	if label != "" {
		skeleton.Label(label)
	}
	return skeleton.PNG()
}

// AnalysisCount returns how many fresh analyses were run for an exercise.
func (fp *FrameProcessor) AnalysisCount(ctx context.Context, exercise string) int64 {
	if fp.cache == nil {
		return 0
	}
	var n int64
	if err := fp.cache.Get(ctx, "count:"+exercise, &n); err != nil {
		return 0
	}
	return n
}

func (fp *FrameProcessor) GetStats() ProcessorStats {
	fp.mutex.RLock()
	defer fp.mutex.RUnlock()

	stats := fp.stats
	stats.QueueSize = fp.queue.Size()
	return stats
}

func (fp *FrameProcessor) GetQueueStats() QueueStats {
	return fp.queue.GetQueueStats()
}

func (fp *FrameProcessor) GetCacheStats(ctx context.Context) (*cache.CacheStats, error) {
	if fp.cache == nil {
		return nil, fmt.Errorf("cache not initialized")
	}

	return fp.cache.GetStats(ctx)
}

// Shutdown gracefully shuts down the frame processor
func (fp *FrameProcessor) Shutdown(timeout time.Duration) error {
	fp.logger.Info("Shutting down frame processor...")

	if err := fp.queue.Shutdown(timeout); err != nil {
		fp.logger.Error("Failed to shutdown queue", zap.Error(err))
		return err
	}

	fp.logger.Info("Frame processor shutdown complete")
	return nil
}

func (fp *FrameProcessor) count(update func(*ProcessorStats)) {
	fp.mutex.Lock()
	defer fp.mutex.Unlock()
	update(&fp.stats)
}

func (s *ProcessorStats) updateLatency(latency time.Duration) {
	currentLatency := float64(latency.Microseconds()) / 1000

	if s.AverageLatency == 0 {
		s.AverageLatency = currentLatency
	} else {
		alpha := 0.1
		s.AverageLatency = alpha*currentLatency + (1-alpha)*s.AverageLatency
	}
}

func (fp *FrameProcessor) cacheKey(tmpl *analyzer.Template, request *Request) (string, error) {
	var content []byte
	if request.Frame.Pose != nil {
		data, err := json.Marshal(request.Frame.Pose.Landmarks)
		if err != nil {
			return "", fmt.Errorf("failed to hash landmarks: %w", err)
		}
		content = data
	} else {
		content = request.Frame.ImageData
	}

	width, height := frameSize(request.Frame)
	return cache.GenerateCacheKey(
		"analysis",
		tmpl.ID,
		strconv.Itoa(tmpl.Version),
		string(request.Phase),
		strconv.FormatBool(request.Mirror),
		strconv.Itoa(width),
		strconv.Itoa(height),
		fmt.Sprintf("%x", md5.Sum(content)),
	), nil
}

func (fp *FrameProcessor) checkSize(f models.Frame) error {
	limit := fp.config.MaxFrameSize
	if limit <= 0 {
		limit = DefaultProcessorConfig().MaxFrameSize
	}
	if f.Width > limit || f.Height > limit {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrFrameTooLarge, f.Width, f.Height, limit)
	}
	return nil
}

func frameSize(f models.Frame) (int, int) {
	if f.Width <= 0 || f.Height <= 0 {
		return 640, 480
	}
	return f.Width, f.Height
}

func aspect(f models.Frame) float64 {
	w, h := frameSize(f)
	return float64(w) / float64(h)
}
