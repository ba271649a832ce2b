package session

import (
	"context"
	"errors"
	"time"

	"github.com/san-kum/pose-coach/server/analyzer"
	"github.com/san-kum/pose-coach/server/capture"
	"github.com/san-kum/pose-coach/server/estimator"
	"github.com/san-kum/pose-coach/server/metrics"
	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/presenter"
	"github.com/san-kum/pose-coach/server/render"
	"go.uber.org/zap"
)

// run is one start attempt, from opening the camera to releasing it. All
// cross-frame state lives here and is touched only by the loop goroutine.
type run struct {
	s         *Session
	ctx       context.Context
	src       capture.Source
	opts      StartOptions
	toaster   *presenter.Toaster
	analyzer  *analyzer.Analyzer
	estimator estimator.Estimator

	misses   int
	hinted   bool
	lastReps int
}

func (r *run) loop(done chan struct{}) {
	s := r.s
	defer close(done)
	defer r.toaster.Close()
	defer r.src.Close()

	constraints := s.constraints(r.opts)

	s.emit(r.ctx, EventState, Status{State: StateStarting})

	openCtx, cancel := context.WithTimeout(r.ctx, s.cfg.StartTimeout)
	err := r.src.Open(openCtx, constraints)
	cancel()
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.fail(err)
		return
	}

	s.logger.Info("Camera opened",
		zap.String("exercise", r.opts.Exercise),
		zap.Int("width", constraints.Width),
		zap.Int("height", constraints.Height))
	r.setActive(true)
	defer r.setActive(false)
	s.setState(r.ctx, StateActive, nil)

	rate := constraints.FrameRate
	if rate <= 0 {
		rate = capture.DefaultConstraints().FrameRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	frames := r.src.Frames()
	var latest *models.Frame
	for {
		select {
		case <-r.ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				if err := r.src.Err(); err != nil {
					r.fail(err)
				}
				return
			}
			// older unprocessed frames are dropped
			latest = f
		case <-ticker.C:
			if latest == nil {
				continue
			}
			f := latest
			latest = nil
			if f.Width == 0 || f.Height == 0 {
				f.Width, f.Height = constraints.Width, constraints.Height
			}
			r.processFrame(f)
		}
	}
}

func (r *run) processFrame(f *models.Frame) {
	s := r.s
	start := time.Now()

	p, err := r.estimator.Estimate(r.ctx, f)
	if m := s.deps.Metrics; m != nil {
		m.HistEstimateDuration.Observe(time.Since(start).Seconds())
	}

	switch {
	case err == nil:
	case r.ctx.Err() != nil:
		return
	case errors.Is(err, estimator.ErrFrameSkipped):
		r.count(metrics.OutcomeSkipped)
		return
	case errors.Is(err, estimator.ErrNoPose):
		r.count(metrics.OutcomeNoPose)
		r.miss()
		return
	default:
		r.count(metrics.OutcomeFailed)
		s.logger.Warn("Pose estimation failed", zap.Error(err))
		return
	}

	r.misses = 0
	if r.hinted {
		r.hinted = false
		s.emit(r.ctx, EventHint, Hint{Visible: false})
	}

	annotations := render.Overlay(p, f.Width, f.Height, r.opts.Mirror, s.cfg.Style)
	stats := render.Stats{}
	for _, a := range annotations {
		if a.Type == models.AnnotationKeypoint {
			stats.Points++
		} else {
			stats.Lines++
		}
	}
	s.emit(r.ctx, EventOverlay, Overlay{
		Width:       f.Width,
		Height:      f.Height,
		Mirror:      r.opts.Mirror,
		Timestamp:   f.Timestamp,
		Annotations: annotations,
		Stats:       stats,
	})

	ev := r.analyzer.Analyze(p)
	summary := s.deps.Presenter.Summarize(ev)
	s.emit(r.ctx, EventAnalysis, Analysis{Timestamp: f.Timestamp, Summary: summary})

	if item, ok := s.deps.Presenter.Alert(ev); ok {
		r.toaster.Push(item)
	}

	s.mu.Lock()
	s.frames++
	s.reps = ev.Reps
	s.mu.Unlock()

	if m := s.deps.Metrics; m != nil {
		m.CounterFrames.WithLabelValues(metrics.OutcomeAnalyzed).Inc()
		for _, item := range ev.Items {
			m.CounterFeedbackItems.WithLabelValues(string(item.Type)).Inc()
		}
		if ev.Score != nil {
			m.HistScore.Observe(float64(*ev.Score))
		}
		if ev.Reps > r.lastReps {
			m.CounterReps.Add(float64(ev.Reps - r.lastReps))
		}
		m.HistFrameDuration.Observe(time.Since(start).Seconds())
	}
	r.lastReps = ev.Reps
}

// miss counts consecutive frames without a person and shows a hint once
// the threshold is reached.
func (r *run) miss() {
	r.misses++
	if r.hinted || r.s.cfg.NoPoseHint <= 0 || r.misses < r.s.cfg.NoPoseHint {
		return
	}
	r.hinted = true
	r.s.emit(r.ctx, EventHint, Hint{Message: noPersonMessage, Visible: true})
}

func (r *run) fail(err error) {
	s := r.s
	state := StateError
	if errors.Is(err, capture.ErrUnsupported) {
		state = StateUnavailable
	}
	s.logger.Warn("Camera failed",
		zap.String("state", string(state)),
		zap.Error(err))
	if m := s.deps.Metrics; m != nil {
		m.CounterCaptureErrors.WithLabelValues(capture.Code(err)).Inc()
	}
	s.setState(r.ctx, state, err)
}

func (r *run) count(outcome string) {
	if m := r.s.deps.Metrics; m != nil {
		m.CounterFrames.WithLabelValues(outcome).Inc()
	}
}

func (r *run) setActive(active bool) {
	m := r.s.deps.Metrics
	if m == nil {
		return
	}
	if active {
		m.GaugeActiveSessions.Inc()
	} else {
		m.GaugeActiveSessions.Dec()
	}
}
