// Package session runs live tracking for one client: it opens the camera,
// drives the per-frame estimate, render, analyze and present cycle and
// guarantees the camera is released however the session ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
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

var (
	ErrRunning = errors.New("session already running")
	ErrClosed  = errors.New("session closed")
	ErrNoRetry = errors.New("nothing to retry")
)

const noPersonMessage = "No person detected. Step into the frame and make sure the room is well lit."

type Config struct {
	Constraints   capture.Constraints
	Budget        time.Duration
	NoPoseHint    int
	ToastDuration time.Duration
	WindowSize    int
	StartTimeout  time.Duration
	Style         render.Style
}

func DefaultConfig() Config {
	return Config{
		Constraints:   capture.DefaultConstraints(),
		Budget:        estimator.DefaultBudget,
		NoPoseHint:    30,
		ToastDuration: presenter.DefaultToastDuration,
		WindowSize:    analyzer.DefaultWindowSize,
		StartTimeout:  30 * time.Second,
		Style:         render.DefaultStyle(),
	}
}

// Deps are the collaborators shared by every session.
type Deps struct {
	// NewSource returns a fresh camera for each start attempt.
	NewSource func() capture.Source
	Estimator estimator.Estimator
	Registry  *analyzer.Registry
	Presenter *presenter.Presenter
	Metrics   *metrics.Manager
	Logger    *zap.Logger
}

// StartOptions come from the client's start request.
type StartOptions struct {
	Exercise string `json:"exercise"`
	Mirror   bool   `json:"mirror"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Session is a single client's tracking lifecycle. Start and Retry return
// immediately; the camera is opened in the background and progress is
// reported through the sink. Stop is idempotent and returns only after the
// frame loop has exited and the camera was released.
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	sink   Sink
	logger *zap.Logger

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu        sync.Mutex
	state     State
	lastErr   error
	opts      *StartOptions
	cancel    context.CancelFunc
	done      chan struct{}
	source    capture.Source
	toaster   *presenter.Toaster
	reps      int
	frames    int64
	startedAt time.Time
	closed    bool

	// emitMu orders sink calls against Stop: once a run is cancelled under
	// emitMu none of its events get through.
	emitMu sync.Mutex
}

type Info struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Exercise  string    `json:"exercise,omitempty"`
	Reps      int       `json:"reps"`
	Frames    int64     `json:"frames"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Error     string    `json:"error,omitempty"`
	Toast     string    `json:"toast,omitempty"`
}

func New(id string, cfg Config, deps Deps, sink Sink) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		sink:   sink,
		logger: logger.With(zap.String("session_id", id)),
		state:  StateIdle,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure behind the error or unavailable state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Source returns the camera of the current run, if any.
func (s *Session) Source() capture.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Session) Info() Info {
	s.mu.Lock()
	info := Info{
		ID:        s.id,
		State:     s.state,
		Reps:      s.reps,
		Frames:    s.frames,
		StartedAt: s.startedAt,
	}
	if s.opts != nil {
		info.Exercise = s.opts.Exercise
	}
	if s.lastErr != nil {
		info.Error = s.lastErr.Error()
	}
	toaster := s.toaster
	s.mu.Unlock()

	// the toaster calls back into the session, so it is asked without s.mu
	if toaster != nil {
		if item, ok := toaster.Active(); ok {
			info.Toast = item.ID
		}
	}
	return info
}

// Start begins tracking the given exercise. An unknown exercise fails
// synchronously without touching the camera.
func (s *Session) Start(opts StartOptions) error {
	tmpl, err := s.deps.Registry.Get(opts.Exercise)
	if err != nil {
		return err
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StateStarting || s.state == StateActive {
		s.mu.Unlock()
		return ErrRunning
	}
	prevCancel, prevDone := s.cancel, s.done
	s.mu.Unlock()

	// a failed run may still be releasing its camera
	if prevCancel != nil {
		s.emitMu.Lock()
		prevCancel()
		s.emitMu.Unlock()
		<-prevDone
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = &opts
	s.launch(tmpl, opts)
	return nil
}

// Retry restarts the last attempt after a failure. It is never called by
// the session itself.
func (s *Session) Retry() error {
	s.mu.Lock()
	opts := s.opts
	state := s.state
	s.mu.Unlock()

	if opts == nil || (state != StateError && state != StateUnavailable) {
		return ErrNoRetry
	}
	return s.Start(*opts)
}

// launch must be called with s.mu held.
func (s *Session) launch(tmpl *analyzer.Template, opts StartOptions) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	src := s.deps.NewSource()

	s.cancel = cancel
	s.done = done
	s.source = src
	s.lastErr = nil
	s.reps = 0
	s.frames = 0
	s.startedAt = time.Now()
	s.toaster = presenter.NewToaster(&toastSink{s: s, ctx: ctx}, s.cfg.ToastDuration)
	s.state = StateStarting

	c := s.constraints(opts)
	aspect := float64(c.Width) / float64(c.Height)

	r := &run{
		s:         s,
		ctx:       ctx,
		src:       src,
		opts:      opts,
		toaster:   s.toaster,
		analyzer:  analyzer.New(tmpl, analyzer.WithWindow(s.cfg.WindowSize), analyzer.WithAspect(aspect)),
		estimator: estimator.NewBounded(s.deps.Estimator, s.cfg.Budget),
	}
	go r.loop(done)
}

// constraints are the configured camera settings with the client's
// requested resolution applied.
func (s *Session) constraints(opts StartOptions) capture.Constraints {
	c := s.cfg.Constraints
	if opts.Width > 0 && opts.Height > 0 {
		c.Width, c.Height = opts.Width, opts.Height
	}
	if c.Width <= 0 || c.Height <= 0 {
		d := capture.DefaultConstraints()
		c.Width, c.Height = d.Width, d.Height
	}
	c.Facing = capture.FacingUser
	return c
}

// Dismiss closes the toast with the given id on user request.
func (s *Session) Dismiss(id string) bool {
	s.mu.Lock()
	t := s.toaster
	s.mu.Unlock()

	if t == nil {
		return false
	}
	return t.Dismiss(id)
}

// Stop cancels the frame loop, waits for it and releases the camera. It
// is safe to call any number of times.
func (s *Session) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stop()
}

func (s *Session) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		s.emitMu.Lock()
		cancel()
		s.emitMu.Unlock()
		<-done
	}

	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateStopped
	s.mu.Unlock()

	s.logger.Info("Session stopped", zap.String("previous_state", string(prev)))
	s.send(EventState, Status{State: StateStopped})
}

// Close stops the session for good; Start fails afterwards.
func (s *Session) Close() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// emit forwards an event of the run owning ctx unless that run was
// stopped.
func (s *Session) emit(ctx context.Context, eventType string, data any) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if err := s.sink.Send(eventType, data); err != nil {
		s.logger.Debug("Failed to send session event",
			zap.String("event", eventType),
			zap.Error(err))
	}
}

func (s *Session) send(eventType string, data any) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if err := s.sink.Send(eventType, data); err != nil {
		s.logger.Debug("Failed to send session event",
			zap.String("event", eventType),
			zap.Error(err))
	}
}

// setState records a transition made by the run owning ctx.
func (s *Session) setState(ctx context.Context, state State, err error) {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.lastErr = err
	s.mu.Unlock()

	status := Status{State: state}
	if err != nil {
		status.Error = capture.Code(err)
		status.Message = err.Error()
		status.Retry = state == StateError
	}
	s.emit(ctx, EventState, status)
}

type toastSink struct {
	s   *Session
	ctx context.Context
}

func (t *toastSink) ShowToast(item models.FeedbackItem, d time.Duration) {
	t.s.emit(t.ctx, EventToast, Toast{Item: item, DurationMS: d.Milliseconds()})
}

func (t *toastSink) HideToast(id string) {
	t.s.emit(t.ctx, EventToastDismissed, ToastDismissed{ID: id})
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.id, s.State())
}
