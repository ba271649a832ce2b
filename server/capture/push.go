package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/pose-coach/server/models"
)

// Controller asks the remote client to start or stop its camera.
type Controller interface {
	RequestCamera(c Constraints) error
	ReleaseCamera() error
}

type pushState int

const (
	pushIdle pushState = iota
	pushOpening
	pushOpen
	pushClosed
)

// PushSource is a camera owned by a remote client. Open sends a camera
// request and waits until the client resolves it; frames are then pushed
// in as they arrive. Only the newest frame is kept.
type PushSource struct {
	ctrl Controller

	mu     sync.Mutex
	state  pushState
	frames chan *models.Frame
	ready  chan error
	err    error
}

func NewPushSource(ctrl Controller) *PushSource {
	return &PushSource{
		ctrl:   ctrl,
		frames: make(chan *models.Frame, 1),
		ready:  make(chan error, 1),
	}
}

func (s *PushSource) Open(ctx context.Context, c Constraints) error {
	s.mu.Lock()
	if s.state != pushIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: open called twice", ErrClosed)
	}
	s.state = pushOpening
	s.mu.Unlock()

	if err := s.ctrl.RequestCamera(c); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-s.ready:
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == pushClosed {
		return ErrClosed
	}
	s.state = pushOpen
	return nil
}

// Resolve answers a pending Open: nil when the client's camera is live,
// otherwise the failure reported by the client.
func (s *PushSource) Resolve(err error) {
	select {
	case s.ready <- err:
	default:
	}
}

// Push offers a frame, evicting an unread older one. It reports false when
// the source is not open.
func (s *PushSource) Push(f *models.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != pushOpen {
		return false
	}
	select {
	case s.frames <- f:
		return true
	default:
	}
	select {
	case <-s.frames:
	default:
	}
	s.frames <- f
	return true
}

// Fail reports a camera failure from the client, whether the camera was
// still being opened or had been streaming.
func (s *PushSource) Fail(err error) {
	s.mu.Lock()
	opening := s.state == pushOpening
	s.mu.Unlock()

	if opening {
		s.Resolve(err)
		return
	}
	s.Lost(err)
}

// Lost records that the client's camera stopped on its own.
func (s *PushSource) Lost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == pushClosed {
		return
	}
	if err == nil {
		err = ErrDeviceLost
	}
	s.err = err
	s.shutdown()
}

func (s *PushSource) Frames() <-chan *models.Frame { return s.frames }

func (s *PushSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the client's camera. Calling it again does nothing.
func (s *PushSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == pushClosed {
		return
	}
	s.shutdown()
}

func (s *PushSource) shutdown() {
	s.state = pushClosed
	close(s.frames)

	// unblock a pending Open
	reason := s.err
	if reason == nil {
		reason = ErrClosed
	}
	select {
	case s.ready <- reason:
	default:
	}

	_ = s.ctrl.ReleaseCamera()
}
