package capture

import (
	"context"
	"sync"
	"time"

	"github.com/san-kum/pose-coach/server/models"
)

// SyntheticSource produces empty frames at the requested frame rate. It
// drives demos and tests together with a scripted estimator. OpenErr, when
// set, is returned by Open to simulate a failing camera.
type SyntheticSource struct {
	OpenErr  error
	ClientID string

	mu       sync.Mutex
	frames   chan *models.Frame
	stop     chan struct{}
	done     chan struct{}
	opened   bool
	closed   bool
	released int
}

func NewSyntheticSource(clientID string) *SyntheticSource {
	return &SyntheticSource{
		ClientID: clientID,
		frames:   make(chan *models.Frame, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *SyntheticSource) Open(ctx context.Context, c Constraints) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.OpenErr != nil {
		return s.OpenErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.opened {
		return ErrClosed
	}
	s.opened = true

	rate := c.FrameRate
	if rate <= 0 {
		rate = DefaultConstraints().FrameRate
	}
	go s.run(time.Second/time.Duration(rate), c)
	return nil
}

func (s *SyntheticSource) run(interval time.Duration, c Constraints) {
	defer close(s.done)
	defer close(s.frames)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			f := &models.Frame{
				Width:     c.Width,
				Height:    c.Height,
				Timestamp: now.UnixMilli(),
				ClientID:  s.ClientID,
			}
			select {
			case s.frames <- f:
			default:
				// drop the stale frame in favour of this one
				select {
				case <-s.frames:
				default:
				}
				select {
				case s.frames <- f:
				default:
				}
			}
		}
	}
}

func (s *SyntheticSource) Frames() <-chan *models.Frame { return s.frames }

func (s *SyntheticSource) Err() error { return nil }

func (s *SyntheticSource) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.released++
	opened := s.opened
	close(s.stop)
	s.mu.Unlock()

	if opened {
		<-s.done
	} else {
		close(s.frames)
	}
}

// Released reports how many times the camera was released.
func (s *SyntheticSource) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
