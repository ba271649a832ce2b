package estimator

import (
	"context"
	"sync"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/pose"
)

// Scripted replays a fixed sequence of poses, one per call, looping at the
// end. A nil entry reports ErrNoPose for that frame.
type Scripted struct {
	mu    sync.Mutex
	poses []*models.Pose
	next  int
}

func NewScripted(poses ...*models.Pose) *Scripted {
	return &Scripted{poses: poses}
}

// SquatScript is a smooth repetition cycle: standing, down to a deep knee
// bend and back up, with a few frames lost mid-rep.
func SquatScript(frames int) *Scripted {
	if frames < 8 {
		frames = 8
	}
	poses := make([]*models.Pose, 0, frames)
	half := frames / 2
	for i := 0; i < frames; i++ {
		// 0 at the top, 1 at the bottom
		depth := float64(i) / float64(half)
		if i >= half {
			depth = float64(frames-i) / float64(frames-half)
		}
		s := pose.Standing()
		s.Knee -= 88 * depth
		s.Lean += 28 * depth
		poses = append(poses, pose.Synthesize(s))
	}
	return NewScripted(poses...)
}

func (s *Scripted) Estimate(ctx context.Context, frame *models.Frame) (*models.Pose, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.poses) == 0 {
		return nil, ErrNoPose
	}
	p := s.poses[s.next]
	s.next = (s.next + 1) % len(s.poses)
	if p == nil {
		return nil, ErrNoPose
	}

	out := &models.Pose{
		Landmarks: append([]models.Landmark(nil), p.Landmarks...),
		Timestamp: frame.Timestamp,
	}
	return out, nil
}
