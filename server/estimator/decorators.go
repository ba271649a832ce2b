package estimator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/pose"
)

// ClientLandmarks uses the pose a client computed on device when the frame
// carries one and falls back to the wrapped estimator otherwise.
type ClientLandmarks struct {
	Next Estimator
}

func (c ClientLandmarks) Estimate(ctx context.Context, frame *models.Frame) (*models.Pose, error) {
	if frame.Pose == nil {
		if c.Next == nil {
			return nil, ErrNoPose
		}
		return c.Next.Estimate(ctx, frame)
	}

	p := frame.Pose
	if len(p.Landmarks) == 0 {
		return nil, ErrNoPose
	}
	if err := pose.Validate(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPose, err)
	}
	if p.Timestamp == 0 {
		p.Timestamp = frame.Timestamp
	}
	return p, nil
}

// Bounded gives every frame a deadline. A frame that runs out of time is
// reported as ErrFrameSkipped so the caller moves on to the newest frame
// instead of queueing.
type Bounded struct {
	Next   Estimator
	Budget time.Duration
}

func NewBounded(next Estimator, budget time.Duration) *Bounded {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Bounded{Next: next, Budget: budget}
}

func (b *Bounded) Estimate(ctx context.Context, frame *models.Frame) (*models.Pose, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Budget)
	defer cancel()

	p, err := b.Next.Estimate(ctx, frame)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: over %s budget", ErrFrameSkipped, b.Budget)
	}
	return p, err
}
