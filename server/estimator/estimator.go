// Package estimator turns camera frames into poses. The concrete model is
// pluggable: a remote pose service, a scripted replay for demos and tests,
// or landmarks computed on the client device.
package estimator

import (
	"context"
	"errors"
	"time"

	"github.com/san-kum/pose-coach/server/models"
)

var (
	// ErrNoPose means the frame was processed but no person was found.
	ErrNoPose = errors.New("no pose detected")
	// ErrInvalidPose means the estimator returned a malformed landmark set.
	ErrInvalidPose = errors.New("invalid pose")
	// ErrFrameSkipped means the frame did not finish within its budget.
	ErrFrameSkipped = errors.New("frame skipped")
)

// DefaultBudget is the time one frame may spend in estimation at 30 fps.
const DefaultBudget = 33 * time.Millisecond

type Estimator interface {
	Estimate(ctx context.Context, frame *models.Frame) (*models.Pose, error)
}

// Func adapts a function to the Estimator interface.
type Func func(ctx context.Context, frame *models.Frame) (*models.Pose, error)

func (f Func) Estimate(ctx context.Context, frame *models.Frame) (*models.Pose, error) {
	return f(ctx, frame)
}
