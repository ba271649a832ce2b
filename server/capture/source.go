// Package capture provides camera frames to a tracking session. The camera
// is a scoped resource: it is requested on Open and every track is released
// on Close, whatever path led there.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/pose-coach/server/models"
)

var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera unavailable")
	ErrDeviceLost        = errors.New("camera lost")
	// ErrUnsupported means the client has no media capture support at all.
	ErrUnsupported = errors.New("camera capture not supported")
	ErrClosed      = errors.New("capture source closed")
)

const FacingUser = "user"

type Constraints struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Facing    string `json:"facing"`
	FrameRate int    `json:"frame_rate"`
}

func DefaultConstraints() Constraints {
	return Constraints{Width: 640, Height: 480, Facing: FacingUser, FrameRate: 30}
}

// Source delivers frames from an opened camera. Frames is closed when the
// source is closed or the device is lost; Err tells the two apart.
type Source interface {
	Open(ctx context.Context, c Constraints) error
	Frames() <-chan *models.Frame
	Err() error
	Close()
}

// ParseError maps a client reported camera failure to a capture error.
// Both short codes and browser DOMException names are accepted.
func ParseError(reason string) error {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "permission_denied", "notallowederror", "securityerror":
		return ErrPermissionDenied
	case "unsupported", "typeerror":
		return ErrUnsupported
	case "ended", "device_lost":
		return ErrDeviceLost
	case "not_found", "notfounderror", "notreadableerror", "overconstrainederror", "":
		return ErrDeviceUnavailable
	default:
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, reason)
	}
}

// Code is the short wire name of a capture error.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrDeviceLost):
		return "device_lost"
	case errors.Is(err, ErrDeviceUnavailable):
		return "device_unavailable"
	default:
		return "capture_failed"
	}
}
