package pose

import (
	"math"

	"github.com/san-kum/pose-coach/server/models"
	"gonum.org/v1/gonum/spatial/r3"
)

// Space describes how normalized landmark coordinates map to a metric-ish
// space before measuring angles. Aspect is frame width divided by height.
type Space struct {
	Aspect float64
	Use3D  bool
}

func DefaultSpace() Space {
	return Space{Aspect: 1}
}

func (s Space) vec(l models.Landmark) r3.Vec {
	aspect := s.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	v := r3.Vec{X: l.X * aspect, Y: l.Y}
	if s.Use3D && l.HasZ {
		v.Z = l.Z * aspect
	}
	return v
}

// Angle returns the angle in degrees at vertex b formed by a-b-c, in
// [0,180]. ok is false when a segment has zero length.
func (s Space) Angle(a, b, c models.Landmark) (deg float64, ok bool) {
	v1 := r3.Sub(s.vec(a), s.vec(b))
	v2 := r3.Sub(s.vec(c), s.vec(b))
	if r3.Norm(v1) == 0 || r3.Norm(v2) == 0 {
		return 0, false
	}
	rad := math.Atan2(r3.Norm(r3.Cross(v1, v2)), r3.Dot(v1, v2))
	return rad * 180 / math.Pi, true
}

// Incline returns the angle in degrees between segment a->b and the
// vertical axis of the frame, in [0,90] for either orientation.
func (s Space) Incline(a, b models.Landmark) (deg float64, ok bool) {
	v := r3.Sub(s.vec(b), s.vec(a))
	if r3.Norm(v) == 0 {
		return 0, false
	}
	horizontal := math.Hypot(v.X, v.Z)
	rad := math.Atan2(horizontal, math.Abs(v.Y))
	return rad * 180 / math.Pi, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
