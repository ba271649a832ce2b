package analyzer

import (
	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/pose"
	"gonum.org/v1/gonum/stat"
)

// Window keeps the most recent poses and smooths landmark positions with
// a visibility weighted mean. Visibility itself is never smoothed: the
// current frame decides whether a landmark is trusted.
type Window struct {
	size  int
	poses []*models.Pose
	next  int
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, poses: make([]*models.Pose, 0, size)}
}

func (w *Window) Reset() {
	w.poses = w.poses[:0]
	w.next = 0
}

// Push adds p and returns the smoothed pose.
func (w *Window) Push(p *models.Pose) *models.Pose {
	if len(w.poses) < w.size {
		w.poses = append(w.poses, p)
	} else {
		w.poses[w.next] = p
	}
	w.next = (w.next + 1) % w.size
	return w.smooth(p)
}

func (w *Window) smooth(latest *models.Pose) *models.Pose {
	out := &models.Pose{
		Landmarks: make([]models.Landmark, len(latest.Landmarks)),
		Timestamp: latest.Timestamp,
	}

	n := len(w.poses)
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	zs := make([]float64, 0, n)
	ws := make([]float64, 0, n)

	for i, cur := range latest.Landmarks {
		xs, ys, zs, ws = xs[:0], ys[:0], zs[:0], ws[:0]
		hasZ := cur.HasZ
		for _, p := range w.poses {
			if i >= len(p.Landmarks) {
				continue
			}
			l := p.Landmarks[i]
			if !pose.Visible(l) {
				continue
			}
			xs = append(xs, l.X)
			ys = append(ys, l.Y)
			zs = append(zs, l.Z)
			ws = append(ws, l.Visibility)
			hasZ = hasZ && l.HasZ
		}

		if len(ws) == 0 || !pose.Visible(cur) {
			out.Landmarks[i] = cur
			continue
		}

		out.Landmarks[i] = models.Landmark{
			X:          stat.Mean(xs, ws),
			Y:          stat.Mean(ys, ws),
			Z:          stat.Mean(zs, ws),
			HasZ:       hasZ,
			Visibility: cur.Visibility,
		}
	}
	return out
}
