package render

import (
	"bytes"
	"image/png"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/pose"
)

// Overlay returns the skeleton as pixel space annotations, following the
// same visibility and mirroring rules as Skeleton.Draw.
func Overlay(p *models.Pose, width, height int, mirror bool, style Style) []models.Annotation {
	if p == nil {
		return nil
	}
	w, h := float64(width), float64(height)

	var out []models.Annotation
	for _, c := range pose.Connections() {
		if c.From >= len(p.Landmarks) || c.To >= len(p.Landmarks) {
			continue
		}
		a, z := p.Landmarks[c.From], p.Landmarks[c.To]
		if !pose.Visible(a) || !pose.Visible(z) {
			continue
		}
		x1, y1 := project(a, w, h, mirror)
		x2, y2 := project(z, w, h, mirror)
		out = append(out, models.Annotation{
			Type:   models.AnnotationLimb,
			X:      x1,
			Y:      y1,
			Points: []models.Point{{X: x1, Y: y1}, {X: x2, Y: y2}},
			Label:  pose.Name(c.From) + "-" + pose.Name(c.To),
			Color:  Hex(RegionColor(pose.ConnectionRegion(c))),
		})
	}

	for i, l := range p.Landmarks {
		if !pose.Visible(l) {
			continue
		}
		x, y := project(l, w, h, mirror)
		out = append(out, models.Annotation{
			Type:   models.AnnotationKeypoint,
			X:      x,
			Y:      y,
			Radius: style.PointRadius,
			Label:  pose.Name(i),
			Color:  Hex(RegionColor(pose.RegionOf(i))),
		})
	}
	return out
}

// PNG encodes the current canvas.
func (s *Skeleton) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
