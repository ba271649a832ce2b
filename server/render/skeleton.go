// Package render draws detected poses as a skeleton overlay, either as a
// raster image or as vector annotations for the client to draw.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/pose"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// circleSegments approximates landmark circles with a polygon.
const circleSegments = 16

// Stats counts what the last Draw put on the canvas.
type Stats struct {
	Points int `json:"points"`
	Lines  int `json:"lines"`
}

// Skeleton owns a transparent RGBA canvas the size of the video frame.
// It is not safe for concurrent use.
type Skeleton struct {
	img   *image.RGBA
	rast  *vector.Rasterizer
	style Style
	conns []models.Connection
}

func NewSkeleton(width, height int, style Style) *Skeleton {
	return &Skeleton{
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		rast:  vector.NewRasterizer(width, height),
		style: style,
		conns: pose.Connections(),
	}
}

func (s *Skeleton) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// Draw clears the canvas and paints p. Landmarks below the visibility
// threshold are skipped along with every connection touching them. With
// mirror set, x is flipped to match a selfie view. A nil pose leaves the
// canvas empty.
func (s *Skeleton) Draw(p *models.Pose, mirror bool) Stats {
	s.Clear()

	var stats Stats
	if p == nil {
		return stats
	}

	b := s.img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	for _, c := range s.conns {
		if c.From >= len(p.Landmarks) || c.To >= len(p.Landmarks) {
			continue
		}
		a, z := p.Landmarks[c.From], p.Landmarks[c.To]
		if !pose.Visible(a) || !pose.Visible(z) {
			continue
		}
		x1, y1 := project(a, w, h, mirror)
		x2, y2 := project(z, w, h, mirror)
		s.line(x1, y1, x2, y2, RegionColor(pose.ConnectionRegion(c)))
		stats.Lines++
	}

	for i, l := range p.Landmarks {
		if !pose.Visible(l) {
			continue
		}
		x, y := project(l, w, h, mirror)
		s.circle(x, y, RegionColor(pose.RegionOf(i)))
		stats.Points++
	}

	return stats
}

// Label writes text in the top left corner.
func (s *Skeleton) Label(text string) {
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(s.style.LabelColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(6, 16),
	}
	d.DrawString(text)
}

func project(l models.Landmark, w, h float64, mirror bool) (float64, float64) {
	x := l.X
	if mirror {
		x = 1 - x
	}
	return x * w, l.Y * h
}

func (s *Skeleton) line(x1, y1, x2, y2 float64, c color.RGBA) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	// offset perpendicular to the segment by half the width
	half := s.style.LineWidth / 2
	nx, ny := -dy/length*half, dx/length*half

	s.begin()
	s.rast.MoveTo(float32(x1+nx), float32(y1+ny))
	s.rast.LineTo(float32(x2+nx), float32(y2+ny))
	s.rast.LineTo(float32(x2-nx), float32(y2-ny))
	s.rast.LineTo(float32(x1-nx), float32(y1-ny))
	s.rast.ClosePath()
	s.fill(c)
}

func (s *Skeleton) circle(cx, cy float64, c color.RGBA) {
	r := s.style.PointRadius
	s.begin()
	s.rast.MoveTo(float32(cx+r), float32(cy))
	for i := 1; i < circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		s.rast.LineTo(float32(cx+r*math.Cos(a)), float32(cy+r*math.Sin(a)))
	}
	s.rast.ClosePath()
	s.fill(c)
}

func (s *Skeleton) begin() {
	b := s.img.Bounds()
	s.rast.Reset(b.Dx(), b.Dy())
}

func (s *Skeleton) fill(c color.RGBA) {
	s.rast.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{})
}
