package render

import (
	"fmt"
	"image/color"

	"github.com/san-kum/pose-coach/server/pose"
)

var White = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// regionColors paints landmarks and limbs by body region.
var regionColors = map[pose.Region]color.RGBA{
	pose.RegionFace:  {R: 255, G: 178, B: 29, A: 255}, // #FFB21D
	pose.RegionArms:  {R: 0, G: 194, B: 255, A: 255},  // #00C2FF
	pose.RegionLegs:  {R: 72, G: 249, B: 10, A: 255},  // #48F90A
	pose.RegionTorso: {R: 255, G: 55, B: 199, A: 255}, // #FF37C7
}

// Style controls the size of the drawn skeleton in pixels.
type Style struct {
	PointRadius float64
	LineWidth   float64
	LabelColor  color.RGBA
}

func DefaultStyle() Style {
	return Style{
		PointRadius: 4,
		LineWidth:   3,
		LabelColor:  White,
	}
}

func RegionColor(r pose.Region) color.RGBA {
	return regionColors[r]
}

// Hex formats c as #RRGGBB for clients drawing the overlay themselves.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
