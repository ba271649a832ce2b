package render

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hiddenPose has every landmark below the visibility threshold except the
// listed ones, each placed at (0.2, 0.3).
func hiddenPose(visible ...int) *models.Pose {
	p := pose.Empty(0)
	for _, i := range visible {
		p.Landmarks[i] = models.Landmark{X: 0.2, Y: 0.3, Visibility: 0.9}
	}
	return p
}

func painted(img *image.RGBA, x, y int) bool {
	return img.RGBAAt(x, y).A != 0
}

func blank(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return false
		}
	}
	return true
}

func TestSkeleton_DrawsEverythingVisible(t *testing.T) {
	s := NewSkeleton(320, 240, DefaultStyle())
	stats := s.Draw(pose.Synthesize(pose.Standing()), false)

	assert.Equal(t, pose.NumLandmarks, stats.Points)
	assert.Equal(t, len(pose.Connections()), stats.Lines)
	assert.False(t, blank(s.img))
}

func TestSkeleton_VisibilityGate(t *testing.T) {
	p := pose.Synthesize(pose.Standing())
	p.Landmarks[pose.LeftKnee].Visibility = 0.49

	var touching int
	for _, c := range pose.Connections() {
		if c.From == pose.LeftKnee || c.To == pose.LeftKnee {
			touching++
		}
	}
	require.Equal(t, 2, touching)

	s := NewSkeleton(320, 240, DefaultStyle())
	stats := s.Draw(p, false)
	assert.Equal(t, pose.NumLandmarks-1, stats.Points)
	assert.Equal(t, len(pose.Connections())-touching, stats.Lines)
}

func TestSkeleton_ClearsBetweenFrames(t *testing.T) {
	s := NewSkeleton(100, 100, DefaultStyle())
	s.Draw(hiddenPose(pose.Nose), false)
	require.True(t, painted(s.img, 20, 30))

	stats := s.Draw(nil, false)
	assert.Zero(t, stats)
	assert.True(t, blank(s.img))

	stats = s.Draw(pose.Empty(0), false)
	assert.Zero(t, stats)
	assert.True(t, blank(s.img))
}

func TestSkeleton_Mirror(t *testing.T) {
	s := NewSkeleton(100, 100, DefaultStyle())
	s.Draw(hiddenPose(pose.Nose), true)

	assert.True(t, painted(s.img, 80, 30))
	assert.False(t, painted(s.img, 20, 30))
}

func TestSkeleton_SingleVisibleEndpointDrawsNoLine(t *testing.T) {
	s := NewSkeleton(100, 100, DefaultStyle())
	stats := s.Draw(hiddenPose(pose.LeftHip), false)
	assert.Equal(t, Stats{Points: 1}, stats)
}

func TestSkeleton_PNG(t *testing.T) {
	s := NewSkeleton(64, 48, DefaultStyle())
	s.Draw(pose.Synthesize(pose.Standing()), false)
	s.Label("reps 3")

	data, err := s.PNG()
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
}

func TestOverlay(t *testing.T) {
	p := hiddenPose(pose.LeftShoulder, pose.LeftElbow)
	p.Landmarks[pose.LeftElbow].X = 0.4

	anns := Overlay(p, 200, 100, false, DefaultStyle())
	require.Len(t, anns, 3)

	limb := anns[0]
	assert.Equal(t, models.AnnotationLimb, limb.Type)
	assert.Equal(t, []models.Point{{X: 40, Y: 30}, {X: 80, Y: 30}}, limb.Points)
	assert.Equal(t, Hex(RegionColor(pose.RegionArms)), limb.Color)

	kp := anns[1]
	assert.Equal(t, models.AnnotationKeypoint, kp.Type)
	assert.Equal(t, "left_shoulder", kp.Label)
	assert.Equal(t, 40.0, kp.X)
	assert.Equal(t, DefaultStyle().PointRadius, kp.Radius)

	mirrored := Overlay(p, 200, 100, true, DefaultStyle())
	assert.Equal(t, 160.0, mirrored[1].X)
	assert.Equal(t, 120.0, mirrored[2].X)

	assert.Nil(t, Overlay(nil, 200, 100, false, DefaultStyle()))
}

func TestRegionColors(t *testing.T) {
	assert.Equal(t, "#48F90A", Hex(RegionColor(pose.RegionLegs)))
	seen := map[string]bool{}
	for _, r := range []pose.Region{pose.RegionFace, pose.RegionArms, pose.RegionLegs, pose.RegionTorso} {
		seen[Hex(RegionColor(r))] = true
	}
	assert.Len(t, seen, 4)
}
