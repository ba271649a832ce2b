package pose

import (
	"math"
	"testing"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lm(x, y float64) models.Landmark {
	return models.Landmark{X: x, Y: y, Visibility: 1}
}

func TestSpace_Angle(t *testing.T) {
	s := DefaultSpace()

	tests := []struct {
		name    string
		a, b, c models.Landmark
		want    float64
	}{
		{"straight", lm(0.5, 0.1), lm(0.5, 0.5), lm(0.5, 0.9), 180},
		{"right angle", lm(0.5, 0.1), lm(0.5, 0.5), lm(0.9, 0.5), 90},
		{"folded", lm(0.5, 0.1), lm(0.5, 0.5), lm(0.5, 0.2), 0},
		{"forty five", lm(0.9, 0.5), lm(0.5, 0.5), lm(0.9, 0.1), 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Angle(tt.a, tt.b, tt.c)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSpace_Angle_Degenerate(t *testing.T) {
	_, ok := DefaultSpace().Angle(lm(0.5, 0.5), lm(0.5, 0.5), lm(0.1, 0.1))
	assert.False(t, ok)
}

func TestSpace_Angle_Aspect(t *testing.T) {
	// on a 2:1 frame a normalized 45 degree diagonal is flatter
	s := Space{Aspect: 2}
	got, ok := s.Angle(lm(0.6, 0.5), lm(0.5, 0.5), lm(0.6, 0.4))
	require.True(t, ok)
	assert.InDelta(t, math.Atan2(0.1, 0.2)*180/math.Pi, got, 1e-9)
}

func TestSpace_Angle_Uses3DOnlyWhenEnabled(t *testing.T) {
	a := models.Landmark{X: 0.5, Y: 0.1, Visibility: 1}
	b := models.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	c := models.Landmark{X: 0.5, Y: 0.5, Z: 0.4, HasZ: true, Visibility: 1}
	b.HasZ = true

	_, ok := DefaultSpace().Angle(a, b, c)
	assert.False(t, ok, "flat space ignores depth, so c collapses onto b")

	got, ok := Space{Aspect: 1, Use3D: true}.Angle(a, b, c)
	require.True(t, ok)
	assert.InDelta(t, 90, got, 1e-9)
}

func TestSpace_Incline(t *testing.T) {
	s := DefaultSpace()

	got, ok := s.Incline(lm(0.5, 0.2), lm(0.5, 0.6))
	require.True(t, ok)
	assert.InDelta(t, 0, got, 1e-9)

	got, ok = s.Incline(lm(0.5, 0.6), lm(0.9, 0.2))
	require.True(t, ok)
	assert.InDelta(t, 45, got, 1e-9)

	got, ok = s.Incline(lm(0.2, 0.5), lm(0.8, 0.5))
	require.True(t, ok)
	assert.InDelta(t, 90, got, 1e-9)
}
