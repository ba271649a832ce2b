package analyzer

import (
	"testing"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func single(x, y, vis float64) *models.Pose {
	return &models.Pose{Landmarks: []models.Landmark{{X: x, Y: y, Visibility: vis}}}
}

func TestWindow_WeightedMean(t *testing.T) {
	w := NewWindow(3)
	w.Push(single(0.1, 0.1, 1))
	out := w.Push(single(0.4, 0.4, 0.5))

	// weights 1 and 0.5
	assert.InDelta(t, 0.2, out.Landmarks[0].X, 1e-9)
	assert.InDelta(t, 0.2, out.Landmarks[0].Y, 1e-9)
	assert.Equal(t, 0.5, out.Landmarks[0].Visibility)
}

func TestWindow_EvictsOldest(t *testing.T) {
	w := NewWindow(2)
	w.Push(single(0.9, 0.9, 1))
	w.Push(single(0.2, 0.2, 1))
	out := w.Push(single(0.4, 0.4, 1))

	require.Equal(t, 2, len(w.poses))
	assert.InDelta(t, 0.3, out.Landmarks[0].X, 1e-9)
}

func TestWindow_IgnoresInvisibleHistoryAndKeepsCurrentGate(t *testing.T) {
	w := NewWindow(3)
	w.Push(single(0.9, 0.9, 0.1))
	out := w.Push(single(0.3, 0.3, 0.8))
	assert.InDelta(t, 0.3, out.Landmarks[0].X, 1e-9, "invisible history does not pull the point")

	out = w.Push(single(0.7, 0.7, 0.2))
	assert.Equal(t, 0.7, out.Landmarks[0].X, "an invisible landmark is passed through untouched")
	assert.Equal(t, 0.2, out.Landmarks[0].Visibility)
}

func TestWindow_Reset(t *testing.T) {
	w := NewWindow(0)
	w.Push(single(0.9, 0.9, 1))
	w.Reset()
	assert.Zero(t, len(w.poses))
	out := w.Push(single(0.1, 0.1, 1))
	assert.Equal(t, 0.1, out.Landmarks[0].X)
}
