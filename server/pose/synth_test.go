package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_MatchesStanceAngles(t *testing.T) {
	space := DefaultSpace()

	for _, knee := range []float64{60, 95, 110, 150, 178} {
		p := Synthesize(Stance{Knee: knee, Lean: 20, Elbow: 90, Visibility: 0.9})
		require.NoError(t, Validate(p))

		for _, side := range [][3]int{
			{LeftHip, LeftKnee, LeftAnkle},
			{RightHip, RightKnee, RightAnkle},
		} {
			got, ok := space.Angle(p.Landmarks[side[0]], p.Landmarks[side[1]], p.Landmarks[side[2]])
			require.True(t, ok)
			assert.InDelta(t, knee, got, 1e-6)
		}

		lean, ok := space.Incline(p.Landmarks[LeftHip], p.Landmarks[LeftShoulder])
		require.True(t, ok)
		assert.InDelta(t, 20, lean, 1e-6)

		elbow, ok := space.Angle(p.Landmarks[LeftShoulder], p.Landmarks[LeftElbow], p.Landmarks[LeftWrist])
		require.True(t, ok)
		assert.InDelta(t, 90, elbow, 1e-6)
	}
}

func TestSynthesize_Visibility(t *testing.T) {
	p := Synthesize(Stance{Knee: 170, Visibility: 0.3})
	for _, l := range p.Landmarks {
		assert.Equal(t, 0.3, l.Visibility)
	}
	p = Synthesize(Stance{Knee: 170})
	assert.Equal(t, 1.0, p.Landmarks[Nose].Visibility)
}
