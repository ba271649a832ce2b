package pose

import (
	"math"
	"testing"

	"github.com/san-kum/pose-coach/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnections_ReferenceValidIndices(t *testing.T) {
	conns := Connections()
	require.NotEmpty(t, conns)
	require.NoError(t, ValidateConnections(conns, NumLandmarks))

	p := Empty(0)
	for _, c := range conns {
		assert.Less(t, c.From, len(p.Landmarks))
		assert.Less(t, c.To, len(p.Landmarks))
	}
}

func TestConnections_ReturnsCopy(t *testing.T) {
	conns := Connections()
	conns[0] = models.Connection{From: 99, To: 100}
	assert.NoError(t, ValidateConnections(Connections(), NumLandmarks))
}

func TestValidateConnections_Rejects(t *testing.T) {
	assert.Error(t, ValidateConnections([]models.Connection{{From: 0, To: NumLandmarks}}, NumLandmarks))
	assert.Error(t, ValidateConnections([]models.Connection{{From: -1, To: 2}}, NumLandmarks))
	assert.Error(t, ValidateConnections([]models.Connection{{From: 3, To: 3}}, NumLandmarks))
}

func TestIndexAndName(t *testing.T) {
	for i := 0; i < NumLandmarks; i++ {
		idx, ok := Index(Name(i))
		require.True(t, ok, Name(i))
		assert.Equal(t, i, idx)
	}
	_, ok := Index("tail")
	assert.False(t, ok)
	assert.Equal(t, "landmark_40", Name(40))
}

func TestOpposite(t *testing.T) {
	pairs := map[int]int{
		Nose:          Nose,
		LeftEyeInner:  RightEyeInner,
		LeftEyeOuter:  RightEyeOuter,
		LeftEar:       RightEar,
		MouthLeft:     MouthRight,
		LeftShoulder:  RightShoulder,
		LeftKnee:      RightKnee,
		LeftFootIndex: RightFootIndex,
	}
	for l, r := range pairs {
		assert.Equal(t, r, Opposite(l), Name(l))
		assert.Equal(t, l, Opposite(r), Name(r))
	}
}

func TestRegionOf(t *testing.T) {
	assert.Equal(t, RegionFace, RegionOf(Nose))
	assert.Equal(t, RegionArms, RegionOf(LeftShoulder))
	assert.Equal(t, RegionArms, RegionOf(RightThumb))
	assert.Equal(t, RegionLegs, RegionOf(LeftHip))
	assert.Equal(t, RegionLegs, RegionOf(RightFootIndex))

	assert.Equal(t, RegionTorso, ConnectionRegion(models.Connection{From: LeftShoulder, To: LeftHip}))
	assert.Equal(t, RegionLegs, ConnectionRegion(models.Connection{From: LeftHip, To: LeftKnee}))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(Empty(1)))

	assert.ErrorIs(t, Validate(nil), ErrLandmarkCount)
	assert.ErrorIs(t, Validate(&models.Pose{Landmarks: make([]models.Landmark, 17)}), ErrLandmarkCount)

	p := Empty(1)
	p.Landmarks[LeftKnee].Visibility = 1.5
	assert.ErrorIs(t, Validate(p), ErrOutOfRange)

	p = Empty(1)
	p.Landmarks[LeftKnee].X = math.NaN()
	assert.ErrorIs(t, Validate(p), ErrOutOfRange)
}
