// Package pose holds the landmark topology shared by the estimator, the
// renderer and the analyzer, plus the geometry used to measure joints.
package pose

import (
	"errors"
	"fmt"

	"github.com/san-kum/pose-coach/server/models"
)

/* landmarks (BlazePose topology)
0: nose                 17: left pinky
1: left eye inner       18: right pinky
2: left eye             19: left index
3: left eye outer       20: right index
4: right eye inner      21: left thumb
5: right eye            22: right thumb
6: right eye outer      23: left hip
7: left ear             24: right hip
8: right ear            25: left knee
9: mouth left           26: right knee
10: mouth right         27: left ankle
11: left shoulder       28: right ankle
12: right shoulder      29: left heel
13: left elbow          30: right heel
14: right elbow         31: left foot index
15: left wrist          32: right foot index
16: right wrist
*/

const (
	Nose = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
	NumLandmarks
)

// VisibilityThreshold is the minimum visibility for a landmark to be drawn
// or to take part in analysis.
const VisibilityThreshold = 0.5

var (
	ErrLandmarkCount = errors.New("unexpected landmark count")
	ErrOutOfRange    = errors.New("landmark value out of range")
)

var names = [NumLandmarks]string{
	"nose", "left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer", "left_ear", "right_ear",
	"mouth_left", "mouth_right", "left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow", "left_wrist", "right_wrist",
	"left_pinky", "right_pinky", "left_index", "right_index",
	"left_thumb", "right_thumb", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
	"left_heel", "right_heel", "left_foot_index", "right_foot_index",
}

var byName = func() map[string]int {
	m := make(map[string]int, NumLandmarks)
	for i, n := range names {
		m[n] = i
	}
	return m
}()

func Name(index int) string {
	if index < 0 || index >= NumLandmarks {
		return fmt.Sprintf("landmark_%d", index)
	}
	return names[index]
}

// Index resolves a landmark name such as "left_knee".
func Index(name string) (int, bool) {
	i, ok := byName[name]
	return i, ok
}

// Opposite returns the landmark on the other side of the body. Landmarks
// on the midline map to themselves.
func Opposite(index int) int {
	switch {
	case index == Nose:
		return Nose
	case index >= LeftEyeInner && index <= LeftEyeOuter:
		return index + 3
	case index >= RightEyeInner && index <= RightEyeOuter:
		return index - 3
	case index >= LeftEar && index < NumLandmarks:
		// remaining landmarks alternate left, right
		if (index-LeftEar)%2 == 0 {
			return index + 1
		}
		return index - 1
	}
	return index
}

type Region int

const (
	RegionFace Region = iota
	RegionArms
	RegionLegs
	RegionTorso
)

func (r Region) String() string {
	switch r {
	case RegionFace:
		return "face"
	case RegionArms:
		return "arms"
	case RegionLegs:
		return "legs"
	default:
		return "torso"
	}
}

// RegionOf classifies a landmark by index range.
func RegionOf(index int) Region {
	switch {
	case index <= MouthRight:
		return RegionFace
	case index <= RightThumb:
		return RegionArms
	default:
		return RegionLegs
	}
}

// Visible reports whether the landmark passes the visibility gate.
func Visible(l models.Landmark) bool {
	return l.Visibility >= VisibilityThreshold
}

// Validate checks the pose shape contract: fixed landmark count, visibility
// within [0,1] and finite coordinates.
func Validate(p *models.Pose) error {
	if p == nil {
		return fmt.Errorf("%w: nil pose", ErrLandmarkCount)
	}
	if len(p.Landmarks) != NumLandmarks {
		return fmt.Errorf("%w: got %d, want %d", ErrLandmarkCount, len(p.Landmarks), NumLandmarks)
	}
	for i, l := range p.Landmarks {
		if l.Visibility < 0 || l.Visibility > 1 {
			return fmt.Errorf("%w: %s visibility %.3f", ErrOutOfRange, names[i], l.Visibility)
		}
		if !finite(l.X) || !finite(l.Y) || !finite(l.Z) {
			return fmt.Errorf("%w: %s has non-finite coordinates", ErrOutOfRange, names[i])
		}
	}
	return nil
}

// Empty returns a pose with every landmark invisible.
func Empty(timestamp int64) *models.Pose {
	return &models.Pose{
		Landmarks: make([]models.Landmark, NumLandmarks),
		Timestamp: timestamp,
	}
}
