package pose

import (
	"math"

	"github.com/san-kum/pose-coach/server/models"
)

// Stance describes a side-on standing body by its joint angles, in
// degrees. Knee and Elbow are interior angles (180 is straight), Lean is
// the torso angle from vertical, positive toward the facing direction.
type Stance struct {
	Knee       float64
	Lean       float64
	Elbow      float64
	Visibility float64
	Timestamp  int64
}

func Standing() Stance {
	return Stance{Knee: 178, Lean: 2, Elbow: 170, Visibility: 0.95}
}

const (
	shinLength     = 0.2
	thighLength    = 0.2
	torsoLength    = 0.28
	upperArmLength = 0.14
	forearmLength  = 0.13
	// rightOffset shifts the far side so both sides stay distinguishable.
	rightOffset = 0.01
)

// Synthesize builds a full pose from s with the ankle planted at
// (0.45, 0.9). The interior angles of the generated pose match s exactly.
func Synthesize(s Stance) *models.Pose {
	vis := s.Visibility
	if vis == 0 {
		vis = 1
	}

	ankle := [2]float64{0.45, 0.9}
	shinTilt := (180 - s.Knee) / 3
	knee := step(ankle, shinTilt, shinLength)
	hip := step(knee, shinTilt+180+s.Knee, thighLength)
	shoulder := step(hip, s.Lean, torsoLength)

	armAngle := 90 + s.Lean
	elbow := step(shoulder, armAngle+90, upperArmLength)
	wrist := step(elbow, armAngle+90+180+s.Elbow, forearmLength)

	nose := add(shoulder, 0.03, -0.09)

	left := map[int][2]float64{
		LeftEyeInner:  add(nose, -0.005, -0.015),
		LeftEye:       add(nose, -0.01, -0.017),
		LeftEyeOuter:  add(nose, -0.015, -0.017),
		LeftEar:       add(nose, -0.04, -0.01),
		MouthLeft:     add(nose, -0.005, 0.02),
		LeftShoulder:  shoulder,
		LeftElbow:     elbow,
		LeftWrist:     wrist,
		LeftPinky:     add(wrist, 0.01, 0.015),
		LeftIndex:     add(wrist, 0.02, 0.01),
		LeftThumb:     add(wrist, 0.015, -0.005),
		LeftHip:       hip,
		LeftKnee:      knee,
		LeftAnkle:     ankle,
		LeftHeel:      add(ankle, -0.02, 0.02),
		LeftFootIndex: add(ankle, 0.06, 0.02),
	}

	p := &models.Pose{
		Landmarks: make([]models.Landmark, NumLandmarks),
		Timestamp: s.Timestamp,
	}
	p.Landmarks[Nose] = models.Landmark{X: nose[0], Y: nose[1], Visibility: vis}
	for idx, pt := range left {
		p.Landmarks[idx] = models.Landmark{X: pt[0], Y: pt[1], Visibility: vis}
		p.Landmarks[Opposite(idx)] = models.Landmark{X: pt[0] + rightOffset, Y: pt[1], Visibility: vis}
	}
	return p
}

// step walks length from origin in the direction given by degrees from
// straight up, positive toward +x (image y grows downward).
func step(origin [2]float64, degrees, length float64) [2]float64 {
	rad := degrees * math.Pi / 180
	return [2]float64{
		origin[0] + length*math.Sin(rad),
		origin[1] - length*math.Cos(rad),
	}
}

func add(p [2]float64, dx, dy float64) [2]float64 {
	return [2]float64{p[0] + dx, p[1] + dy}
}
