package pose

import (
	"fmt"

	"github.com/san-kum/pose-coach/server/models"
)

// connections are the skeletal edges drawn between landmarks.
var connections = [...]models.Connection{
	// face
	{From: Nose, To: LeftEyeInner}, {From: LeftEyeInner, To: LeftEye},
	{From: LeftEye, To: LeftEyeOuter}, {From: LeftEyeOuter, To: LeftEar},
	{From: Nose, To: RightEyeInner}, {From: RightEyeInner, To: RightEye},
	{From: RightEye, To: RightEyeOuter}, {From: RightEyeOuter, To: RightEar},
	{From: MouthLeft, To: MouthRight},
	// arms
	{From: LeftShoulder, To: RightShoulder},
	{From: LeftShoulder, To: LeftElbow}, {From: LeftElbow, To: LeftWrist},
	{From: LeftWrist, To: LeftPinky}, {From: LeftWrist, To: LeftIndex},
	{From: LeftWrist, To: LeftThumb}, {From: LeftPinky, To: LeftIndex},
	{From: RightShoulder, To: RightElbow}, {From: RightElbow, To: RightWrist},
	{From: RightWrist, To: RightPinky}, {From: RightWrist, To: RightIndex},
	{From: RightWrist, To: RightThumb}, {From: RightPinky, To: RightIndex},
	// torso
	{From: LeftShoulder, To: LeftHip}, {From: RightShoulder, To: RightHip},
	{From: LeftHip, To: RightHip},
	// legs
	{From: LeftHip, To: LeftKnee}, {From: RightHip, To: RightKnee},
	{From: LeftKnee, To: LeftAnkle}, {From: RightKnee, To: RightAnkle},
	{From: LeftAnkle, To: LeftHeel}, {From: RightAnkle, To: RightHeel},
	{From: LeftHeel, To: LeftFootIndex}, {From: RightHeel, To: RightFootIndex},
	{From: LeftAnkle, To: LeftFootIndex}, {From: RightAnkle, To: RightFootIndex},
}

// Connections returns a copy of the skeleton edges.
func Connections() []models.Connection {
	out := make([]models.Connection, len(connections))
	copy(out, connections[:])
	return out
}

// ValidateConnections checks every edge references an index inside a pose
// of n landmarks.
func ValidateConnections(conns []models.Connection, n int) error {
	for i, c := range conns {
		if c.From < 0 || c.From >= n || c.To < 0 || c.To >= n {
			return fmt.Errorf("connection %d (%d-%d) outside %d landmarks", i, c.From, c.To, n)
		}
		if c.From == c.To {
			return fmt.Errorf("connection %d is a self loop on %d", i, c.From)
		}
	}
	return nil
}

// ConnectionRegion colors an edge: both ends in one region keep it, edges
// between regions belong to the torso.
func ConnectionRegion(c models.Connection) Region {
	from, to := RegionOf(c.From), RegionOf(c.To)
	if from == to {
		return from
	}
	return RegionTorso
}
