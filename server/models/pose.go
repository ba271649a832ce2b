package models

// Landmark is a single tracked body keypoint. X and Y are normalized to the
// frame, Z is relative depth and only meaningful when HasZ is set.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	HasZ       bool    `json:"has_z,omitempty"`
	Visibility float64 `json:"visibility"`
}

// Pose is one frame's detected body configuration, indexed by landmark.
type Pose struct {
	Landmarks []Landmark `json:"landmarks"`
	Timestamp int64      `json:"timestamp"`
}

type Connection struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type Frame struct {
	ImageData []byte `json:"image_data,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp"`
	ClientID  string `json:"client_id"`
	// Pose is set when the client ran its own on-device estimator.
	Pose *Pose `json:"pose,omitempty"`
}

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseDescending Phase = "descending"
	PhaseBottom     Phase = "bottom"
	PhaseAscending  Phase = "ascending"
)

func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhaseDescending, PhaseBottom, PhaseAscending:
		return true
	}
	return false
}

// Moving reports whether the phase belongs to an active repetition.
func (p Phase) Moving() bool {
	return p == PhaseDescending || p == PhaseBottom || p == PhaseAscending
}
