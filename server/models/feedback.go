package models

type FeedbackType string

const (
	FeedbackSuccess FeedbackType = "success"
	FeedbackWarning FeedbackType = "warning"
	FeedbackError   FeedbackType = "error"
	FeedbackInfo    FeedbackType = "info"
)

func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackSuccess, FeedbackWarning, FeedbackError, FeedbackInfo:
		return true
	}
	return false
}

// Issue reports whether the item flags a problem with the current form.
func (t FeedbackType) Issue() bool {
	return t == FeedbackWarning || t == FeedbackError
}

type BodyPart string

const (
	BodyPartHead      BodyPart = "head"
	BodyPartNeck      BodyPart = "neck"
	BodyPartShoulders BodyPart = "shoulders"
	BodyPartElbows    BodyPart = "elbows"
	BodyPartWrists    BodyPart = "wrists"
	BodyPartArms      BodyPart = "arms"
	BodyPartBack      BodyPart = "back"
	BodyPartCore      BodyPart = "core"
	BodyPartHips      BodyPart = "hips"
	BodyPartKnees     BodyPart = "knees"
	BodyPartAnkles    BodyPart = "ankles"
	BodyPartFeet      BodyPart = "feet"
)

var bodyParts = map[BodyPart]struct{}{
	BodyPartHead:      {},
	BodyPartNeck:      {},
	BodyPartShoulders: {},
	BodyPartElbows:    {},
	BodyPartWrists:    {},
	BodyPartArms:      {},
	BodyPartBack:      {},
	BodyPartCore:      {},
	BodyPartHips:      {},
	BodyPartKnees:     {},
	BodyPartAnkles:    {},
	BodyPartFeet:      {},
}

func (b BodyPart) Valid() bool {
	_, ok := bodyParts[b]
	return ok
}

type Direction string

const (
	DirectionNone  Direction = ""
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionIn    Direction = "in"
	DirectionOut   Direction = "out"
	DirectionFront Direction = "forward"
	DirectionBack  Direction = "backward"
)

type FeedbackItem struct {
	ID         string       `json:"id"`
	Type       FeedbackType `json:"type"`
	BodyPart   BodyPart     `json:"body_part"`
	Message    string       `json:"message"`
	Suggestion string       `json:"suggestion,omitempty"`
	Direction  Direction    `json:"direction,omitempty"`
}

func (d Direction) Valid() bool {
	switch d {
	case DirectionNone, DirectionUp, DirectionDown, DirectionIn, DirectionOut, DirectionFront, DirectionBack:
		return true
	}
	return false
}
