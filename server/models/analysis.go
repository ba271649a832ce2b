package models

import "time"

type Evaluation struct {
	Exercise  string         `json:"exercise"`
	Phase     Phase          `json:"phase"`
	Reps      int            `json:"reps"`
	Items     []FeedbackItem `json:"items"`
	Passed    int            `json:"passed"`
	Evaluated int            `json:"evaluated"`
	// Score is nil when no check could be evaluated.
	Score *int `json:"score"`
}

type AnalysisResult struct {
	Evaluation     Evaluation   `json:"evaluation"`
	Annotations    []Annotation `json:"annotations"`
	ProcessingTime float64      `json:"processing_time"`
	ModelVersion   string       `json:"model_version,omitempty"`
	Timestamp      int64        `json:"timestamp"`
}

type Annotation struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius,omitempty"`
	Points []Point `json:"points,omitempty"`
	Label  string  `json:"label,omitempty"`
	Color  string  `json:"color"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	AnnotationKeypoint = "keypoint"
	AnnotationLimb     = "limb"
)

type APIResponse struct {
	Success bool          `json:"success"`
	Data    any           `json:"data"`
	Error   *APIError     `json:"error"`
	Meta    *ResponseMeta `json:"meta"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ResponseMeta struct {
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	ProcessingTime float64   `json:"processing_time"`
	Version        string    `json:"version"`
}
