package session

import (
	"github.com/san-kum/pose-coach/server/models"
	"github.com/san-kum/pose-coach/server/presenter"
	"github.com/san-kum/pose-coach/server/render"
)

type State string

const (
	StateIdle        State = "idle"
	StateStarting    State = "starting"
	StateActive      State = "active"
	StateError       State = "error"
	StateUnavailable State = "unavailable"
	StateStopped     State = "stopped"
)

// Event types sent to the Sink.
const (
	EventState          = "state"
	EventOverlay        = "overlay"
	EventAnalysis       = "analysis"
	EventToast          = "toast"
	EventToastDismissed = "toast_dismissed"
	EventHint           = "hint"
)

// Sink delivers session events to the client. Send is called from the
// session goroutine and must not block for long.
type Sink interface {
	Send(eventType string, data any) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(eventType string, data any) error

func (f SinkFunc) Send(eventType string, data any) error { return f(eventType, data) }

type Status struct {
	State   State  `json:"state"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Retry   bool   `json:"retry"`
}

type Overlay struct {
	Width       int                 `json:"width"`
	Height      int                 `json:"height"`
	Mirror      bool                `json:"mirror"`
	Timestamp   int64               `json:"timestamp"`
	Annotations []models.Annotation `json:"annotations"`
	Stats       render.Stats        `json:"stats"`
}

type Analysis struct {
	Timestamp int64             `json:"timestamp"`
	Summary   presenter.Summary `json:"summary"`
}

type Toast struct {
	Item       models.FeedbackItem `json:"item"`
	DurationMS int64               `json:"duration_ms"`
}

type ToastDismissed struct {
	ID string `json:"id"`
}

type Hint struct {
	Message string `json:"message"`
	Visible bool   `json:"visible"`
}
